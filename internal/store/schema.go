package store

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
)

// Column types that differ between SQLite and PostgreSQL.
type columnTypes struct {
	serial string
	bigint string
	real   string
	yes    string
}

var (
	sqliteTypes   = columnTypes{serial: "INTEGER PRIMARY KEY AUTOINCREMENT", bigint: "INTEGER", real: "REAL", yes: "1"}
	postgresTypes = columnTypes{serial: "BIGSERIAL PRIMARY KEY", bigint: "BIGINT", real: "DOUBLE PRECISION", yes: "TRUE"}
)

func schemaStatements(d string) []string {
	t := sqliteTypes
	if d == dialect.Postgres {
		t = postgresTypes
	}
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS topics (
	id %s,
	parent_id %s REFERENCES topics(id),
	name TEXT NOT NULL,
	difficulty_level INTEGER NOT NULL DEFAULT 1
)`, t.serial, t.bigint),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS questions (
	id %s,
	topic_id %s NOT NULL REFERENCES topics(id),
	difficulty_level INTEGER NOT NULL DEFAULT 1,
	points INTEGER NOT NULL DEFAULT 0,
	active BOOLEAN NOT NULL DEFAULT %s,
	prompt TEXT NOT NULL DEFAULT ''
)`, t.serial, t.bigint, t.yes),
		`CREATE INDEX IF NOT EXISTS idx_questions_topic ON questions (topic_id)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS progress (
	user_id TEXT NOT NULL,
	question_id %[1]s NOT NULL,
	topic_id %[1]s NOT NULL,
	attempts %[1]s NOT NULL,
	correct_attempts %[1]s NOT NULL,
	box INTEGER NOT NULL,
	interval_days INTEGER NOT NULL,
	ease_factor %[2]s NOT NULL,
	consecutive_correct %[1]s NOT NULL,
	confidence %[2]s NOT NULL,
	time_spent_seconds %[1]s NOT NULL,
	next_review %[1]s NOT NULL,
	last_attempt %[1]s NOT NULL,
	created_at %[1]s NOT NULL,
	version %[1]s NOT NULL,
	PRIMARY KEY (user_id, question_id)
)`, t.bigint, t.real),
		`CREATE INDEX IF NOT EXISTS idx_progress_user_topic ON progress (user_id, topic_id)`,
		`CREATE INDEX IF NOT EXISTS idx_progress_user_next ON progress (user_id, next_review)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS attempts (
	seq %s,
	id TEXT NOT NULL UNIQUE,
	user_id TEXT NOT NULL,
	question_id %[2]s NOT NULL,
	topic_id %[2]s NOT NULL,
	correct BOOLEAN NOT NULL,
	response_seconds %[3]s NOT NULL,
	answered_at %[2]s NOT NULL
)`, t.serial, t.bigint, t.real),
		`CREATE INDEX IF NOT EXISTS idx_attempts_user_time ON attempts (user_id, answered_at)`,
	}
}

// migrate creates missing tables and indexes. It never alters existing ones.
func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
