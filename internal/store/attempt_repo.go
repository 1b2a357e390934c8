package store

import (
	"context"
	"iter"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/abhisek/drillbox/internal/progress"
)

const attemptsTable = "attempts"

var attemptColumns = []string{"id", "user_id", "question_id", "topic_id", "correct", "response_seconds", "answered_at"}

type attemptRow struct {
	ID              string  `db:"id"`
	UserID          string  `db:"user_id"`
	QuestionID      int64   `db:"question_id"`
	TopicID         int64   `db:"topic_id"`
	Correct         bool    `db:"correct"`
	ResponseSeconds float64 `db:"response_seconds"`
	AnsweredAt      int64   `db:"answered_at"`
}

// AttemptRepo is the append-only log of answers.
type AttemptRepo struct {
	db *sqlx.DB
	sb *entsql.DialectBuilder
}

// Append stores a. An empty ID is replaced by a new UUID.
func (a *AttemptRepo) Append(ctx context.Context, at progress.Attempt) error {
	if at.ID == "" {
		at.ID = uuid.NewString()
	}
	query, args := a.sb.Insert(attemptsTable).
		Set("id", at.ID).
		Set("user_id", at.UserID).
		Set("question_id", at.QuestionID).
		Set("topic_id", at.TopicID).
		Set("correct", at.Correct).
		Set("response_seconds", at.ResponseSeconds).
		Set("answered_at", at.AnsweredAt.Unix()).
		Query()
	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return classify(err, "append attempt")
	}
	return nil
}

// Attempts yields the user's attempts answered at or after since, oldest
// first. Rows are streamed; the query stays open until iteration ends.
func (a *AttemptRepo) Attempts(ctx context.Context, userID string, since time.Time) iter.Seq2[progress.Attempt, error] {
	return func(yield func(progress.Attempt, error) bool) {
		query, args := a.sb.Select(attemptColumns...).
			From(a.sb.Table(attemptsTable)).
			Where(entsql.And(
				entsql.EQ("user_id", userID),
				entsql.GTE("answered_at", since.Unix()),
			)).
			OrderBy("answered_at", "seq").
			Query()

		rows, err := a.db.QueryxContext(ctx, query, args...)
		if err != nil {
			yield(progress.Attempt{}, classify(err, "list attempts"))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var row attemptRow
			if err := rows.StructScan(&row); err != nil {
				yield(progress.Attempt{}, classify(err, "scan attempt"))
				return
			}
			if !yield(row.attempt(), nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(progress.Attempt{}, classify(err, "list attempts"))
		}
	}
}

func (r attemptRow) attempt() progress.Attempt {
	return progress.Attempt{
		ID:              r.ID,
		UserID:          r.UserID,
		QuestionID:      r.QuestionID,
		TopicID:         r.TopicID,
		Correct:         r.Correct,
		ResponseSeconds: r.ResponseSeconds,
		AnsweredAt:      fromUnix(r.AnsweredAt),
	}
}
