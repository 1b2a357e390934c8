package store

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/abhisek/drillbox/internal/progress"
)

const progressTable = "progress"

var progressColumns = []string{
	"user_id", "question_id", "topic_id",
	"attempts", "correct_attempts", "box", "interval_days", "ease_factor",
	"consecutive_correct", "confidence", "time_spent_seconds",
	"next_review", "last_attempt", "created_at", "version",
}

// progressRow is the database shape of a progress.Record. Times are unix seconds.
type progressRow struct {
	UserID             string  `db:"user_id"`
	QuestionID         int64   `db:"question_id"`
	TopicID            int64   `db:"topic_id"`
	Attempts           int64   `db:"attempts"`
	CorrectAttempts    int64   `db:"correct_attempts"`
	Box                int     `db:"box"`
	IntervalDays       int     `db:"interval_days"`
	EaseFactor         float64 `db:"ease_factor"`
	ConsecutiveCorrect int64   `db:"consecutive_correct"`
	Confidence         float64 `db:"confidence"`
	TimeSpentSeconds   int64   `db:"time_spent_seconds"`
	NextReview         int64   `db:"next_review"`
	LastAttempt        int64   `db:"last_attempt"`
	CreatedAt          int64   `db:"created_at"`
	Version            int64   `db:"version"`
}

func (r progressRow) record() progress.Record {
	return progress.Record{
		UserID:             r.UserID,
		QuestionID:         r.QuestionID,
		TopicID:            r.TopicID,
		Attempts:           uint(r.Attempts),
		CorrectAttempts:    uint(r.CorrectAttempts),
		Box:                r.Box,
		IntervalDays:       r.IntervalDays,
		EaseFactor:         r.EaseFactor,
		ConsecutiveCorrect: uint(r.ConsecutiveCorrect),
		Confidence:         r.Confidence,
		TimeSpentSeconds:   uint64(r.TimeSpentSeconds),
		NextReview:         fromUnix(r.NextReview),
		LastAttempt:        fromUnix(r.LastAttempt),
		CreatedAt:          fromUnix(r.CreatedAt),
		Version:            uint64(r.Version),
	}
}

// ProgressRepo stores progress records keyed by (user, question).
type ProgressRepo struct {
	db *sqlx.DB
	sb *entsql.DialectBuilder
}

// Get returns the record for the pair, or progress.ErrNotFound.
func (p *ProgressRepo) Get(ctx context.Context, userID string, questionID int64) (progress.Record, error) {
	query, args := p.sb.Select(progressColumns...).
		From(p.sb.Table(progressTable)).
		Where(entsql.And(
			entsql.EQ("user_id", userID),
			entsql.EQ("question_id", questionID),
		)).
		Query()

	var row progressRow
	if err := p.db.GetContext(ctx, &row, query, args...); err != nil {
		return progress.Record{}, classify(err, "get progress")
	}
	return row.record(), nil
}

// Upsert writes r with a compare-and-swap on Version. A record with Version 0
// is inserted; otherwise the stored version must still equal r.Version.
// It returns progress.ErrConflict when another writer got there first, and
// the stored record with its new version on success.
func (p *ProgressRepo) Upsert(ctx context.Context, r progress.Record) (progress.Record, error) {
	if err := r.Validate(); err != nil {
		return progress.Record{}, err
	}

	next := r
	next.Version = r.Version + 1
	if next.CreatedAt.IsZero() {
		next.CreatedAt = r.LastAttempt
	}
	// Times are stored with second precision.
	next.NextReview = fromUnix(next.NextReview.Unix())
	next.LastAttempt = fromUnix(next.LastAttempt.Unix())
	next.CreatedAt = fromUnix(next.CreatedAt.Unix())

	var (
		query string
		args  []any
	)
	if r.Version == 0 {
		ins := p.sb.Insert(progressTable)
		for i, v := range rowValues(next) {
			ins.Set(progressColumns[i], v)
		}
		query, args = ins.
			OnConflict(entsql.ConflictColumns("user_id", "question_id"), entsql.DoNothing()).
			Query()
	} else {
		upd := p.sb.Update(progressTable)
		// The key columns and created_at never change.
		values := rowValues(next)
		for i, col := range progressColumns {
			switch col {
			case "user_id", "question_id", "created_at":
				continue
			}
			upd.Set(col, values[i])
		}
		query, args = upd.Where(entsql.And(
			entsql.EQ("user_id", r.UserID),
			entsql.EQ("question_id", r.QuestionID),
			entsql.EQ("version", int64(r.Version)),
		)).Query()
	}

	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return progress.Record{}, classify(err, "upsert progress")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return progress.Record{}, classify(err, "upsert progress")
	}
	if n == 0 {
		return progress.Record{}, errors.Wrapf(progress.ErrConflict, "user %s question %d version %d", r.UserID, r.QuestionID, r.Version)
	}
	return next, nil
}

// ListByUser returns every record of the user, optionally limited to one topic,
// ordered by question ID.
func (p *ProgressRepo) ListByUser(ctx context.Context, userID string, topicID *int64) ([]progress.Record, error) {
	pred := entsql.EQ("user_id", userID)
	if topicID != nil {
		pred = entsql.And(pred, entsql.EQ("topic_id", *topicID))
	}
	query, args := p.sb.Select(progressColumns...).
		From(p.sb.Table(progressTable)).
		Where(pred).
		OrderBy("question_id").
		Query()
	return p.list(ctx, "list progress", query, args)
}

// ListOverdue returns the user's records due at or before now, earliest first.
func (p *ProgressRepo) ListOverdue(ctx context.Context, userID string, now time.Time) ([]progress.Record, error) {
	query, args := p.sb.Select(progressColumns...).
		From(p.sb.Table(progressTable)).
		Where(entsql.And(
			entsql.EQ("user_id", userID),
			entsql.LTE("next_review", now.Unix()),
		)).
		OrderBy("next_review", "question_id").
		Query()
	return p.list(ctx, "list overdue progress", query, args)
}

// DeleteByTopic removes every record of the user in the topic and returns
// how many were deleted.
func (p *ProgressRepo) DeleteByTopic(ctx context.Context, userID string, topicID int64) (int64, error) {
	query, args := p.sb.Delete(progressTable).
		Where(entsql.And(
			entsql.EQ("user_id", userID),
			entsql.EQ("topic_id", topicID),
		)).
		Query()
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(err, "delete progress")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify(err, "delete progress")
	}
	return n, nil
}

func (p *ProgressRepo) list(ctx context.Context, op, query string, args []any) ([]progress.Record, error) {
	var rows []progressRow
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classify(err, op)
	}
	out := make([]progress.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.record())
	}
	return out, nil
}

// rowValues returns r's column values in progressColumns order.
func rowValues(r progress.Record) []any {
	return []any{
		r.UserID, r.QuestionID, r.TopicID,
		int64(r.Attempts), int64(r.CorrectAttempts), r.Box, r.IntervalDays, r.EaseFactor,
		int64(r.ConsecutiveCorrect), r.Confidence, int64(r.TimeSpentSeconds),
		r.NextReview.Unix(), r.LastAttempt.Unix(), r.CreatedAt.Unix(), int64(r.Version),
	}
}

func fromUnix(s int64) time.Time {
	return time.Unix(s, 0).UTC()
}
