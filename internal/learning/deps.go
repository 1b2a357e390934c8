package learning

import (
	"context"
	"iter"
	"time"

	"github.com/abhisek/drillbox/internal/progress"
)

// ProgressStore persists progress records keyed by (user, question).
// Upsert performs a compare-and-swap on Record.Version and returns
// progress.ErrConflict when the stored version moved on.
type ProgressStore interface {
	Get(ctx context.Context, userID string, questionID int64) (progress.Record, error)
	Upsert(ctx context.Context, r progress.Record) (progress.Record, error)
	ListByUser(ctx context.Context, userID string, topicID *int64) ([]progress.Record, error)
	ListOverdue(ctx context.Context, userID string, now time.Time) ([]progress.Record, error)
	DeleteByTopic(ctx context.Context, userID string, topicID int64) (int64, error)
}

// QuestionCatalog is read-only access to topics and questions.
type QuestionCatalog interface {
	ByTopic(ctx context.Context, topicID *int64, activeOnly bool) ([]progress.Question, error)
	ByID(ctx context.Context, questionID int64) (progress.Question, error)
	Topic(ctx context.Context, topicID int64) (progress.Topic, error)
}

// AttemptLog is the append-only answer history.
type AttemptLog interface {
	Append(ctx context.Context, a progress.Attempt) error
	Attempts(ctx context.Context, userID string, since time.Time) iter.Seq2[progress.Attempt, error]
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
