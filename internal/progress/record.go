package progress

import (
	"math"
	"time"
)

const (
	MinBox = 1
	MaxBox = 5

	MinEaseFactor     = 1.3
	MaxEaseFactor     = 2.5
	DefaultEaseFactor = 2.5

	MinIntervalDays = 1

	// MaxResponseSeconds caps a single reported response time at one day.
	MaxResponseSeconds = 24 * 60 * 60
)

// Record holds one learner's progress on one question. Records are values:
// updates produce a new Record and the store swaps it in atomically.
type Record struct {
	UserID     string `json:"user_id"`
	QuestionID int64  `json:"question_id"`
	TopicID    int64  `json:"topic_id"`

	Attempts           uint    `json:"attempts"`
	CorrectAttempts    uint    `json:"correct_attempts"`
	Box                int     `json:"box"`
	IntervalDays       int     `json:"interval_days"`
	EaseFactor         float64 `json:"ease_factor"`
	ConsecutiveCorrect uint    `json:"consecutive_correct"`
	Confidence         float64 `json:"confidence"`
	TimeSpentSeconds   uint64  `json:"time_spent_seconds"`

	NextReview  time.Time `json:"next_review"`
	LastAttempt time.Time `json:"last_attempt"`
	CreatedAt   time.Time `json:"created_at"`

	// Version is the optimistic concurrency token. Zero means the record has
	// not been stored yet.
	Version uint64 `json:"version"`
}

// NewRecord returns the pre-attempt state for a question the learner has
// never answered. It is only ever persisted after the scheduler has applied
// the first attempt to it.
func NewRecord(userID string, q Question, now time.Time) Record {
	return Record{
		UserID:       userID,
		QuestionID:   q.ID,
		TopicID:      q.TopicID,
		Box:          MinBox,
		IntervalDays: MinIntervalDays,
		EaseFactor:   DefaultEaseFactor,
		NextReview:   now,
		LastAttempt:  now,
		CreatedAt:    now,
	}
}

// SuccessRate returns CorrectAttempts/Attempts, or 0 before the first attempt.
func (r Record) SuccessRate() float64 {
	if r.Attempts == 0 {
		return 0
	}
	return float64(r.CorrectAttempts) / float64(r.Attempts)
}

// Mastery returns the derived mastery level. It is never stored.
func (r Record) Mastery() MasteryLevel {
	if r.Attempts == 0 {
		return NotStarted
	}
	return LevelFor(r.Box, r.SuccessRate())
}

// Validate reports whether the record may be written to a store.
func (r Record) Validate() error {
	switch {
	case r.UserID == "":
		return &InvalidStateError{Field: "user_id"}
	case r.Attempts == 0:
		return &InvalidStateError{Field: "attempts", Value: 0, Clamped: 0}
	case r.CorrectAttempts > r.Attempts:
		return &InvalidStateError{Field: "correct_attempts", Value: float64(r.CorrectAttempts), Clamped: float64(r.Attempts)}
	case r.Box < MinBox || r.Box > MaxBox:
		return &InvalidStateError{Field: "box", Value: float64(r.Box), Clamped: clamp(float64(r.Box), MinBox, MaxBox)}
	case r.EaseFactor < MinEaseFactor || r.EaseFactor > MaxEaseFactor:
		return &InvalidStateError{Field: "ease_factor", Value: r.EaseFactor, Clamped: clamp(r.EaseFactor, MinEaseFactor, MaxEaseFactor)}
	case r.IntervalDays < MinIntervalDays:
		return &InvalidStateError{Field: "interval_days", Value: float64(r.IntervalDays), Clamped: MinIntervalDays}
	case r.NextReview.Before(r.LastAttempt):
		return &InvalidStateError{Field: "next_review"}
	}
	return nil
}

// Question is a practice question as seen by the core. Read-only.
type Question struct {
	ID              int64  `json:"id"`
	TopicID         int64  `json:"topic_id"`
	DifficultyLevel int    `json:"difficulty_level"`
	Points          int    `json:"points"`
	Active          bool   `json:"active"`
	Prompt          string `json:"prompt,omitempty"`
}

// Topic groups questions. Topics form a tree through ParentID.
type Topic struct {
	ID              int64  `json:"id"`
	ParentID        *int64 `json:"parent_id,omitempty"`
	Name            string `json:"name"`
	DifficultyLevel int    `json:"difficulty_level"`
}

// Attempt is one entry of the append-only answer history.
type Attempt struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	QuestionID      int64     `json:"question_id"`
	TopicID         int64     `json:"topic_id"`
	Correct         bool      `json:"correct"`
	ResponseSeconds float64   `json:"response_seconds"`
	AnsweredAt      time.Time `json:"answered_at"`
}

// ClampResponseSeconds maps a reported response time into
// [0, MaxResponseSeconds]. NaN and negative values become 0. ok is false
// when the input had to be changed.
func ClampResponseSeconds(s float64) (clamped float64, ok bool) {
	switch {
	case math.IsNaN(s), s < 0:
		return 0, false
	case s > MaxResponseSeconds:
		return MaxResponseSeconds, false
	}
	return s, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
