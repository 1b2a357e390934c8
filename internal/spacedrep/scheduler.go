package spacedrep

import (
	"log/slog"
	"math"
	"time"

	"github.com/abhisek/drillbox/internal/progress"
)

// Strategy computes the interval and ease factor after an answer. The record
// passed in already carries the updated box and consecutive-correct count.
type Strategy interface {
	Mode() Mode
	Next(r progress.Record, correct bool) (intervalDays int, easeFactor float64)
}

// LeitnerStrategy takes the interval straight from BoxIntervals.
type LeitnerStrategy struct{}

func (LeitnerStrategy) Mode() Mode { return ModeLeitner }

func (LeitnerStrategy) Next(r progress.Record, correct bool) (int, float64) {
	if !correct {
		return progress.MinIntervalDays, r.EaseFactor
	}
	return intervalForBox(r.Box), r.EaseFactor
}

// EaseStrategy grows the interval by the ease factor once a question has
// been answered correctly twice in a row.
type EaseStrategy struct {
	MaxIntervalDays int
}

func (EaseStrategy) Mode() Mode { return ModeEase }

func (s EaseStrategy) Next(r progress.Record, correct bool) (int, float64) {
	if !correct {
		return progress.MinIntervalDays, clampEase(r.EaseFactor - easeStepIncorrect)
	}

	var interval int
	switch r.ConsecutiveCorrect {
	case 0, 1:
		interval = firstInterval
	case 2:
		interval = secondInterval
	default:
		interval = int(math.Round(float64(r.IntervalDays) * r.EaseFactor))
	}

	maxInterval := s.MaxIntervalDays
	if maxInterval <= 0 {
		maxInterval = DefaultMaxIntervalDays
	}
	interval = max(min(interval, maxInterval), progress.MinIntervalDays)

	return interval, clampEase(r.EaseFactor + easeStepCorrect)
}

// ForMode returns the strategy for mode. Unknown modes fall back to ModeEase.
func ForMode(mode Mode, maxIntervalDays int) Strategy {
	if mode == ModeLeitner {
		return LeitnerStrategy{}
	}
	return EaseStrategy{MaxIntervalDays: maxIntervalDays}
}

// Scheduler applies answers to progress records. It holds no per-record state
// and is safe for concurrent use.
type Scheduler struct {
	strategy Strategy
	logger   *slog.Logger
}

// NewScheduler creates a scheduler. A nil strategy selects EaseStrategy with
// the default interval cap; a nil logger discards clamp warnings.
func NewScheduler(strategy Strategy, logger *slog.Logger) *Scheduler {
	if strategy == nil {
		strategy = EaseStrategy{MaxIntervalDays: DefaultMaxIntervalDays}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{strategy: strategy, logger: logger}
}

// Mode returns the active strategy's mode.
func (s *Scheduler) Mode() Mode {
	return s.strategy.Mode()
}

// Update returns r after one answer. It never fails: out-of-bounds fields
// are clamped before the new state is computed.
func (s *Scheduler) Update(r progress.Record, correct bool, responseSeconds float64, now time.Time) progress.Record {
	r = s.sanitize(r)

	r.Attempts++
	if correct {
		r.CorrectAttempts++
		r.ConsecutiveCorrect++
		r.Box = min(r.Box+1, progress.MaxBox)
	} else {
		r.ConsecutiveCorrect = 0
		r.Box = progress.MinBox
	}

	r.IntervalDays, r.EaseFactor = s.strategy.Next(r, correct)
	r.LastAttempt = now
	r.NextReview = now.AddDate(0, 0, r.IntervalDays)

	rs, ok := progress.ClampResponseSeconds(responseSeconds)
	if !ok {
		s.logger.Warn("clamped response time",
			"user_id", r.UserID,
			"question_id", r.QuestionID,
			"error", &progress.InvalidStateError{Field: "response_seconds", Value: responseSeconds, Clamped: rs})
	}
	r.TimeSpentSeconds += uint64(math.Round(rs))
	return r
}

func (s *Scheduler) sanitize(r progress.Record) progress.Record {
	warn := func(e *progress.InvalidStateError) {
		s.logger.Warn("clamped progress field",
			"user_id", r.UserID,
			"question_id", r.QuestionID,
			"error", e)
	}

	if r.Box < progress.MinBox || r.Box > progress.MaxBox {
		clamped := min(max(r.Box, progress.MinBox), progress.MaxBox)
		warn(&progress.InvalidStateError{Field: "box", Value: float64(r.Box), Clamped: float64(clamped)})
		r.Box = clamped
	}
	if math.IsNaN(r.EaseFactor) || r.EaseFactor < progress.MinEaseFactor || r.EaseFactor > progress.MaxEaseFactor {
		clamped := clampEase(r.EaseFactor)
		warn(&progress.InvalidStateError{Field: "ease_factor", Value: r.EaseFactor, Clamped: clamped})
		r.EaseFactor = clamped
	}
	if r.IntervalDays < progress.MinIntervalDays {
		warn(&progress.InvalidStateError{Field: "interval_days", Value: float64(r.IntervalDays), Clamped: progress.MinIntervalDays})
		r.IntervalDays = progress.MinIntervalDays
	}
	if r.CorrectAttempts > r.Attempts {
		warn(&progress.InvalidStateError{Field: "correct_attempts", Value: float64(r.CorrectAttempts), Clamped: float64(r.Attempts)})
		r.CorrectAttempts = r.Attempts
	}
	return r
}

func clampEase(e float64) float64 {
	if math.IsNaN(e) {
		return progress.DefaultEaseFactor
	}
	return min(max(e, progress.MinEaseFactor), progress.MaxEaseFactor)
}
