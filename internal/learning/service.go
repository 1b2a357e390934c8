package learning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/drillbox/internal/analytics"
	"github.com/abhisek/drillbox/internal/mastery"
	"github.com/abhisek/drillbox/internal/progress"
	"github.com/abhisek/drillbox/internal/selector"
	"github.com/abhisek/drillbox/internal/spacedrep"
)

const (
	DefaultStoreTimeout       = 5 * time.Second
	DefaultMaxConflictRetries = 5
)

// Options tunes a Service. Zero values select the defaults.
type Options struct {
	Clock              Clock
	Scheduler          *spacedrep.Scheduler
	Estimator          *mastery.Estimator
	Weights            selector.Weights
	StoreTimeout       time.Duration
	MaxConflictRetries int
	// Location decides calendar days for streaks and pace.
	Location   *time.Location
	SessionGap time.Duration
	Logger     *slog.Logger
}

// Service records answers, picks questions and reports statistics.
type Service struct {
	store    ProgressStore
	catalog  QuestionCatalog
	attempts AttemptLog

	clock     Clock
	scheduler *spacedrep.Scheduler
	estimator *mastery.Estimator
	selector  *selector.Selector

	storeTimeout time.Duration
	maxRetries   int
	location     *time.Location
	sessionGap   time.Duration
	logger       *slog.Logger
}

// NewService wires a Service from its collaborators.
func NewService(store ProgressStore, catalog QuestionCatalog, attempts AttemptLog, opts Options) *Service {
	s := &Service{
		store:        store,
		catalog:      catalog,
		attempts:     attempts,
		clock:        opts.Clock,
		scheduler:    opts.Scheduler,
		estimator:    opts.Estimator,
		storeTimeout: opts.StoreTimeout,
		maxRetries:   opts.MaxConflictRetries,
		location:     opts.Location,
		sessionGap:   opts.SessionGap,
		logger:       opts.Logger,
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.scheduler == nil {
		s.scheduler = spacedrep.NewScheduler(nil, s.logger)
	}
	if s.estimator == nil {
		s.estimator = mastery.NewEstimator(nil)
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = DefaultStoreTimeout
	}
	if s.maxRetries <= 0 {
		s.maxRetries = DefaultMaxConflictRetries
	}
	if s.location == nil {
		s.location = time.Local
	}
	if s.sessionGap <= 0 {
		s.sessionGap = analytics.DefaultSessionGap
	}
	weights := opts.Weights
	if weights == (selector.Weights{}) {
		weights = selector.DefaultWeights
	}
	s.selector = selector.New(store, catalog, s.clock, weights)
	return s
}

// RecordAnswer applies one answer to the learner's record for the question,
// creating the record on the first attempt. Concurrent answers for the same
// pair are serialized through the store's compare-and-swap.
func (s *Service) RecordAnswer(ctx context.Context, userID string, questionID int64, correct bool, responseSeconds float64) (progress.Record, error) {
	if userID == "" {
		return progress.Record{}, fmt.Errorf("empty user id: %w", progress.ErrNotFound)
	}

	q, err := withTimeout(ctx, s.storeTimeout, func(ctx context.Context) (progress.Question, error) {
		return s.catalog.ByID(ctx, questionID)
	})
	if err != nil {
		return progress.Record{}, fmt.Errorf("question %d: %w", questionID, err)
	}

	if rs, ok := progress.ClampResponseSeconds(responseSeconds); !ok {
		s.logger.Warn("clamped response time",
			"user_id", userID,
			"question_id", questionID,
			"error", &progress.InvalidStateError{Field: "response_seconds", Value: responseSeconds, Clamped: rs})
		responseSeconds = rs
	}

	now := s.clock.Now()
	var stored progress.Record
	for attempt := 0; ; attempt++ {
		stored, err = s.applyAnswer(ctx, userID, q, correct, responseSeconds, now)
		if err == nil {
			break
		}
		if !errors.Is(err, progress.ErrConflict) || attempt >= s.maxRetries {
			return progress.Record{}, fmt.Errorf("record answer: %w", err)
		}
		s.logger.Debug("progress update conflict, retrying",
			"user_id", userID, "question_id", questionID, "attempt", attempt+1)
	}

	a := progress.Attempt{
		ID:              uuid.NewString(),
		UserID:          userID,
		QuestionID:      q.ID,
		TopicID:         q.TopicID,
		Correct:         correct,
		ResponseSeconds: responseSeconds,
		AnsweredAt:      now,
	}
	if _, err := withTimeout(ctx, s.storeTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.attempts.Append(ctx, a)
	}); err != nil {
		// The record is already stored; a missing history entry only
		// affects streak and pace reporting.
		s.logger.Warn("failed to append attempt",
			"user_id", userID, "question_id", questionID, "error", err)
	}

	return stored, nil
}

func (s *Service) applyAnswer(ctx context.Context, userID string, q progress.Question, correct bool, responseSeconds float64, now time.Time) (progress.Record, error) {
	return withTimeout(ctx, s.storeTimeout, func(ctx context.Context) (progress.Record, error) {
		cur, err := s.store.Get(ctx, userID, q.ID)
		switch {
		case errors.Is(err, progress.ErrNotFound):
			cur = progress.NewRecord(userID, q, now)
		case err != nil:
			return progress.Record{}, err
		}

		next := s.scheduler.Update(cur, correct, responseSeconds, now)
		next = s.estimator.Apply(next)
		return s.store.Upsert(ctx, next)
	})
}

// NextQuestion picks the next question for the learner, optionally within a
// topic. It returns progress.ErrNotFound for an unknown topic and
// progress.ErrNoCandidates when nothing is in scope.
func (s *Service) NextQuestion(ctx context.Context, userID string, topicID *int64) (selector.Selection, error) {
	if err := s.checkTopic(ctx, topicID); err != nil {
		return selector.Selection{}, err
	}
	return withTimeout(ctx, s.storeTimeout, func(ctx context.Context) (selector.Selection, error) {
		return s.selector.SelectNext(ctx, userID, topicID)
	})
}

// ResetTopicProgress deletes every record of the learner in the topic. It is
// idempotent; the attempt history is kept.
func (s *Service) ResetTopicProgress(ctx context.Context, userID string, topicID int64) (int64, error) {
	if err := s.checkTopic(ctx, &topicID); err != nil {
		return 0, err
	}
	n, err := withTimeout(ctx, s.storeTimeout, func(ctx context.Context) (int64, error) {
		return s.store.DeleteByTopic(ctx, userID, topicID)
	})
	if err != nil {
		return 0, fmt.Errorf("reset topic %d: %w", topicID, err)
	}
	s.logger.Info("reset topic progress", "user_id", userID, "topic_id", topicID, "deleted", n)
	return n, nil
}

func (s *Service) checkTopic(ctx context.Context, topicID *int64) error {
	if topicID == nil {
		return nil
	}
	_, err := withTimeout(ctx, s.storeTimeout, func(ctx context.Context) (progress.Topic, error) {
		return s.catalog.Topic(ctx, *topicID)
	})
	if err != nil {
		return fmt.Errorf("topic %d: %w", *topicID, err)
	}
	return nil
}

// withTimeout runs fn under a deadline. A deadline hit surfaces as
// progress.ErrStoreUnavailable.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	v, err := fn(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		err = progress.Unavailable(err)
	}
	return v, err
}
