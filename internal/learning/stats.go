package learning

import (
	"context"
	"fmt"
	"iter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abhisek/drillbox/internal/analytics"
	"github.com/abhisek/drillbox/internal/progress"
	"github.com/abhisek/drillbox/internal/streak"
)

// Totals aggregates a learner's records for the active questions in scope.
// Records of retired questions are left out, as they are from the mastery
// distribution, weak areas and due count. Streak and pace still count every
// attempt in scope.
type Totals struct {
	Questions        int     `json:"questions"`
	Attempted        int     `json:"attempted"`
	Attempts         uint    `json:"attempts"`
	CorrectAttempts  uint    `json:"correct_attempts"`
	SuccessRate      float64 `json:"success_rate"`
	TimeSpentSeconds uint64  `json:"time_spent_seconds"`
	Due              int     `json:"due"`
}

// Stats is the reporting snapshot returned by Statistics. Parts are read
// concurrently and may reflect slightly different moments.
type Stats struct {
	UserID              string                        `json:"user_id"`
	TopicID             *int64                        `json:"topic_id,omitempty"`
	GeneratedAt         time.Time                     `json:"generated_at"`
	Totals              Totals                        `json:"totals"`
	MasteryDistribution map[progress.MasteryLevel]int `json:"mastery_distribution"`
	WeakAreas           []analytics.WeakArea          `json:"weak_areas"`
	Streak              streak.Result                 `json:"streak"`
	NextMilestone       int                           `json:"next_milestone"`
	Pace                analytics.Pace                `json:"pace"`
}

// Statistics reports totals, mastery distribution, weak areas, streak and
// pace for the learner, optionally limited to one topic.
func (s *Service) Statistics(ctx context.Context, userID string, topicID *int64) (Stats, error) {
	if err := s.checkTopic(ctx, topicID); err != nil {
		return Stats{}, err
	}

	now := s.clock.Now().In(s.location)
	var (
		questions []progress.Question
		records   []progress.Record
		overdue   []progress.Record
		days      []time.Time
		sessions  []analytics.Session
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		questions, err = withTimeout(gctx, s.storeTimeout, func(ctx context.Context) ([]progress.Question, error) {
			return s.catalog.ByTopic(ctx, topicID, true)
		})
		return wrap("list questions", err)
	})
	g.Go(func() (err error) {
		records, err = withTimeout(gctx, s.storeTimeout, func(ctx context.Context) ([]progress.Record, error) {
			return s.store.ListByUser(ctx, userID, topicID)
		})
		return wrap("list progress", err)
	})
	g.Go(func() (err error) {
		overdue, err = withTimeout(gctx, s.storeTimeout, func(ctx context.Context) ([]progress.Record, error) {
			return s.store.ListOverdue(ctx, userID, now)
		})
		return wrap("list overdue", err)
	})
	g.Go(func() (err error) {
		days, sessions, err = withTimeout2(gctx, s.storeTimeout, func(ctx context.Context) ([]time.Time, []analytics.Session, error) {
			return s.activity(ctx, userID, topicID, now)
		})
		return wrap("read attempts", err)
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	records = activeOnly(questions, records)
	overdue = activeOnly(questions, overdue)

	st := Stats{
		UserID:              userID,
		TopicID:             topicID,
		GeneratedAt:         now,
		Totals:              totals(questions, records),
		MasteryDistribution: distribution(questions, records),
		WeakAreas:           analytics.FindWeak(records),
		Streak:              streak.Compute(days, now),
		Pace:                analytics.AnalyzePace(sessions, now),
	}
	st.Totals.Due = len(overdue)
	st.NextMilestone = streak.NextMilestone(st.Streak.Current)
	if st.WeakAreas == nil {
		st.WeakAreas = []analytics.WeakArea{}
	}
	return st, nil
}

// activity streams the attempt log once, collecting active calendar days for
// the streak and sessions within the pace window.
func (s *Service) activity(ctx context.Context, userID string, topicID *int64, now time.Time) ([]time.Time, []analytics.Session, error) {
	cutoff := now.AddDate(0, 0, -analytics.PaceWindowDays)
	seen := make(map[time.Time]struct{})
	var days []time.Time

	recent := func(yield func(progress.Attempt, error) bool) {
		for a, err := range s.attempts.Attempts(ctx, userID, time.Time{}) {
			if err != nil {
				yield(a, err)
				return
			}
			if topicID != nil && a.TopicID != *topicID {
				continue
			}
			y, m, d := a.AnsweredAt.In(now.Location()).Date()
			day := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
			if _, ok := seen[day]; !ok {
				seen[day] = struct{}{}
				days = append(days, day)
			}
			if a.AnsweredAt.Before(cutoff) {
				continue
			}
			if !yield(a, nil) {
				return
			}
		}
	}

	sessions, err := analytics.Sessionize(iter.Seq2[progress.Attempt, error](recent), s.sessionGap)
	if err != nil {
		return nil, nil, err
	}
	return days, sessions, nil
}

// activeOnly keeps the records whose question is among questions.
func activeOnly(questions []progress.Question, records []progress.Record) []progress.Record {
	ids := make(map[int64]struct{}, len(questions))
	for _, q := range questions {
		ids[q.ID] = struct{}{}
	}
	out := records[:0:0]
	for _, r := range records {
		if _, ok := ids[r.QuestionID]; ok {
			out = append(out, r)
		}
	}
	return out
}

func totals(questions []progress.Question, records []progress.Record) Totals {
	t := Totals{Questions: len(questions)}
	for _, r := range records {
		if r.Attempts == 0 {
			continue
		}
		t.Attempted++
		t.Attempts += r.Attempts
		t.CorrectAttempts += r.CorrectAttempts
		t.TimeSpentSeconds += r.TimeSpentSeconds
	}
	if t.Attempts > 0 {
		t.SuccessRate = float64(t.CorrectAttempts) / float64(t.Attempts)
	}
	return t
}

// distribution counts every attempted record by level, plus NOT_STARTED for
// each active question in scope the learner has not attempted.
func distribution(questions []progress.Question, records []progress.Record) map[progress.MasteryLevel]int {
	dist := make(map[progress.MasteryLevel]int, len(progress.Levels))
	for _, l := range progress.Levels {
		dist[l] = 0
	}
	attempted := make(map[int64]bool, len(records))
	for _, r := range records {
		dist[r.Mastery()]++
		attempted[r.QuestionID] = true
	}
	for _, q := range questions {
		if !attempted[q.ID] {
			dist[progress.NotStarted]++
		}
	}
	return dist
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

func withTimeout2[A, B any](ctx context.Context, d time.Duration, fn func(context.Context) (A, B, error)) (A, B, error) {
	type pair struct {
		a A
		b B
	}
	p, err := withTimeout(ctx, d, func(ctx context.Context) (pair, error) {
		a, b, err := fn(ctx)
		return pair{a, b}, err
	})
	return p.a, p.b, err
}
