package store

import (
	"cmp"
	"context"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/abhisek/drillbox/internal/progress"
)

type progressKey struct {
	userID     string
	questionID int64
}

// MemoryStore keeps progress, catalog and attempts in process memory. It
// satisfies the same contracts as the SQL repositories, including the
// version compare-and-swap.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[progressKey]progress.Record
	topics    map[int64]progress.Topic
	questions map[int64]progress.Question
	attempts  []progress.Attempt
	nextID    int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[progressKey]progress.Record),
		topics:    make(map[int64]progress.Topic),
		questions: make(map[int64]progress.Question),
	}
}

func (m *MemoryStore) Get(ctx context.Context, userID string, questionID int64) (progress.Record, error) {
	if err := ctx.Err(); err != nil {
		return progress.Record{}, progress.Unavailable(err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[progressKey{userID, questionID}]
	if !ok {
		return progress.Record{}, errors.Wrapf(progress.ErrNotFound, "user %s question %d", userID, questionID)
	}
	return r, nil
}

func (m *MemoryStore) Upsert(ctx context.Context, r progress.Record) (progress.Record, error) {
	if err := ctx.Err(); err != nil {
		return progress.Record{}, progress.Unavailable(err)
	}
	if err := r.Validate(); err != nil {
		return progress.Record{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := progressKey{r.UserID, r.QuestionID}
	cur, exists := m.records[key]
	switch {
	case r.Version == 0 && exists,
		r.Version != 0 && (!exists || cur.Version != r.Version):
		return progress.Record{}, errors.Wrapf(progress.ErrConflict, "user %s question %d version %d", r.UserID, r.QuestionID, r.Version)
	}

	next := r
	next.Version = r.Version + 1
	if exists {
		next.CreatedAt = cur.CreatedAt
	} else if next.CreatedAt.IsZero() {
		next.CreatedAt = r.LastAttempt
	}
	m.records[key] = next
	return next, nil
}

func (m *MemoryStore) ListByUser(ctx context.Context, userID string, topicID *int64) ([]progress.Record, error) {
	return m.filter(ctx, func(r progress.Record) bool {
		return r.UserID == userID && (topicID == nil || r.TopicID == *topicID)
	}, func(a, b progress.Record) int {
		return cmp.Compare(a.QuestionID, b.QuestionID)
	})
}

func (m *MemoryStore) ListOverdue(ctx context.Context, userID string, now time.Time) ([]progress.Record, error) {
	return m.filter(ctx, func(r progress.Record) bool {
		return r.UserID == userID && !r.NextReview.After(now)
	}, func(a, b progress.Record) int {
		if c := a.NextReview.Compare(b.NextReview); c != 0 {
			return c
		}
		return cmp.Compare(a.QuestionID, b.QuestionID)
	})
}

func (m *MemoryStore) DeleteByTopic(ctx context.Context, userID string, topicID int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, progress.Unavailable(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, r := range m.records {
		if r.UserID == userID && r.TopicID == topicID {
			delete(m.records, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) filter(ctx context.Context, keep func(progress.Record) bool, order func(a, b progress.Record) int) ([]progress.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, progress.Unavailable(err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []progress.Record
	for _, r := range m.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, order)
	return out, nil
}

// CreateTopic adds t, assigning an ID when t.ID is zero.
func (m *MemoryStore) CreateTopic(ctx context.Context, t progress.Topic) (progress.Topic, error) {
	if err := ctx.Err(); err != nil {
		return progress.Topic{}, progress.Unavailable(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ParentID != nil {
		if _, ok := m.topics[*t.ParentID]; !ok {
			return progress.Topic{}, errors.Wrapf(progress.ErrNotFound, "parent topic %d", *t.ParentID)
		}
	}
	if t.ID == 0 {
		t.ID = m.allocID()
	}
	if t.DifficultyLevel == 0 {
		t.DifficultyLevel = 1
	}
	m.topics[t.ID] = t
	return t, nil
}

// CreateQuestion adds q, assigning an ID when q.ID is zero. Its topic must exist.
func (m *MemoryStore) CreateQuestion(ctx context.Context, q progress.Question) (progress.Question, error) {
	if err := ctx.Err(); err != nil {
		return progress.Question{}, progress.Unavailable(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.topics[q.TopicID]; !ok {
		return progress.Question{}, errors.Wrapf(progress.ErrNotFound, "topic %d", q.TopicID)
	}
	if q.ID == 0 {
		q.ID = m.allocID()
	}
	if q.DifficultyLevel == 0 {
		q.DifficultyLevel = 1
	}
	m.questions[q.ID] = q
	return q, nil
}

// SetActive toggles whether a question is offered to learners.
func (m *MemoryStore) SetActive(ctx context.Context, questionID int64, active bool) error {
	if err := ctx.Err(); err != nil {
		return progress.Unavailable(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[questionID]
	if !ok {
		return errors.Wrapf(progress.ErrNotFound, "question %d", questionID)
	}
	q.Active = active
	m.questions[questionID] = q
	return nil
}

func (m *MemoryStore) allocID() int64 {
	m.nextID++
	for {
		_, t := m.topics[m.nextID]
		_, q := m.questions[m.nextID]
		if !t && !q {
			return m.nextID
		}
		m.nextID++
	}
}

func (m *MemoryStore) ByTopic(ctx context.Context, topicID *int64, activeOnly bool) ([]progress.Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, progress.Unavailable(err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []progress.Question
	for _, q := range m.questions {
		if topicID != nil && q.TopicID != *topicID {
			continue
		}
		if activeOnly && !q.Active {
			continue
		}
		out = append(out, q)
	}
	slices.SortFunc(out, func(a, b progress.Question) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *MemoryStore) ByID(ctx context.Context, questionID int64) (progress.Question, error) {
	if err := ctx.Err(); err != nil {
		return progress.Question{}, progress.Unavailable(err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.questions[questionID]
	if !ok {
		return progress.Question{}, errors.Wrapf(progress.ErrNotFound, "question %d", questionID)
	}
	return q, nil
}

func (m *MemoryStore) Topic(ctx context.Context, topicID int64) (progress.Topic, error) {
	if err := ctx.Err(); err != nil {
		return progress.Topic{}, progress.Unavailable(err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.topics[topicID]
	if !ok {
		return progress.Topic{}, errors.Wrapf(progress.ErrNotFound, "topic %d", topicID)
	}
	return t, nil
}

func (m *MemoryStore) Append(ctx context.Context, a progress.Attempt) error {
	if err := ctx.Err(); err != nil {
		return progress.Unavailable(err)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	return nil
}

// Attempts yields a snapshot of the user's attempts at or after since,
// ordered by AnsweredAt and then insertion order.
func (m *MemoryStore) Attempts(ctx context.Context, userID string, since time.Time) iter.Seq2[progress.Attempt, error] {
	return func(yield func(progress.Attempt, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(progress.Attempt{}, progress.Unavailable(err))
			return
		}
		m.mu.RLock()
		var snap []progress.Attempt
		for _, a := range m.attempts {
			if a.UserID == userID && !a.AnsweredAt.Before(since) {
				snap = append(snap, a)
			}
		}
		m.mu.RUnlock()

		slices.SortStableFunc(snap, func(a, b progress.Attempt) int { return a.AnsweredAt.Compare(b.AnsweredAt) })
		for _, a := range snap {
			if !yield(a, nil) {
				return
			}
		}
	}
}
