package cache

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/drillbox/internal/progress"
)

type mapBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapBackend() *mapBackend { return &mapBackend{data: map[string][]byte{}} }

func (m *mapBackend) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *mapBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

func (m *mapBackend) DeletePrefix(_ context.Context, prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
}

type countingCatalog struct {
	calls     int
	questions []progress.Question
}

func (c *countingCatalog) ByTopic(_ context.Context, topicID *int64, activeOnly bool) ([]progress.Question, error) {
	c.calls++
	var out []progress.Question
	for _, q := range c.questions {
		if (topicID == nil || q.TopicID == *topicID) && (!activeOnly || q.Active) {
			out = append(out, q)
		}
	}
	return out, nil
}

func (c *countingCatalog) ByID(_ context.Context, id int64) (progress.Question, error) {
	c.calls++
	for _, q := range c.questions {
		if q.ID == id {
			return q, nil
		}
	}
	return progress.Question{}, progress.ErrNotFound
}

func (c *countingCatalog) Topic(_ context.Context, id int64) (progress.Topic, error) {
	c.calls++
	if id == 1 {
		return progress.Topic{ID: 1, Name: "algebra", DifficultyLevel: 2}, nil
	}
	return progress.Topic{}, progress.ErrNotFound
}

func TestCachedCatalog_ReadThrough(t *testing.T) {
	next := &countingCatalog{questions: []progress.Question{
		{ID: 1, TopicID: 1, Active: true, Points: 5},
		{ID: 2, TopicID: 1, Active: false},
	}}
	c := NewCachedCatalog(next, newMapBackend(), time.Minute, nil)
	ctx := context.Background()
	topic := int64(1)

	for range 3 {
		qs, err := c.ByTopic(ctx, &topic, true)
		require.NoError(t, err)
		assert.Len(t, qs, 1)
	}
	assert.Equal(t, 1, next.calls)

	q, err := c.ByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, q.Points)
	_, err = c.ByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)

	tp, err := c.Topic(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "algebra", tp.Name)
}

func TestCachedCatalog_ErrorsNotCached(t *testing.T) {
	next := &countingCatalog{}
	c := NewCachedCatalog(next, newMapBackend(), 0, nil)
	ctx := context.Background()

	for range 2 {
		_, err := c.ByID(ctx, 9)
		assert.ErrorIs(t, err, progress.ErrNotFound)
	}
	assert.Equal(t, 2, next.calls)
}

func TestCachedCatalog_Invalidate(t *testing.T) {
	next := &countingCatalog{questions: []progress.Question{{ID: 1, TopicID: 1, Active: true}}}
	backend := newMapBackend()
	c := NewCachedCatalog(next, backend, time.Minute, nil)
	ctx := context.Background()

	_, err := c.ByTopic(ctx, nil, true)
	require.NoError(t, err)
	next.questions = append(next.questions, progress.Question{ID: 2, TopicID: 1, Active: true})

	qs, err := c.ByTopic(ctx, nil, true)
	require.NoError(t, err)
	assert.Len(t, qs, 1, "stale until invalidated")

	c.Invalidate(ctx)
	qs, err = c.ByTopic(ctx, nil, true)
	require.NoError(t, err)
	assert.Len(t, qs, 2)
}

func TestNewRedisBackend_Unreachable(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.Addr = "127.0.0.1:1"
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisBackend(ctx, cfg, nil)
	assert.Error(t, err)
}
