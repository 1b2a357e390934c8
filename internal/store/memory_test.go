package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/drillbox/internal/progress"
)

func TestMemoryStore_Catalog(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	topic, qs := seedCatalog(t, m)

	active, err := m.ByTopic(ctx, &topic.ID, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	q, err := m.ByID(ctx, qs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, qs[0], q)

	_, err = m.Topic(ctx, 999)
	assert.ErrorIs(t, err, progress.ErrNotFound)

	missing := int64(999)
	_, err = m.CreateTopic(ctx, progress.Topic{Name: "orphan", ParentID: &missing})
	assert.ErrorIs(t, err, progress.ErrNotFound)
}

func TestMemoryStore_SetActive(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	topic, qs := seedCatalog(t, m)

	require.NoError(t, m.SetActive(ctx, qs[0].ID, false))
	q, err := m.ByID(ctx, qs[0].ID)
	require.NoError(t, err)
	assert.False(t, q.Active)

	active, err := m.ByTopic(ctx, &topic.ID, true)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	assert.ErrorIs(t, m.SetActive(ctx, 999, true), progress.ErrNotFound)
}

func TestMemoryStore_CAS(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	_, qs := seedCatalog(t, m)
	now := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	r := testRecord("u1", qs[0], now)
	stored, err := m.Upsert(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stored.Version)

	_, err = m.Upsert(ctx, r)
	assert.ErrorIs(t, err, progress.ErrConflict)

	stored.Attempts++
	next, err := m.Upsert(ctx, stored)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), next.Version)

	_, err = m.Upsert(ctx, stored)
	assert.ErrorIs(t, err, progress.ErrConflict)
}

func TestMemoryStore_ConcurrentUpsertsSerialize(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	_, qs := seedCatalog(t, m)
	now := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	_, err := m.Upsert(ctx, testRecord("u1", qs[0], now))
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				cur, err := m.Get(ctx, "u1", qs[0].ID)
				if err != nil {
					t.Error(err)
					return
				}
				cur.Attempts++
				_, err = m.Upsert(ctx, cur)
				if errors.Is(err, progress.ErrConflict) {
					continue
				}
				if err != nil {
					t.Error(err)
				}
				return
			}
		}()
	}
	wg.Wait()

	final, err := m.Get(ctx, "u1", qs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, uint(1+writers), final.Attempts)
	assert.Equal(t, uint64(1+writers), final.Version)
}

func TestMemoryStore_ListsAndDelete(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	topic, qs := seedCatalog(t, m)
	now := time.Date(2025, 2, 10, 10, 0, 0, 0, time.UTC)

	for i, q := range qs {
		r := testRecord("u1", q, now.AddDate(0, 0, -5))
		r.NextReview = now.AddDate(0, 0, 1-i)
		_, err := m.Upsert(ctx, r)
		require.NoError(t, err)
	}

	overdue, err := m.ListOverdue(ctx, "u1", now)
	require.NoError(t, err)
	require.Len(t, overdue, 2)
	assert.Equal(t, qs[2].ID, overdue[0].QuestionID)

	n, err := m.DeleteByTopic(ctx, "u1", topic.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	left, err := m.ListByUser(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestMemoryStore_Attempts(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, m.Append(ctx, progress.Attempt{UserID: "u1", QuestionID: 2, AnsweredAt: base.Add(time.Minute)}))
	require.NoError(t, m.Append(ctx, progress.Attempt{UserID: "u1", QuestionID: 1, AnsweredAt: base}))

	var ids []int64
	for a, err := range m.Attempts(ctx, "u1", time.Time{}) {
		require.NoError(t, err)
		assert.NotEmpty(t, a.ID)
		ids = append(ids, a.QuestionID)
	}
	assert.Equal(t, []int64{1, 2}, ids)
}
