package store

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/drillbox/internal/progress"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	s, err := Open(context.Background(), Config{Driver: DriverSQLite, DSN: dsn})
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenClose(t *testing.T) {
	s := openTestStore(t)
	if s.db == nil {
		t.Fatal("expected non-nil db")
	}
	if s.dialect != "sqlite3" {
		t.Errorf("dialect = %q, want sqlite3", s.dialect)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"})
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.db

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so we skip journal_mode here.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestAutoMigrationCreatesTables(t *testing.T) {
	s := openTestStore(t)
	for _, table := range []string{"topics", "questions", "progress", "attempts"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Fatalf("query sqlite_master for %s: %v", table, err)
		}
		if name != table {
			t.Errorf("table name = %q, want %q", name, table)
		}
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.migrate(context.Background()))
}

func seedCatalog(t *testing.T, c interface {
	CreateTopic(context.Context, progress.Topic) (progress.Topic, error)
	CreateQuestion(context.Context, progress.Question) (progress.Question, error)
}) (progress.Topic, []progress.Question) {
	t.Helper()
	ctx := context.Background()
	topic, err := c.CreateTopic(ctx, progress.Topic{Name: "fractions", DifficultyLevel: 2})
	require.NoError(t, err)

	var qs []progress.Question
	for i := range 3 {
		q, err := c.CreateQuestion(ctx, progress.Question{
			TopicID: topic.ID, DifficultyLevel: i + 1, Points: 10, Active: i != 2,
			Prompt: fmt.Sprintf("question %d", i),
		})
		require.NoError(t, err)
		qs = append(qs, q)
	}
	return topic, qs
}

func TestCatalog(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	c := s.Catalog()
	topic, qs := seedCatalog(t, c)

	child, err := c.CreateTopic(ctx, progress.Topic{Name: "mixed numbers", ParentID: &topic.ID})
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, topic.ID, *child.ParentID)

	got, err := c.Topic(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, child, got)

	all, err := c.ByTopic(ctx, &topic.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := c.ByTopic(ctx, &topic.ID, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	q, err := c.ByID(ctx, qs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, qs[1], q)

	require.NoError(t, c.SetActive(ctx, qs[2].ID, true))
	active, err = c.ByTopic(ctx, nil, true)
	require.NoError(t, err)
	assert.Len(t, active, 3)

	topics, err := c.Topics(ctx)
	require.NoError(t, err)
	assert.Len(t, topics, 2)
}

func TestCatalog_NotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	c := s.Catalog()

	_, err := c.ByID(ctx, 404)
	assert.ErrorIs(t, err, progress.ErrNotFound)

	_, err = c.Topic(ctx, 404)
	assert.ErrorIs(t, err, progress.ErrNotFound)

	_, err = c.CreateQuestion(ctx, progress.Question{TopicID: 404, Active: true})
	assert.ErrorIs(t, err, progress.ErrNotFound)

	assert.ErrorIs(t, c.SetActive(ctx, 404, false), progress.ErrNotFound)
}

func TestCatalog_InvalidDifficulty(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	topic, err := s.Catalog().CreateTopic(ctx, progress.Topic{Name: "t"})
	require.NoError(t, err)

	_, err = s.Catalog().CreateQuestion(ctx, progress.Question{TopicID: topic.ID, DifficultyLevel: 9})
	assert.ErrorIs(t, err, progress.ErrInvalidState)
}

func testRecord(userID string, q progress.Question, now time.Time) progress.Record {
	r := progress.NewRecord(userID, q, now)
	r.Attempts = 1
	r.CorrectAttempts = 1
	r.ConsecutiveCorrect = 1
	r.Box = 2
	r.Confidence = 0.8
	r.TimeSpentSeconds = 12
	r.NextReview = now.AddDate(0, 0, 1)
	return r
}

func TestProgress_UpsertAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, qs := seedCatalog(t, s.Catalog())
	repo := s.Progress()
	now := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	_, err := repo.Get(ctx, "u1", qs[0].ID)
	require.ErrorIs(t, err, progress.ErrNotFound)

	stored, err := repo.Upsert(ctx, testRecord("u1", qs[0], now))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stored.Version)

	got, err := repo.Get(ctx, "u1", qs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, stored, got)

	got.Attempts++
	got.LastAttempt = now.Add(time.Hour)
	got.NextReview = now.AddDate(0, 0, 6)
	updated, err := repo.Upsert(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), updated.Version)

	reread, err := repo.Get(ctx, "u1", qs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, uint(2), reread.Attempts)
	assert.Equal(t, now.AddDate(0, 0, 6).Unix(), reread.NextReview.Unix())
	assert.Equal(t, now.Unix(), reread.CreatedAt.Unix())
}

func TestProgress_UpsertReturnsStoredPrecision(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, qs := seedCatalog(t, s.Catalog())
	repo := s.Progress()
	now := time.Date(2025, 2, 1, 10, 0, 0, 750_000_000, time.FixedZone("CET", 3600))

	stored, err := repo.Upsert(ctx, testRecord("u1", qs[0], now))
	require.NoError(t, err)
	got, err := repo.Get(ctx, "u1", qs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, got, stored)
	assert.Zero(t, stored.LastAttempt.Nanosecond())

	next := stored
	next.Attempts++
	next.LastAttempt = now.Add(90 * time.Minute)
	next.NextReview = next.LastAttempt.AddDate(0, 0, 3)
	stored, err = repo.Upsert(ctx, next)
	require.NoError(t, err)
	got, err = repo.Get(ctx, "u1", qs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, got, stored)
}

func TestProgress_Conflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, qs := seedCatalog(t, s.Catalog())
	repo := s.Progress()
	now := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	r := testRecord("u1", qs[0], now)
	_, err := repo.Upsert(ctx, r)
	require.NoError(t, err)

	// A second insert of the same key loses.
	_, err = repo.Upsert(ctx, r)
	assert.ErrorIs(t, err, progress.ErrConflict)

	// A stale version loses.
	stale := r
	stale.Version = 7
	_, err = repo.Upsert(ctx, stale)
	assert.ErrorIs(t, err, progress.ErrConflict)
}

func TestProgress_RejectsInvalid(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, qs := seedCatalog(t, s.Catalog())
	now := time.Now()

	_, err := s.Progress().Upsert(ctx, progress.NewRecord("u1", qs[0], now))
	assert.ErrorIs(t, err, progress.ErrInvalidState)
}

func TestProgress_ListsAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	topic, qs := seedCatalog(t, s.Catalog())
	other, err := s.Catalog().CreateTopic(ctx, progress.Topic{Name: "decimals"})
	require.NoError(t, err)
	oq, err := s.Catalog().CreateQuestion(ctx, progress.Question{TopicID: other.ID, Active: true})
	require.NoError(t, err)

	repo := s.Progress()
	now := time.Date(2025, 2, 10, 10, 0, 0, 0, time.UTC)

	for i, q := range append(qs, oq) {
		r := testRecord("u1", q, now.AddDate(0, 0, -5))
		r.NextReview = now.AddDate(0, 0, i-2)
		_, err := repo.Upsert(ctx, r)
		require.NoError(t, err)
	}
	_, err = repo.Upsert(ctx, testRecord("u2", qs[0], now))
	require.NoError(t, err)

	all, err := repo.ListByUser(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	inTopic, err := repo.ListByUser(ctx, "u1", &topic.ID)
	require.NoError(t, err)
	assert.Len(t, inTopic, 3)

	overdue, err := repo.ListOverdue(ctx, "u1", now)
	require.NoError(t, err)
	require.Len(t, overdue, 3)
	assert.Equal(t, qs[0].ID, overdue[0].QuestionID)

	n, err := repo.DeleteByTopic(ctx, "u1", topic.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = repo.DeleteByTopic(ctx, "u1", topic.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	left, err := repo.ListByUser(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Len(t, left, 1)

	u2, err := repo.ListByUser(ctx, "u2", nil)
	require.NoError(t, err)
	assert.Len(t, u2, 1)
}

func TestProgress_TimeoutIsUnavailable(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Progress().ListByUser(ctx, "u1", nil)
	assert.ErrorIs(t, err, progress.ErrStoreUnavailable)
}

func TestAttempts_AppendAndIterate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	log := s.Attempts()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := range 4 {
		require.NoError(t, log.Append(ctx, progress.Attempt{
			UserID: "u1", QuestionID: int64(i + 1), TopicID: 1,
			Correct: i%2 == 0, ResponseSeconds: 4.5, AnsweredAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, log.Append(ctx, progress.Attempt{UserID: "u2", QuestionID: 1, AnsweredAt: base}))

	var got []progress.Attempt
	for a, err := range log.Attempts(ctx, "u1", base.Add(time.Minute)) {
		require.NoError(t, err)
		got = append(got, a)
	}
	require.Len(t, got, 3)
	assert.Equal(t, int64(2), got[0].QuestionID)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, 4.5, got[0].ResponseSeconds)
	assert.False(t, got[0].Correct)
	assert.True(t, got[1].Correct)
}

func TestAttempts_EarlyBreak(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	log := s.Attempts()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := range 5 {
		require.NoError(t, log.Append(ctx, progress.Attempt{UserID: "u1", QuestionID: int64(i), AnsweredAt: base}))
	}

	n := 0
	for _, err := range log.Attempts(ctx, "u1", time.Time{}) {
		require.NoError(t, err)
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)

	// The connection was released; further queries work.
	_, err := s.Progress().ListByUser(ctx, "u1", nil)
	require.NoError(t, err)
}
