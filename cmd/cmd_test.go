package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/drillbox/internal/config"
	"github.com/abhisek/drillbox/internal/progress"
	"github.com/abhisek/drillbox/internal/retry"
	"github.com/abhisek/drillbox/internal/selector"
	"github.com/abhisek/drillbox/internal/spacedrep"
)

func run(t *testing.T, args ...string) []byte {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })
	require.NoError(t, rootCmd.ExecuteContext(t.Context()), "drillbox %v", args)
	return out.Bytes()
}

func TestResolveDBPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	got, err := resolveDBPath(config.DBConfig{Driver: "sqlite"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "drillbox", "drillbox.db"), got)

	explicit := filepath.Join(dir, "nested", "x.db")
	got, err = resolveDBPath(config.DBConfig{Driver: "sqlite", DSN: explicit})
	require.NoError(t, err)
	assert.Equal(t, explicit, got)
	assert.DirExists(t, filepath.Join(dir, "nested"))

	pg := "postgres://localhost/drillbox"
	got, err = resolveDBPath(config.DBConfig{Driver: "postgres", DSN: pg})
	require.NoError(t, err)
	assert.Equal(t, pg, got)
}

func TestCommandsEndToEnd(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	db := filepath.Join(dir, "drillbox.db")

	var topic progress.Topic
	require.NoError(t, json.Unmarshal(run(t, "--db", db, "catalog", "add-topic", "fractions"), &topic))
	assert.Equal(t, "fractions", topic.Name)
	assert.NotZero(t, topic.ID)

	var q progress.Question
	require.NoError(t, json.Unmarshal(run(t, "--db", db, "catalog", "add-question", "1", "1/2 + 1/4?"), &q))
	assert.Equal(t, topic.ID, q.TopicID)
	assert.True(t, q.Active)

	var sel selector.Selection
	require.NoError(t, json.Unmarshal(run(t, "--db", db, "next", "--seed", "7"), &sel))
	assert.Equal(t, q.ID, sel.Question.ID)
	assert.Contains(t, []selector.Category{selector.CategoryNew, selector.CategoryAll}, sel.Category)

	var ans answerOutput
	require.NoError(t, json.Unmarshal(run(t, "--db", db, "answer", "1", "--correct", "--seconds", "12"), &ans))
	assert.Equal(t, uint(1), ans.Record.Attempts)
	assert.Equal(t, uint(1), ans.Record.CorrectAttempts)
	assert.Equal(t, 2, ans.Record.Box)
	assert.Equal(t, 1, ans.Record.IntervalDays)
	assert.Equal(t, progress.Reviewing, ans.Mastery)
	assert.Equal(t, spacedrep.ReviewNotDue, ans.ReviewStatus)
	assert.Equal(t, 1, ans.DaysUntilReview)

	var stats struct {
		UserID string `json:"user_id"`
		Totals struct {
			Attempts  uint `json:"attempts"`
			Questions int  `json:"questions"`
		} `json:"totals"`
		Streak struct {
			Current int `json:"current"`
		} `json:"streak"`
	}
	require.NoError(t, json.Unmarshal(run(t, "--db", db, "stats"), &stats))
	assert.Equal(t, "local", stats.UserID)
	assert.Equal(t, uint(1), stats.Totals.Attempts)
	assert.Equal(t, 1, stats.Totals.Questions)
	assert.Equal(t, 1, stats.Streak.Current)

	var reset map[string]any
	require.NoError(t, json.Unmarshal(run(t, "--db", db, "reset", "--topic", "1"), &reset))
	assert.EqualValues(t, 1, reset["records_deleted"])
}

// flakyWriter fails every call with a transient error and counts calls.
type flakyWriter struct{ calls int }

func (w *flakyWriter) fail() error {
	w.calls++
	return progress.Unavailable(errors.New("deadline exceeded"))
}

func (w *flakyWriter) CreateTopic(context.Context, progress.Topic) (progress.Topic, error) {
	return progress.Topic{}, w.fail()
}

func (w *flakyWriter) CreateQuestion(context.Context, progress.Question) (progress.Question, error) {
	return progress.Question{}, w.fail()
}

func (w *flakyWriter) SetActive(context.Context, int64, bool) error {
	return w.fail()
}

func TestCatalogWrites_InsertsAreNotRetried(t *testing.T) {
	ctx := context.Background()
	policy := retry.Config{MaxAttempts: 3, InitialWait: time.Millisecond, Multiplier: 1}

	w := &flakyWriter{}
	rt := &runtime{writer: w, retry: policy}
	_, err := rt.createTopic(ctx, progress.Topic{Name: "fractions"})
	assert.ErrorIs(t, err, progress.ErrStoreUnavailable)
	assert.Equal(t, 1, w.calls)

	w = &flakyWriter{}
	rt = &runtime{writer: w, retry: policy}
	_, err = rt.createQuestion(ctx, progress.Question{TopicID: 1})
	assert.ErrorIs(t, err, progress.ErrStoreUnavailable)
	assert.Equal(t, 1, w.calls)

	w = &flakyWriter{}
	rt = &runtime{writer: w, retry: policy}
	err = rt.setActive(ctx, 1, false)
	assert.ErrorIs(t, err, progress.ErrStoreUnavailable)
	assert.Equal(t, 3, w.calls)
}
