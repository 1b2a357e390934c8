package store

import (
	"context"
	"database/sql"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/abhisek/drillbox/internal/progress"
)

const (
	topicsTable    = "topics"
	questionsTable = "questions"
)

var (
	topicColumns    = []string{"id", "parent_id", "name", "difficulty_level"}
	questionColumns = []string{"id", "topic_id", "difficulty_level", "points", "active", "prompt"}
)

type topicRow struct {
	ID              int64         `db:"id"`
	ParentID        sql.NullInt64 `db:"parent_id"`
	Name            string        `db:"name"`
	DifficultyLevel int           `db:"difficulty_level"`
}

func (r topicRow) topic() progress.Topic {
	t := progress.Topic{ID: r.ID, Name: r.Name, DifficultyLevel: r.DifficultyLevel}
	if r.ParentID.Valid {
		parent := r.ParentID.Int64
		t.ParentID = &parent
	}
	return t
}

type questionRow struct {
	ID              int64  `db:"id"`
	TopicID         int64  `db:"topic_id"`
	DifficultyLevel int    `db:"difficulty_level"`
	Points          int    `db:"points"`
	Active          bool   `db:"active"`
	Prompt          string `db:"prompt"`
}

func (r questionRow) question() progress.Question {
	return progress.Question{
		ID:              r.ID,
		TopicID:         r.TopicID,
		DifficultyLevel: r.DifficultyLevel,
		Points:          r.Points,
		Active:          r.Active,
		Prompt:          r.Prompt,
	}
}

// CatalogRepo provides access to topics and questions.
type CatalogRepo struct {
	db *sqlx.DB
	sb *entsql.DialectBuilder
}

// ByTopic returns questions ordered by ID. A nil topicID means every topic.
func (c *CatalogRepo) ByTopic(ctx context.Context, topicID *int64, activeOnly bool) ([]progress.Question, error) {
	sel := c.sb.Select(questionColumns...).From(c.sb.Table(questionsTable))
	if topicID != nil {
		sel.Where(entsql.EQ("topic_id", *topicID))
	}
	if activeOnly {
		sel.Where(entsql.EQ("active", true))
	}
	query, args := sel.OrderBy("id").Query()

	var rows []questionRow
	if err := c.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classify(err, "list questions")
	}
	out := make([]progress.Question, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.question())
	}
	return out, nil
}

// ByID returns the question or progress.ErrNotFound.
func (c *CatalogRepo) ByID(ctx context.Context, questionID int64) (progress.Question, error) {
	query, args := c.sb.Select(questionColumns...).
		From(c.sb.Table(questionsTable)).
		Where(entsql.EQ("id", questionID)).
		Query()

	var row questionRow
	if err := c.db.GetContext(ctx, &row, query, args...); err != nil {
		return progress.Question{}, classify(err, "get question")
	}
	return row.question(), nil
}

// Topic returns the topic or progress.ErrNotFound.
func (c *CatalogRepo) Topic(ctx context.Context, topicID int64) (progress.Topic, error) {
	query, args := c.sb.Select(topicColumns...).
		From(c.sb.Table(topicsTable)).
		Where(entsql.EQ("id", topicID)).
		Query()

	var row topicRow
	if err := c.db.GetContext(ctx, &row, query, args...); err != nil {
		return progress.Topic{}, classify(err, "get topic")
	}
	return row.topic(), nil
}

// Topics returns every topic ordered by ID.
func (c *CatalogRepo) Topics(ctx context.Context) ([]progress.Topic, error) {
	query, args := c.sb.Select(topicColumns...).
		From(c.sb.Table(topicsTable)).
		OrderBy("id").
		Query()

	var rows []topicRow
	if err := c.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classify(err, "list topics")
	}
	out := make([]progress.Topic, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.topic())
	}
	return out, nil
}

// CreateTopic inserts t and returns it with its assigned ID. The parent,
// when set, must exist.
func (c *CatalogRepo) CreateTopic(ctx context.Context, t progress.Topic) (progress.Topic, error) {
	if t.Name == "" {
		return progress.Topic{}, errors.Wrap(progress.ErrInvalidState, "topic name is required")
	}
	if t.ParentID != nil {
		if _, err := c.Topic(ctx, *t.ParentID); err != nil {
			return progress.Topic{}, errors.Wrapf(err, "parent topic %d", *t.ParentID)
		}
	}
	if t.DifficultyLevel == 0 {
		t.DifficultyLevel = 1
	}

	ins := c.sb.Insert(topicsTable).
		Set("name", t.Name).
		Set("difficulty_level", t.DifficultyLevel)
	if t.ParentID != nil {
		ins.Set("parent_id", *t.ParentID)
	}
	query, args := ins.Returning("id").Query()

	if err := c.db.GetContext(ctx, &t.ID, query, args...); err != nil {
		return progress.Topic{}, classify(err, "create topic")
	}
	return t, nil
}

// CreateQuestion inserts q and returns it with its assigned ID. Its topic
// must exist and its difficulty must be within 1-5.
func (c *CatalogRepo) CreateQuestion(ctx context.Context, q progress.Question) (progress.Question, error) {
	if q.DifficultyLevel == 0 {
		q.DifficultyLevel = 1
	}
	if q.DifficultyLevel < 1 || q.DifficultyLevel > 5 {
		return progress.Question{}, &progress.InvalidStateError{
			Field:   "difficulty_level",
			Value:   float64(q.DifficultyLevel),
			Clamped: float64(min(max(q.DifficultyLevel, 1), 5)),
		}
	}
	if _, err := c.Topic(ctx, q.TopicID); err != nil {
		return progress.Question{}, errors.Wrapf(err, "topic %d", q.TopicID)
	}

	query, args := c.sb.Insert(questionsTable).
		Set("topic_id", q.TopicID).
		Set("difficulty_level", q.DifficultyLevel).
		Set("points", q.Points).
		Set("active", q.Active).
		Set("prompt", q.Prompt).
		Returning("id").
		Query()

	if err := c.db.GetContext(ctx, &q.ID, query, args...); err != nil {
		return progress.Question{}, classify(err, "create question")
	}
	return q, nil
}

// SetActive toggles whether a question is offered to learners.
func (c *CatalogRepo) SetActive(ctx context.Context, questionID int64, active bool) error {
	query, args := c.sb.Update(questionsTable).
		Set("active", active).
		Where(entsql.EQ("id", questionID)).
		Query()
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(err, "update question")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err, "update question")
	}
	if n == 0 {
		return errors.Wrapf(progress.ErrNotFound, "question %d", questionID)
	}
	return nil
}
