package selector

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/abhisek/drillbox/internal/progress"
)

// Records lists a learner's progress records, optionally limited to a topic.
type Records interface {
	ListByUser(ctx context.Context, userID string, topicID *int64) ([]progress.Record, error)
}

// Questions lists questions, optionally limited to a topic.
type Questions interface {
	ByTopic(ctx context.Context, topicID *int64, activeOnly bool) ([]progress.Question, error)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Selection is the chosen question and the pool it came from.
type Selection struct {
	Question progress.Question `json:"question"`
	Category Category          `json:"category"`
}

// Selector picks the next question for a learner.
type Selector struct {
	records   Records
	questions Questions
	clock     Clock
	weights   Weights
}

// New creates a selector. Invalid weights are replaced by DefaultWeights.
func New(records Records, questions Questions, clock Clock, weights Weights) *Selector {
	if weights.Validate() != nil {
		weights = DefaultWeights
	}
	return &Selector{records: records, questions: questions, clock: clock, weights: weights}
}

// SelectNext chooses a question in scope for userID. It returns
// progress.ErrNoCandidates when there is no active question in scope.
func (s *Selector) SelectNext(ctx context.Context, userID string, topicID *int64) (Selection, error) {
	questions, err := s.questions.ByTopic(ctx, topicID, true)
	if err != nil {
		return Selection{}, fmt.Errorf("list questions: %w", err)
	}
	records, err := s.records.ListByUser(ctx, userID, topicID)
	if err != nil {
		return Selection{}, fmt.Errorf("list progress: %w", err)
	}

	pools := BuildPools(questions, records, s.clock.Now())
	return Choose(RandomFrom(ctx), s.weights, pools)
}

// Pools holds the candidate questions per category.
type Pools struct {
	Overdue   []Candidate
	New       []Candidate
	Difficult []Candidate
	All       []Candidate
}

// Candidate is a question with its progress record, if one exists.
type Candidate struct {
	Question progress.Question
	Record   *progress.Record
}

// BuildPools splits the active questions into candidate pools. Records for
// questions outside the given set are ignored.
func BuildPools(questions []progress.Question, records []progress.Record, now time.Time) Pools {
	byQuestion := make(map[int64]progress.Record, len(records))
	for _, r := range records {
		byQuestion[r.QuestionID] = r
	}

	sorted := slices.Clone(questions)
	slices.SortFunc(sorted, func(a, b progress.Question) int { return cmp.Compare(a.ID, b.ID) })

	var p Pools
	for _, q := range sorted {
		if !q.Active {
			continue
		}
		c := Candidate{Question: q}
		if r, ok := byQuestion[q.ID]; ok {
			c.Record = &r
		}
		p.All = append(p.All, c)

		switch {
		case c.Record == nil:
			p.New = append(p.New, c)
		case !c.Record.NextReview.After(now):
			p.Overdue = append(p.Overdue, c)
		case c.Record.Box <= 2:
			p.Difficult = append(p.Difficult, c)
		}
	}
	return p
}

func (p Pools) get(c Category) []Candidate {
	switch c {
	case CategoryOverdue:
		return p.Overdue
	case CategoryNew:
		return p.New
	case CategoryDifficult:
		return p.Difficult
	default:
		return p.All
	}
}

// Choose draws a category by weight and falls through to the next
// non-empty one in order.
func Choose(rnd Random, weights Weights, pools Pools) (Selection, error) {
	start := weights.pick(rnd.Float64())
	for _, cat := range categoryOrder[start:] {
		cands := pools.get(cat)
		if len(cands) == 0 {
			continue
		}
		return Selection{Question: pickFrom(rnd, cat, cands).Question, Category: cat}, nil
	}
	return Selection{}, progress.ErrNoCandidates
}

func pickFrom(rnd Random, cat Category, cands []Candidate) Candidate {
	switch cat {
	case CategoryOverdue:
		return slices.MinFunc(cands, func(a, b Candidate) int {
			if c := a.Record.NextReview.Compare(b.Record.NextReview); c != 0 {
				return c
			}
			return cmp.Compare(a.Question.ID, b.Question.ID)
		})
	case CategoryDifficult:
		return slices.MinFunc(cands, func(a, b Candidate) int {
			if c := cmp.Compare(a.Record.SuccessRate(), b.Record.SuccessRate()); c != 0 {
				return c
			}
			return cmp.Compare(a.Question.ID, b.Question.ID)
		})
	default:
		return cands[rnd.IntN(len(cands))]
	}
}
