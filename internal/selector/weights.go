package selector

import (
	"errors"
	"fmt"
)

// Category names the candidate pool a question was drawn from.
type Category string

const (
	CategoryOverdue   Category = "overdue"
	CategoryNew       Category = "new"
	CategoryDifficult Category = "difficult"
	CategoryAll       Category = "all"
)

// categoryOrder is both the threshold order and the fall-through order.
var categoryOrder = [...]Category{CategoryOverdue, CategoryNew, CategoryDifficult, CategoryAll}

// Weights sets the relative probability of drawing from each category.
type Weights struct {
	Overdue   float64 `mapstructure:"overdue" json:"overdue"`
	New       float64 `mapstructure:"new" json:"new"`
	Difficult float64 `mapstructure:"difficult" json:"difficult"`
	All       float64 `mapstructure:"all" json:"all"`
}

// DefaultWeights gives cumulative thresholds of 0.40, 0.75, 0.95 and 1.0.
var DefaultWeights = Weights{Overdue: 0.40, New: 0.35, Difficult: 0.20, All: 0.05}

// Validate rejects negative weights and an all-zero set.
func (w Weights) Validate() error {
	for i, v := range w.values() {
		if v < 0 {
			return fmt.Errorf("selector weight %s is negative: %v", categoryOrder[i], v)
		}
	}
	if w.sum() <= 0 {
		return errors.New("selector weights sum to zero")
	}
	return nil
}

// Thresholds returns the cumulative thresholds, normalized so the last is 1.
func (w Weights) Thresholds() [len(categoryOrder)]float64 {
	var out [len(categoryOrder)]float64
	total := w.sum()
	if total <= 0 {
		w, total = DefaultWeights, DefaultWeights.sum()
	}
	acc := 0.0
	for i, v := range w.values() {
		acc += v
		out[i] = acc / total
	}
	out[len(out)-1] = 1
	return out
}

// pick returns the index of the first category whose threshold exceeds r.
func (w Weights) pick(r float64) int {
	th := w.Thresholds()
	for i, t := range th {
		if r < t {
			return i
		}
	}
	return len(th) - 1
}

func (w Weights) values() [len(categoryOrder)]float64 {
	return [len(categoryOrder)]float64{w.Overdue, w.New, w.Difficult, w.All}
}

func (w Weights) sum() float64 {
	s := 0.0
	for _, v := range w.values() {
		s += v
	}
	return s
}
