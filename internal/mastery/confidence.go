package mastery

import (
	"github.com/abhisek/drillbox/internal/progress"
)

// Formula computes a raw confidence score from a record. The result is
// clamped by the Estimator, so a Formula may return values outside [0,1].
type Formula func(r progress.Record) float64

// RichFormula weighs success rate, the current correct streak and the
// normalized ease factor:
//
//	0.5*successRate + 0.1*consecutiveCorrect + 0.3*normalizedEase
func RichFormula(r progress.Record) float64 {
	return 0.5*r.SuccessRate() + 0.1*float64(r.ConsecutiveCorrect) + 0.3*NormalizedEase(r.EaseFactor)
}

// SimpleFormula weighs success rate against Leitner box progress.
func SimpleFormula(r progress.Record) float64 {
	return 0.6*r.SuccessRate() + 0.4*float64(r.Box)/float64(progress.MaxBox)
}

// Formula names accepted by FormulaByName.
const (
	FormulaRich   = "rich"
	FormulaSimple = "simple"
)

// FormulaByName returns the named formula. An empty name selects RichFormula.
func FormulaByName(name string) (Formula, bool) {
	switch name {
	case "", FormulaRich:
		return RichFormula, true
	case FormulaSimple:
		return SimpleFormula, true
	}
	return nil, false
}

// NormalizedEase maps an ease factor onto [0,1].
func NormalizedEase(ease float64) float64 {
	span := progress.MaxEaseFactor - progress.MinEaseFactor
	return clamp((ease-progress.MinEaseFactor)/span, 0, 1)
}

// Estimator produces a bounded confidence score for a record.
type Estimator struct {
	formula Formula
}

// NewEstimator returns an estimator using f, or RichFormula when f is nil.
func NewEstimator(f Formula) *Estimator {
	if f == nil {
		f = RichFormula
	}
	return &Estimator{formula: f}
}

// Estimate returns a confidence score in [0,1]. A record with no attempts
// scores from its ease and box alone.
func (e *Estimator) Estimate(r progress.Record) float64 {
	return clamp(e.formula(r), 0, 1)
}

// Apply returns r with Confidence recomputed.
func (e *Estimator) Apply(r progress.Record) progress.Record {
	r.Confidence = e.Estimate(r)
	return r
}

// ToScale5 maps a normalized confidence onto the 1-5 presentation scale.
func ToScale5(c float64) float64 {
	return 1 + 4*clamp(c, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
