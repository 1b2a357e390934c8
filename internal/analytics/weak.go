package analytics

import (
	"cmp"
	"slices"

	"github.com/abhisek/drillbox/internal/progress"
)

const (
	// WeakSuccessRate is the success rate below which a topic is weak.
	WeakSuccessRate = 0.6
	// WeakConfidence is the average confidence below which a topic is weak.
	WeakConfidence = 0.5
)

// WeakArea is a topic whose aggregate performance is below threshold.
type WeakArea struct {
	TopicID     int64   `json:"topic_id"`
	SuccessRate float64 `json:"success_rate"`
	Confidence  float64 `json:"confidence"`
	Attempts    uint    `json:"attempts"`
	Suggestion  string  `json:"suggestion"`
}

// Suggestions, weakest band first.
const (
	SuggestFundamentals = "Revisit the fundamentals of this topic before practicing further."
	SuggestGuided       = "Work through guided practice on easier questions in this topic."
	SuggestMixed        = "Keep up regular mixed practice to push accuracy past 60%."
	SuggestSlowDown     = "Answers are correct but uncertain: slow down and review the explanations."
)

// Suggest returns the suggestion for a weak topic.
func Suggest(successRate, confidence float64) string {
	switch {
	case successRate < 0.3:
		return SuggestFundamentals
	case successRate < 0.5:
		return SuggestGuided
	case successRate < WeakSuccessRate:
		return SuggestMixed
	default:
		return SuggestSlowDown
	}
}

type topicTotals struct {
	attempts, correct uint
	confidenceSum     float64
	records           int
}

// FindWeak groups records by topic and returns the weak ones, sorted by
// ascending success rate and then topic ID. Records with no attempts are
// ignored.
func FindWeak(records []progress.Record) []WeakArea {
	totals := make(map[int64]*topicTotals)
	for _, r := range records {
		if r.Attempts == 0 {
			continue
		}
		t := totals[r.TopicID]
		if t == nil {
			t = &topicTotals{}
			totals[r.TopicID] = t
		}
		t.attempts += r.Attempts
		t.correct += r.CorrectAttempts
		t.confidenceSum += r.Confidence
		t.records++
	}

	var weak []WeakArea
	for topicID, t := range totals {
		sr := float64(t.correct) / float64(t.attempts)
		conf := t.confidenceSum / float64(t.records)
		if sr >= WeakSuccessRate && conf >= WeakConfidence {
			continue
		}
		weak = append(weak, WeakArea{
			TopicID:     topicID,
			SuccessRate: sr,
			Confidence:  conf,
			Attempts:    t.attempts,
			Suggestion:  Suggest(sr, conf),
		})
	}

	slices.SortFunc(weak, func(a, b WeakArea) int {
		if c := cmp.Compare(a.SuccessRate, b.SuccessRate); c != 0 {
			return c
		}
		return cmp.Compare(a.TopicID, b.TopicID)
	})
	return weak
}
