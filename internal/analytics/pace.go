package analytics

import (
	"time"
)

// PaceWindowDays is the look-back window for pace analysis.
const PaceWindowDays = 30

// PaceCategory classifies how often a learner practices.
type PaceCategory string

const (
	PaceIntensive PaceCategory = "INTENSIVE"
	PaceRegular   PaceCategory = "REGULAR"
	PaceModerate  PaceCategory = "MODERATE"
	PaceLight     PaceCategory = "LIGHT"
	PaceInactive  PaceCategory = "INACTIVE"
)

// Pace summarizes practice frequency over the last PaceWindowDays days.
type Pace struct {
	Category                 PaceCategory `json:"category"`
	AvgQuestionsPerActiveDay float64      `json:"avg_questions_per_active_day"`
	ActiveDays               int          `json:"active_days"`
	Recommendation           string       `json:"recommendation"`
	OptimalSessionMinutes    string       `json:"optimal_session_minutes"`
}

var recommendations = map[PaceCategory]string{
	PaceIntensive: "Great consistency. Mix in rest days and focus review on weak topics.",
	PaceRegular:   "Solid routine. Keep practicing most days to lock in long intervals.",
	PaceModerate:  "Try to practice a few more days each week so reviews do not pile up.",
	PaceLight:     "Short daily sessions will help more than occasional long ones.",
	PaceInactive:  "No practice in the last 30 days. Start with a short session today.",
}

// AnalyzePace considers sessions starting within the last PaceWindowDays
// days before now. Active days are counted in now's location.
func AnalyzePace(sessions []Session, now time.Time) Pace {
	cutoff := now.AddDate(0, 0, -PaceWindowDays)
	loc := now.Location()

	days := make(map[time.Time]struct{})
	var (
		questions int
		total     time.Duration
		n         int
	)
	for _, s := range sessions {
		if s.Start.Before(cutoff) || s.Start.After(now) {
			continue
		}
		y, m, d := s.Start.In(loc).Date()
		days[time.Date(y, m, d, 0, 0, 0, 0, loc)] = struct{}{}
		questions += s.Questions
		total += s.Duration
		n++
	}

	p := Pace{ActiveDays: len(days)}
	p.Category = paceCategory(p.ActiveDays)
	p.Recommendation = recommendations[p.Category]
	if p.ActiveDays > 0 {
		p.AvgQuestionsPerActiveDay = float64(questions) / float64(p.ActiveDays)
	}

	var avg time.Duration
	if n > 0 {
		avg = total / time.Duration(n)
	}
	p.OptimalSessionMinutes = optimalSession(avg)
	return p
}

func paceCategory(activeDays int) PaceCategory {
	switch {
	case activeDays >= 25:
		return PaceIntensive
	case activeDays >= 15:
		return PaceRegular
	case activeDays >= 7:
		return PaceModerate
	case activeDays > 0:
		return PaceLight
	default:
		return PaceInactive
	}
}

func optimalSession(avg time.Duration) string {
	switch {
	case avg < 15*time.Minute:
		return "20-30"
	case avg < 30*time.Minute:
		return "30-45"
	default:
		return "45-60"
	}
}
