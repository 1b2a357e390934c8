package streak

import (
	"slices"
	"time"
)

// Result summarizes daily activity.
type Result struct {
	Current    int        `json:"current"`
	Longest    int        `json:"longest"`
	LastActive *time.Time `json:"last_active,omitempty"`
}

// Compute returns the current and longest runs of consecutive active days.
// Dates are reduced to calendar days in today's location. The current streak
// survives a day with no activity yet: if today is empty the count starts
// from yesterday.
func Compute(dates []time.Time, today time.Time) Result {
	if len(dates) == 0 {
		return Result{}
	}

	loc := today.Location()
	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		days = append(days, dayOf(d, loc))
	}
	slices.SortFunc(days, func(a, b time.Time) int { return a.Compare(b) })
	days = slices.CompactFunc(days, func(a, b time.Time) bool { return a.Equal(b) })

	last := days[len(days)-1]
	res := Result{LastActive: &last}

	run := 1
	res.Longest = 1
	for i := 1; i < len(days); i++ {
		if consecutive(days[i-1], days[i]) {
			run++
		} else {
			run = 1
		}
		res.Longest = max(res.Longest, run)
	}

	active := make(map[time.Time]bool, len(days))
	for _, d := range days {
		active[d] = true
	}
	cursor := dayOf(today, loc)
	if !active[cursor] {
		cursor = cursor.AddDate(0, 0, -1)
	}
	for active[cursor] {
		res.Current++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return res
}

// Milestones are the streak lengths worth celebrating before the monthly cadence.
var Milestones = []int{3, 7, 14, 30}

// NextMilestone returns the next streak milestone above the current streak length.
func NextMilestone(current int) int {
	for _, m := range Milestones {
		if m > current {
			return m
		}
	}
	// Beyond 30, every 30 days.
	return ((current / 30) + 1) * 30
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func consecutive(a, b time.Time) bool {
	return a.AddDate(0, 0, 1).Equal(b)
}
