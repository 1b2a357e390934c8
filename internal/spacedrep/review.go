package spacedrep

import (
	"time"

	"github.com/abhisek/drillbox/internal/progress"
)

// IsDue returns true if the question is due for review (at or past the review date).
func IsDue(r progress.Record, now time.Time) bool {
	return !now.Before(r.NextReview)
}

// OverdueDays returns how many days past due the question is. Returns 0 if not yet due.
func OverdueDays(r progress.Record, now time.Time) float64 {
	if now.Before(r.NextReview) {
		return 0
	}
	return now.Sub(r.NextReview).Hours() / 24.0
}

// DaysUntilReview returns the number of days until the next review.
// Returns 0 if already due.
func DaysUntilReview(r progress.Record, now time.Time) int {
	if IsDue(r, now) {
		return 0
	}
	return int(r.NextReview.Sub(now).Hours()/24.0) + 1
}

// ReviewStatus describes a question's review status for display.
type ReviewStatus string

const (
	ReviewNotDue  ReviewStatus = "not_due"
	ReviewDue     ReviewStatus = "due"
	ReviewOverdue ReviewStatus = "overdue"
)

// Status returns the review status. A question counts as overdue once it is
// past due by more than half of its interval.
func Status(r progress.Record, now time.Time) ReviewStatus {
	if !IsDue(r, now) {
		return ReviewNotDue
	}
	interval := r.IntervalDays
	if interval < progress.MinIntervalDays {
		interval = progress.MinIntervalDays
	}
	if OverdueDays(r, now) > float64(interval)*0.5 {
		return ReviewOverdue
	}
	return ReviewDue
}
