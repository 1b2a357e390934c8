package spacedrep

import "github.com/abhisek/drillbox/internal/progress"

// BoxIntervals maps a Leitner box to its review interval in days.
// Index 0 is unused so that BoxIntervals[box] reads naturally.
var BoxIntervals = [progress.MaxBox + 1]int{0, 1, 3, 7, 14, 30}

// DefaultMaxIntervalDays caps interval growth in ease-adjusted mode.
const DefaultMaxIntervalDays = 365

const (
	easeStepCorrect   = 0.1
	easeStepIncorrect = 0.2

	// First two correct answers in a row get these intervals; after that the
	// interval grows by the ease factor.
	firstInterval  = 1
	secondInterval = 6
)

// Mode names a scheduling strategy.
type Mode string

const (
	ModeEase    Mode = "ease"
	ModeLeitner Mode = "leitner"
)

// ParseMode returns the Mode named by s. The empty string selects ModeEase.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case "", ModeEase:
		return ModeEase, true
	case ModeLeitner:
		return ModeLeitner, true
	}
	return "", false
}

func intervalForBox(box int) int {
	if box < progress.MinBox {
		box = progress.MinBox
	}
	if box > progress.MaxBox {
		box = progress.MaxBox
	}
	return BoxIntervals[box]
}
