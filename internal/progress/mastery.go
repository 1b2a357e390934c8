package progress

// MasteryLevel is a coarse label summarizing a learner's command of a question.
type MasteryLevel string

const (
	NotStarted MasteryLevel = "NOT_STARTED"
	Learning   MasteryLevel = "LEARNING"
	Reviewing  MasteryLevel = "REVIEWING"
	Proficient MasteryLevel = "PROFICIENT"
	Mastered   MasteryLevel = "MASTERED"
)

// Levels lists every mastery level from weakest to strongest.
var Levels = []MasteryLevel{NotStarted, Learning, Reviewing, Proficient, Mastered}

// LevelFor derives the mastery level of an attempted question from its box
// and success rate. This is the only place the mapping is defined.
func LevelFor(box int, successRate float64) MasteryLevel {
	switch {
	case box >= 4 && successRate >= 0.8:
		return Mastered
	case box >= 3 && successRate >= 0.6:
		return Proficient
	case box >= 2:
		return Reviewing
	default:
		return Learning
	}
}
