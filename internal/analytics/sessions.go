package analytics

import (
	"iter"
	"time"

	"github.com/abhisek/drillbox/internal/progress"
)

// DefaultSessionGap splits the attempt log into sessions.
const DefaultSessionGap = 30 * time.Minute

// Session is a run of attempts without an idle gap longer than the session gap.
type Session struct {
	Start     time.Time     `json:"start"`
	End       time.Time     `json:"end"`
	Questions int           `json:"questions"`
	Correct   int           `json:"correct"`
	Duration  time.Duration `json:"duration"`
}

// Sessionize groups attempts, which must arrive in AnsweredAt order, into
// sessions. It stops at the first iterator error and returns it along with
// the sessions built so far.
func Sessionize(attempts iter.Seq2[progress.Attempt, error], gap time.Duration) ([]Session, error) {
	if gap <= 0 {
		gap = DefaultSessionGap
	}

	var (
		sessions []Session
		cur      *Session
		lastResp float64
	)
	closeCur := func() {
		if cur == nil {
			return
		}
		cur.Duration = cur.End.Sub(cur.Start) + seconds(lastResp)
		sessions = append(sessions, *cur)
		cur = nil
	}

	for a, err := range attempts {
		if err != nil {
			closeCur()
			return sessions, err
		}
		if cur != nil && a.AnsweredAt.Sub(cur.End) > gap {
			closeCur()
		}
		if cur == nil {
			cur = &Session{Start: a.AnsweredAt}
		}
		cur.End = a.AnsweredAt
		cur.Questions++
		if a.Correct {
			cur.Correct++
		}
		lastResp = a.ResponseSeconds
	}
	closeCur()
	return sessions, nil
}

func seconds(s float64) time.Duration {
	s, _ = progress.ClampResponseSeconds(s)
	return time.Duration(s * float64(time.Second))
}
