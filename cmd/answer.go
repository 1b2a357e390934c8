package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/drillbox/internal/mastery"
	"github.com/abhisek/drillbox/internal/progress"
	"github.com/abhisek/drillbox/internal/retry"
	"github.com/abhisek/drillbox/internal/spacedrep"
)

var answerCmd = &cobra.Command{
	Use:   "answer <question-id>",
	Short: "Record an answer and reschedule the question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		questionID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid question ID %q: %w", args[0], err)
		}
		correct, _ := cmd.Flags().GetBool("correct")
		seconds, _ := cmd.Flags().GetFloat64("seconds")

		ctx := cmd.Context()
		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		rec, err := retry.Do(ctx, rt.retry, func(ctx context.Context) (progress.Record, error) {
			return rt.service.RecordAnswer(ctx, rt.cfg.User, questionID, correct, seconds)
		})
		if err != nil {
			return fmt.Errorf("record answer: %w", err)
		}

		now := time.Now()
		return printJSON(cmd, answerOutput{
			Record:           rec,
			Mastery:          rec.Mastery(),
			SuccessRate:      rec.SuccessRate(),
			ConfidenceScale5: mastery.ToScale5(rec.Confidence),
			DaysUntilReview:  spacedrep.DaysUntilReview(rec, now),
			ReviewStatus:     spacedrep.Status(rec, now),
		})
	},
}

type answerOutput struct {
	Record           progress.Record        `json:"record"`
	Mastery          progress.MasteryLevel  `json:"mastery"`
	SuccessRate      float64                `json:"success_rate"`
	ConfidenceScale5 float64                `json:"confidence_1_5"`
	DaysUntilReview  int                    `json:"days_until_review"`
	ReviewStatus     spacedrep.ReviewStatus `json:"review_status"`
}

func init() {
	answerCmd.Flags().Bool("correct", false, "The answer was correct")
	answerCmd.Flags().Float64("seconds", 0, "Response time in seconds")
	answerCmd.Flags().String("mode", "", "Scheduler mode: ease or leitner (overrides DRILLBOX_SCHEDULER_MODE)")
	bindViper("scheduler.mode", answerCmd, "mode")
}
