package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/drillbox/internal/progress"
	"github.com/abhisek/drillbox/internal/retry"
	"github.com/abhisek/drillbox/internal/selector"
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Pick the next question to practice",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if cmd.Flags().Changed("seed") {
			seed, _ := cmd.Flags().GetUint64("seed")
			ctx = selector.WithRandom(ctx, selector.NewSeeded(seed))
		}
		topicID := topicFlag(cmd)

		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		sel, err := retry.Do(ctx, rt.retry, func(ctx context.Context) (selector.Selection, error) {
			return rt.service.NextQuestion(ctx, rt.cfg.User, topicID)
		})
		if errors.Is(err, progress.ErrNoCandidates) {
			fmt.Fprintln(cmd.ErrOrStderr(), "No questions available.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("select question: %w", err)
		}
		return printJSON(cmd, sel)
	},
}

func init() {
	nextCmd.Flags().Int64("topic", 0, "Restrict selection to one topic")
	nextCmd.Flags().Uint64("seed", 0, "Seed the random source for reproducible picks")
}
