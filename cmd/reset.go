package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/drillbox/internal/retry"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset learner progress for a topic",
	RunE: func(cmd *cobra.Command, args []string) error {
		topicID, _ := cmd.Flags().GetInt64("topic")

		ctx := cmd.Context()
		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		n, err := retry.Do(ctx, rt.retry, func(ctx context.Context) (int64, error) {
			return rt.service.ResetTopicProgress(ctx, rt.cfg.User, topicID)
		})
		if err != nil {
			return fmt.Errorf("reset topic %d: %w", topicID, err)
		}
		return printJSON(cmd, map[string]any{
			"user_id":         rt.cfg.User,
			"topic_id":        topicID,
			"records_deleted": n,
		})
	},
}

func init() {
	resetCmd.Flags().Int64("topic", 0, "Topic to reset")
	resetCmd.MarkFlagRequired("topic")
}
