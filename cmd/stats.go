package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/drillbox/internal/learning"
	"github.com/abhisek/drillbox/internal/retry"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show learning statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		topicID := topicFlag(cmd)

		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		stats, err := retry.Do(ctx, rt.retry, func(ctx context.Context) (learning.Stats, error) {
			return rt.service.Statistics(ctx, rt.cfg.User, topicID)
		})
		if err != nil {
			return fmt.Errorf("compute statistics: %w", err)
		}
		return printJSON(cmd, stats)
	},
}

func init() {
	statsCmd.Flags().Int64("topic", 0, "Restrict statistics to one topic")
}
