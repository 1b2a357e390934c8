package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// topicFlag returns the --topic value, or nil when the flag was not given.
func topicFlag(cmd *cobra.Command) *int64 {
	if !cmd.Flags().Changed("topic") {
		return nil
	}
	id, _ := cmd.Flags().GetInt64("topic")
	return &id
}
