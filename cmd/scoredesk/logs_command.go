package main

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"scoredesk/internal/logging"
	"scoredesk/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines        int
		follow       bool
		submissionID int64
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the scoredesk log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(ctx.config.Paths.LogDir, logging.LogFileName)
			var filter logs.Filter
			if submissionID > 0 {
				filter = logs.SubmissionFilter(submissionID)
			}

			out := cmd.OutOrStdout()
			tail, offset, err := logs.Last(path, lines, filter)
			if err != nil {
				return err
			}
			for _, line := range tail {
				fprintf(out, "%s\n", line)
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, 500*time.Millisecond, filter, func(line string) {
				fprintf(out, "%s\n", line)
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().Int64Var(&submissionID, "submission", 0, "Only lines about this submission")
	return cmd
}
