package main

import (
	"time"

	"github.com/spf13/cobra"

	"scoredesk/internal/logging"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local read cache",
	}
	cmd.AddCommand(newCachePruneCommand(ctx))
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the cache database path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fprintf(cmd.OutOrStdout(), "%s\n", ctx.config.CachePath())
			return nil
		},
	})
	return cmd
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Drop cached data and logs older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			retention := ctx.config.Cache.RetentionDays
			if cmd.Flags().Changed("days") {
				retention = days
			}
			store, err := ctx.requireStore()
			if err != nil {
				return err
			}
			now := time.Now()
			result, err := store.Prune(cmd.Context(), now.AddDate(0, 0, -retention))
			if err != nil {
				return err
			}
			logs := logging.CleanupOldLogs(ctx.log(), ctx.config.Paths.LogDir, "*.log", retention, now)

			out := cmd.OutOrStdout()
			fprintf(out, "Removed %d cached records (%d submissions, %d history rows, %d sheets)\n",
				result.Total(), result.Submissions, result.History, result.SessionScores)
			if logs > 0 {
				fprintf(out, "Removed %d old log files\n", logs)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Retention in days (defaults to cache.retention_days)")
	return cmd
}
