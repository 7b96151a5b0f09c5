package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"scoredesk/internal/cache"
	"scoredesk/internal/reprocess"
	"scoredesk/internal/statussync"
	"scoredesk/internal/submission"
)

func newSubmissionCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "submission",
		Aliases: []string{"sub"},
		Short:   "Inspect, watch and retry submissions",
	}
	cmd.AddCommand(newSubmissionShowCommand(ctx))
	cmd.AddCommand(newSubmissionListCommand(ctx))
	cmd.AddCommand(newSubmissionWatchCommand(ctx))
	cmd.AddCommand(newSubmissionRetryCommand(ctx))
	cmd.AddCommand(newSubmissionHistoryCommand(ctx))
	return cmd
}

func (c *commandContext) submissionAPI() *submission.API {
	return submission.NewAPI(c.remoteClient())
}

// watcher builds a status watcher that records into the cache when enabled.
func (c *commandContext) watcher(interval time.Duration) *statussync.Watcher {
	opts := statussync.OptionsFromConfig(c.config)
	if interval > 0 {
		opts.Interval = interval
	}
	var recorder statussync.Recorder
	if store := c.cacheStore(); store != nil {
		recorder = store
	}
	return statussync.NewWatcher(c.submissionAPI(), recorder, opts, c.log())
}

func newSubmissionShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "submission id")
			if err != nil {
				return err
			}
			sub, err := ctx.submissionAPI().Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if store := ctx.cacheStore(); store != nil {
				if _, err := store.PutSubmission(cmd.Context(), sub, 0); err != nil {
					ctx.log().Debug("cache submission failed", "error", err)
				}
			}
			if asJSON {
				return writeJSON(cmd, sub)
			}
			printSubmission(cmd.OutOrStdout(), sub, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func printSubmission(out io.Writer, sub submission.Submission, colorize bool) {
	fprintf(out, "Submission %d\n", sub.ID)
	fprintf(out, "  %-16s %s\n", "Status:", badge(sub.Status.Presentation(), colorize))
	fprintf(out, "  %-16s %s %d\n", "Target:", sub.TargetType, sub.TargetID)
	fprintf(out, "  %-16s %s\n", "Enrollment:", formatOptionalID(sub.EnrollmentID))
	if sub.Source != "" {
		fprintf(out, "  %-16s %s\n", "Source:", sub.Source)
	}
	if review := sub.ManualReview(); review.Required {
		fprintf(out, "  %-16s %s\n", "Manual review:", yesNo(submission.NeedsManualReview(sub)))
		if len(review.Reasons) > 0 {
			fprintf(out, "  %-16s %s\n", "Reasons:", strings.Join(review.Reasons, ", "))
		}
	}
	if sub.ReviewCandidate() {
		fprintf(out, "  %-16s %s\n", "Review flag:", "yes")
	}
	if reason := sub.InvalidReason(); reason != "" {
		fprintf(out, "  %-16s %s\n", "Invalid:", reason)
	}
	if sub.ErrorMessage != "" {
		fprintf(out, "  %-16s %s\n", "Error:", sub.ErrorMessage)
	}
	if !sub.UpdatedAt.IsZero() {
		fprintf(out, "  %-16s %s\n", "Updated:", sub.UpdatedAt.Local().Format(time.DateTime))
	}
	switch {
	case sub.Status.IsRetryable():
		fprintf(out, "\nRetry with: scoredesk submission retry %d --watch\n", sub.ID)
	case submission.NeedsManualReview(sub):
		fprintf(out, "\nReview with: scoredesk review show %d\n", sub.ID)
	}
}

func newSubmissionListCommand(ctx *commandContext) *cobra.Command {
	var (
		asJSON     bool
		examID     int64
		enrollment int64
		status     string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List submissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := submission.ListFilter{ExamID: examID, EnrollmentID: enrollment, Limit: limit}
			if status != "" {
				parsed, known := submission.ParseStatus(status)
				if !known {
					return fmt.Errorf("unknown status %q", status)
				}
				filter.Status = parsed
			}
			list, err := ctx.submissionAPI().List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, struct {
					Counts      submission.Counts       `json:"counts"`
					Submissions []submission.Submission `json:"submissions"`
				}{submission.Tally(list), list})
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fprintf(out, "No submissions found\n")
				return nil
			}
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(list))
			for _, sub := range list {
				flag := ""
				if submission.NeedsManualReview(sub) {
					flag = "review"
				}
				rows = append(rows, []string{
					strconv.FormatInt(sub.ID, 10),
					fmt.Sprintf("%s %d", sub.TargetType, sub.TargetID),
					formatOptionalID(sub.EnrollmentID),
					badge(sub.Status.Presentation(), colorize),
					flag,
				})
			}
			fprintf(out, "%s\n", renderTable([]string{"ID", "Target", "Enrollment", "Status", "Flag"}, rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft}))
			counts := submission.Tally(list)
			fprintf(out, "%d total, %d processing, %d blocked, %d manual review, %d done, %d failed\n",
				counts.Total, counts.Processing, counts.Blocked, counts.ManualReview, counts.Done, counts.Failed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	cmd.Flags().Int64Var(&examID, "exam", 0, "Only submissions for this exam")
	cmd.Flags().Int64Var(&enrollment, "enrollment", 0, "Only submissions for this enrollment")
	cmd.Flags().StringVar(&status, "status", "", "Only submissions in this status")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of submissions")
	return cmd
}

// observationPrinter writes one line per observation. It is safe for
// concurrent watches.
type observationPrinter struct {
	mu       sync.Mutex
	out      io.Writer
	colorize bool
	prefix   bool
}

func (p *observationPrinter) observe(obs statussync.Observation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	stamp := obs.At.Local().Format(time.TimeOnly)
	lead := ""
	if p.prefix {
		lead = fmt.Sprintf("#%d ", obs.SubmissionID)
	}
	if obs.Err != nil {
		fprintf(p.out, "%s%s fetch failed: %v\n", lead, stamp, obs.Err)
		return
	}
	fprintf(p.out, "%s%s %s\n", lead, stamp, badge(obs.Submission.Status.Presentation(), p.colorize))
}

func describeResult(out io.Writer, result statussync.Result) {
	switch result.Outcome {
	case statussync.OutcomeTerminal:
		if result.Last != nil && result.Last.Status == submission.StatusFailed && result.Last.ErrorMessage != "" {
			fprintf(out, "Submission %d failed: %s\n", result.SubmissionID, result.Last.ErrorMessage)
			return
		}
		fprintf(out, "Submission %d finished\n", result.SubmissionID)
	case statussync.OutcomeBlocked:
		fprintf(out, "Submission %d needs identification; fix it and run: scoredesk submission retry %d --watch\n",
			result.SubmissionID, result.SubmissionID)
	case statussync.OutcomeStalled:
		fprintf(out, "Submission %d did not settle after %d fetches; stopped watching\n", result.SubmissionID, result.Issued)
	case statussync.OutcomeCancelled:
		fprintf(out, "Stopped watching submission %d\n", result.SubmissionID)
	}
}

func newSubmissionWatchCommand(ctx *commandContext) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch <id>",
		Short: "Poll a submission until it settles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "submission id")
			if err != nil {
				return err
			}
			lock, err := statussync.AcquireLock(ctx.config.LockDir(), id)
			if err != nil {
				return fmt.Errorf("watch submission %d: %w", id, err)
			}
			defer lock.Release()

			out := cmd.OutOrStdout()
			printer := &observationPrinter{out: out, colorize: shouldColorize(out)}
			result := ctx.watcher(interval).Watch(cmd.Context(), id, printer.observe)
			describeResult(out, result)
			if result.Outcome == statussync.OutcomeCancelled {
				return context.Canceled
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "Polling interval (defaults to sync.interval_ms)")
	return cmd
}

func newSubmissionRetryCommand(ctx *commandContext) *cobra.Command {
	var (
		watch  bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "retry <id>...",
		Short: "Reprocess failed or unidentified submissions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args, "submission id")
			if err != nil {
				return err
			}
			api := ctx.submissionAPI()
			batch, err := reprocess.NewController(api, ctx.log()).RetryMany(cmd.Context(), ids)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON && !watch {
				return writeJSON(cmd, batch)
			}
			for _, item := range batch.Items {
				line := fmt.Sprintf("#%d %s", item.ID, item.Outcome)
				if item.PriorStatus != "" {
					line += fmt.Sprintf(" (was %s)", item.PriorStatus.Presentation().Label)
				}
				if item.Message != "" {
					line += ": " + item.Message
				}
				fprintf(out, "%s\n", line)
			}

			var failed int
			for _, item := range batch.Items {
				if item.Outcome != reprocess.OutcomeRetried {
					failed++
				}
			}
			if watch && batch.RetriedCount > 0 {
				if err := watchRetried(cmd, ctx, batch); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d submissions were not retried", failed, len(batch.Items))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "Watch retried submissions until they settle")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

// watchRetried polls every retried submission concurrently.
func watchRetried(cmd *cobra.Command, ctx *commandContext, batch reprocess.BatchResult) error {
	out := cmd.OutOrStdout()
	printer := &observationPrinter{out: out, colorize: shouldColorize(out), prefix: batch.RetriedCount > 1}
	registry := statussync.NewRegistry(ctx.watcher(0))
	defer registry.StopAll()

	var handles []*statussync.Handle
	for _, item := range batch.Items {
		if item.Outcome != reprocess.OutcomeRetried {
			continue
		}
		lock, err := statussync.AcquireLock(ctx.config.LockDir(), item.ID)
		if err != nil {
			fprintf(out, "#%d not watched: %v\n", item.ID, err)
			continue
		}
		defer lock.Release()
		handle, err := registry.Start(cmd.Context(), item.ID, printer.observe)
		if err != nil {
			return err
		}
		handles = append(handles, handle)
	}
	for _, handle := range handles {
		describeResult(out, handle.Wait())
	}
	if err := cmd.Context().Err(); err != nil {
		return err
	}
	return nil
}

func newSubmissionHistoryCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show locally observed status changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "submission id")
			if err != nil {
				return err
			}
			store, err := ctx.requireStore()
			if err != nil {
				return err
			}
			history, err := store.History(cmd.Context(), id)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, history)
			}
			out := cmd.OutOrStdout()
			if len(history) == 0 {
				snapshot, err := store.GetSubmission(cmd.Context(), id)
				if errors.Is(err, cache.ErrNotFound) {
					fprintf(out, "No history recorded for submission %d\n", id)
					return nil
				}
				if err != nil {
					return err
				}
				fprintf(out, "Submission %d last seen %s at %s\n", id, snapshot.Submission.Status, snapshot.ObservedAt.Local().Format(time.DateTime))
				return nil
			}
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(history))
			for _, tr := range history {
				from := "-"
				if tr.From != "" {
					from = tr.From.Presentation().Label
				}
				rows = append(rows, []string{
					tr.ObservedAt.Local().Format(time.DateTime),
					from,
					badge(tr.To.Presentation(), colorize),
				})
			}
			fprintf(out, "%s\n", renderTable([]string{"Observed", "From", "To"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
