package statussync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"scoredesk/internal/config"
	"scoredesk/internal/logging"
	"scoredesk/internal/submission"
)

// Fetcher reads the current representation of a submission.
type Fetcher interface {
	Get(ctx context.Context, id int64) (submission.Submission, error)
}

// Recorder persists applied observations. cache.Store satisfies it.
type Recorder interface {
	PutSubmission(ctx context.Context, sub submission.Submission, issueSeq uint64) (bool, error)
}

// Outcome is why a watch ended.
type Outcome string

const (
	// OutcomeTerminal means done or failed was observed.
	OutcomeTerminal Outcome = "terminal"
	// OutcomeBlocked means a blocking status was observed with StopOnBlocking set.
	OutcomeBlocked Outcome = "blocked"
	// OutcomeStalled means the attempt or duration ceiling was reached first.
	OutcomeStalled Outcome = "stalled"
	// OutcomeCancelled means the caller stopped the watch.
	OutcomeCancelled Outcome = "cancelled"
)

// Observation is one completed fetch that was not discarded as stale. Exactly
// one of Submission and Err is meaningful.
type Observation struct {
	SubmissionID int64
	Seq          uint64
	Submission   submission.Submission
	Err          error
	At           time.Time
}

// Result summarizes a finished watch.
type Result struct {
	SubmissionID int64
	Outcome      Outcome
	// Last is the most recently applied submission, nil if none was applied.
	Last    *submission.Submission
	Issued  int
	Applied int
	Stale   int
	Elapsed time.Duration
	LastErr error
}

// Options tune the polling loop.
type Options struct {
	Interval       time.Duration
	RequestTimeout time.Duration
	// MaxAttempts caps issued fetches. Zero means unbounded.
	MaxAttempts int
	// MaxDuration caps wall time. Zero means unbounded.
	MaxDuration    time.Duration
	StopOnBlocking bool
}

// OptionsFromConfig reads the [sync] section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Interval:       cfg.SyncInterval(),
		RequestTimeout: cfg.SyncRequestTimeout(),
		MaxAttempts:    cfg.Sync.MaxAttempts,
		MaxDuration:    cfg.SyncMaxDuration(),
		StopOnBlocking: cfg.Sync.StopOnBlocking,
	}
}

// Watcher polls submissions until they settle.
type Watcher struct {
	fetcher  Fetcher
	recorder Recorder
	opts     Options
	logger   *slog.Logger
}

// NewWatcher builds a watcher. recorder may be nil.
func NewWatcher(fetcher Fetcher, recorder Recorder, opts Options, logger *slog.Logger) *Watcher {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	return &Watcher{
		fetcher:  fetcher,
		recorder: recorder,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "statussync"),
	}
}

// Watch fetches id immediately and then once per interval until a settled
// status is applied, a ceiling is reached or ctx is cancelled. observe, if
// non-nil, is called from the watching goroutine for every fetch that was not
// stale. No fetch is issued after Watch returns.
func (w *Watcher) Watch(ctx context.Context, id int64, observe func(Observation)) Result {
	return w.run(ctx, id, nil, observe)
}

type fetchResult struct {
	seq uint64
	sub submission.Submission
	err error
}

func (w *Watcher) run(ctx context.Context, id int64, refresh <-chan struct{}, observe func(Observation)) Result {
	ctx = logging.WithSubmissionID(ctx, id)
	logger := logging.WithContext(ctx, w.logger)

	// Cancelled on return so in-flight fetches stop and cannot report back.
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	started := time.Now()
	result := Result{SubmissionID: id}
	results := make(chan fetchResult)

	var (
		issued      uint64
		applied     uint64
		tickSeq     uint64
		tickPending bool
	)
	issue := func(fromTick bool) {
		if w.opts.MaxAttempts > 0 && result.Issued >= w.opts.MaxAttempts {
			return
		}
		issued++
		result.Issued++
		seq := issued
		if fromTick {
			tickSeq = seq
			tickPending = true
		}
		go func() {
			fetchCtx := loopCtx
			if w.opts.RequestTimeout > 0 {
				var cancelFetch context.CancelFunc
				fetchCtx, cancelFetch = context.WithTimeout(loopCtx, w.opts.RequestTimeout)
				defer cancelFetch()
			}
			sub, err := w.fetcher.Get(fetchCtx, id)
			select {
			case results <- fetchResult{seq: seq, sub: sub, err: err}:
			case <-loopCtx.Done():
			}
		}()
	}

	finish := func(outcome Outcome) Result {
		result.Outcome = outcome
		result.Elapsed = time.Since(started)
		logger.Info("watch finished",
			logging.String("outcome", string(outcome)),
			logging.Int("issued", result.Issued),
			logging.Int("applied", result.Applied),
			logging.Duration("elapsed", result.Elapsed),
		)
		return result
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if w.opts.MaxDuration > 0 {
		timer := time.NewTimer(w.opts.MaxDuration)
		defer timer.Stop()
		deadline = timer.C
	}

	issue(true)
	for {
		select {
		case <-ctx.Done():
			return finish(OutcomeCancelled)

		case <-deadline:
			logger.Warn("watch stalled; duration ceiling reached",
				logging.String(logging.FieldEventType, "watch_stalled"),
				logging.Duration("max_duration", w.opts.MaxDuration),
			)
			return finish(OutcomeStalled)

		case <-ticker.C:
			if tickPending {
				logger.Debug("previous fetch still in flight; skipping tick")
				continue
			}
			if w.opts.MaxAttempts > 0 && result.Issued >= w.opts.MaxAttempts {
				logger.Warn("watch stalled; attempt ceiling reached",
					logging.String(logging.FieldEventType, "watch_stalled"),
					logging.Int("max_attempts", w.opts.MaxAttempts),
				)
				return finish(OutcomeStalled)
			}
			issue(true)

		case <-refresh:
			issue(false)

		case res := <-results:
			if res.seq == tickSeq {
				tickPending = false
			}
			if res.seq <= applied {
				result.Stale++
				logger.Debug("discarding stale fetch", logging.Int64("seq", int64(res.seq)), logging.Int64("applied_seq", int64(applied)))
				continue
			}
			obs := Observation{SubmissionID: id, Seq: res.seq, At: time.Now()}
			if res.err != nil {
				if errors.Is(res.err, context.Canceled) && ctx.Err() != nil {
					return finish(OutcomeCancelled)
				}
				obs.Err = res.err
				result.LastErr = res.err
				logger.Warn("status fetch failed; next tick will retry",
					logging.String(logging.FieldEventType, "status_fetch_failed"),
					logging.Error(res.err),
				)
				if observe != nil {
					observe(obs)
				}
				continue
			}

			if result.Last != nil && !submission.ReachableAutomatically(result.Last.Status, res.sub.Status) {
				logger.Info("status moved outside the automatic path",
					logging.String(logging.FieldEventType, "status_jump"),
					logging.String("from", string(result.Last.Status)),
					logging.String("to", string(res.sub.Status)),
				)
			}
			applied = res.seq
			result.Applied++
			result.LastErr = nil
			sub := res.sub
			result.Last = &sub
			obs.Submission = sub
			w.record(ctx, logger, sub, res.seq)
			if observe != nil {
				observe(obs)
			}

			switch {
			case sub.Status.IsTerminal():
				return finish(OutcomeTerminal)
			case sub.Status.IsBlocking() && w.opts.StopOnBlocking:
				return finish(OutcomeBlocked)
			}
		}
	}
}

func (w *Watcher) record(ctx context.Context, logger *slog.Logger, sub submission.Submission, seq uint64) {
	if w.recorder == nil {
		return
	}
	changed, err := w.recorder.PutSubmission(ctx, sub, seq)
	if err != nil {
		logging.WarnWithContext(logger, "cache write failed; history incomplete", "cache_write_failed",
			"check state_dir permissions", logging.Error(err))
		return
	}
	if changed {
		logger.Info("status changed", logging.String("status", string(sub.Status)))
	}
}

// String renders a one-line description of r.
func (r Result) String() string {
	status := "-"
	if r.Last != nil {
		status = string(r.Last.Status)
	}
	return fmt.Sprintf("submission %d %s at %s after %d fetches", r.SubmissionID, r.Outcome, status, r.Issued)
}
