package statussync_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"scoredesk/internal/logging"
	"scoredesk/internal/remote"
	"scoredesk/internal/statussync"
	"scoredesk/internal/submission"
	"scoredesk/internal/testsupport"
)

type reply struct {
	status submission.Status
	err    error
	delay  time.Duration
}

// scriptedFetcher answers successive Get calls from a list, repeating the
// last entry once exhausted.
type scriptedFetcher struct {
	mu      sync.Mutex
	replies []reply
	calls   int
}

func (f *scriptedFetcher) Get(ctx context.Context, id int64) (submission.Submission, error) {
	f.mu.Lock()
	r := f.replies[min(f.calls, len(f.replies)-1)]
	f.calls++
	f.mu.Unlock()

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return submission.Submission{}, ctx.Err()
		}
	}
	if r.err != nil {
		return submission.Submission{}, r.err
	}
	return submission.Submission{ID: id, Status: r.status}, nil
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func fastOptions() statussync.Options {
	return statussync.Options{
		Interval:       5 * time.Millisecond,
		RequestTimeout: time.Second,
		MaxAttempts:    100,
		MaxDuration:    5 * time.Second,
		StopOnBlocking: true,
	}
}

func statusesOf(observations []statussync.Observation) []submission.Status {
	var out []submission.Status
	for _, obs := range observations {
		if obs.Err == nil {
			out = append(out, obs.Submission.Status)
		}
	}
	return out
}

func TestWatchStopsOnTerminalStatus(t *testing.T) {
	fetcher := &scriptedFetcher{replies: []reply{
		{status: submission.StatusSubmitted},
		{status: submission.StatusDispatched},
		{status: submission.StatusGrading},
		{status: submission.StatusDone},
	}}
	w := statussync.NewWatcher(fetcher, nil, fastOptions(), logging.NewNop())

	var seen []statussync.Observation
	result := w.Watch(context.Background(), 7, func(obs statussync.Observation) { seen = append(seen, obs) })

	if result.Outcome != statussync.OutcomeTerminal {
		t.Fatalf("expected terminal outcome, got %s", result.Outcome)
	}
	if result.Last == nil || result.Last.Status != submission.StatusDone {
		t.Fatalf("expected last status done, got %+v", result.Last)
	}
	got := statusesOf(seen)
	if len(got) != 4 || got[3] != submission.StatusDone {
		t.Fatalf("unexpected observed statuses %v", got)
	}

	calls := fetcher.Calls()
	time.Sleep(30 * time.Millisecond)
	if fetcher.Calls() != calls {
		t.Fatalf("fetches continued after terminal status: %d -> %d", calls, fetcher.Calls())
	}
}

func TestWatchBlockingStatus(t *testing.T) {
	cases := []struct {
		name           string
		stopOnBlocking bool
		want           statussync.Outcome
		wantLast       submission.Status
	}{
		{"stops when configured", true, statussync.OutcomeBlocked, submission.StatusNeedsIdentification},
		{"keeps polling otherwise", false, statussync.OutcomeTerminal, submission.StatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fetcher := &scriptedFetcher{replies: []reply{
				{status: submission.StatusExtracting},
				{status: submission.StatusNeedsIdentification},
				{status: submission.StatusNeedsIdentification},
				{status: submission.StatusFailed},
			}}
			opts := fastOptions()
			opts.StopOnBlocking = tc.stopOnBlocking
			result := statussync.NewWatcher(fetcher, nil, opts, logging.NewNop()).Watch(context.Background(), 1, nil)
			if result.Outcome != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, result.Outcome)
			}
			if result.Last.Status != tc.wantLast {
				t.Fatalf("expected last %s, got %s", tc.wantLast, result.Last.Status)
			}
		})
	}
}

func TestWatchReportsFetchErrorsAndContinues(t *testing.T) {
	unavailable := &remote.APIError{Status: 503, Code: remote.CodeUnavailable}
	fetcher := &scriptedFetcher{replies: []reply{
		{status: submission.StatusGrading},
		{err: unavailable},
		{status: submission.StatusDone},
	}}
	var errs []error
	result := statussync.NewWatcher(fetcher, nil, fastOptions(), logging.NewNop()).
		Watch(context.Background(), 3, func(obs statussync.Observation) {
			if obs.Err != nil {
				errs = append(errs, obs.Err)
			}
		})

	if result.Outcome != statussync.OutcomeTerminal {
		t.Fatalf("expected terminal after transient error, got %s", result.Outcome)
	}
	if len(errs) != 1 || !remote.IsTransient(errs[0]) {
		t.Fatalf("expected one transient error observation, got %v", errs)
	}
	if result.LastErr != nil {
		t.Fatalf("expected LastErr cleared by later success, got %v", result.LastErr)
	}
}

func TestWatchDiscardsStaleCompletions(t *testing.T) {
	// The first tick fetch is slow and reports an older status. A refresh
	// issued meanwhile completes first with a newer one.
	gate := make(chan struct{})
	fetcher := &orderedFetcher{gate: gate}
	opts := fastOptions()
	opts.Interval = time.Hour
	opts.StopOnBlocking = false

	reg := statussync.NewRegistry(statussync.NewWatcher(fetcher, nil, opts, logging.NewNop()))
	var (
		mu   sync.Mutex
		seen []statussync.Observation
	)
	handle, err := reg.Start(context.Background(), 9, func(obs statussync.Observation) {
		mu.Lock()
		seen = append(seen, obs)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	fetcher.waitCalls(t, 1)
	if err := reg.Refresh(9); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	fetcher.waitCalls(t, 2)
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	})
	close(gate)

	time.Sleep(20 * time.Millisecond)
	if err := reg.Stop(9); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	result := handle.Wait()

	mu.Lock()
	defer mu.Unlock()
	got := statusesOf(seen)
	if len(got) != 1 || got[0] != submission.StatusGrading {
		t.Fatalf("expected only the fresher grading observation, got %v", got)
	}
	if result.Stale != 1 {
		t.Fatalf("expected one stale completion, got %d", result.Stale)
	}
	if result.Last.Status != submission.StatusGrading {
		t.Fatalf("stale completion overwrote state: %s", result.Last.Status)
	}
	if result.Outcome != statussync.OutcomeCancelled {
		t.Fatalf("expected cancelled outcome, got %s", result.Outcome)
	}
}

// orderedFetcher holds its first call until gate closes and answers later
// calls immediately.
type orderedFetcher struct {
	gate  chan struct{}
	mu    sync.Mutex
	calls int
}

func (f *orderedFetcher) Get(ctx context.Context, id int64) (submission.Submission, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	if call == 1 {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return submission.Submission{}, ctx.Err()
		}
		return submission.Submission{ID: id, Status: submission.StatusExtracting}, nil
	}
	return submission.Submission{ID: id, Status: submission.StatusGrading}, nil
}

func (f *orderedFetcher) waitCalls(t *testing.T, n int) {
	t.Helper()
	waitFor(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.calls >= n
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWatchStallsAtAttemptCeiling(t *testing.T) {
	fetcher := &scriptedFetcher{replies: []reply{{status: submission.StatusGrading}}}
	opts := fastOptions()
	opts.MaxAttempts = 3
	result := statussync.NewWatcher(fetcher, nil, opts, logging.NewNop()).Watch(context.Background(), 4, nil)
	if result.Outcome != statussync.OutcomeStalled {
		t.Fatalf("expected stalled, got %s", result.Outcome)
	}
	if fetcher.Calls() != 3 || result.Issued != 3 {
		t.Fatalf("expected exactly 3 fetches, got calls=%d issued=%d", fetcher.Calls(), result.Issued)
	}
}

func TestWatchStallsAtDurationCeiling(t *testing.T) {
	fetcher := &scriptedFetcher{replies: []reply{{status: submission.StatusDispatched}}}
	opts := fastOptions()
	opts.MaxAttempts = 0
	opts.MaxDuration = 40 * time.Millisecond
	result := statussync.NewWatcher(fetcher, nil, opts, logging.NewNop()).Watch(context.Background(), 4, nil)
	if result.Outcome != statussync.OutcomeStalled {
		t.Fatalf("expected stalled, got %s", result.Outcome)
	}
}

func TestWatchCancellationStopsFetching(t *testing.T) {
	fetcher := &scriptedFetcher{replies: []reply{{status: submission.StatusGrading}}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan statussync.Result, 1)
	go func() {
		done <- statussync.NewWatcher(fetcher, nil, fastOptions(), logging.NewNop()).Watch(ctx, 5, nil)
	}()

	waitFor(t, func() bool { return fetcher.Calls() >= 2 })
	cancel()
	result := <-done
	if result.Outcome != statussync.OutcomeCancelled {
		t.Fatalf("expected cancelled, got %s", result.Outcome)
	}
	calls := fetcher.Calls()
	time.Sleep(30 * time.Millisecond)
	if fetcher.Calls() != calls {
		t.Fatalf("fetches continued after cancel: %d -> %d", calls, fetcher.Calls())
	}
}

func TestWatchSkipsTickWhileFetchInFlight(t *testing.T) {
	fetcher := &scriptedFetcher{replies: []reply{
		{status: submission.StatusGrading, delay: 50 * time.Millisecond},
		{status: submission.StatusDone},
	}}
	result := statussync.NewWatcher(fetcher, nil, fastOptions(), logging.NewNop()).Watch(context.Background(), 6, nil)
	if result.Outcome != statussync.OutcomeTerminal {
		t.Fatalf("expected terminal, got %s", result.Outcome)
	}
	if result.Issued != 2 {
		t.Fatalf("expected ticks to be skipped during the slow fetch, issued=%d", result.Issued)
	}
}

func TestRegistryRejectsDuplicateWatch(t *testing.T) {
	fetcher := &scriptedFetcher{replies: []reply{{status: submission.StatusGrading}}}
	reg := statussync.NewRegistry(statussync.NewWatcher(fetcher, nil, fastOptions(), logging.NewNop()))
	t.Cleanup(reg.StopAll)

	if _, err := reg.Start(context.Background(), 11, nil); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if _, err := reg.Start(context.Background(), 11, nil); !errors.Is(err, statussync.ErrAlreadyWatching) {
		t.Fatalf("expected ErrAlreadyWatching, got %v", err)
	}
	if got := reg.Active(); len(got) != 1 || got[0] != 11 {
		t.Fatalf("unexpected active ids %v", got)
	}
	if err := reg.Stop(11); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(reg.Active()) != 0 {
		t.Fatalf("expected no active watches after Stop, got %v", reg.Active())
	}
	if err := reg.Refresh(11); !errors.Is(err, statussync.ErrNotWatching) {
		t.Fatalf("expected ErrNotWatching, got %v", err)
	}
}

func TestWatchLockExcludesSecondHolder(t *testing.T) {
	dir := t.TempDir()
	first, err := statussync.AcquireLock(dir, 42)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if _, err := statussync.AcquireLock(dir, 42); !errors.Is(err, statussync.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	other, err := statussync.AcquireLock(dir, 43)
	if err != nil {
		t.Fatalf("lock for a different id should succeed: %v", err)
	}
	_ = other.Release()
	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	again, err := statussync.AcquireLock(dir, 42)
	if err != nil {
		t.Fatalf("expected lock available after release: %v", err)
	}
	_ = again.Release()
}

func TestWatchAgainstBackendRecordsHistory(t *testing.T) {
	backend := testsupport.NewBackend(t)
	backend.Script(42,
		submission.StatusSubmitted,
		submission.StatusDispatched,
		submission.StatusExtracting,
		submission.StatusNeedsIdentification,
	)
	backend.ScriptAfterRetry(42, submission.StatusGrading, submission.StatusDone)

	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(backend.URL()))
	store := testsupport.MustOpenCache(t, cfg)
	api := submission.NewAPI(remote.NewFromConfig(cfg, logging.NewNop()))
	watcher := statussync.NewWatcher(api, store, statussync.OptionsFromConfig(cfg), logging.NewNop())

	first := watcher.Watch(context.Background(), 42, nil)
	if first.Outcome != statussync.OutcomeBlocked {
		t.Fatalf("expected blocked at needs_identification, got %s", first.Outcome)
	}
	fetchesAtBlock := backend.Fetches(42)
	time.Sleep(30 * time.Millisecond)
	if backend.Fetches(42) != fetchesAtBlock {
		t.Fatal("polling continued after the blocking status")
	}

	if err := api.RequestRetry(context.Background(), 42); err != nil {
		t.Fatalf("RequestRetry: %v", err)
	}
	second := watcher.Watch(context.Background(), 42, nil)
	if second.Outcome != statussync.OutcomeTerminal || second.Last.Status != submission.StatusDone {
		t.Fatalf("expected done after retry, got %s", second)
	}
	fetchesAtDone := backend.Fetches(42)
	time.Sleep(30 * time.Millisecond)
	if backend.Fetches(42) != fetchesAtDone {
		t.Fatal("polling continued after done")
	}

	history, err := store.History(context.Background(), 42)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	want := []submission.Status{
		submission.StatusSubmitted,
		submission.StatusDispatched,
		submission.StatusExtracting,
		submission.StatusNeedsIdentification,
		submission.StatusGrading,
		submission.StatusDone,
	}
	if len(history) != len(want) {
		t.Fatalf("expected %d history rows, got %d: %+v", len(want), len(history), history)
	}
	for i, tr := range history {
		if tr.To != want[i] {
			t.Fatalf("history[%d]: expected %s, got %s", i, want[i], tr.To)
		}
	}
}
