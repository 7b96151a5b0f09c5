package reprocess_test

import (
	"context"
	"errors"
	"testing"

	"scoredesk/internal/logging"
	"scoredesk/internal/remote"
	"scoredesk/internal/reprocess"
	"scoredesk/internal/statussync"
	"scoredesk/internal/submission"
	"scoredesk/internal/testsupport"
)

type serviceStub struct {
	statuses map[int64]submission.Status
	retryErr error
	retried  []int64
}

func (s *serviceStub) Get(_ context.Context, id int64) (submission.Submission, error) {
	status, ok := s.statuses[id]
	if !ok {
		return submission.Submission{}, &remote.APIError{Status: 404, Code: remote.CodeNotFound}
	}
	return submission.Submission{ID: id, Status: status}, nil
}

func (s *serviceStub) RequestRetry(_ context.Context, id int64) error {
	s.retried = append(s.retried, id)
	return s.retryErr
}

func TestRetrySubmissionPrecondition(t *testing.T) {
	cases := []struct {
		status  submission.Status
		allowed bool
	}{
		{submission.StatusFailed, true},
		{submission.StatusNeedsIdentification, true},
		{submission.StatusSubmitted, false},
		{submission.StatusGrading, false},
		{submission.StatusAnswersReady, false},
		{submission.StatusDone, false},
		{submission.StatusLegacyPending, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			stub := &serviceStub{}
			ctrl := reprocess.NewController(stub, logging.NewNop())
			err := ctrl.RetrySubmission(context.Background(), submission.Submission{ID: 1, Status: tc.status})
			if tc.allowed {
				if err != nil {
					t.Fatalf("expected retry allowed, got %v", err)
				}
				if len(stub.retried) != 1 {
					t.Fatalf("expected one retry request, got %d", len(stub.retried))
				}
				return
			}
			if !errors.Is(err, reprocess.ErrNotRetryable) {
				t.Fatalf("expected ErrNotRetryable, got %v", err)
			}
			if len(stub.retried) != 0 {
				t.Fatal("no request may be sent for a non-retryable status")
			}
		})
	}
}

func TestRetrySurfacesServerFailure(t *testing.T) {
	stub := &serviceStub{
		statuses: map[int64]submission.Status{5: submission.StatusFailed},
		retryErr: &remote.APIError{Status: 503, Code: remote.CodeUnavailable},
	}
	ctrl := reprocess.NewController(stub, logging.NewNop())
	sub, err := ctrl.Retry(context.Background(), 5)
	if err == nil || !remote.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if sub.Status != submission.StatusFailed {
		t.Fatalf("local status must be left untouched, got %s", sub.Status)
	}

	stub.retryErr = nil
	if _, err := ctrl.Retry(context.Background(), 5); err != nil {
		t.Fatalf("second retry should succeed: %v", err)
	}
}

func TestRetryManyReportsPerItemOutcomes(t *testing.T) {
	stub := &serviceStub{statuses: map[int64]submission.Status{
		1: submission.StatusFailed,
		2: submission.StatusDone,
		4: submission.StatusNeedsIdentification,
	}}
	ctrl := reprocess.NewController(stub, logging.NewNop())
	result, err := ctrl.RetryMany(context.Background(), []int64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("RetryMany: %v", err)
	}
	want := []reprocess.Outcome{
		reprocess.OutcomeRetried,
		reprocess.OutcomeNotRetryable,
		reprocess.OutcomeNotFound,
		reprocess.OutcomeRetried,
	}
	if len(result.Items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(result.Items))
	}
	for i, item := range result.Items {
		if item.Outcome != want[i] {
			t.Fatalf("item %d: expected %s, got %s", item.ID, want[i], item.Outcome)
		}
	}
	if result.RetriedCount != 2 {
		t.Fatalf("expected 2 retried, got %d", result.RetriedCount)
	}
	if result.Items[1].PriorStatus != submission.StatusDone {
		t.Fatalf("expected prior status recorded, got %q", result.Items[1].PriorStatus)
	}
}

func TestRetryAndWatchResumesSynchronization(t *testing.T) {
	backend := testsupport.NewBackend(t)
	backend.Script(42, submission.StatusNeedsIdentification)
	backend.ScriptAfterRetry(42, submission.StatusDispatched, submission.StatusGrading, submission.StatusDone)

	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(backend.URL()))
	api := submission.NewAPI(remote.NewFromConfig(cfg, logging.NewNop()))
	watcher := statussync.NewWatcher(api, nil, statussync.OptionsFromConfig(cfg), logging.NewNop())
	ctrl := reprocess.NewController(api, logging.NewNop())

	result, err := ctrl.RetryAndWatch(context.Background(), 42, watcher, nil)
	if err != nil {
		t.Fatalf("RetryAndWatch: %v", err)
	}
	if result.Outcome != statussync.OutcomeTerminal || result.Last.Status != submission.StatusDone {
		t.Fatalf("expected done, got %s", result)
	}
	if backend.Retries(42) != 1 {
		t.Fatalf("expected one retry request, got %d", backend.Retries(42))
	}
}
