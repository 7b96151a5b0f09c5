package submission

import (
	"encoding/json"
	"testing"

	"scoredesk/internal/presentation"
)

func TestEveryStatusHasPresentation(t *testing.T) {
	for _, status := range AllStatuses() {
		p := status.Presentation()
		if p.Label == "" || p.Tone == "" {
			t.Fatalf("status %q has incomplete presentation %+v", status, p)
		}
	}
}

func TestNeedsIdentificationIsVisuallyDistinct(t *testing.T) {
	blocked := StatusNeedsIdentification.Presentation()
	if blocked.Label != "Needs identification" || blocked.Tone != presentation.ToneWarning {
		t.Fatalf("unexpected presentation %+v", blocked)
	}
	for _, status := range []Status{StatusDispatched, StatusExtracting, StatusGrading} {
		if status.Presentation().Tone == blocked.Tone {
			t.Fatalf("%s shares the blocking tone", status)
		}
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in    string
		want  Status
		known bool
	}{
		{"done", StatusDone, true},
		{" NEEDS_IDENTIFICATION ", StatusNeedsIdentification, true},
		{"pending", StatusLegacyPending, false},
		{"processing", StatusLegacyProcessing, false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, known := ParseStatus(tt.in)
		if got != tt.want || known != tt.known {
			t.Fatalf("ParseStatus(%q) = %q,%v want %q,%v", tt.in, got, known, tt.want, tt.known)
		}
	}
}

func TestLegacyStatusKeepsPolling(t *testing.T) {
	for _, status := range []Status{StatusLegacyPending, StatusLegacyProcessing} {
		if status.IsTerminal() || status.IsBlocking() || !status.IsProcessing() {
			t.Fatalf("%s should be treated as active processing", status)
		}
		if status.Presentation().Tone != presentation.ToneNeutral {
			t.Fatalf("%s should render neutral", status)
		}
	}
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status    Status
		terminal  bool
		blocking  bool
		retryable bool
	}{
		{StatusSubmitted, false, false, false},
		{StatusDispatched, false, false, false},
		{StatusExtracting, false, false, false},
		{StatusNeedsIdentification, false, true, true},
		{StatusAnswersReady, false, false, false},
		{StatusGrading, false, false, false},
		{StatusDone, true, false, false},
		{StatusFailed, true, false, true},
	}
	for _, tt := range tests {
		if tt.status.IsTerminal() != tt.terminal {
			t.Fatalf("%s terminal = %v", tt.status, tt.status.IsTerminal())
		}
		if tt.status.IsBlocking() != tt.blocking {
			t.Fatalf("%s blocking = %v", tt.status, tt.status.IsBlocking())
		}
		if tt.status.IsRetryable() != tt.retryable {
			t.Fatalf("%s retryable = %v", tt.status, tt.status.IsRetryable())
		}
	}
}

func TestTransitions(t *testing.T) {
	if !CanTransition(StatusFailed, StatusDispatched) {
		t.Fatal("retry from failed must be allowed")
	}
	if CanTransition(StatusDone, StatusDispatched) {
		t.Fatal("done cannot be retried")
	}
	if !ReachableAutomatically(StatusSubmitted, StatusNeedsIdentification) {
		t.Fatal("submitted reaches needs_identification on its own")
	}
	if ReachableAutomatically(StatusNeedsIdentification, StatusGrading) {
		t.Fatal("leaving needs_identification requires an operator")
	}
	if !ReachableAutomatically(StatusLegacyPending, StatusDone) {
		t.Fatal("unknown statuses are treated as reachable")
	}
}

func TestStatusUnmarshalNormalizes(t *testing.T) {
	var sub Submission
	if err := json.Unmarshal([]byte(`{"id":1,"status":"ANSWERS_READY"}`), &sub); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sub.Status != StatusAnswersReady {
		t.Fatalf("status = %q", sub.Status)
	}
}
