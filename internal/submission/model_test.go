package submission

import "testing"

func TestManualReviewMarkerIsAdvisory(t *testing.T) {
	sub := Submission{
		ID:     9,
		Status: StatusAnswersReady,
		Meta:   []byte(`{"manual_review":{"required":true,"reasons":["LOW_CONFIDENCE",7],"updated_at":"2026-03-01T10:00:00Z"},"ai_result":{"flags":{"review_candidate":true}},"grading":{"invalid_reason":" blank sheet "}}`),
	}
	mr := sub.ManualReview()
	if !mr.Required || len(mr.Reasons) != 2 || mr.Reasons[1] != "7" || mr.UpdatedAt == "" {
		t.Fatalf("unexpected manual review %+v", mr)
	}
	if !NeedsManualReview(sub) {
		t.Fatal("answers_ready with required marker needs review")
	}
	if !sub.ReviewCandidate() {
		t.Fatal("expected review candidate flag")
	}
	if sub.InvalidReason() != "blank sheet" {
		t.Fatalf("invalid reason = %q", sub.InvalidReason())
	}

	sub.Status = StatusGrading
	if NeedsManualReview(sub) {
		t.Fatal("marker outside answers_ready must not require review")
	}
}

func TestMetaHelpersTolerateMissingMeta(t *testing.T) {
	for _, meta := range []string{"", "null", "[]", `{"manual_review":"yes"}`} {
		sub := Submission{Status: StatusAnswersReady, Meta: []byte(meta)}
		if sub.ManualReview().Required || sub.ReviewCandidate() || sub.InvalidReason() != "" {
			t.Fatalf("meta %q should yield empty markers", meta)
		}
	}
}

func TestDecodeListShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"array", `[{"id":1},{"id":2}]`, 2},
		{"results", `{"count":1,"results":[{"id":3}]}`, 1},
		{"items", `{"items":[{"id":4},{"id":5},{"id":6}]}`, 3},
		{"empty object", `{}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := DecodeList([]byte(tt.body))
			if err != nil {
				t.Fatalf("DecodeList: %v", err)
			}
			if len(list) != tt.want {
				t.Fatalf("got %d submissions, want %d", len(list), tt.want)
			}
		})
	}
}

func TestTally(t *testing.T) {
	list := []Submission{
		{Status: StatusDone},
		{Status: StatusFailed},
		{Status: StatusNeedsIdentification},
		{Status: StatusAnswersReady, Meta: []byte(`{"manual_review":{"required":true}}`)},
		{Status: StatusExtracting},
	}
	got := Tally(list)
	want := Counts{Total: 5, Processing: 2, Blocked: 1, ManualReview: 1, Done: 1, Failed: 1}
	if got != want {
		t.Fatalf("Tally = %+v, want %+v", got, want)
	}
}
