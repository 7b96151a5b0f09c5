// Package video holds the processing status vocabulary of session videos.
// Transcoding and access policy live on the server.
package video

import (
	"strings"

	"scoredesk/internal/presentation"
)

// Status is the server-reported processing state of an uploaded video.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusUploaded   Status = "UPLOADED"
	StatusProcessing Status = "PROCESSING"
	StatusReady      Status = "READY"
	StatusFailed     Status = "FAILED"
)

var allStatuses = [...]Status{
	StatusPending,
	StatusUploaded,
	StatusProcessing,
	StatusReady,
	StatusFailed,
}

var statusPresentations = [...]presentation.Presentation{
	{Label: "Pending", Tone: presentation.ToneNeutral},
	{Label: "Uploaded", Tone: presentation.ToneInfo},
	{Label: "Processing", Tone: presentation.ToneProgress},
	{Label: "Ready", Tone: presentation.ToneSuccess},
	{Label: "Failed", Tone: presentation.ToneDanger},
}

var _ = [1]struct{}{}[len(allStatuses)-len(statusPresentations)]

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses[:])
	return out
}

// ParseStatus normalizes value and reports whether it is a known status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToUpper(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return normalized, true
		}
	}
	return normalized, false
}

// Presentation returns the label and tone used to render s.
func (s Status) Presentation() presentation.Presentation {
	for i, status := range allStatuses {
		if status == s {
			return statusPresentations[i]
		}
	}
	return presentation.Fallback(string(s))
}

// IsRetryable reports whether reprocessing may be requested. A video stuck in
// PROCESSING can be retried as well as a failed one.
func (s Status) IsRetryable() bool {
	return s == StatusFailed || s == StatusProcessing
}
