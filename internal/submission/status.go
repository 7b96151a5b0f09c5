package submission

import (
	"encoding/json"
	"slices"
	"strings"

	"scoredesk/internal/presentation"
)

// Status is the processing state of a submission as reported by the server.
type Status string

const (
	StatusSubmitted           Status = "submitted"
	StatusDispatched          Status = "dispatched"
	StatusExtracting          Status = "extracting"
	StatusNeedsIdentification Status = "needs_identification"
	StatusAnswersReady        Status = "answers_ready"
	StatusGrading             Status = "grading"
	StatusDone                Status = "done"
	StatusFailed              Status = "failed"
)

// Legacy values some list endpoints still emit. They are not part of the
// state machine; the client keeps polling through them.
const (
	StatusLegacyPending    Status = "pending"
	StatusLegacyProcessing Status = "processing"
)

var allStatuses = [...]Status{
	StatusSubmitted,
	StatusDispatched,
	StatusExtracting,
	StatusNeedsIdentification,
	StatusAnswersReady,
	StatusGrading,
	StatusDone,
	StatusFailed,
}

// statusPresentations is indexed like allStatuses.
var statusPresentations = [...]presentation.Presentation{
	{Label: "Submitted", Tone: presentation.ToneInfo},
	{Label: "Dispatched", Tone: presentation.ToneProgress},
	{Label: "Extracting", Tone: presentation.ToneProgress},
	{Label: "Needs identification", Tone: presentation.ToneWarning},
	{Label: "Answers ready", Tone: presentation.ToneInfo},
	{Label: "Grading", Tone: presentation.ToneProgress},
	{Label: "Done", Tone: presentation.ToneSuccess},
	{Label: "Failed", Tone: presentation.ToneDanger},
}

// Fails to compile when a status is added without a presentation.
var _ = [1]struct{}{}[len(allStatuses)-len(statusPresentations)]

var statusIndex = func() map[Status]int {
	index := make(map[Status]int, len(allStatuses))
	for i, status := range allStatuses {
		index[status] = i
	}
	return index
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses[:])
	return out
}

// ParseStatus normalizes a wire value. The returned bool reports whether the
// value belongs to the state machine; unknown values are still returned so
// callers can display them.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusIndex[normalized]
	return normalized, ok
}

// Known reports whether s belongs to the state machine.
func (s Status) Known() bool {
	_, ok := statusIndex[s]
	return ok
}

// IsTerminal reports whether synchronization always stops at s.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// IsBlocking reports whether automatic processing waits on an operator.
func (s Status) IsBlocking() bool {
	return s == StatusNeedsIdentification
}

// IsRetryable reports whether the client may request reprocessing from s.
func (s Status) IsRetryable() bool {
	return s == StatusFailed || s == StatusNeedsIdentification
}

// IsProcessing reports whether the server is still working on the submission
// without operator input. Unknown and legacy values count as processing.
func (s Status) IsProcessing() bool {
	return !s.IsTerminal() && !s.IsBlocking() && s != StatusAnswersReady
}

// Presentation returns the label and tone used to render s.
func (s Status) Presentation() presentation.Presentation {
	if i, ok := statusIndex[s]; ok {
		return statusPresentations[i]
	}
	return presentation.Fallback(string(s))
}

func (s Status) String() string { return string(s) }

// automaticTransitions are the moves the processing pipeline makes on its own.
var automaticTransitions = map[Status][]Status{
	StatusSubmitted:    {StatusDispatched, StatusFailed},
	StatusDispatched:   {StatusExtracting, StatusFailed},
	StatusExtracting:   {StatusNeedsIdentification, StatusAnswersReady, StatusFailed},
	StatusAnswersReady: {StatusGrading, StatusFailed},
	StatusGrading:      {StatusDone, StatusFailed},
}

// operatorTransitions follow a retry, an identifier correction or a manual
// review save.
var operatorTransitions = map[Status][]Status{
	StatusNeedsIdentification: {StatusDispatched, StatusExtracting, StatusGrading},
	StatusAnswersReady:        {StatusGrading},
	StatusDone:                {StatusGrading},
	StatusFailed:              {StatusDispatched},
}

// CanTransition reports whether the server may move a submission directly
// from one status to another, either on its own or after an operator action.
func CanTransition(from, to Status) bool {
	return slices.Contains(automaticTransitions[from], to) || slices.Contains(operatorTransitions[from], to)
}

// ReachableAutomatically reports whether to can follow from through the
// pipeline's own transitions. Polling samples the state machine, so
// consecutive observations may skip states; a pair that is not reachable
// this way implies an operator action happened in between. Unknown statuses
// are treated as reachable.
func ReachableAutomatically(from, to Status) bool {
	if from == to || !from.Known() || !to.Known() {
		return true
	}
	seen := map[Status]bool{from: true}
	queue := []Status{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range automaticTransitions[current] {
			if next == to {
				return true
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// UnmarshalJSON normalizes case and surrounding whitespace.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*s = ""
		return nil
	}
	*s, _ = ParseStatus(*raw)
	return nil
}
