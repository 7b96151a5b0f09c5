package submission

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TargetType names what a submission is graded against.
type TargetType string

const (
	TargetExam     TargetType = "exam"
	TargetHomework TargetType = "homework"
)

// Source is the provenance tag of a submission. It is informational only.
type Source string

const (
	SourceOMRScan Source = "omr_scan"
	SourceManual  Source = "manual"
	SourceOnline  Source = "online"
	SourceAIMatch Source = "ai_match"
)

// Submission is one uploaded artifact and its processing state. All fields
// are server-owned; the client only requests actions that change them.
type Submission struct {
	ID           int64           `json:"id"`
	TargetType   TargetType      `json:"target_type"`
	TargetID     int64           `json:"target_id"`
	EnrollmentID *int64          `json:"enrollment_id"`
	Status       Status          `json:"status"`
	Source       Source          `json:"source,omitempty"`
	Meta         json.RawMessage `json:"meta,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ManualReview is the advisory review marker carried in meta.manual_review.
type ManualReview struct {
	Required  bool     `json:"required"`
	Reasons   []string `json:"reasons,omitempty"`
	UpdatedAt string   `json:"updated_at,omitempty"`
}

func (s Submission) meta() map[string]any {
	trimmed := bytes.TrimSpace(s.Meta)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var decoded map[string]any
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return nil
	}
	return decoded
}

// ManualReview extracts meta.manual_review. Missing or malformed data yields
// a marker with Required false.
func (s Submission) ManualReview() ManualReview {
	raw, _ := s.meta()["manual_review"].(map[string]any)
	if raw == nil {
		return ManualReview{}
	}
	out := ManualReview{Required: truthy(raw["required"])}
	if reasons, ok := raw["reasons"].([]any); ok {
		for _, reason := range reasons {
			if text := strings.TrimSpace(fmt.Sprint(reason)); text != "" {
				out.Reasons = append(out.Reasons, text)
			}
		}
	}
	if updated, ok := raw["updated_at"]; ok && updated != nil {
		out.UpdatedAt = fmt.Sprint(updated)
	}
	return out
}

// ReviewCandidate reports meta.ai_result.flags.review_candidate.
func (s Submission) ReviewCandidate() bool {
	aiResult, _ := s.meta()["ai_result"].(map[string]any)
	flags, _ := aiResult["flags"].(map[string]any)
	return truthy(flags["review_candidate"])
}

// InvalidReason returns meta.grading.invalid_reason when present.
func (s Submission) InvalidReason() string {
	grading, _ := s.meta()["grading"].(map[string]any)
	if reason, ok := grading["invalid_reason"].(string); ok {
		return strings.TrimSpace(reason)
	}
	return ""
}

// NeedsManualReview reports whether an operator should confirm the extracted
// answers before grading. The marker is advisory and never a status.
func NeedsManualReview(s Submission) bool {
	return s.Status == StatusAnswersReady && s.ManualReview().Required
}

func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "0", "false", "no":
			return false
		}
		return true
	default:
		return false
	}
}

// DecodeList accepts a plain array or a paginated envelope keyed by results
// or items.
func DecodeList(data []byte) ([]Submission, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var list []Submission
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode submission list: %w", err)
		}
		return list, nil
	}
	var envelope struct {
		Results []Submission `json:"results"`
		Items   []Submission `json:"items"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode submission list: %w", err)
	}
	if envelope.Results != nil {
		return envelope.Results, nil
	}
	return envelope.Items, nil
}

// Counts summarizes a list of submissions by processing phase.
type Counts struct {
	Total        int `json:"total"`
	Processing   int `json:"processing"`
	Blocked      int `json:"blocked"`
	ManualReview int `json:"manual_review"`
	Done         int `json:"done"`
	Failed       int `json:"failed"`
}

// Tally counts submissions per phase. ManualReview overlaps the other
// buckets since the marker is advisory.
func Tally(list []Submission) Counts {
	counts := Counts{Total: len(list)}
	for _, s := range list {
		if NeedsManualReview(s) {
			counts.ManualReview++
		}
		switch {
		case s.Status == StatusDone:
			counts.Done++
		case s.Status == StatusFailed:
			counts.Failed++
		case s.Status.IsBlocking():
			counts.Blocked++
		default:
			counts.Processing++
		}
	}
	return counts
}
