package review

import (
	"encoding/json"
	"strings"
)

// Answer is one extracted or corrected answer. Either QuestionID or
// QuestionNo identifies the question; some backends only return numbers.
type Answer struct {
	QuestionID *int64          `json:"question_id,omitempty"`
	QuestionNo *int64          `json:"question_no,omitempty"`
	Answer     string          `json:"answer"`
	Meta       json.RawMessage `json:"meta,omitempty"`
}

// Key returns the identifier used to match edits against this answer.
func (a Answer) Key() Key {
	var k Key
	if a.QuestionID != nil {
		k.QuestionID = *a.QuestionID
	}
	if a.QuestionNo != nil {
		k.QuestionNo = *a.QuestionNo
	}
	return k
}

// Key addresses an answer by question id, or by number when no id is known.
type Key struct {
	QuestionID int64
	QuestionNo int64
}

func (k Key) matches(a Answer) bool {
	if k.QuestionID > 0 {
		return a.QuestionID != nil && *a.QuestionID == k.QuestionID
	}
	return k.QuestionNo > 0 && a.QuestionID == nil && a.QuestionNo != nil && *a.QuestionNo == k.QuestionNo
}

// Review is the server's view of a submission's extracted data.
type Review struct {
	Identifier *string         `json:"identifier,omitempty"`
	Answers    []Answer        `json:"answers"`
	Meta       json.RawMessage `json:"meta,omitempty"`
}

// IdentifierText returns the identifier or "" when absent.
func (r Review) IdentifierText() string {
	if r.Identifier == nil {
		return ""
	}
	return *r.Identifier
}

func (r Review) clone() Review {
	out := Review{Meta: r.Meta, Answers: make([]Answer, len(r.Answers))}
	if r.Identifier != nil {
		id := *r.Identifier
		out.Identifier = &id
	}
	copy(out.Answers, r.Answers)
	return out
}

// SaveRequest is the body sent to commit a manual review. It carries
// extracted data only; score and pass state are recomputed by the server
// during regrading and cannot be expressed here.
type SaveRequest struct {
	Identifier *string       `json:"identifier" validate:"omitempty,max=64"`
	Answers    []AnswerInput `json:"answers" validate:"dive"`
	Note       string        `json:"note,omitempty" validate:"max=500"`
}

// AnswerInput is one corrected answer in a SaveRequest.
type AnswerInput struct {
	QuestionID *int64 `json:"question_id,omitempty" validate:"omitempty,gt=0"`
	QuestionNo *int64 `json:"question_no,omitempty" validate:"omitempty,gt=0"`
	Answer     string `json:"answer" validate:"max=200"`
}

// NewSaveRequest builds a request from a working review. A blank identifier
// is sent as null.
func NewSaveRequest(r Review, note string) SaveRequest {
	req := SaveRequest{Note: strings.TrimSpace(note), Answers: make([]AnswerInput, 0, len(r.Answers))}
	if id := strings.TrimSpace(r.IdentifierText()); id != "" {
		req.Identifier = &id
	}
	for _, a := range r.Answers {
		req.Answers = append(req.Answers, AnswerInput{
			QuestionID: a.QuestionID,
			QuestionNo: a.QuestionNo,
			Answer:     strings.TrimSpace(a.Answer),
		})
	}
	return req
}

// SaveResult is whatever the server echoes after a commit. Fields are zero
// when the response omits them.
type SaveResult struct {
	SubmissionID int64  `json:"submission_id"`
	Status       string `json:"status"`
	Detail       string `json:"detail"`
}
