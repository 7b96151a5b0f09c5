package results

import (
	"encoding/json"

	"scoredesk/internal/scoring"
)

// HomeworkScore is one stored homework score snapshot. Passed and
// ClinicRequired are computed by the server and only ever read here.
type HomeworkScore struct {
	ID              int64              `json:"id"`
	EnrollmentID    int64              `json:"enrollment_id"`
	SessionID       int64              `json:"session"`
	Score           *float64           `json:"score"`
	MaxScore        *float64           `json:"max_score"`
	TeacherApproved bool               `json:"teacher_approved"`
	Passed          bool               `json:"passed"`
	ClinicRequired  bool               `json:"clinic_required"`
	IsLocked        bool               `json:"is_locked"`
	LockReason      *string            `json:"lock_reason"`
	UpdatedByUserID *int64             `json:"updated_by_user_id,omitempty"`
	Meta            *scoring.BlockMeta `json:"meta"`
	CreatedAt       string             `json:"created_at"`
	UpdatedAt       string             `json:"updated_at"`
}

// UnmarshalJSON accepts the alternate key names some deployments use for
// the enrollment and session references.
func (h *HomeworkScore) UnmarshalJSON(data []byte) error {
	type plain HomeworkScore
	var aux struct {
		plain
		Enrollment *int64 `json:"enrollment"`
		SessionAlt *int64 `json:"session_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*h = HomeworkScore(aux.plain)
	if h.EnrollmentID == 0 && aux.Enrollment != nil {
		h.EnrollmentID = *aux.Enrollment
	}
	if h.SessionID == 0 && aux.SessionAlt != nil {
		h.SessionID = *aux.SessionAlt
	}
	return nil
}

// Block projects the record onto the score block shape used by derivations.
func (h HomeworkScore) Block() scoring.Block {
	passed := h.Passed
	return scoring.Block{
		Score:          h.Score,
		MaxScore:       h.MaxScore,
		Passed:         &passed,
		ClinicRequired: h.ClinicRequired,
		IsLocked:       h.IsLocked,
		LockReason:     h.LockReason,
		Meta:           h.Meta,
	}
}

// HomeworkPatch edits an existing homework score. Nil fields are left
// unchanged.
type HomeworkPatch struct {
	Score           *float64 `json:"score,omitempty"`
	MaxScore        *float64 `json:"max_score,omitempty"`
	TeacherApproved *bool    `json:"teacher_approved,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p HomeworkPatch) Empty() bool {
	return p.Score == nil && p.MaxScore == nil && p.TeacherApproved == nil
}

// QuickPatch upserts a homework score by session and enrollment. It is the
// only way the client may cause a score record to be created. Score and
// MetaStatus are always sent; null clears them.
type QuickPatch struct {
	SessionID    int64               `json:"session_id"`
	EnrollmentID int64               `json:"enrollment_id"`
	HomeworkID   *int64              `json:"homework_id,omitempty"`
	Score        *float64            `json:"score"`
	MaxScore     *float64            `json:"max_score"`
	MetaStatus   *scoring.MetaStatus `json:"meta_status"`
}

// ExamItemScore is the server's answer to an exam item patch.
type ExamItemScore struct {
	QuestionID int64    `json:"question_id"`
	Score      *float64 `json:"score"`
	MaxScore   *float64 `json:"max_score"`
}

// Enrollment is a student enrolled in a session.
type Enrollment struct {
	ID           int64  `json:"id"`
	EnrollmentID int64  `json:"enrollment_id"`
	StudentName  string `json:"student_name"`
	CreatedAt    string `json:"created_at,omitempty"`
}
