package scoring

import "strings"

// MetaStatus is an out-of-band marker on a score block.
type MetaStatus string

const MetaNotSubmitted MetaStatus = "NOT_SUBMITTED"

// BlockMeta carries optional markers set alongside a score.
type BlockMeta struct {
	Status MetaStatus `json:"status,omitempty"`
}

// Block is the server-computed score tuple of one exam or homework entry for
// one student. A nil Score means nothing has been entered yet; a nil Passed
// means the server has not produced a verdict.
type Block struct {
	Score          *float64   `json:"score"`
	MaxScore       *float64   `json:"max_score"`
	Passed         *bool      `json:"passed"`
	ClinicRequired bool       `json:"clinic_required"`
	IsLocked       bool       `json:"is_locked"`
	LockReason     *string    `json:"lock_reason"`
	Meta           *BlockMeta `json:"meta,omitempty"`
}

// MetaStatus returns the normalized meta.status marker, or "".
func (b Block) MetaStatus() MetaStatus {
	if b.Meta == nil {
		return ""
	}
	return MetaStatus(strings.ToUpper(strings.TrimSpace(string(b.Meta.Status))))
}

// LockReasonText returns the lock reason or "".
func (b Block) LockReasonText() string {
	if b.LockReason == nil {
		return ""
	}
	return strings.TrimSpace(*b.LockReason)
}

// ExamEntry is one configured exam within a session row.
type ExamEntry struct {
	ExamID    int64    `json:"exam_id"`
	Title     string   `json:"title"`
	PassScore *float64 `json:"pass_score"`
	Block     Block    `json:"block"`
}

// HomeworkEntry is one configured homework within a session row.
type HomeworkEntry struct {
	HomeworkID int64  `json:"homework_id"`
	Title      string `json:"title"`
	Block      Block  `json:"block"`
}

// Row holds every configured exam and homework for one enrolled student, in
// configured order, whether or not a score exists.
type Row struct {
	EnrollmentID int64           `json:"enrollment_id"`
	StudentName  string          `json:"student_name"`
	Exams        []ExamEntry     `json:"exams"`
	Homeworks    []HomeworkEntry `json:"homeworks"`
}

// ExamRef and HomeworkRef describe the session configuration.
type ExamRef struct {
	ExamID    int64    `json:"exam_id"`
	Title     string   `json:"title"`
	PassScore *float64 `json:"pass_score"`
}

type HomeworkRef struct {
	HomeworkID int64  `json:"homework_id"`
	Title      string `json:"title"`
}

type SessionMeta struct {
	Exams     []ExamRef     `json:"exams"`
	Homeworks []HomeworkRef `json:"homeworks"`
}

// SessionScores is the response of the session score read.
type SessionScores struct {
	Meta SessionMeta `json:"meta"`
	Rows []Row       `json:"rows"`
}

// Row returns the row for enrollmentID.
func (s SessionScores) Row(enrollmentID int64) (Row, bool) {
	for _, row := range s.Rows {
		if row.EnrollmentID == enrollmentID {
			return row, true
		}
	}
	return Row{}, false
}

// Homework returns the homework entry with the given id.
func (r Row) Homework(homeworkID int64) (HomeworkEntry, bool) {
	for _, hw := range r.Homeworks {
		if hw.HomeworkID == homeworkID {
			return hw, true
		}
	}
	return HomeworkEntry{}, false
}

// Exam returns the exam entry with the given id.
func (r Row) Exam(examID int64) (ExamEntry, bool) {
	for _, exam := range r.Exams {
		if exam.ExamID == examID {
			return exam, true
		}
	}
	return ExamEntry{}, false
}
