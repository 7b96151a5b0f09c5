package scoring

import (
	"math"
	"strings"
)

// HomeworkState is the derived state of a homework score.
type HomeworkState string

const (
	HomeworkUnset        HomeworkState = "UNSET"
	HomeworkNotSubmitted HomeworkState = "NOT_SUBMITTED"
	HomeworkZero         HomeworkState = "ZERO"
	HomeworkScored       HomeworkState = "SCORED"
)

// HomeworkStatus derives the homework state from a score and its meta marker.
// NOT_SUBMITTED overrides any score; a nil score and a zero score stay distinct.
func HomeworkStatus(score *float64, meta MetaStatus) HomeworkState {
	if MetaStatus(strings.ToUpper(strings.TrimSpace(string(meta)))) == MetaNotSubmitted {
		return HomeworkNotSubmitted
	}
	if score == nil {
		return HomeworkUnset
	}
	v := *score
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0) || v < 0:
		return HomeworkUnset
	case v == 0:
		return HomeworkZero
	default:
		return HomeworkScored
	}
}

// State derives the homework state of an entry.
func (h HomeworkEntry) State() HomeworkState {
	return HomeworkStatus(h.Block.Score, h.Block.MetaStatus())
}

func (h HomeworkEntry) failing() bool {
	return h.State() == HomeworkNotSubmitted || isFalse(h.Block.Passed)
}

func (e ExamEntry) failing() bool {
	return isFalse(e.Block.Passed)
}

func isFalse(b *bool) bool {
	return b != nil && !*b
}

// OverallPassed is nil when any entry lacks a verdict, otherwise the AND of
// every entry's verdict. A row without entries passes.
func OverallPassed(row Row) *bool {
	overall := true
	for _, exam := range row.Exams {
		if exam.Block.Passed == nil {
			return nil
		}
		overall = overall && *exam.Block.Passed
	}
	for _, hw := range row.Homeworks {
		if hw.Block.Passed == nil {
			return nil
		}
		overall = overall && *hw.Block.Passed
	}
	return &overall
}

// IsClinicTarget reports whether the student needs remediation: an exam
// failed, or a homework was not submitted or failed. An unscored homework
// without the NOT_SUBMITTED marker does not count.
func IsClinicTarget(row Row) bool {
	for _, exam := range row.Exams {
		if exam.failing() {
			return true
		}
	}
	for _, hw := range row.Homeworks {
		if hw.failing() {
			return true
		}
	}
	return false
}

// FailureReasons lists failing exam titles then failing homework titles, each
// in configured order.
func FailureReasons(row Row) []string {
	var reasons []string
	for _, exam := range row.Exams {
		if exam.failing() {
			reasons = append(reasons, exam.Title)
		}
	}
	for _, hw := range row.Homeworks {
		if hw.failing() {
			reasons = append(reasons, hw.Title)
		}
	}
	return reasons
}

// ReasonKind names which entry kinds put a student on the clinic list.
type ReasonKind string

const (
	ReasonExamAndHomework ReasonKind = "exam+homework"
	ReasonExam            ReasonKind = "exam"
	ReasonHomework        ReasonKind = "homework"
	ReasonNone            ReasonKind = "none"
)

func ReasonType(row Row) ReasonKind {
	examFail, hwFail := false, false
	for _, exam := range row.Exams {
		examFail = examFail || exam.failing()
	}
	for _, hw := range row.Homeworks {
		hwFail = hwFail || hw.failing()
	}
	switch {
	case examFail && hwFail:
		return ReasonExamAndHomework
	case examFail:
		return ReasonExam
	case hwFail:
		return ReasonHomework
	default:
		return ReasonNone
	}
}

// ClinicFlags reports which entry kinds carry the server-computed
// clinic_required flag.
type ClinicFlags struct {
	Exam     bool `json:"exam"`
	Homework bool `json:"homework"`
}

func (f ClinicFlags) Any() bool { return f.Exam || f.Homework }

func ServerClinicFlags(row Row) ClinicFlags {
	var flags ClinicFlags
	for _, exam := range row.Exams {
		flags.Exam = flags.Exam || exam.Block.ClinicRequired
	}
	for _, hw := range row.Homeworks {
		flags.Homework = flags.Homework || hw.Block.ClinicRequired
	}
	return flags
}

// CanEdit is the client-side hint for enabling a score cell. The server
// remains the authority and answers 409 LOCKED regardless.
func CanEdit(block Block) bool {
	return !block.IsLocked
}

// Derived bundles the derivations rendered next to a row.
type Derived struct {
	OverallPassed *bool       `json:"overall_passed"`
	ClinicTarget  bool        `json:"clinic_target"`
	Reasons       []string    `json:"reasons,omitempty"`
	ReasonType    ReasonKind  `json:"reason_type"`
	ServerClinic  ClinicFlags `json:"server_clinic"`
}

func Derive(row Row) Derived {
	return Derived{
		OverallPassed: OverallPassed(row),
		ClinicTarget:  IsClinicTarget(row),
		Reasons:       FailureReasons(row),
		ReasonType:    ReasonType(row),
		ServerClinic:  ServerClinicFlags(row),
	}
}
