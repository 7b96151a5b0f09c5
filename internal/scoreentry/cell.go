package scoreentry

import (
	"strconv"

	"scoredesk/internal/scoring"
)

// Kind is the score target a cell edits.
type Kind string

const (
	KindHomework Kind = "homework"
	KindExamItem Kind = "exam_item"
)

// NotSubmittedText is shown for a homework marked not submitted.
const NotSubmittedText = "/"

// Cell is one editable score in a session sheet. Confirmed only changes when
// the server answers; Text is what the operator currently sees.
type Cell struct {
	Kind         Kind
	SessionID    int64
	EnrollmentID int64
	HomeworkID   int64
	ExamID       int64
	QuestionID   int64

	Confirmed scoring.Block
	Text      string
}

// HomeworkCell builds the cell for a homework entry of a row.
func HomeworkCell(sessionID int64, row scoring.Row, entry scoring.HomeworkEntry) *Cell {
	c := &Cell{
		Kind:         KindHomework,
		SessionID:    sessionID,
		EnrollmentID: row.EnrollmentID,
		HomeworkID:   entry.HomeworkID,
		Confirmed:    entry.Block,
	}
	c.Revert()
	return c
}

// ExamItemCell builds the cell for one question of an exam. block carries the
// item's current score and the exam's lock state.
func ExamItemCell(sessionID, enrollmentID, examID, questionID int64, block scoring.Block) *Cell {
	c := &Cell{
		Kind:         KindExamItem,
		SessionID:    sessionID,
		EnrollmentID: enrollmentID,
		ExamID:       examID,
		QuestionID:   questionID,
		Confirmed:    block,
	}
	c.Revert()
	return c
}

// Editable reports whether the cell accepts input. The server may still
// refuse; this is a hint.
func (c *Cell) Editable() bool { return scoring.CanEdit(c.Confirmed) }

// Revert shows the last confirmed value again.
func (c *Cell) Revert() { c.Text = FormatBlock(c.Confirmed) }

// FormatBlock renders a block the way it is typed into a cell.
func FormatBlock(b scoring.Block) string {
	if b.MetaStatus() == scoring.MetaNotSubmitted {
		return NotSubmittedText
	}
	if b.Score == nil {
		return ""
	}
	return strconv.FormatFloat(*b.Score, 'f', -1, 64)
}

// refresh re-reads the cell's confirmed block from a fresh sheet row.
func (c *Cell) refresh(row scoring.Row) bool {
	switch c.Kind {
	case KindHomework:
		entry, ok := row.Homework(c.HomeworkID)
		if !ok {
			return false
		}
		c.Confirmed = entry.Block
	case KindExamItem:
		exam, ok := row.Exam(c.ExamID)
		if !ok {
			return false
		}
		// The sheet carries exam totals only; keep the item score and take
		// the lock state.
		c.Confirmed.IsLocked = exam.Block.IsLocked
		c.Confirmed.LockReason = exam.Block.LockReason
	}
	return true
}
