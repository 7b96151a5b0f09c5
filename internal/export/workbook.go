package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"scoredesk/internal/scoring"
)

const (
	scoresSheet  = "Scores"
	summarySheet = "Summary"
)

// ErrNoRows is returned when a session has no enrolled students.
var ErrNoRows = errors.New("session has no rows to export")

// column is one header of the scores sheet and how to fill it from a row.
type column struct {
	title string
	width float64
	value func(scoring.Row, scoring.Derived) any
}

// WriteSessionScores renders a session sheet as an xlsx workbook with a
// scores sheet and a summary sheet.
func WriteSessionScores(w io.Writer, sessionID int64, scores scoring.SessionScores) error {
	if len(scores.Rows) == 0 {
		return ErrNoRows
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", scoresSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	columns := scoreColumns(scores)
	for i, col := range columns {
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetCellValue(scoresSheet, cellName(i+1, 1), col.title); err != nil {
			return err
		}
		if err := f.SetColWidth(scoresSheet, name, name, col.width); err != nil {
			return err
		}
	}
	lastHeader := cellName(len(columns), 1)
	if err := f.SetCellStyle(scoresSheet, "A1", lastHeader, headerStyle); err != nil {
		return err
	}

	for r, row := range scores.Rows {
		derived := scoring.Derive(row)
		for c, col := range columns {
			if v := col.value(row, derived); v != nil {
				if err := f.SetCellValue(scoresSheet, cellName(c+1, r+2), v); err != nil {
					return err
				}
			}
		}
	}
	if err := f.SetPanes(scoresSheet, &excelize.Panes{
		Freeze: true, XSplit: 2, YSplit: 1, TopLeftCell: "C2", ActivePane: "bottomRight",
	}); err != nil {
		return fmt.Errorf("freeze panes: %w", err)
	}

	if err := writeSummary(f, sessionID, scoring.Summarize(scores.Rows), headerStyle); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// scoreColumns lays out identity, then every configured exam and homework in
// configured order, then the derived verdict columns.
func scoreColumns(scores scoring.SessionScores) []column {
	cols := []column{
		{title: "Enrollment", width: 12, value: func(r scoring.Row, _ scoring.Derived) any { return r.EnrollmentID }},
		{title: "Student", width: 18, value: func(r scoring.Row, _ scoring.Derived) any { return r.StudentName }},
	}

	exams, homeworks := scores.Meta.Exams, scores.Meta.Homeworks
	if len(exams) == 0 && len(homeworks) == 0 {
		first := scores.Rows[0]
		for _, e := range first.Exams {
			exams = append(exams, scoring.ExamRef{ExamID: e.ExamID, Title: e.Title, PassScore: e.PassScore})
		}
		for _, h := range first.Homeworks {
			homeworks = append(homeworks, scoring.HomeworkRef{HomeworkID: h.HomeworkID, Title: h.Title})
		}
	}

	for _, ref := range exams {
		examID := ref.ExamID
		cols = append(cols, column{title: ref.Title, width: 12, value: func(r scoring.Row, _ scoring.Derived) any {
			entry, ok := r.Exam(examID)
			if !ok {
				return nil
			}
			return blockValue(entry.Block)
		}})
	}
	for _, ref := range homeworks {
		homeworkID := ref.HomeworkID
		cols = append(cols, column{title: ref.Title, width: 12, value: func(r scoring.Row, _ scoring.Derived) any {
			entry, ok := r.Homework(homeworkID)
			if !ok {
				return nil
			}
			if entry.State() == scoring.HomeworkNotSubmitted {
				return "not submitted"
			}
			return blockValue(entry.Block)
		}})
	}

	return append(cols,
		column{title: "Result", width: 10, value: func(_ scoring.Row, d scoring.Derived) any { return verdict(d.OverallPassed) }},
		column{title: "Clinic", width: 8, value: func(_ scoring.Row, d scoring.Derived) any {
			if d.ClinicTarget {
				return "yes"
			}
			return ""
		}},
		column{title: "Reasons", width: 36, value: func(_ scoring.Row, d scoring.Derived) any { return strings.Join(d.Reasons, ", ") }},
	)
}

func blockValue(b scoring.Block) any {
	if b.Score == nil {
		return nil
	}
	return *b.Score
}

func verdict(passed *bool) string {
	switch {
	case passed == nil:
		return "pending"
	case *passed:
		return "pass"
	default:
		return "fail"
	}
}

func writeSummary(f *excelize.File, sessionID int64, s scoring.Summary, headerStyle int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	rows := [][]any{
		{"Session", sessionID},
		{"Participants", s.Participants},
		{"Passed", s.Passed},
		{"Failed", s.Failed},
		{"Pending", s.Pending},
		{"Clinic targets", s.ClinicTarget},
		{"Exam scored", s.ExamScored},
	}
	if s.ExamAverage != nil {
		rows = append(rows,
			[]any{"Exam average", *s.ExamAverage},
			[]any{"Exam min", *s.ExamMin},
			[]any{"Exam max", *s.ExamMax},
		)
	}
	for i, row := range rows {
		if err := f.SetSheetRow(summarySheet, cellName(1, i+1), &row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", cellName(1, len(rows)), headerStyle); err != nil {
		return err
	}
	return f.SetColWidth(summarySheet, "A", "A", 16)
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
