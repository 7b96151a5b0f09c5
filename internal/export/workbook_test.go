package export_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"

	"scoredesk/internal/export"
	"scoredesk/internal/scoring"
)

func f(v float64) *float64 { return &v }
func b(v bool) *bool       { return &v }

func sampleSheet() scoring.SessionScores {
	return scoring.SessionScores{
		Meta: scoring.SessionMeta{
			Exams:     []scoring.ExamRef{{ExamID: 1, Title: "Midterm"}},
			Homeworks: []scoring.HomeworkRef{{HomeworkID: 2, Title: "HW1"}},
		},
		Rows: []scoring.Row{
			{
				EnrollmentID: 10, StudentName: "Kim",
				Exams:     []scoring.ExamEntry{{ExamID: 1, Title: "Midterm", Block: scoring.Block{Score: f(72), Passed: b(true)}}},
				Homeworks: []scoring.HomeworkEntry{{HomeworkID: 2, Title: "HW1", Block: scoring.Block{Score: f(9), Passed: b(true)}}},
			},
			{
				EnrollmentID: 11, StudentName: "Lee",
				Exams: []scoring.ExamEntry{{ExamID: 1, Title: "Midterm", Block: scoring.Block{Score: f(40), Passed: b(false)}}},
				Homeworks: []scoring.HomeworkEntry{{HomeworkID: 2, Title: "HW1", Block: scoring.Block{
					Passed: b(false), Meta: &scoring.BlockMeta{Status: scoring.MetaNotSubmitted},
				}}},
			},
		},
	}
}

func TestWriteSessionScoresLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := export.WriteSessionScores(&buf, 4, sampleSheet()); err != nil {
		t.Fatalf("WriteSessionScores: %v", err)
	}

	wb, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer wb.Close()

	rows, err := wb.GetRows("Scores")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	wantHeader := []string{"Enrollment", "Student", "Midterm", "HW1", "Result", "Clinic", "Reasons"}
	for i, want := range wantHeader {
		if rows[0][i] != want {
			t.Fatalf("header[%d] = %q, want %q", i, rows[0][i], want)
		}
	}
	if rows[1][4] != "pass" || rows[2][4] != "fail" {
		t.Fatalf("unexpected verdicts %q / %q", rows[1][4], rows[2][4])
	}
	if rows[2][3] != "not submitted" || rows[2][5] != "yes" {
		t.Fatalf("unexpected second row %v", rows[2])
	}
	if rows[2][6] != "Midterm, HW1" {
		t.Fatalf("unexpected reasons %q", rows[2][6])
	}

	summary, err := wb.GetRows("Summary")
	if err != nil {
		t.Fatalf("GetRows summary: %v", err)
	}
	if summary[1][0] != "Participants" || summary[1][1] != "2" {
		t.Fatalf("unexpected summary %v", summary)
	}
}

func TestWriteSessionScoresRejectsEmptySession(t *testing.T) {
	var buf bytes.Buffer
	if err := export.WriteSessionScores(&buf, 4, scoring.SessionScores{}); !errors.Is(err, export.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}
