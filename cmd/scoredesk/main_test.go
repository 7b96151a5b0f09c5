package main

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"scoredesk/internal/scoring"
	"scoredesk/internal/submission"
	"scoredesk/internal/testsupport"
)

func fp(v float64) *float64 { return &v }
func bp(v bool) *bool       { return &v }

func sampleSheet() scoring.SessionScores {
	reason := "finalized"
	return scoring.SessionScores{
		Meta: scoring.SessionMeta{
			Exams:     []scoring.ExamRef{{ExamID: 1, Title: "Midterm"}},
			Homeworks: []scoring.HomeworkRef{{HomeworkID: 2, Title: "HW1"}},
		},
		Rows: []scoring.Row{
			{
				EnrollmentID: 10, StudentName: "Kim",
				Exams:     []scoring.ExamEntry{{ExamID: 1, Title: "Midterm", Block: scoring.Block{Score: fp(72), Passed: bp(true)}}},
				Homeworks: []scoring.HomeworkEntry{{HomeworkID: 2, Title: "HW1", Block: scoring.Block{Score: fp(9), MaxScore: fp(10), Passed: bp(true)}}},
			},
			{
				EnrollmentID: 11, StudentName: "Lee",
				Exams: []scoring.ExamEntry{{ExamID: 1, Title: "Midterm", Block: scoring.Block{Score: fp(40), Passed: bp(false)}}},
				Homeworks: []scoring.HomeworkEntry{{HomeworkID: 2, Title: "HW1", Block: scoring.Block{
					MaxScore: fp(10), Passed: bp(false), IsLocked: true, LockReason: &reason,
				}}},
			},
		},
	}
}

func TestLegendRunsWithoutConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	out, _, err := runCLI(t, []string{"legend"}, filepath.Join(t.TempDir(), "missing", "config.toml"))
	if err != nil {
		t.Fatalf("legend: %v", err)
	}
	requireContains(t, out, "Needs identification")
	requireContains(t, out, "PROCESSING")

	out, _, err = runCLI(t, []string{"legend", "answers_ready", "on_hold"}, "")
	if err != nil {
		t.Fatalf("legend values: %v", err)
	}
	requireContains(t, out, "Answers ready")
	requireContains(t, out, "On Hold")
}

func TestSubmissionWatchRecordsHistory(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.Script(42,
		submission.StatusSubmitted,
		submission.StatusDispatched,
		submission.StatusExtracting,
		submission.StatusAnswersReady,
		submission.StatusGrading,
		submission.StatusDone,
	)

	out, _, err := runCLI(t, []string{"submission", "watch", "42"}, env.configPath)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	requireContains(t, out, "Submission 42 finished")

	out, _, err = runCLI(t, []string{"submission", "history", "42", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var history []struct {
		To submission.Status
	}
	if err := json.Unmarshal([]byte(out), &history); err != nil {
		t.Fatalf("decode history: %v\n%s", err, out)
	}
	if len(history) != 6 || history[5].To != submission.StatusDone {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestSubmissionWatchStopsOnBlocking(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.Script(9, submission.StatusExtracting, submission.StatusNeedsIdentification)

	out, _, err := runCLI(t, []string{"submission", "watch", "9"}, env.configPath)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	requireContains(t, out, "needs identification")
	requireContains(t, out, "submission retry 9 --watch")
}

func TestSubmissionRetryWatch(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.Script(7, submission.StatusFailed)
	env.backend.ScriptAfterRetry(7, submission.StatusDispatched, submission.StatusGrading, submission.StatusDone)

	out, _, err := runCLI(t, []string{"submission", "retry", "7", "--watch"}, env.configPath)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	requireContains(t, out, "#7 retried (was Failed)")
	requireContains(t, out, "Submission 7 finished")
	if got := env.backend.Retries(7); got != 1 {
		t.Fatalf("expected one retry request, got %d", got)
	}
}

func TestSubmissionRetryRefusesSettledSubmission(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.Script(8, submission.StatusDone)

	out, _, err := runCLI(t, []string{"submission", "retry", "8", "404"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for non-retried submissions")
	}
	requireContains(t, err.Error(), "2 of 2")
	requireContains(t, out, "#8 not_retryable")
	requireContains(t, out, "#404 not_found")
	if got := env.backend.Retries(8); got != 0 {
		t.Fatalf("expected no retry request, got %d", got)
	}
}

func TestScoresSessionTableAndExport(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.SetSessionScores(5, sampleSheet())

	out, _, err := runCLI(t, []string{"scores", "session", "5"}, env.configPath)
	if err != nil {
		t.Fatalf("scores session: %v", err)
	}
	requireContains(t, out, "Kim")
	requireContains(t, out, "(locked)")
	requireContains(t, out, "2 students: 1 passed, 1 failed, 0 pending")

	cached, _, err := runCLI(t, []string{"scores", "session", "5", "--offline"}, env.configPath)
	if err != nil {
		t.Fatalf("offline session: %v", err)
	}
	requireContains(t, cached, "Cached copy from")

	target := filepath.Join(t.TempDir(), "session.xlsx")
	if _, _, err := runCLI(t, []string{"scores", "session", "5", "--export", target}, env.configPath); err != nil {
		t.Fatalf("export: %v", err)
	}
	if info, err := os.Stat(target); err != nil || info.Size() == 0 {
		t.Fatalf("expected workbook at %s: %v", target, err)
	}
}

func TestScoresHomeworkQuickEntry(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.SetSessionScores(5, sampleSheet())

	var (
		mu      sync.Mutex
		patches []map[string]any
	)
	patchCount := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(patches)
	}
	env.backend.Mux.HandleFunc("PATCH /homework/scores/quick/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		patches = append(patches, body)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":3,"enrollment_id":10,"session":5,"score":8,"max_score":10,"passed":true}`))
	})

	out, _, err := runCLI(t, []string{"scores", "homework", "5", "10", "80%"}, env.configPath)
	if err != nil {
		t.Fatalf("homework: %v", err)
	}
	requireContains(t, out, "HW1 for enrollment 10: 8")
	if got := patchCount(); got != 1 {
		t.Fatalf("expected one patch, got %d", got)
	}
	mu.Lock()
	first := patches[0]
	mu.Unlock()
	if first["score"] != float64(8) || first["session_id"] != float64(5) {
		t.Fatalf("unexpected patch %+v", first)
	}

	_, _, err = runCLI(t, []string{"scores", "homework", "5", "10", "abc"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "invalid score input") {
		t.Fatalf("expected invalid input error, got %v", err)
	}

	_, _, err = runCLI(t, []string{"scores", "homework", "5", "11", "5"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "finalized") {
		t.Fatalf("expected lock error, got %v", err)
	}
	if got := patchCount(); got != 1 {
		t.Fatalf("refused input must not reach the server, got %d patches", got)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	target := filepath.Join(t.TempDir(), "scoredesk.toml")
	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, target)
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse an existing file")
	}

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "********")
	if strings.Contains(out, "test-token") {
		t.Fatalf("token leaked in output:\n%s", out)
	}
}

func TestCachePrune(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"cache", "prune", "--days", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("cache prune: %v", err)
	}
	requireContains(t, out, "Removed 0 cached records")
}

func TestReviewSaveAppliesCorrections(t *testing.T) {
	env := setupCLITestEnv(t)

	var (
		mu    sync.Mutex
		saved []map[string]any
	)
	env.backend.Mux.HandleFunc("GET /submissions/{id}/manual_edit/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"identifier":"2024-01","answers":[
			{"question_id":11,"question_no":1,"answer":"A"},
			{"question_id":12,"question_no":2,"answer":"C"},
			{"question_no":3,"answer":"D"}]}`))
	})
	env.backend.Mux.HandleFunc("POST /submissions/{id}/manual_edit/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		saved = append(saved, body)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"grading"}`))
	})

	answers := filepath.Join(t.TempDir(), "answers.json")
	testsupport.WriteJSON(t, answers, []map[string]any{{"question_id": 12, "answer": "B"}})

	out, _, err := runCLI(t, []string{"review", "save", "31",
		"--identifier", " ", "--file", answers, "--answer", "no:3=E", "--note", "smudged"}, env.configPath)
	if err != nil {
		t.Fatalf("review save: %v", err)
	}
	requireContains(t, out, "Submission 31 review grading")

	mu.Lock()
	defer mu.Unlock()
	if len(saved) != 1 {
		t.Fatalf("expected one save, got %d", len(saved))
	}
	body := saved[0]
	if body["identifier"] != nil {
		t.Fatalf("blank identifier must be sent as null, got %v", body["identifier"])
	}
	list, _ := body["answers"].([]any)
	if len(list) != 3 {
		t.Fatalf("expected 3 answers, got %v", body["answers"])
	}
	second, _ := list[1].(map[string]any)
	third, _ := list[2].(map[string]any)
	if second["answer"] != "B" || third["answer"] != "E" || body["note"] != "smudged" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestReviewSaveRejectsUnknownQuestion(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.Mux.HandleFunc("GET /submissions/{id}/manual-review/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"answers":[{"question_id":11,"answer":"A"}]}`))
	})

	_, _, err := runCLI(t, []string{"review", "save", "31", "--answer", "99=B"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "no answer for question") {
		t.Fatalf("expected unknown answer error, got %v", err)
	}
}
