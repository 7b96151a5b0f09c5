package results_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"scoredesk/internal/logging"
	"scoredesk/internal/remote"
	"scoredesk/internal/results"
	"scoredesk/internal/scoring"
)

func newAPI(t *testing.T, mux *http.ServeMux) *results.API {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	client := remote.NewClient(server.URL, remote.WithLogger(logging.NewNop()))
	return results.NewAPI(client, logging.NewNop())
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestFetchSessionScoresDecodesRows(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /results/admin/sessions/3/scores/{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{
			"meta": {"exams": [{"exam_id": 1, "title": "Midterm", "pass_score": 60}], "homeworks": [{"homework_id": 2, "title": "HW1"}]},
			"rows": [{"enrollment_id": 10, "student_name": "Kim", 
				"exams": [{"exam_id": 1, "title": "Midterm", "block": {"score": 72, "max_score": 100, "passed": true, "is_locked": true, "lock_reason": "finalized"}}],
				"homeworks": [{"homework_id": 2, "title": "HW1", "block": {"score": null, "passed": null, "meta": {"status": "NOT_SUBMITTED"}}}]}]
		}`)
	})
	api := newAPI(t, mux)

	scores, err := api.FetchSessionScores(context.Background(), 3)
	if err != nil {
		t.Fatalf("FetchSessionScores: %v", err)
	}
	row, ok := scores.Row(10)
	if !ok {
		t.Fatal("expected row for enrollment 10")
	}
	exam, _ := row.Exam(1)
	if !exam.Block.IsLocked || exam.Block.LockReasonText() != "finalized" {
		t.Fatalf("unexpected exam block %+v", exam.Block)
	}
	hw, _ := row.Homework(2)
	if hw.State() != scoring.HomeworkNotSubmitted {
		t.Fatalf("expected NOT_SUBMITTED homework, got %s", hw.State())
	}
}

func TestFetchSessionScoresNeverDegrades(t *testing.T) {
	api := newAPI(t, http.NewServeMux())
	if _, err := api.FetchSessionScores(context.Background(), 99); !remote.IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestListEnrollments(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		wantErr bool
		want    int
	}{
		{
			name: "fallback route paginated",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/enrollments/session-enrollments/" {
					http.NotFound(w, r)
					return
				}
				if r.URL.Query().Get("session") != "4" {
					t.Errorf("expected session query, got %q", r.URL.RawQuery)
				}
				writeJSON(w, http.StatusOK, `{"results": [{"id": 1, "enrollment_id": 10, "student_name": "Kim"}, {"id": 2, "enrollment_id": 11, "student_name": "Lee"}]}`)
			},
			want: 2,
		},
		{
			name: "not implemented degrades to empty",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusNotImplemented, `{"detail": "not implemented"}`)
			},
			want: 0,
		},
		{
			name: "server error surfaces",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusInternalServerError, `{"detail": "boom"}`)
			},
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.Handle("/", tc.handler)
			api := newAPI(t, mux)

			got, err := api.ListEnrollments(context.Background(), 4)
			if tc.wantErr {
				if err == nil || !remote.IsTransient(err) {
					t.Fatalf("expected transient error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ListEnrollments: %v", err)
			}
			if got == nil || len(got) != tc.want {
				t.Fatalf("expected %d enrollments, got %+v", tc.want, got)
			}
		})
	}
}

func TestPatchHomeworkScoreLockConflicts(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		wantLocked bool
		wantReason string
	}{
		{"locked", `{"code": "LOCKED", "detail": "score block is locked", "lock_reason": "clinic in progress"}`, true, "clinic in progress"},
		{"plain conflict", `{"detail": "version conflict"}`, false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("PATCH /homework/scores/8/{$}", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusConflict, tc.body)
			})
			api := newAPI(t, mux)

			score := 10.0
			_, err := api.PatchHomeworkScore(context.Background(), 8, results.HomeworkPatch{Score: &score})
			if err == nil {
				t.Fatal("expected error")
			}
			if remote.IsLocked(err) != tc.wantLocked {
				t.Fatalf("IsLocked = %v, want %v (%v)", remote.IsLocked(err), tc.wantLocked, err)
			}
			if remote.LockReason(err) != tc.wantReason {
				t.Fatalf("unexpected lock reason %q", remote.LockReason(err))
			}
			if remote.IsTransient(err) {
				t.Fatal("a conflict must not be reported as retryable")
			}
		})
	}
}

func TestPatchHomeworkScoreRejectsEmptyPatch(t *testing.T) {
	api := newAPI(t, http.NewServeMux())
	if _, err := api.PatchHomeworkScore(context.Background(), 8, results.HomeworkPatch{}); err == nil {
		t.Fatal("expected error for empty patch")
	}
}

func TestQuickPatchHomeworkSendsExplicitNulls(t *testing.T) {
	var body map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /homework/scores/quick/{$}", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		writeJSON(w, http.StatusOK, `{"id": 31, "enrollment": 10, "session_id": 4, "score": null, "passed": false, "clinic_required": true, "meta": {"status": "NOT_SUBMITTED"}}`)
	})
	api := newAPI(t, mux)

	status := scoring.MetaNotSubmitted
	got, err := api.QuickPatchHomework(context.Background(), results.QuickPatch{
		SessionID:    4,
		EnrollmentID: 10,
		MetaStatus:   &status,
	})
	if err != nil {
		t.Fatalf("QuickPatchHomework: %v", err)
	}
	if v, ok := body["score"]; !ok || v != nil {
		t.Fatalf("expected explicit null score, got %v", body)
	}
	if body["meta_status"] != "NOT_SUBMITTED" {
		t.Fatalf("expected meta_status, got %v", body)
	}
	if _, ok := body["homework_id"]; ok {
		t.Fatalf("homework_id must be omitted when unknown: %v", body)
	}
	if got.EnrollmentID != 10 || got.SessionID != 4 {
		t.Fatalf("expected alternate keys normalized, got %+v", got)
	}
	if !got.ClinicRequired || got.Block().Passed == nil || *got.Block().Passed {
		t.Fatalf("expected server verdict carried through, got %+v", got)
	}
}

func TestPatchExamItemScore(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /results/admin/exams/1/enrollments/10/items/5/{$}", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(data), `"score":4`) {
			t.Errorf("unexpected body %s", data)
		}
		writeJSON(w, http.StatusOK, `{"question_id": 5, "score": 4, "max_score": 5}`)
	})
	api := newAPI(t, mux)

	got, err := api.PatchExamItemScore(context.Background(), 1, 10, 5, 4)
	if err != nil {
		t.Fatalf("PatchExamItemScore: %v", err)
	}
	if got.Score == nil || *got.Score != 4 {
		t.Fatalf("unexpected result %+v", got)
	}
}
