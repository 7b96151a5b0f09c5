package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"scoredesk/internal/scoring"
	"scoredesk/internal/submission"
)

// Backend is an in-memory fake of the academy API. Submission fetches walk a
// scripted status sequence, repeating the last entry once exhausted.
type Backend struct {
	Server *httptest.Server
	Mux    *http.ServeMux

	mu       sync.Mutex
	scripts  map[int64][]submission.Status
	onRetry  map[int64][]submission.Status
	fetches  map[int64]int
	retries  map[int64]int
	sessions map[int64]scoring.SessionScores
}

// NewBackend starts a fake backend and registers cleanup.
func NewBackend(t testing.TB) *Backend {
	t.Helper()

	b := &Backend{
		Mux:      http.NewServeMux(),
		scripts:  make(map[int64][]submission.Status),
		onRetry:  make(map[int64][]submission.Status),
		fetches:  make(map[int64]int),
		retries:  make(map[int64]int),
		sessions: make(map[int64]scoring.SessionScores),
	}
	b.Mux.HandleFunc("GET /submissions/{id}/{$}", b.handleSubmission)
	b.Mux.HandleFunc("POST /submissions/{id}/retry/{$}", b.handleRetry)
	b.Mux.HandleFunc("GET /results/admin/sessions/{id}/scores/{$}", b.handleSessionScores)
	b.Server = httptest.NewServer(b.Mux)
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the base URL clients should use.
func (b *Backend) URL() string { return b.Server.URL }

// Script sets the statuses successive fetches of id return.
func (b *Backend) Script(id int64, statuses ...submission.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scripts[id] = append([]submission.Status(nil), statuses...)
}

// ScriptAfterRetry sets the statuses fetches return once id has been retried.
func (b *Backend) ScriptAfterRetry(id int64, statuses ...submission.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onRetry[id] = append([]submission.Status(nil), statuses...)
}

// SetSessionScores sets the score sheet returned for sessionID.
func (b *Backend) SetSessionScores(sessionID int64, scores scoring.SessionScores) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[sessionID] = scores
}

// Fetches returns how many times id was fetched.
func (b *Backend) Fetches(id int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fetches[id]
}

// Retries returns how many retry requests id received.
func (b *Backend) Retries(id int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.retries[id]
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, `{"detail":"bad id"}`, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (b *Backend) handleSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	script, known := b.scripts[id]
	var status submission.Status
	if known && len(script) > 0 {
		status = script[0]
		if len(script) > 1 {
			b.scripts[id] = script[1:]
		}
		b.fetches[id]++
	}
	b.mu.Unlock()

	if !known {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	sub := submission.Submission{
		ID:         id,
		TargetType: submission.TargetExam,
		TargetID:   1,
		Status:     status,
		Source:     submission.SourceOMRScan,
	}
	if status == submission.StatusFailed {
		sub.ErrorMessage = "recognition failed"
	}
	writeJSON(w, http.StatusOK, sub)
}

func (b *Backend) handleRetry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	_, known := b.scripts[id]
	if known {
		b.retries[id]++
		if next, ok := b.onRetry[id]; ok {
			b.scripts[id] = next
			delete(b.onRetry, id)
		}
	}
	b.mu.Unlock()

	if !known {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submission_id": id, "status": submission.StatusDispatched})
}

func (b *Backend) handleSessionScores(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	scores, known := b.sessions[id]
	b.mu.Unlock()
	if !known {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
