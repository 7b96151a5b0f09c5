package results

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"scoredesk/internal/logging"
	"scoredesk/internal/remote"
	"scoredesk/internal/scoring"
)

// API reads session scores and writes individual score cells.
type API struct {
	client *remote.Client
	logger *slog.Logger
}

// NewAPI builds a results API on client.
func NewAPI(client *remote.Client, logger *slog.Logger) *API {
	return &API{client: client, logger: logging.NewComponentLogger(logger, "results")}
}

// FetchSessionScores returns every enrolled student's exam and homework
// blocks for a session. Failures are always returned; an empty sheet would
// hide real scores.
func (a *API) FetchSessionScores(ctx context.Context, sessionID int64) (scoring.SessionScores, error) {
	var out scoring.SessionScores
	if err := a.client.Get(ctx, fmt.Sprintf("/results/admin/sessions/%d/scores/", sessionID), nil, &out); err != nil {
		return scoring.SessionScores{}, fmt.Errorf("fetch session %d scores: %w", sessionID, err)
	}
	return out, nil
}

// ListEnrollments returns the students enrolled in a session. The lookup is
// optional on some backends, so an absent route (404 or 501) yields an empty
// list instead of an error.
func (a *API) ListEnrollments(ctx context.Context, sessionID int64) ([]Enrollment, error) {
	chain := remote.Chain{Name: "session_enrollments", Paths: []string{
		fmt.Sprintf("/lectures/sessions/%d/enrollments/", sessionID),
		"/enrollments/session-enrollments/",
	}}
	query := url.Values{"session": []string{strconv.FormatInt(sessionID, 10)}}

	var raw json.RawMessage
	if _, err := a.client.DoChain(ctx, http.MethodGet, chain, query, nil, &raw); err != nil {
		if remote.IsUnimplemented(err) {
			logging.WithContext(logging.WithSessionID(ctx, sessionID), a.logger).Debug("enrollment lookup unavailable; treating as empty",
				logging.Error(err))
			return []Enrollment{}, nil
		}
		return nil, fmt.Errorf("list session %d enrollments: %w", sessionID, err)
	}
	return decodeList[Enrollment](raw)
}

// HomeworkScoreFilter narrows ListHomeworkScores. Zero values are ignored.
type HomeworkScoreFilter struct {
	SessionID    int64
	LectureID    int64
	EnrollmentID int64
	Locked       *bool
}

func (f HomeworkScoreFilter) values() url.Values {
	query := url.Values{}
	if f.SessionID > 0 {
		query.Set("session", strconv.FormatInt(f.SessionID, 10))
	}
	if f.LectureID > 0 {
		query.Set("lecture", strconv.FormatInt(f.LectureID, 10))
	}
	if f.EnrollmentID > 0 {
		query.Set("enrollment_id", strconv.FormatInt(f.EnrollmentID, 10))
	}
	if f.Locked != nil {
		query.Set("is_locked", strconv.FormatBool(*f.Locked))
	}
	return query
}

// ListHomeworkScores returns stored homework score records.
func (a *API) ListHomeworkScores(ctx context.Context, filter HomeworkScoreFilter) ([]HomeworkScore, error) {
	var raw json.RawMessage
	if err := a.client.Get(ctx, "/homework/scores/", filter.values(), &raw); err != nil {
		return nil, fmt.Errorf("list homework scores: %w", err)
	}
	return decodeList[HomeworkScore](raw)
}

// PatchExamItemScore writes the score of one question for one student.
func (a *API) PatchExamItemScore(ctx context.Context, examID, enrollmentID, questionID int64, score float64) (ExamItemScore, error) {
	path := fmt.Sprintf("/results/admin/exams/%d/enrollments/%d/items/%d/", examID, enrollmentID, questionID)
	out := ExamItemScore{QuestionID: questionID}
	if err := a.client.Patch(ctx, path, map[string]float64{"score": score}, &out); err != nil {
		return ExamItemScore{}, a.writeFailed(ctx, "exam item", err)
	}
	return out, nil
}

// PatchHomeworkScore edits an existing homework score record.
func (a *API) PatchHomeworkScore(ctx context.Context, id int64, patch HomeworkPatch) (HomeworkScore, error) {
	if patch.Empty() {
		return HomeworkScore{}, fmt.Errorf("homework score %d: nothing to change", id)
	}
	var out HomeworkScore
	if err := a.client.Patch(ctx, fmt.Sprintf("/homework/scores/%d/", id), patch, &out); err != nil {
		return HomeworkScore{}, a.writeFailed(ctx, "homework score", err)
	}
	return out, nil
}

// QuickPatchHomework upserts the homework score for one student.
func (a *API) QuickPatchHomework(ctx context.Context, patch QuickPatch) (HomeworkScore, error) {
	ctx = logging.WithSessionID(ctx, patch.SessionID)
	var out HomeworkScore
	if err := a.client.Patch(ctx, "/homework/scores/quick/", patch, &out); err != nil {
		return HomeworkScore{}, a.writeFailed(ctx, "homework quick entry", err)
	}
	return out, nil
}

func (a *API) writeFailed(ctx context.Context, what string, err error) error {
	logger := logging.WithContext(ctx, a.logger)
	if remote.IsLocked(err) {
		logger.Info("score write refused; block is locked",
			logging.String("target", what),
			logging.String("lock_reason", remote.LockReason(err)),
		)
	} else {
		logger.Warn("score write failed",
			logging.String(logging.FieldEventType, "score_write_failed"),
			logging.String(logging.FieldErrorHint, remote.OperatorMessage(err)),
			logging.String("target", what),
			logging.Error(err),
		)
	}
	return fmt.Errorf("write %s: %w", what, err)
}

// decodeList accepts a bare array or a paginated {"results": [...]} body.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	var list []T
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var page struct {
		Results []T `json:"results"`
		Items   []T `json:"items"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	if page.Results != nil {
		return page.Results, nil
	}
	if page.Items != nil {
		return page.Items, nil
	}
	return []T{}, nil
}
