package scoreentry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"scoredesk/internal/logging"
	"scoredesk/internal/remote"
	"scoredesk/internal/results"
	"scoredesk/internal/scoring"
)

var (
	// ErrLocked marks a cell whose score block is locked, either as seen
	// locally or as reported by the server.
	ErrLocked = errors.New("score is locked")
	// ErrInvalidInput marks input that was reverted without being sent.
	ErrInvalidInput = errors.New("invalid score input")
)

// Backend is the subset of results.API the editor writes through.
type Backend interface {
	FetchSessionScores(ctx context.Context, sessionID int64) (scoring.SessionScores, error)
	QuickPatchHomework(ctx context.Context, patch results.QuickPatch) (results.HomeworkScore, error)
	PatchExamItemScore(ctx context.Context, examID, enrollmentID, questionID int64, score float64) (results.ExamItemScore, error)
}

// SheetRecorder stores re-synced sheets. cache.Store satisfies it.
type SheetRecorder interface {
	PutSessionScores(ctx context.Context, sessionID int64, scores scoring.SessionScores) error
}

// Outcome describes what an edit did.
type Outcome struct {
	Action scoring.QuickAction
	// Record is the server's updated homework record, for homework cells.
	Record *results.HomeworkScore
	// Item is the server's updated exam item, for exam item cells.
	Item *results.ExamItemScore
	// Resynced is set when the row was re-read after a lock conflict.
	Resynced bool
	Row      *scoring.Row
}

// Editor applies operator input to score cells.
type Editor struct {
	backend  Backend
	recorder SheetRecorder
	logger   *slog.Logger
}

// NewEditor builds an editor. recorder may be nil.
func NewEditor(backend Backend, recorder SheetRecorder, logger *slog.Logger) *Editor {
	return &Editor{backend: backend, recorder: recorder, logger: logging.NewComponentLogger(logger, "scoreentry")}
}

// Submit parses input for cell and writes it. Locked cells and invalid input
// are refused without a request and the cell shows its confirmed value
// again. On success the confirmed value is replaced from the server's
// response. When the server reports a lock the cell reverts, its row is
// re-read and the returned error carries the lock reason.
func (e *Editor) Submit(ctx context.Context, cell *Cell, input string) (Outcome, error) {
	if !cell.Editable() {
		cell.Revert()
		return Outcome{}, lockedError(cell.Confirmed.LockReasonText(), nil)
	}

	parsed, err := scoring.ParseQuickInput(input, cell.Confirmed.MaxScore)
	if err == nil && cell.Kind == KindExamItem && parsed.Action != scoring.ActionScore {
		err = fmt.Errorf("exam items take a number, got %q", input)
	}
	if err != nil {
		cell.Revert()
		return Outcome{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	ctx = logging.WithSessionID(ctx, cell.SessionID)
	out := Outcome{Action: parsed.Action}
	switch cell.Kind {
	case KindHomework:
		var record results.HomeworkScore
		record, err = e.backend.QuickPatchHomework(ctx, homeworkPatch(cell, parsed))
		if err == nil {
			cell.Confirmed = record.Block()
			out.Record = &record
		}
	case KindExamItem:
		var item results.ExamItemScore
		item, err = e.backend.PatchExamItemScore(ctx, cell.ExamID, cell.EnrollmentID, cell.QuestionID, parsed.Score)
		if err == nil {
			cell.Confirmed.Score = item.Score
			if item.MaxScore != nil {
				cell.Confirmed.MaxScore = item.MaxScore
			}
			out.Item = &item
		}
	default:
		return Outcome{}, fmt.Errorf("unknown cell kind %q", cell.Kind)
	}

	cell.Revert()
	if err == nil {
		return out, nil
	}
	if remote.IsLocked(err) {
		row, resyncErr := e.resync(ctx, cell)
		if resyncErr != nil {
			logging.WarnWithContext(logging.WithContext(ctx, e.logger), "row resync after lock conflict failed",
				"resync_failed", "reload the session sheet", logging.Error(resyncErr))
		} else {
			out.Resynced = true
			out.Row = row
		}
		return out, lockedError(remote.LockReason(err), err)
	}
	return out, err
}

func homeworkPatch(cell *Cell, input scoring.QuickInput) results.QuickPatch {
	patch := results.QuickPatch{
		SessionID:    cell.SessionID,
		EnrollmentID: cell.EnrollmentID,
		MaxScore:     cell.Confirmed.MaxScore,
	}
	if cell.HomeworkID > 0 {
		id := cell.HomeworkID
		patch.HomeworkID = &id
	}
	switch input.Action {
	case scoring.ActionScore:
		score := input.Score
		patch.Score = &score
	case scoring.ActionMarkNotSubmitted:
		status := scoring.MetaNotSubmitted
		patch.MetaStatus = &status
	}
	return patch
}

// resync re-reads the session sheet and refreshes cell from its row.
func (e *Editor) resync(ctx context.Context, cell *Cell) (*scoring.Row, error) {
	sheet, err := e.backend.FetchSessionScores(ctx, cell.SessionID)
	if err != nil {
		return nil, err
	}
	if e.recorder != nil {
		if err := e.recorder.PutSessionScores(ctx, cell.SessionID, sheet); err != nil {
			e.logger.Debug("cache sheet failed", logging.Error(err))
		}
	}
	row, ok := sheet.Row(cell.EnrollmentID)
	if !ok {
		return nil, fmt.Errorf("enrollment %d missing from session %d", cell.EnrollmentID, cell.SessionID)
	}
	if cell.refresh(row) {
		cell.Revert()
	}
	return &row, nil
}

func lockedError(reason string, cause error) error {
	switch {
	case cause != nil:
		return fmt.Errorf("%w: %w", ErrLocked, cause)
	case reason != "":
		return fmt.Errorf("%w: %s", ErrLocked, reason)
	default:
		return ErrLocked
	}
}
