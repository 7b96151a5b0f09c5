package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"scoredesk/internal/submission"
)

// Snapshot is the last observed representation of a submission.
type Snapshot struct {
	Submission submission.Submission
	IssueSeq   uint64
	ObservedAt time.Time
}

// Transition is one observed status change.
type Transition struct {
	From       submission.Status
	To         submission.Status
	ObservedAt time.Time
}

// PutSubmission stores the latest observation of a submission and appends a
// history row when its status differs from the previous snapshot. It reports
// whether a history row was written.
func (s *Store) PutSubmission(ctx context.Context, sub submission.Submission, issueSeq uint64) (bool, error) {
	payload, err := json.Marshal(sub)
	if err != nil {
		return false, fmt.Errorf("encode submission %d: %w", sub.ID, err)
	}
	observed := toMillis(s.now())

	var changed bool
	err = retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var previous string
		err = tx.QueryRowContext(ctx, `SELECT status FROM submissions WHERE id = ?`, sub.ID).Scan(&previous)
		hadRow := err == nil
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO submissions (id, status, payload, issue_seq, observed_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				status = excluded.status,
				payload = excluded.payload,
				issue_seq = excluded.issue_seq,
				observed_at = excluded.observed_at`,
			sub.ID, string(sub.Status), string(payload), issueSeq, observed,
		); err != nil {
			return err
		}

		changed = !hadRow || previous != string(sub.Status)
		if changed {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO status_history (submission_id, from_status, to_status, observed_at)
				VALUES (?, ?, ?, ?)`,
				sub.ID, previous, string(sub.Status), observed,
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return false, fmt.Errorf("cache submission %d: %w", sub.ID, err)
	}
	return changed, nil
}

// GetSubmission returns the cached snapshot or ErrNotFound.
func (s *Store) GetSubmission(ctx context.Context, id int64) (Snapshot, error) {
	var (
		payload  string
		seq      int64
		observed int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, issue_seq, observed_at FROM submissions WHERE id = ?`, id,
	).Scan(&payload, &seq, &observed)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("submission %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read cached submission %d: %w", id, err)
	}
	var sub submission.Submission
	if err := json.Unmarshal([]byte(payload), &sub); err != nil {
		return Snapshot{}, fmt.Errorf("decode cached submission %d: %w", id, err)
	}
	return Snapshot{Submission: sub, IssueSeq: uint64(seq), ObservedAt: fromMillis(observed)}, nil
}

// History returns observed status changes for a submission, oldest first.
func (s *Store) History(ctx context.Context, id int64) ([]Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_status, to_status, observed_at
		FROM status_history
		WHERE submission_id = ?
		ORDER BY observed_at, id`, id)
	if err != nil {
		return nil, fmt.Errorf("read history %d: %w", id, err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var (
			from, to string
			observed int64
		)
		if err := rows.Scan(&from, &to, &observed); err != nil {
			return nil, err
		}
		out = append(out, Transition{
			From:       submission.Status(from),
			To:         submission.Status(to),
			ObservedAt: fromMillis(observed),
		})
	}
	return out, rows.Err()
}
