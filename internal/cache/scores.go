package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"scoredesk/internal/scoring"
)

// PutSessionScores replaces the cached snapshot of a session's scores.
func (s *Store) PutSessionScores(ctx context.Context, sessionID int64, scores scoring.SessionScores) error {
	payload, err := json.Marshal(scores)
	if err != nil {
		return fmt.Errorf("encode session %d scores: %w", sessionID, err)
	}
	_, err = s.exec(ctx, `
		INSERT INTO session_scores (session_id, payload, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			payload = excluded.payload,
			fetched_at = excluded.fetched_at`,
		sessionID, string(payload), toMillis(s.now()),
	)
	if err != nil {
		return fmt.Errorf("cache session %d scores: %w", sessionID, err)
	}
	return nil
}

// GetSessionScores returns the cached snapshot and when it was fetched, or
// ErrNotFound.
func (s *Store) GetSessionScores(ctx context.Context, sessionID int64) (scoring.SessionScores, time.Time, error) {
	var (
		payload string
		fetched int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, fetched_at FROM session_scores WHERE session_id = ?`, sessionID,
	).Scan(&payload, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return scoring.SessionScores{}, time.Time{}, fmt.Errorf("session %d: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return scoring.SessionScores{}, time.Time{}, fmt.Errorf("read cached session %d: %w", sessionID, err)
	}
	var scores scoring.SessionScores
	if err := json.Unmarshal([]byte(payload), &scores); err != nil {
		return scoring.SessionScores{}, time.Time{}, fmt.Errorf("decode cached session %d: %w", sessionID, err)
	}
	return scores, fromMillis(fetched), nil
}
