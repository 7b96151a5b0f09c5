package cache

import (
	"context"
	"fmt"
	"time"
)

// PruneResult counts rows removed by Prune.
type PruneResult struct {
	Submissions   int64
	History       int64
	SessionScores int64
}

func (r PruneResult) Total() int64 { return r.Submissions + r.History + r.SessionScores }

// Prune removes cache entries last observed before cutoff, together with the
// history of pruned submissions.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (PruneResult, error) {
	ms := toMillis(cutoff)
	var result PruneResult

	res, err := s.exec(ctx, `
		DELETE FROM status_history
		WHERE submission_id IN (SELECT id FROM submissions WHERE observed_at < ?)`, ms)
	if err != nil {
		return result, fmt.Errorf("prune history: %w", err)
	}
	result.History, _ = res.RowsAffected()

	res, err = s.exec(ctx, `DELETE FROM submissions WHERE observed_at < ?`, ms)
	if err != nil {
		return result, fmt.Errorf("prune submissions: %w", err)
	}
	result.Submissions, _ = res.RowsAffected()

	res, err = s.exec(ctx, `DELETE FROM session_scores WHERE fetched_at < ?`, ms)
	if err != nil {
		return result, fmt.Errorf("prune session scores: %w", err)
	}
	result.SessionScores, _ = res.RowsAffected()
	return result, nil
}
