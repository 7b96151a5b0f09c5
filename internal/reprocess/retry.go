package reprocess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"scoredesk/internal/logging"
	"scoredesk/internal/remote"
	"scoredesk/internal/statussync"
	"scoredesk/internal/submission"
)

// ErrNotRetryable is returned when a submission's status does not allow a
// retry. No request is sent in that case.
var ErrNotRetryable = errors.New("submission is not in a retryable status")

// SubmissionService is the subset of submission.API the controller needs.
type SubmissionService interface {
	Get(ctx context.Context, id int64) (submission.Submission, error)
	RequestRetry(ctx context.Context, id int64) error
}

// Controller requests reprocessing of failed or blocked submissions.
type Controller struct {
	service SubmissionService
	logger  *slog.Logger
}

// NewController builds a controller.
func NewController(service SubmissionService, logger *slog.Logger) *Controller {
	return &Controller{service: service, logger: logging.NewComponentLogger(logger, "reprocess")}
}

// RetrySubmission requests a retry for sub using its known status. The local
// value is never modified; callers resume synchronization to observe the new
// status.
func (c *Controller) RetrySubmission(ctx context.Context, sub submission.Submission) error {
	if !sub.Status.IsRetryable() {
		return fmt.Errorf("submission %d (%s): %w", sub.ID, sub.Status, ErrNotRetryable)
	}
	ctx = logging.WithSubmissionID(ctx, sub.ID)
	logger := logging.WithContext(ctx, c.logger)
	if err := c.service.RequestRetry(ctx, sub.ID); err != nil {
		logger.Warn("retry request failed",
			logging.String(logging.FieldEventType, "retry_failed"),
			logging.String(logging.FieldErrorHint, remote.OperatorMessage(err)),
			logging.Error(err),
		)
		return fmt.Errorf("retry submission %d: %w", sub.ID, err)
	}
	logger.Info("retry requested", logging.String("prior_status", string(sub.Status)))
	return nil
}

// Retry fetches id to check its current status and then requests a retry.
func (c *Controller) Retry(ctx context.Context, id int64) (submission.Submission, error) {
	sub, err := c.service.Get(ctx, id)
	if err != nil {
		return submission.Submission{}, fmt.Errorf("load submission %d: %w", id, err)
	}
	return sub, c.RetrySubmission(ctx, sub)
}

// RetryAndWatch requests a retry and then watches id until it settles again.
func (c *Controller) RetryAndWatch(ctx context.Context, id int64, watcher *statussync.Watcher, observe func(statussync.Observation)) (statussync.Result, error) {
	if _, err := c.Retry(ctx, id); err != nil {
		return statussync.Result{SubmissionID: id}, err
	}
	return watcher.Watch(ctx, id, observe), nil
}

// Outcome describes what happened to one id in a batch retry.
type Outcome string

const (
	OutcomeRetried      Outcome = "retried"
	OutcomeNotFound     Outcome = "not_found"
	OutcomeNotRetryable Outcome = "not_retryable"
	OutcomeError        Outcome = "error"
)

// ItemResult is the per-id result of RetryMany.
type ItemResult struct {
	ID          int64             `json:"id"`
	Outcome     Outcome           `json:"outcome"`
	PriorStatus submission.Status `json:"prior_status,omitempty"`
	Message     string            `json:"message,omitempty"`
}

// BatchResult aggregates RetryMany.
type BatchResult struct {
	RetriedCount int          `json:"retriedCount"`
	Items        []ItemResult `json:"items"`
}

// RetryMany retries each id independently. Failures for one id never stop
// the rest; only context cancellation ends the batch early.
func (c *Controller) RetryMany(ctx context.Context, ids []int64) (BatchResult, error) {
	result := BatchResult{Items: make([]ItemResult, 0, len(ids))}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		sub, err := c.service.Get(ctx, id)
		if err != nil {
			result.Items = append(result.Items, failedItem(id, "", err))
			continue
		}
		if !sub.Status.IsRetryable() {
			result.Items = append(result.Items, ItemResult{ID: id, Outcome: OutcomeNotRetryable, PriorStatus: sub.Status})
			continue
		}
		if err := c.RetrySubmission(ctx, sub); err != nil {
			result.Items = append(result.Items, failedItem(id, sub.Status, err))
			continue
		}
		result.RetriedCount++
		result.Items = append(result.Items, ItemResult{ID: id, Outcome: OutcomeRetried, PriorStatus: sub.Status})
	}
	return result, nil
}

func failedItem(id int64, prior submission.Status, err error) ItemResult {
	outcome := OutcomeError
	if remote.IsNotFound(err) {
		outcome = OutcomeNotFound
	}
	return ItemResult{ID: id, Outcome: outcome, PriorStatus: prior, Message: remote.OperatorMessage(err)}
}
