package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"scoredesk/internal/remote"
)

// API reads submissions and requests actions on them.
type API struct {
	client *remote.Client
}

func NewAPI(client *remote.Client) *API {
	return &API{client: client}
}

// Get fetches the current representation of one submission.
func (a *API) Get(ctx context.Context, id int64) (Submission, error) {
	var sub Submission
	if err := a.client.Get(ctx, fmt.Sprintf("/submissions/%d/", id), nil, &sub); err != nil {
		return Submission{}, fmt.Errorf("fetch submission %d: %w", id, err)
	}
	return sub, nil
}

// ListFilter narrows a submission listing. Zero values are ignored.
type ListFilter struct {
	ExamID       int64
	EnrollmentID int64
	Status       Status
	Limit        int
}

func (f ListFilter) values() url.Values {
	query := url.Values{}
	if f.ExamID > 0 {
		query.Set("target_type", string(TargetExam))
		query.Set("target_id", strconv.FormatInt(f.ExamID, 10))
	}
	if f.EnrollmentID > 0 {
		query.Set("enrollment_id", strconv.FormatInt(f.EnrollmentID, 10))
	}
	if f.Status != "" {
		query.Set("status", string(f.Status))
	}
	if f.Limit > 0 {
		query.Set("limit", strconv.Itoa(f.Limit))
	}
	return query
}

// List returns submissions matching filter. The admin listing route differs
// between backend deployments, so candidates are probed in order.
func (a *API) List(ctx context.Context, filter ListFilter) ([]Submission, error) {
	chain := remote.Chain{Name: "submission_list", Paths: []string{
		"/submissions/admin/submissions/",
		"/submissions/submissions/",
		"/submissions/",
	}}
	var raw json.RawMessage
	if _, err := a.client.DoChain(ctx, http.MethodGet, chain, filter.values(), nil, &raw); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return DecodeList(raw)
}

// RequestRetry asks the server to reprocess a submission. It does not check
// the current status; see the reprocess package for the guarded flow.
func (a *API) RequestRetry(ctx context.Context, id int64) error {
	chain := remote.Chain{Name: "submission_retry", Paths: []string{
		fmt.Sprintf("/submissions/%d/retry/", id),
		fmt.Sprintf("/submissions/submissions/%d/retry/", id),
	}}
	if _, err := a.client.DoChain(ctx, http.MethodPost, chain, nil, map[string]any{}, nil); err != nil {
		return fmt.Errorf("retry submission %d: %w", id, err)
	}
	return nil
}
