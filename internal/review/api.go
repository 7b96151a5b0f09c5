package review

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"scoredesk/internal/logging"
	"scoredesk/internal/remote"
)

var candidateBases = []string{"/submissions", "/submissions/submissions"}

var routeNames = []string{"manual-review", "manual_edit", "manual-edit"}

// reviewChain lists every known manual-review route for id. All deployments
// expose the same route for reads and writes, so both share one memoized
// chain.
func reviewChain(id int64) remote.Chain {
	paths := make([]string, 0, len(candidateBases)*len(routeNames))
	for _, base := range candidateBases {
		for _, name := range routeNames {
			paths = append(paths, fmt.Sprintf("%s/%d/%s/", base, id, name))
		}
	}
	return remote.Chain{Name: "manual_review", Paths: paths}
}

// API reads and commits manual reviews.
type API struct {
	client *remote.Client
	logger *slog.Logger
}

// NewAPI builds a review API on client.
func NewAPI(client *remote.Client, logger *slog.Logger) *API {
	return &API{client: client, logger: logging.NewComponentLogger(logger, "review")}
}

// Fetch returns the server-confirmed extracted data for submission id.
func (a *API) Fetch(ctx context.Context, id int64) (Review, error) {
	var out Review
	if _, err := a.client.DoChain(ctx, http.MethodGet, reviewChain(id), nil, nil, &out); err != nil {
		return Review{}, fmt.Errorf("fetch manual review %d: %w", id, err)
	}
	return out, nil
}

// Save validates req and commits it, which also requests regrading. Nothing
// is sent when validation fails.
func (a *API) Save(ctx context.Context, id int64, req SaveRequest) (SaveResult, error) {
	if err := req.Validate(); err != nil {
		return SaveResult{}, err
	}
	ctx = logging.WithSubmissionID(ctx, id)
	var out SaveResult
	path, err := a.client.DoChain(ctx, http.MethodPost, reviewChain(id), nil, req, &out)
	if err != nil {
		return SaveResult{}, fmt.Errorf("save manual review %d: %w", id, err)
	}
	logging.WithContext(ctx, a.logger).Info("manual review committed",
		logging.String("path", path),
		logging.Int("answers", len(req.Answers)),
	)
	if out.SubmissionID == 0 {
		out.SubmissionID = id
	}
	return out, nil
}
