package remote

import (
	"context"
	"errors"
	"net/url"

	"scoredesk/internal/logging"
)

// ErrNoCandidates is returned by a chain with nothing to try.
var ErrNoCandidates = errors.New("fallback chain has no candidate paths")

// Chain is an ordered list of candidate paths for one logical operation on a
// backend whose route shape is not settled. Name keys the memoized winner, so
// candidates must be listed in the same order on every call.
type Chain struct {
	Name  string
	Paths []string
}

// DoChain tries the chain's candidates until one answers with something other
// than 404, 405 or 501. The index of that candidate is remembered for Name and
// tried first on later calls. At most maxPathAttempts candidates are tried; the
// last error is returned when none of them exist.
func (c *Client) DoChain(ctx context.Context, method string, chain Chain, query url.Values, body, out any) (string, error) {
	if len(chain.Paths) == 0 {
		return "", ErrNoCandidates
	}

	var lastErr error
	for attempt, idx := range c.chainOrder(chain) {
		if attempt >= c.maxPathAttempts {
			break
		}
		path := chain.Paths[idx]
		err := c.Do(ctx, method, path, query, body, out)
		if apiErr, ok := asAPIError(err); ok && apiErr.routeMissing() {
			lastErr = err
			c.logger.Debug("candidate path absent",
				logging.String("chain", chain.Name),
				logging.String("path", path),
				logging.Int("status", apiErr.Status),
			)
			continue
		}
		if err == nil || isResponseError(err) {
			c.remember(chain.Name, idx)
		}
		return path, err
	}
	return "", lastErr
}

func isResponseError(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.Status > 0
}

func (c *Client) chainOrder(chain Chain) []int {
	order := make([]int, 0, len(chain.Paths))
	c.mu.Lock()
	winner, ok := c.winners[chain.Name]
	c.mu.Unlock()
	if ok && winner < len(chain.Paths) {
		order = append(order, winner)
	}
	for i := range chain.Paths {
		if ok && i == winner {
			continue
		}
		order = append(order, i)
	}
	return order
}

func (c *Client) remember(name string, idx int) {
	if name == "" {
		return
	}
	c.mu.Lock()
	c.winners[name] = idx
	c.mu.Unlock()
}

// Winner reports the memoized candidate index for a chain name.
func (c *Client) Winner(name string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.winners[name]
	return idx, ok
}
