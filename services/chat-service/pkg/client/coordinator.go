package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrReauthenticationRequired is returned for every refresh-side failure.
// The caller must sign in again.
var ErrReauthenticationRequired = errors.New("reauthentication required")

// RefreshFunc exchanges the refresh credential for a new access token.
type RefreshFunc func(ctx context.Context) (string, error)

type refreshResult struct {
	token string
	err   error
}

// RefreshCoordinator collapses concurrent access token refreshes into a
// single call. Build one per client session and share it between callers.
type RefreshCoordinator struct {
	refresh RefreshFunc
	tokens  TokenStore

	mu       sync.Mutex
	inFlight bool
	waiters  []chan refreshResult
}

func NewRefreshCoordinator(refresh RefreshFunc, tokens TokenStore) *RefreshCoordinator {
	return &RefreshCoordinator{
		refresh: refresh,
		tokens:  tokens,
	}
}

// Refresh returns an access token to replace stale, the token a request
// was rejected with. If another caller has already replaced it, that token is
// returned without a new refresh. If a refresh is running, Refresh waits for
// its result. Otherwise it runs one and hands the result to every waiter.
//
// The refresh itself is not cancelled with ctx; ctx only bounds the wait.
func (c *RefreshCoordinator) Refresh(ctx context.Context, stale string) (string, error) {
	c.mu.Lock()

	current, err := c.tokens.Load(ctx)
	if err == nil && current != "" && current != stale {
		c.mu.Unlock()
		return current, nil
	}

	if c.inFlight {
		ch := make(chan refreshResult, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()

		select {
		case res := <-ch:
			return res.token, res.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	c.inFlight = true
	c.mu.Unlock()

	// Waiters are released even if the refresh panics.
	res := refreshResult{err: fmt.Errorf("%w: refresh aborted", ErrReauthenticationRequired)}
	defer func() {
		c.mu.Lock()
		c.inFlight = false
		waiters := c.waiters
		c.waiters = nil
		c.mu.Unlock()

		for _, ch := range waiters {
			ch <- res
		}
	}()

	res = c.run(context.WithoutCancel(ctx))

	return res.token, res.err
}

func (c *RefreshCoordinator) run(ctx context.Context) refreshResult {
	token, err := c.refresh(ctx)
	if err == nil && token == "" {
		err = errors.New("empty access token")
	}
	if err != nil {
		_ = c.tokens.Clear(ctx)
		return refreshResult{err: fmt.Errorf("%w: %v", ErrReauthenticationRequired, err)}
	}

	if err := c.tokens.Save(ctx, token); err != nil {
		return refreshResult{err: fmt.Errorf("save access token: %w", err)}
	}

	return refreshResult{token: token}
}
