package session

import (
	"context"
	"errors"

	"github.com/pesdo/placement-portal/internal/infrastructure/authprovider"
)

// Refresher is implemented by providers that can rotate a session.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*authprovider.Session, error)
}

var ErrRefreshUnsupported = errors.New("provider cannot refresh sessions")

// Tokens returns the provider's current session, or nil when signed out.
func (c *Client) Tokens() *authprovider.Session {
	return c.provider.Session()
}

// Refresh rotates the provider session. The resulting TOKEN_REFRESHED event
// updates the state through the listener.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*authprovider.Session, error) {
	r, ok := c.provider.(Refresher)
	if !ok {
		return nil, ErrRefreshUnsupported
	}
	c.opMu.Lock()
	defer c.opMu.Unlock()

	octx, cancel := c.opCtx(ctx)
	defer cancel()
	return r.Refresh(octx, refreshToken)
}
