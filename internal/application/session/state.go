package session

import (
	"context"

	"github.com/pesdo/placement-portal/internal/domain/entity"
)

// Phase is the login state machine position.
type Phase int

const (
	Idle Phase = iota
	Authenticating
	TypeChecking
	ProfileFetching
	Ready
	MismatchRollback
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Authenticating:
		return "authenticating"
	case TypeChecking:
		return "type_checking"
	case ProfileFetching:
		return "profile_fetching"
	case Ready:
		return "ready"
	case MismatchRollback:
		return "mismatch_rollback"
	}
	return "unknown"
}

// State is the signed-in user as one device sees it.
type State struct {
	Identity      *entity.Identity
	Profile       entity.Profile
	ProfileLoaded bool
	Loading       bool
	SessionID     string
	// Flags mirrors the browser's local admin flags.
	Flags map[string]string
}

// clone copies the maps and the identity so callers cannot alias live state.
func (s State) clone() State {
	if s.Identity != nil {
		id := *s.Identity
		s.Identity = &id
	}
	if s.Flags != nil {
		f := make(map[string]string, len(s.Flags))
		for k, v := range s.Flags {
			f[k] = v
		}
		s.Flags = f
	}
	return s
}

// Result is what a successful Login returns.
type Result struct {
	Identity *entity.Identity
	Profile  entity.Profile
}

type clientInfoKey struct{}

// ClientInfo is the request origin recorded in audit entries.
type ClientInfo struct {
	IP        string
	UserAgent string
}

func WithClientInfo(ctx context.Context, ci ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, ci)
}

func clientInfo(ctx context.Context) ClientInfo {
	ci, _ := ctx.Value(clientInfoKey{}).(ClientInfo)
	return ci
}
