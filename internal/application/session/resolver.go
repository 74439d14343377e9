package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pesdo/placement-portal/internal/domain/entity"
	"github.com/pesdo/placement-portal/internal/domain/repository"
)

// Resolver checks that an identity belongs to the role it is logging in as.
// It only reads.
type Resolver struct {
	Profiles  repository.ProfileRepository
	OpTimeout time.Duration
}

func NewResolver(profiles repository.ProfileRepository, opTimeout time.Duration) *Resolver {
	return &Resolver{Profiles: profiles, OpTimeout: opTimeout}
}

func (r *Resolver) find(ctx context.Context, role entity.Role, id string) (entity.Profile, error) {
	if r.OpTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.OpTimeout)
		defer cancel()
	}
	return repository.FindByRole(ctx, r.Profiles, role, id)
}

// Resolve returns nil when id may log in as expected, a *MismatchError when
// it is registered under another role, and an ErrProfileLookup error when a
// table could not be read. An empty expected role, or an identity with no
// profile row anywhere, resolves successfully.
func (r *Resolver) Resolve(ctx context.Context, id string, expected entity.Role) error {
	if expected == entity.RoleNone {
		return nil
	}
	p, err := r.find(ctx, expected, id)
	switch {
	case err == nil:
		if found := p.UserType(); found != expected {
			return &MismatchError{Expected: expected, Found: found}
		}
		return nil
	case !errors.Is(err, repository.ErrProfileNotFound):
		return fmt.Errorf("%w: %s: %v", ErrProfileLookup, expected.Table(), err)
	}

	for _, role := range entity.ProbeOrder {
		if role == expected {
			continue
		}
		_, err := r.find(ctx, role, id)
		if err == nil {
			return &MismatchError{Expected: expected, Found: role}
		}
		if !errors.Is(err, repository.ErrProfileNotFound) {
			return fmt.Errorf("%w: %s: %v", ErrProfileLookup, role.Table(), err)
		}
	}
	return nil
}
