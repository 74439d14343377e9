package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pesdo/placement-portal/internal/domain/entity"
	"github.com/pesdo/placement-portal/internal/domain/repository"
	"github.com/pesdo/placement-portal/internal/metrics"
)

// Attacher loads the profile row for an identity.
type Attacher struct {
	Profiles   repository.ProfileRepository
	OpTimeout  time.Duration
	Retries    int
	RetryDelay time.Duration
	Logger     *logrus.Logger
	Metrics    metrics.MetricsCollector
}

// Fetch reads the row for id from role's table. Transient store errors are
// retried; a missing row is returned immediately as ErrProfileNotFound.
func (a *Attacher) Fetch(ctx context.Context, role entity.Role, id string) (entity.Profile, error) {
	var lastErr error
	for attempt := 0; attempt <= a.Retries; attempt++ {
		if attempt > 0 {
			if a.Metrics != nil {
				a.Metrics.RecordProfileFetchRetry(role.Table())
			}
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrProfileFetchFailed, ctx.Err())
			case <-time.After(a.RetryDelay):
			}
		}
		p, err := a.find(ctx, role, id)
		if err == nil {
			return p, nil
		}
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrProfileFetchFailed, role.Table(), lastErr)
}

func (a *Attacher) find(ctx context.Context, role entity.Role, id string) (entity.Profile, error) {
	if a.OpTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.OpTimeout)
		defer cancel()
	}
	return repository.FindByRole(ctx, a.Profiles, role, id)
}

// Attach probes the tables in ProbeOrder and returns the first row found.
// It never fails: a table that cannot be read counts as a miss and an
// identity with no row gets a DefaultProfile.
func (a *Attacher) Attach(ctx context.Context, ident *entity.Identity) entity.Profile {
	for _, role := range entity.ProbeOrder {
		p, err := a.Fetch(ctx, role, ident.ID)
		if err == nil {
			return p
		}
		if !errors.Is(err, repository.ErrProfileNotFound) && a.Logger != nil {
			a.Logger.WithError(err).WithField("uid", ident.ID).Warn("profile fetch absorbed")
		}
	}
	return &entity.DefaultProfile{ID: ident.ID, Email: ident.Email}
}
