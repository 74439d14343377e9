package session

import (
	"context"
	"time"

	"github.com/pesdo/placement-portal/internal/domain/entity"
	"github.com/pesdo/placement-portal/internal/domain/repository"
)

func (c *Client) current() (*entity.Identity, entity.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = time.Now()
	if c.state.Identity == nil {
		return nil, nil
	}
	id := *c.state.Identity
	return &id, c.state.Profile
}

// merge replaces the profile when the same identity is still signed in.
func (c *Client) merge(uid string, p entity.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Identity == nil || c.state.Identity.ID != uid {
		return
	}
	c.state.Profile = p
	c.state.ProfileLoaded = true
}

// RefreshProfile re-reads the profile from the table it came from, retrying
// transient store errors. A synthesized default profile triggers a full probe.
func (c *Client) RefreshProfile(ctx context.Context) (entity.Profile, error) {
	ident, prof := c.current()
	if ident == nil {
		return nil, ErrNotAuthenticated
	}
	var (
		p   entity.Profile
		err error
	)
	if prof == nil || prof.Source() == entity.RoleNone {
		p = c.attacher.Attach(ctx, ident)
	} else if p, err = c.attacher.Fetch(ctx, prof.Source(), ident.ID); err != nil {
		return nil, err
	}
	c.merge(ident.ID, p)
	return p, nil
}

// UpdateProfile writes jobseeker fields and merges the stored row into the session.
func (c *Client) UpdateProfile(ctx context.Context, upd repository.JobseekerUpdate) (entity.Profile, error) {
	ident, prof := c.current()
	if ident == nil {
		return nil, ErrNotAuthenticated
	}
	if prof == nil || prof.Source() != entity.RoleJobseeker {
		return nil, ErrUnsupportedProfile
	}
	if upd.Empty() {
		return prof, nil
	}
	octx, cancel := c.opCtx(ctx)
	p, err := c.profiles.UpdateJobseeker(octx, ident.ID, upd)
	cancel()
	if err != nil {
		return nil, err
	}
	c.merge(ident.ID, p)
	if c.audit != nil {
		c.audit.LogActivity(ctx, activity(ctx, ident, p, "profile_update", "Updated profile"))
	}
	return p, nil
}

func (c *Client) UpdateProfilePicture(ctx context.Context, url string) (entity.Profile, error) {
	return c.UpdateProfile(ctx, repository.JobseekerUpdate{ProfilePictureURL: &url})
}
