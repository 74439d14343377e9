// Package session keeps the signed-in user of one device: who they are,
// which profile they have, and whether a login is in flight.
//
// Two sources write to a device's state: Login, called by the user, and the
// provider's auth-state events. Both go through the Client, which admits one
// writer at a time and drops listener updates while a login or a mismatch
// rollback owns the state.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pesdo/placement-portal/internal/domain/entity"
	"github.com/pesdo/placement-portal/internal/domain/repository"
	"github.com/pesdo/placement-portal/internal/infrastructure/authprovider"
	"github.com/pesdo/placement-portal/internal/metrics"
)

// Provider is the part of the auth provider client a session drives.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*authprovider.Session, error)
	SignOut(ctx context.Context) error
	Session() *authprovider.Session
	Restore(ctx context.Context) (*authprovider.Session, error)
	OnAuthStateChange(fn func(authprovider.Event)) func()
}

// AuditSink records login attempts and user activity. Implementations
// must not fail the caller.
type AuditSink interface {
	LogLogin(ctx context.Context, e entity.LoginLog)
	LogActivity(ctx context.Context, e entity.ActivityLog)
}

type Options struct {
	MismatchHold  time.Duration
	OpTimeout     time.Duration
	AdminFlagKeys []string
	// OnTransition observes every phase change. It runs outside the lock.
	OnTransition func(from, to Phase)
}

type Deps struct {
	Profiles repository.ProfileRepository
	Resolver *Resolver
	Attacher *Attacher
	Audit    AuditSink
	Metrics  metrics.MetricsCollector
	Logger   *logrus.Logger
}

type Client struct {
	provider Provider
	profiles repository.ProfileRepository
	resolver *Resolver
	attacher *Attacher
	audit    AuditSink
	metrics  metrics.MetricsCollector
	logger   *logrus.Logger
	opts     Options

	// opMu serializes the imperative operations (Login, Logout, Init).
	opMu sync.Mutex

	mu            sync.Mutex
	state         State
	phase         Phase
	loggingIn     bool
	mismatch      bool
	mismatchGen   uint64
	mismatchTimer *time.Timer
	epoch         uint64
	unsubscribe   func()
	lastSeen      time.Time
}

func NewClient(provider Provider, deps Deps, opts Options) *Client {
	if opts.MismatchHold <= 0 {
		opts.MismatchHold = 5 * time.Second
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Resolver == nil {
		deps.Resolver = NewResolver(deps.Profiles, opts.OpTimeout)
	}
	if deps.Attacher == nil {
		deps.Attacher = &Attacher{Profiles: deps.Profiles, OpTimeout: opts.OpTimeout, Logger: deps.Logger, Metrics: deps.Metrics}
	}
	return &Client{
		provider: provider,
		profiles: deps.Profiles,
		resolver: deps.Resolver,
		attacher: deps.Attacher,
		audit:    deps.Audit,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		opts:     opts,
		lastSeen: time.Now(),
	}
}

func (c *Client) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.OpTimeout > 0 {
		return context.WithTimeout(ctx, c.opts.OpTimeout)
	}
	return context.WithCancel(ctx)
}

// Snapshot returns a copy of the current state.
func (c *Client) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = time.Now()
	return c.state.clone()
}

// Guard reports the two listener-suppressing flags.
func (c *Client) Guard() (loggingIn, mismatch bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggingIn, c.mismatch
}

func (c *Client) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Client) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

func (c *Client) setPhase(to Phase) {
	c.mu.Lock()
	from := c.phase
	c.phase = to
	c.mu.Unlock()
	c.notify(from, to)
}

func (c *Client) notify(from, to Phase) {
	if c.opts.OnTransition != nil && from != to {
		c.opts.OnTransition(from, to)
	}
}

// Init subscribes to the provider and restores the device's session.
func (c *Client) Init(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.unsubscribe == nil {
		c.unsubscribe = c.provider.OnAuthStateChange(func(ev authprovider.Event) {
			c.HandleAuthEvent(context.Background(), ev)
		})
	}
	c.state.Loading = true
	c.mu.Unlock()

	octx, cancel := c.opCtx(ctx)
	s, err := c.provider.Restore(octx)
	cancel()
	if err != nil || s == nil {
		c.mu.Lock()
		c.state.Loading = false
		c.mu.Unlock()
		return err
	}
	c.adopt(ctx, s, authprovider.EventInitialSession)
	return nil
}

// Login signs in, checks the account type and attaches the profile.
// On any failure the session's identity and profile are left cleared.
func (c *Client) Login(ctx context.Context, email, password string, expected entity.Role) (*Result, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.begin()
	defer c.finish()

	c.teardown(ctx)

	octx, cancel := c.opCtx(ctx)
	sess, err := c.provider.SignInWithPassword(octx, email, password)
	cancel()
	if err != nil {
		c.recordFailure(ctx, "", email, expected, err.Error())
		switch {
		case errors.Is(err, authprovider.ErrEmailNotConfirmed):
			c.metrics.RecordLogin("unconfirmed")
			return nil, ErrEmailNotConfirmed
		case errors.Is(err, authprovider.ErrInvalidCredentials):
			c.metrics.RecordLogin("failed")
			return nil, &authError{err: err}
		}
		c.metrics.RecordLogin("error")
		return nil, fmt.Errorf("sign in: %w", err)
	}

	ident := sess.User
	if !ident.IsConfirmed() {
		c.signOut(ctx)
		c.recordFailure(ctx, ident.ID, email, expected, "Email not confirmed")
		c.metrics.RecordLogin("unconfirmed")
		return nil, ErrEmailNotConfirmed
	}

	c.setPhase(TypeChecking)
	if err := c.resolver.Resolve(ctx, ident.ID, expected); err != nil {
		var mm *MismatchError
		if errors.As(err, &mm) {
			c.rollback()
			c.signOut(ctx)
			c.recordFailure(ctx, ident.ID, email, expected, mm.Error())
			c.metrics.RecordLogin("mismatch")
			return nil, mm
		}
		c.signOut(ctx)
		c.recordFailure(ctx, ident.ID, email, expected, err.Error())
		c.metrics.RecordLogin("error")
		return nil, err
	}

	c.setPhase(ProfileFetching)
	profile := c.attacher.Attach(ctx, &ident)

	c.commit(sess, &ident, profile)
	c.recordSuccess(ctx, &ident, profile)
	c.metrics.RecordLogin("success")
	out := ident
	return &Result{Identity: &out, Profile: profile}, nil
}

func (c *Client) begin() {
	c.mu.Lock()
	from := c.phase
	if c.mismatchTimer != nil {
		c.mismatchTimer.Stop()
		c.mismatchTimer = nil
	}
	c.mismatch = false
	c.loggingIn = true
	c.phase = Authenticating
	for _, k := range c.opts.AdminFlagKeys {
		delete(c.state.Flags, k)
	}
	c.epoch++
	c.lastSeen = time.Now()
	c.mu.Unlock()
	c.notify(from, Authenticating)
}

func (c *Client) finish() {
	c.mu.Lock()
	from := c.phase
	c.loggingIn = false
	c.phase = Idle
	c.mu.Unlock()
	c.notify(from, Idle)
}

// teardown ends a session left over from an earlier login.
func (c *Client) teardown(ctx context.Context) {
	c.mu.Lock()
	had := c.state.Identity != nil
	if had {
		c.state = State{Flags: c.state.Flags}
		c.epoch++
	}
	c.mu.Unlock()
	if had || c.provider.Session() != nil {
		c.signOut(ctx)
	}
}

func (c *Client) signOut(ctx context.Context) {
	octx, cancel := c.opCtx(ctx)
	defer cancel()
	if err := c.provider.SignOut(octx); err != nil {
		c.logger.WithError(err).Warn("provider sign-out failed")
	}
}

func (c *Client) rollback() {
	c.mu.Lock()
	from := c.phase
	c.state = State{Flags: c.state.Flags}
	c.epoch++
	c.phase = MismatchRollback
	c.mismatch = true
	c.mismatchGen++
	gen := c.mismatchGen
	if c.mismatchTimer != nil {
		c.mismatchTimer.Stop()
	}
	c.mismatchTimer = time.AfterFunc(c.opts.MismatchHold, func() { c.clearMismatch(gen) })
	c.mu.Unlock()
	c.notify(from, MismatchRollback)
}

func (c *Client) clearMismatch(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mismatchGen == gen {
		c.mismatch = false
		c.mismatchTimer = nil
	}
}

func (c *Client) commit(sess *authprovider.Session, ident *entity.Identity, profile entity.Profile) {
	c.mu.Lock()
	from := c.phase
	flags := c.state.Flags
	if a, ok := profile.(*entity.AdminProfile); ok {
		if flags == nil {
			flags = map[string]string{}
		}
		for _, k := range c.opts.AdminFlagKeys {
			flags[k] = adminFlagValue(k, ident, a)
		}
	}
	id := *ident
	c.state = State{Identity: &id, Profile: profile, ProfileLoaded: true, SessionID: sess.ID, Flags: flags}
	c.epoch++
	c.phase = Ready
	c.mu.Unlock()
	c.notify(from, Ready)
}

func adminFlagValue(key string, ident *entity.Identity, a *entity.AdminProfile) string {
	switch key {
	case "admin_login_time":
		return time.Now().UTC().Format(time.RFC3339)
	case "admin_email":
		return ident.Email
	case "admin_role":
		return a.Role
	}
	return "true"
}

// HandleAuthEvent applies a provider auth-state change. Events are dropped
// while a login is in flight or a mismatch rollback is being held, and when
// they no longer describe the provider's current session.
func (c *Client) HandleAuthEvent(ctx context.Context, ev authprovider.Event) {
	if ev.Type == authprovider.EventSignedOut {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.loggingIn || c.mismatch {
			c.metrics.RecordAuthEvent(string(ev.Type), true)
			return
		}
		c.metrics.RecordAuthEvent(string(ev.Type), false)
		if c.provider.Session() != nil {
			return
		}
		c.state = State{}
		c.epoch++
		return
	}
	if ev.Session == nil {
		c.mu.Lock()
		c.state.Loading = false
		c.mu.Unlock()
		return
	}
	c.adopt(ctx, ev.Session, ev.Type)
}

func (c *Client) adopt(ctx context.Context, s *authprovider.Session, event authprovider.EventType) {
	c.mu.Lock()
	if c.loggingIn || c.mismatch {
		c.mu.Unlock()
		c.metrics.RecordAuthEvent(string(event), true)
		c.logger.WithField("event", event).Debug("auth event suppressed")
		return
	}
	c.metrics.RecordAuthEvent(string(event), false)
	if cur := c.provider.Session(); cur == nil || cur.ID != s.ID {
		c.mu.Unlock()
		return
	}
	ident := s.User
	if c.state.Identity != nil && c.state.Identity.ID == ident.ID && c.state.ProfileLoaded {
		c.state.Identity = &ident
		c.state.SessionID = s.ID
		c.state.Loading = false
		c.epoch++
		c.mu.Unlock()
		return
	}
	epoch := c.epoch
	c.state.Loading = true
	c.mu.Unlock()

	profile := c.attacher.Attach(ctx, &ident)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loggingIn || c.mismatch || c.epoch != epoch {
		return
	}
	c.state = State{Identity: &ident, Profile: profile, ProfileLoaded: true, SessionID: s.ID, Flags: c.state.Flags}
	c.epoch++
}

// Logout clears the session and signs out of the provider. Provider errors
// are logged.
func (c *Client) Logout(ctx context.Context) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	ident := c.state.Identity
	profile := c.state.Profile
	c.state = State{}
	c.epoch++
	c.mu.Unlock()

	c.signOut(ctx)
	if ident != nil && c.audit != nil {
		c.audit.LogActivity(ctx, activity(ctx, ident, profile, "logout", "User logged out"))
	}
}

// Close detaches from the provider and stops the mismatch timer.
func (c *Client) Close() {
	c.mu.Lock()
	unsub := c.unsubscribe
	c.unsubscribe = nil
	if c.mismatchTimer != nil {
		c.mismatchTimer.Stop()
		c.mismatchTimer = nil
	}
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	if cl, ok := c.provider.(interface{ Close() }); ok {
		cl.Close()
	}
}

func userTypeLabel(p entity.Profile) string {
	if a, ok := p.(*entity.AdminProfile); ok && a.IsSuperAdmin() {
		return entity.SuperAdmin
	}
	return string(p.UserType())
}

func (c *Client) recordFailure(ctx context.Context, uid, email string, expected entity.Role, reason string) {
	if c.audit == nil {
		return
	}
	label := string(expected)
	if label == "" {
		label = "unknown"
	}
	ci := clientInfo(ctx)
	c.audit.LogLogin(ctx, entity.LoginLog{
		UserID:        uid,
		UserType:      label,
		Email:         email,
		Status:        entity.LoginFailed,
		FailureReason: reason,
		IP:            ci.IP,
		UserAgent:     ci.UserAgent,
		CreatedAt:     time.Now(),
	})
}

func (c *Client) recordSuccess(ctx context.Context, ident *entity.Identity, profile entity.Profile) {
	if c.audit == nil {
		return
	}
	if _, ok := profile.(*entity.DefaultProfile); ok {
		return
	}
	ci := clientInfo(ctx)
	c.audit.LogLogin(ctx, entity.LoginLog{
		UserID:    ident.ID,
		UserType:  userTypeLabel(profile),
		Email:     ident.Email,
		Status:    entity.LoginSuccess,
		IP:        ci.IP,
		UserAgent: ci.UserAgent,
		CreatedAt: time.Now(),
	})
}

func activity(ctx context.Context, ident *entity.Identity, profile entity.Profile, action, desc string) entity.ActivityLog {
	ci := clientInfo(ctx)
	a := entity.ActivityLog{
		UserID:            ident.ID,
		ActionType:        action,
		ActionDescription: desc,
		IP:                ci.IP,
		UserAgent:         ci.UserAgent,
		CreatedAt:         time.Now(),
	}
	if profile != nil {
		a.UserType = userTypeLabel(profile)
		a.EntityType = profile.Source().Table()
		a.EntityID = profile.ProfileID()
	}
	return a
}
