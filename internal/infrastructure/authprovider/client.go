package authprovider

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const eventBuffer = 64

// Client is the provider as one browser device sees it. Auth-state events
// are delivered to listeners asynchronously, in emission order, on the
// client's own dispatcher goroutine.
type Client struct {
	svc      *Service
	deviceID string

	mu        sync.Mutex
	session   *Session
	listeners map[int]func(Event)
	nextID    int

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(svc *Service, deviceID string) *Client {
	c := &Client{
		svc:       svc,
		deviceID:  deviceID,
		listeners: make(map[int]func(Event)),
		events:    make(chan Event, eventBuffer),
		done:      make(chan struct{}),
	}
	go c.dispatch()
	return c
}

func (c *Client) DeviceID() string { return c.deviceID }

func (c *Client) dispatch() {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.events:
			c.mu.Lock()
			fns := make([]func(Event), 0, len(c.listeners))
			for _, fn := range c.listeners {
				fns = append(fns, fn)
			}
			c.mu.Unlock()
			for _, fn := range fns {
				fn(ev)
			}
		}
	}
}

func (c *Client) emit(t EventType, s *Session) {
	ev := Event{Type: t}
	if s != nil {
		cp := *s
		ev.Session = &cp
	}
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// OnAuthStateChange registers fn and returns its unsubscribe func.
func (c *Client) OnAuthStateChange(fn func(Event)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Session returns a copy of the current session, or nil when signed out.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	cp := *c.session
	return &cp
}

func (c *Client) swap(s *Session) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.session
	c.session = s
	return prev
}

func (c *Client) drop(ctx context.Context, s *Session) {
	if s == nil {
		return
	}
	err := c.svc.Sessions.Delete(ctx, StoredSession{SessionID: s.ID, UserID: s.User.ID, DeviceID: c.deviceID})
	if err != nil && c.svc.Logger != nil {
		c.svc.Logger.WithError(err).WithField("sid", s.ID).Warn("drop provider session")
	}
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	i, err := c.svc.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s, err := c.svc.issue(ctx, i, c.deviceID, uuid.NewString())
	if err != nil {
		return nil, err
	}
	c.drop(ctx, c.swap(s))
	c.emit(EventSignedIn, s)
	cp := *s
	return &cp, nil
}

// SignOut ends the current session. SIGNED_OUT is emitted even when there
// was no session.
func (c *Client) SignOut(ctx context.Context) error {
	prev := c.swap(nil)
	var err error
	if prev != nil {
		err = c.svc.Sessions.Delete(ctx, StoredSession{SessionID: prev.ID, UserID: prev.User.ID, DeviceID: c.deviceID})
	}
	c.emit(EventSignedOut, nil)
	return err
}

// Restore loads the device's stored session and emits INITIAL_SESSION.
func (c *Client) Restore(ctx context.Context) (*Session, error) {
	stored, err := c.svc.Sessions.LoadByDevice(ctx, c.deviceID)
	if errors.Is(err, ErrSessionNotFound) {
		c.swap(nil)
		c.emit(EventInitialSession, nil)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	i, err := c.svc.Identities.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}
	s, err := c.svc.issue(ctx, i, c.deviceID, stored.SessionID)
	if err != nil {
		return nil, err
	}
	c.swap(s)
	c.emit(EventInitialSession, s)
	cp := *s
	return &cp, nil
}

// Refresh exchanges a refresh token for a new session, rotating the session id.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := c.svc.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	stored, err := c.svc.Sessions.Load(ctx, claims.SessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, err
	}
	if stored.UserID != claims.UserID || stored.DeviceID != c.deviceID {
		return nil, ErrInvalidRefreshToken
	}
	i, err := c.svc.Identities.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}
	if err := c.svc.Sessions.Delete(ctx, *stored); err != nil {
		return nil, err
	}
	s, err := c.svc.issue(ctx, i, c.deviceID, uuid.NewString())
	if err != nil {
		return nil, err
	}
	c.swap(s)
	c.emit(EventTokenRefreshed, s)
	if c.svc.Logger != nil {
		c.svc.Logger.WithFields(logrus.Fields{"uid": i.ID, "device": c.deviceID}).Debug("session refreshed")
	}
	cp := *s
	return &cp, nil
}

// Close stops the dispatcher. Pending events are dropped.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
