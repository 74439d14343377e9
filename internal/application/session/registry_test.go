package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pesdo/placement-portal/internal/domain/entity"
	"github.com/pesdo/placement-portal/internal/domain/repository"
	"github.com/pesdo/placement-portal/internal/infrastructure/authprovider"
	"github.com/pesdo/placement-portal/pkg/helpers"
)

type memIdentities struct {
	mu   sync.Mutex
	rows map[string]entity.Identity
}

func (m *memIdentities) Create(_ context.Context, i *entity.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[i.ID] = *i
	return nil
}

func (m *memIdentities) GetByID(_ context.Context, id string) (*entity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.rows[id]; ok {
		return &i, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memIdentities) GetByEmail(_ context.Context, email string) (*entity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, i := range m.rows {
		if i.Email == email {
			return &i, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memIdentities) ConfirmEmail(context.Context, string) error          { return nil }
func (m *memIdentities) UpdatePassword(context.Context, string, string) error { return nil }

// newLiveRegistry wires sessions to the real provider over miniredis.
func newLiveRegistry(t *testing.T) (*Registry, *fakeProfiles) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hash, err := helpers.HashPasswordCost(password, bcrypt.MinCost)
	require.NoError(t, err)
	now := time.Now()
	ids := &memIdentities{rows: map[string]entity.Identity{
		"e1": {ID: "e1", Email: "boss@x.ph", PasswordHash: hash, EmailConfirmedAt: &now},
		"j1": {ID: "j1", Email: "juan@x.ph", PasswordHash: hash, EmailConfirmedAt: &now},
	}}
	profiles := seededProfiles()

	jwt := helpers.NewJWTManager("a", "r", time.Minute, time.Hour)
	provider := authprovider.NewService(ids, authprovider.NewRedisSessionStore(rdb), jwt, quietLogger(), false)

	reg := NewRegistry(func(deviceID string) *Client {
		return NewClient(provider.NewClient(deviceID), Deps{Profiles: profiles, Logger: quietLogger()},
			Options{MismatchHold: 50 * time.Millisecond, OpTimeout: time.Second})
	})
	t.Cleanup(reg.Close)
	return reg, profiles
}

func TestRegistry_LoginSurvivesAsyncEvents(t *testing.T) {
	reg, _ := newLiveRegistry(t)
	ctx := context.Background()

	c, err := reg.Get(ctx, "dev-1")
	require.NoError(t, err)
	_, err = c.Login(ctx, "juan@x.ph", password, entity.RoleJobseeker)
	require.NoError(t, err)

	// SIGNED_IN arrives after the login has committed and must not undo it.
	time.Sleep(50 * time.Millisecond)
	st := c.Snapshot()
	require.NotNil(t, st.Identity)
	assert.Equal(t, "j1", st.Identity.ID)

	again, err := reg.Get(ctx, "dev-1")
	require.NoError(t, err)
	assert.Same(t, c, again)
}

func TestRegistry_MismatchLeavesDeviceSignedOut(t *testing.T) {
	reg, _ := newLiveRegistry(t)
	ctx := context.Background()

	c, err := reg.Get(ctx, "dev-1")
	require.NoError(t, err)
	_, err = c.Login(ctx, "boss@x.ph", password, entity.RoleJobseeker)
	require.ErrorIs(t, err, ErrAccountTypeMismatch)

	time.Sleep(100 * time.Millisecond)
	assert.Nil(t, c.Snapshot().Identity)
	_, mismatch := c.Guard()
	assert.False(t, mismatch)
}

func TestRegistry_RestoreAfterSweep(t *testing.T) {
	reg, _ := newLiveRegistry(t)
	ctx := context.Background()

	c, err := reg.Get(ctx, "dev-1")
	require.NoError(t, err)
	_, err = c.Login(ctx, "boss@x.ph", password, entity.RoleEmployer)
	require.NoError(t, err)

	assert.Equal(t, 0, reg.Sweep(time.Hour))
	assert.Equal(t, 1, reg.Sweep(0))
	assert.Equal(t, 0, reg.Len())

	restored, err := reg.Get(ctx, "dev-1")
	require.NoError(t, err)
	assert.NotSame(t, c, restored)
	st := restored.Snapshot()
	require.NotNil(t, st.Identity)
	assert.Equal(t, "e1", st.Identity.ID)
	assert.Equal(t, entity.RoleEmployer, st.Profile.UserType())
}

func TestRegistry_Teardown(t *testing.T) {
	reg, _ := newLiveRegistry(t)
	ctx := context.Background()

	c, err := reg.Get(ctx, "dev-1")
	require.NoError(t, err)
	_, err = c.Login(ctx, "juan@x.ph", password, entity.RoleJobseeker)
	require.NoError(t, err)

	reg.Teardown(ctx, "dev-1")
	_, ok := reg.Lookup("dev-1")
	assert.False(t, ok)

	fresh, err := reg.Get(ctx, "dev-1")
	require.NoError(t, err)
	assert.Nil(t, fresh.Snapshot().Identity)
}

// gatedRegistry builds clients over one fake provider whose Restore blocks
// until the returned gate is closed.
func gatedRegistry(t *testing.T) (*Registry, *fakeProvider, chan struct{}) {
	t.Helper()
	provider := newFakeProvider()
	provider.restore = &authprovider.Session{ID: "restored", User: confirmedIdentity("j1", "juan@x.ph")}
	gate := make(chan struct{})
	provider.restoreGate = gate
	provider.restoreStarted = make(chan struct{}, 1)

	profiles := seededProfiles()
	reg := NewRegistry(func(string) *Client {
		return NewClient(provider, Deps{Profiles: profiles, Logger: quietLogger()}, Options{OpTimeout: time.Second})
	})
	t.Cleanup(reg.Close)
	return reg, provider, gate
}

func TestRegistry_ConcurrentGetWaitsForRestore(t *testing.T) {
	reg, provider, gate := gatedRegistry(t)
	ctx := context.Background()

	type result struct {
		c   *Client
		err error
	}
	first := make(chan result, 1)
	go func() {
		c, err := reg.Get(ctx, "dev-1")
		first <- result{c, err}
	}()
	<-provider.restoreStarted

	// The device is known but still restoring.
	_, ok := reg.Lookup("dev-1")
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Sweep(0))

	second := make(chan result, 1)
	go func() {
		c, err := reg.Get(ctx, "dev-1")
		second <- result{c, err}
	}()
	select {
	case <-second:
		t.Fatal("second Get returned before the first Init finished")
	case <-time.After(30 * time.Millisecond):
	}

	close(gate)
	a, b := <-first, <-second
	require.NoError(t, a.err)
	require.NoError(t, b.err)
	assert.Same(t, a.c, b.c)
	st := b.c.Snapshot()
	require.NotNil(t, st.Identity)
	assert.Equal(t, "j1", st.Identity.ID)
	assert.Equal(t, 1, provider.Restores())
}

func TestRegistry_ConcurrentGetSharesInitError(t *testing.T) {
	reg, provider, gate := gatedRegistry(t)
	provider.restoreErr = errors.New("redis down")
	ctx := context.Background()

	errs := make(chan error, 2)
	go func() {
		_, err := reg.Get(ctx, "dev-1")
		errs <- err
	}()
	<-provider.restoreStarted
	go func() {
		_, err := reg.Get(ctx, "dev-1")
		errs <- err
	}()
	time.Sleep(20 * time.Millisecond)
	close(gate)

	assert.EqualError(t, <-errs, "redis down")
	assert.EqualError(t, <-errs, "redis down")
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, 1, provider.Restores())

	// The next request retries from scratch.
	provider.mu.Lock()
	provider.restoreErr = nil
	provider.mu.Unlock()
	c, err := reg.Get(ctx, "dev-1")
	require.NoError(t, err)
	assert.NotNil(t, c.Snapshot().Identity)
	assert.Equal(t, 2, provider.Restores())
}

func TestRegistry_WaitingGetHonoursContext(t *testing.T) {
	reg, provider, gate := gatedRegistry(t)
	defer close(gate)

	go func() { _, _ = reg.Get(context.Background(), "dev-1") }()
	<-provider.restoreStarted

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := reg.Get(ctx, "dev-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
