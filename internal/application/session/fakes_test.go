package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pesdo/placement-portal/internal/domain/entity"
	"github.com/pesdo/placement-portal/internal/domain/repository"
	"github.com/pesdo/placement-portal/internal/infrastructure/authprovider"
)

var errStoreDown = errors.New("connection refused")

type fakeProfiles struct {
	mu         sync.Mutex
	admins     map[string]*entity.AdminProfile
	employers  map[string]*entity.EmployerProfile
	jobseekers map[string]*entity.JobseekerProfile
	// failures per role; -1 fails forever
	failures map[entity.Role]int
	calls    []entity.Role
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		admins:     map[string]*entity.AdminProfile{},
		employers:  map[string]*entity.EmployerProfile{},
		jobseekers: map[string]*entity.JobseekerProfile{},
		failures:   map[entity.Role]int{},
	}
}

func (f *fakeProfiles) hit(role entity.Role) error {
	f.calls = append(f.calls, role)
	switch n := f.failures[role]; {
	case n < 0:
		return errStoreDown
	case n > 0:
		f.failures[role] = n - 1
		return errStoreDown
	}
	return nil
}

func (f *fakeProfiles) Calls() []entity.Role {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.Role(nil), f.calls...)
}

func (f *fakeProfiles) FindAdmin(_ context.Context, id string) (*entity.AdminProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit(entity.RoleAdmin); err != nil {
		return nil, err
	}
	if p, ok := f.admins[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, repository.ErrProfileNotFound
}

func (f *fakeProfiles) FindEmployer(_ context.Context, id string) (*entity.EmployerProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit(entity.RoleEmployer); err != nil {
		return nil, err
	}
	if p, ok := f.employers[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, repository.ErrProfileNotFound
}

func (f *fakeProfiles) FindJobseeker(_ context.Context, id string) (*entity.JobseekerProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit(entity.RoleJobseeker); err != nil {
		return nil, err
	}
	if p, ok := f.jobseekers[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, repository.ErrProfileNotFound
}

func (f *fakeProfiles) CreateAdmin(_ context.Context, p *entity.AdminProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.admins[p.ID] = p
	return nil
}

func (f *fakeProfiles) CreateEmployer(_ context.Context, p *entity.EmployerProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.employers[p.ID] = p
	return nil
}

func (f *fakeProfiles) CreateJobseeker(_ context.Context, p *entity.JobseekerProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobseekers[p.ID] = p
	return nil
}

func (f *fakeProfiles) UpdateJobseeker(_ context.Context, id string, u repository.JobseekerUpdate) (*entity.JobseekerProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.jobseekers[id]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&p.FirstName, u.FirstName)
	set(&p.LastName, u.LastName)
	set(&p.Suffix, u.Suffix)
	set(&p.Phone, u.Phone)
	set(&p.ProfilePictureURL, u.ProfilePictureURL)
	set(&p.ResumeURL, u.ResumeURL)
	cp := *p
	return &cp, nil
}

type account struct {
	password string
	identity entity.Identity
}

// fakeProvider never emits events on its own; tests feed HandleAuthEvent.
type fakeProvider struct {
	mu        sync.Mutex
	accounts  map[string]account
	current   *authprovider.Session
	signOuts  int
	signInErr error
	restore   *authprovider.Session

	// restoreGate, when set, stalls Restore until closed.
	restoreGate    chan struct{}
	restoreStarted chan struct{}
	restoreErr     error
	restores       int

	// block, when set, stalls sign-in after the session is opened.
	block    chan struct{}
	started  chan struct{}
	listener func(authprovider.Event)
	seq      int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{accounts: map[string]account{}}
}

func confirmedIdentity(id, email string) entity.Identity {
	now := time.Now()
	return entity.Identity{ID: id, Email: email, EmailConfirmedAt: &now}
}

func (p *fakeProvider) add(email, password string, ident entity.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[email] = account{password: password, identity: ident}
}

func (p *fakeProvider) newSession(ident entity.Identity) *authprovider.Session {
	p.seq++
	return &authprovider.Session{ID: fmt.Sprintf("%s-s%d", ident.ID, p.seq), User: ident}
}

func (p *fakeProvider) SignInWithPassword(_ context.Context, email, password string) (*authprovider.Session, error) {
	p.mu.Lock()
	if p.signInErr != nil {
		p.mu.Unlock()
		return nil, p.signInErr
	}
	a, ok := p.accounts[email]
	if !ok || a.password != password {
		p.mu.Unlock()
		return nil, authprovider.ErrInvalidCredentials
	}
	s := p.newSession(a.identity)
	p.current = s
	block, started := p.block, p.started
	p.mu.Unlock()

	if block != nil {
		close(started)
		<-block
	}
	cp := *s
	return &cp, nil
}

func (p *fakeProvider) SignOut(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOuts++
	p.current = nil
	return nil
}

func (p *fakeProvider) Session() *authprovider.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	cp := *p.current
	return &cp
}

func (p *fakeProvider) setCurrent(s *authprovider.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = s
}

func (p *fakeProvider) SignOuts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signOuts
}

func (p *fakeProvider) Restore(context.Context) (*authprovider.Session, error) {
	p.mu.Lock()
	p.restores++
	gate, started := p.restoreGate, p.restoreStarted
	p.mu.Unlock()

	if gate != nil {
		select {
		case started <- struct{}{}:
		default:
		}
		<-gate
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.restoreErr != nil {
		return nil, p.restoreErr
	}
	p.current = p.restore
	return p.restore, nil
}

func (p *fakeProvider) Restores() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.restores
}

func (p *fakeProvider) OnAuthStateChange(fn func(authprovider.Event)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listener = fn
	return func() {
		p.mu.Lock()
		p.listener = nil
		p.mu.Unlock()
	}
}

type fakeAudit struct {
	mu         sync.Mutex
	logins     []entity.LoginLog
	activities []entity.ActivityLog
}

func (a *fakeAudit) LogLogin(_ context.Context, e entity.LoginLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logins = append(a.logins, e)
}

func (a *fakeAudit) LogActivity(_ context.Context, e entity.ActivityLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.activities = append(a.activities, e)
}

func (a *fakeAudit) Logins() []entity.LoginLog {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]entity.LoginLog(nil), a.logins...)
}

type authEventRecord struct {
	event      string
	suppressed bool
}

type fakeMetrics struct {
	mu      sync.Mutex
	logins  []string
	events  []authEventRecord
	retries int
}

func (m *fakeMetrics) RecordLogin(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins = append(m.logins, outcome)
}

func (m *fakeMetrics) RecordAuthEvent(event string, suppressed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, authEventRecord{event, suppressed})
}

func (m *fakeMetrics) RecordProfileFetchRetry(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries++
}

func (m *fakeMetrics) RecordNotification(string, string)                    {}
func (m *fakeMetrics) RecordHTTPRequest(string, string, int, time.Duration) {}

func (m *fakeMetrics) Events() []authEventRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]authEventRecord(nil), m.events...)
}
