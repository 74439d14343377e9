package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pesdo/placement-portal/internal/application/account"
	"github.com/pesdo/placement-portal/internal/application/notify"
	"github.com/pesdo/placement-portal/internal/application/session"
	"github.com/pesdo/placement-portal/internal/domain/entity"
	"github.com/pesdo/placement-portal/internal/domain/repository"
	"github.com/pesdo/placement-portal/internal/infrastructure/authprovider"
	"github.com/pesdo/placement-portal/internal/interface/middleware"
	"github.com/pesdo/placement-portal/pkg/helpers"
	"github.com/pesdo/placement-portal/pkg/validation"
)

const (
	password = "correct-horse-9"
	device   = "6f1c1f7e-3a55-4c7e-9d0a-6f3b8b7f2a10"
)

func init() {
	gin.SetMode(gin.TestMode)
	validation.Init()
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

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

func (m *memIdentities) ConfirmEmail(context.Context, string) error           { return nil }
func (m *memIdentities) UpdatePassword(context.Context, string, string) error { return nil }

// memProfiles serves fixed rows; writes only touch jobseekers.
type memProfiles struct {
	mu         sync.Mutex
	admins     map[string]*entity.AdminProfile
	employers  map[string]*entity.EmployerProfile
	jobseekers map[string]*entity.JobseekerProfile
}

func (m *memProfiles) FindAdmin(_ context.Context, id string) (*entity.AdminProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.admins[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, repository.ErrProfileNotFound
}

func (m *memProfiles) FindEmployer(_ context.Context, id string) (*entity.EmployerProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.employers[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, repository.ErrProfileNotFound
}

func (m *memProfiles) FindJobseeker(_ context.Context, id string) (*entity.JobseekerProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.jobseekers[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, repository.ErrProfileNotFound
}

func (m *memProfiles) CreateAdmin(context.Context, *entity.AdminProfile) error         { return nil }
func (m *memProfiles) CreateEmployer(context.Context, *entity.EmployerProfile) error   { return nil }
func (m *memProfiles) CreateJobseeker(context.Context, *entity.JobseekerProfile) error { return nil }

func (m *memProfiles) UpdateJobseeker(_ context.Context, id string, u repository.JobseekerUpdate) (*entity.JobseekerProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.jobseekers[id]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	if u.FirstName != nil {
		p.FirstName = *u.FirstName
	}
	if u.Phone != nil {
		p.Phone = *u.Phone
	}
	cp := *p
	return &cp, nil
}

type fakeSearch struct {
	hits []map[string]any
	err  error
	q    string
}

func (f *fakeSearch) SearchLogins(_ context.Context, q string, _ int) ([]map[string]any, error) {
	f.q = q
	return f.hits, f.err
}

type portal struct {
	r      *gin.Engine
	search *fakeSearch
}

func newPortal(t *testing.T) *portal {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hash, err := helpers.HashPasswordCost(password, bcrypt.MinCost)
	require.NoError(t, err)
	now := time.Now()
	ids := &memIdentities{rows: map[string]entity.Identity{
		"a1": {ID: "a1", Email: "root@x.ph", PasswordHash: hash, EmailConfirmedAt: &now},
		"e1": {ID: "e1", Email: "boss@x.ph", PasswordHash: hash, EmailConfirmedAt: &now},
		"j1": {ID: "j1", Email: "juan@x.ph", PasswordHash: hash, EmailConfirmedAt: &now},
		"j2": {ID: "j2", Email: "new@x.ph", PasswordHash: hash},
	}}
	profiles := &memProfiles{
		admins:     map[string]*entity.AdminProfile{"a1": {ID: "a1", Email: "root@x.ph", Role: "admin"}},
		employers:  map[string]*entity.EmployerProfile{"e1": {ID: "e1", Email: "boss@x.ph", BusinessName: "Acme"}},
		jobseekers: map[string]*entity.JobseekerProfile{"j1": {ID: "j1", Email: "juan@x.ph", FirstName: "Juan"}},
	}

	jwt := helpers.NewJWTManager("a", "r", time.Minute, time.Hour)
	provider := authprovider.NewService(ids, authprovider.NewRedisSessionStore(rdb), jwt, quietLogger(), false)
	reg := session.NewRegistry(func(deviceID string) *session.Client {
		return session.NewClient(provider.NewClient(deviceID), session.Deps{Profiles: profiles, Logger: quietLogger()},
			session.Options{MismatchHold: 50 * time.Millisecond, OpTimeout: time.Second})
	})
	t.Cleanup(reg.Close)

	cookies := helpers.NewCookie("", false)
	sh := NewSessionHandler(reg, nil, cookies, quietLogger())
	search := &fakeSearch{hits: []map[string]any{{"email": "juan@x.ph"}}}
	ah := NewAdminHandler(reg, search, quietLogger())
	acct := NewAccountHandler(&account.Service{Identities: ids, Logger: quietLogger()}, quietLogger())

	r := gin.New()
	r.Use(middleware.Device(cookies))
	r.POST("/login", sh.Login)
	r.POST("/auth/reset/init", acct.ResetInit)
	authed := r.Group("", middleware.Auth(provider))
	authed.GET("/me", sh.Me)
	authed.POST("/logout", sh.Logout)
	authed.PUT("/profile", sh.UpdateProfile)
	authed.GET("/admin/logins/search", ah.RequireAdmin(), ah.SearchLogins)
	return &portal{r: r, search: search}
}

type envelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

func (p *portal) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: helpers.DeviceCookie, Value: device})
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	p.r.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func cookieNamed(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (p *portal) login(t *testing.T, email string, role entity.Role) *http.Cookie {
	t.Helper()
	w, env := p.do(t, http.MethodPost, "/login", gin.H{"email": email, "password": password, "expected_role": string(role)})
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	access := cookieNamed(w, helpers.AccessCookie)
	require.NotNil(t, access)
	require.NotEmpty(t, access.Value)
	return access
}

func TestLogin_SetsCookiesAndServesMe(t *testing.T) {
	p := newPortal(t)
	access := p.login(t, "juan@x.ph", entity.RoleJobseeker)

	w, env := p.do(t, http.MethodGet, "/me", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		User    map[string]any `json:"user"`
		Profile map[string]any `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "juan@x.ph", me.User["email"])
	assert.NotNil(t, me.Profile)
}

func TestLogin_ErrorStatuses(t *testing.T) {
	p := newPortal(t)
	cases := []struct {
		name   string
		body   gin.H
		status int
	}{
		{"bad payload", gin.H{"email": "not-an-email", "password": password}, http.StatusBadRequest},
		{"unknown role", gin.H{"email": "juan@x.ph", "password": password, "expected_role": "root"}, http.StatusBadRequest},
		{"wrong password", gin.H{"email": "juan@x.ph", "password": "nope-nope-nope"}, http.StatusUnauthorized},
		{"unconfirmed", gin.H{"email": "new@x.ph", "password": password}, http.StatusForbidden},
		{"mismatch", gin.H{"email": "boss@x.ph", "password": password, "expected_role": "jobseeker"}, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, env := p.do(t, http.MethodPost, "/login", tc.body)
			assert.Equal(t, tc.status, w.Code, env.Message)
			assert.False(t, env.Success)
		})
	}
}

func TestLogin_ExpectedRoleIgnoresCase(t *testing.T) {
	p := newPortal(t)
	w, env := p.do(t, http.MethodPost, "/login", gin.H{"email": "boss@x.ph", "password": password, "expected_role": " Employer"})
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	assert.True(t, env.Success)
}

func TestLogin_MismatchMessage(t *testing.T) {
	p := newPortal(t)
	w, env := p.do(t, http.MethodPost, "/login", gin.H{"email": "boss@x.ph", "password": password, "expected_role": "jobseeker"})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "This account is registered as an employer. Please use the employer login instead.", env.Message)
	assert.JSONEq(t, `{"registered_as":"employer","expected":"jobseeker"}`, string(env.Error))

	// the failed attempt leaves nothing signed in on the device
	access := cookieNamed(w, helpers.AccessCookie)
	if access != nil {
		assert.Empty(t, access.Value)
	}
}

func TestLogout_RevokesAccessToken(t *testing.T) {
	p := newPortal(t)
	access := p.login(t, "juan@x.ph", entity.RoleJobseeker)

	w, _ := p.do(t, http.MethodPost, "/logout", nil, access)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = p.do(t, http.MethodGet, "/me", nil, access)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateProfile(t *testing.T) {
	p := newPortal(t)
	access := p.login(t, "juan@x.ph", entity.RoleJobseeker)

	w, env := p.do(t, http.MethodPut, "/profile", gin.H{"first_name": "Juanito", "phone": "09171234567"}, access)
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	assert.Contains(t, string(env.Data), "Juanito")

	w, _ = p.do(t, http.MethodPut, "/profile", gin.H{"resume_url": "not a url"}, access)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateProfile_EmployerUnsupported(t *testing.T) {
	p := newPortal(t)
	access := p.login(t, "boss@x.ph", entity.RoleEmployer)
	w, _ := p.do(t, http.MethodPut, "/profile", gin.H{"first_name": "X"}, access)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	p := newPortal(t)

	access := p.login(t, "juan@x.ph", entity.RoleJobseeker)
	w, _ := p.do(t, http.MethodGet, "/admin/logins/search?q=juan", nil, access)
	assert.Equal(t, http.StatusForbidden, w.Code)

	access = p.login(t, "root@x.ph", entity.RoleAdmin)
	w, env := p.do(t, http.MethodGet, "/admin/logins/search?q=juan", nil, access)
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	assert.Equal(t, "juan", p.search.q)

	w, _ = p.do(t, http.MethodGet, "/admin/logins/search", nil, access)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	p.search.err = errors.New("es down")
	w, _ = p.do(t, http.MethodGet, "/admin/logins/search?q=juan", nil, access)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestResetInit_SameAnswerForUnknownEmail(t *testing.T) {
	p := newPortal(t)
	w, env := p.do(t, http.MethodPost, "/auth/reset/init", gin.H{"email": "nobody@x.ph"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "If that email is registered, a reset link has been sent.", env.Message)
}

type stubQueue struct{ err error }

func (q stubQueue) PublishJSON(context.Context, any) error { return q.err }

func notifyRouter(n *notify.Notifier) *gin.Engine {
	h := NewNotifyHandler(n, quietLogger())
	r := gin.New()
	r.POST("/notify/email", h.Email)
	r.POST("/notify/sms", h.SMS)
	return r
}

func post(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestNotify(t *testing.T) {
	sms := gin.H{"to": "09171234567", "message": "Your interview is at 9AM"}
	email := gin.H{"to": "juan@x.ph", "subject": "Hello", "text": "Hi Juan"}

	t.Run("disabled", func(t *testing.T) {
		r := notifyRouter(notify.NewNotifier(nil, nil, false, false, nil, quietLogger()))
		w := post(r, "/notify/sms", sms)
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Contains(t, w.Body.String(), `"disabled":true`)
	})
	t.Run("enqueued", func(t *testing.T) {
		r := notifyRouter(notify.NewNotifier(stubQueue{}, stubQueue{}, true, true, nil, quietLogger()))
		assert.Equal(t, http.StatusAccepted, post(r, "/notify/email", email).Code)
		assert.Contains(t, post(r, "/notify/sms", sms).Body.String(), `"enqueued":true`)
	})
	t.Run("queue down", func(t *testing.T) {
		r := notifyRouter(notify.NewNotifier(stubQueue{err: errors.New("channel closed")}, nil, true, true, nil, quietLogger()))
		assert.Equal(t, http.StatusServiceUnavailable, post(r, "/notify/email", email).Code)
		assert.Equal(t, http.StatusServiceUnavailable, post(r, "/notify/sms", sms).Code)
	})
	t.Run("invalid", func(t *testing.T) {
		r := notifyRouter(notify.NewNotifier(stubQueue{}, stubQueue{}, true, true, nil, quietLogger()))
		assert.Equal(t, http.StatusBadRequest, post(r, "/notify/email", gin.H{"to": "juan@x.ph"}).Code)
		assert.Equal(t, http.StatusBadRequest, post(r, "/notify/email", gin.H{"to": "juan@x.ph", "template": "nope"}).Code)
		assert.Equal(t, http.StatusBadRequest, post(r, "/notify/sms", gin.H{"to": "123", "message": "x"}).Code)
	})
}
