package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pesdo/placement-portal/internal/application/session"
	"github.com/pesdo/placement-portal/internal/application/storage"
	"github.com/pesdo/placement-portal/internal/domain/entity"
	"github.com/pesdo/placement-portal/internal/domain/repository"
	"github.com/pesdo/placement-portal/internal/infrastructure/authprovider"
	"github.com/pesdo/placement-portal/internal/interface/middleware"
	"github.com/pesdo/placement-portal/pkg/helpers"
	"github.com/pesdo/placement-portal/pkg/response"
	"github.com/pesdo/placement-portal/pkg/validation"
)

// Sessions hands out the per-device session clients.
type Sessions interface {
	Get(ctx context.Context, deviceID string) (*session.Client, error)
	Teardown(ctx context.Context, deviceID string)
}

const maxPictureBytes = 5 << 20

type SessionHandler struct {
	Sessions Sessions
	Uploader *storage.Uploader
	Cookies  *helpers.Manager
	Logger   *logrus.Logger
}

func NewSessionHandler(sessions Sessions, uploader *storage.Uploader, cookies *helpers.Manager, logger *logrus.Logger) *SessionHandler {
	return &SessionHandler{Sessions: sessions, Uploader: uploader, Cookies: cookies, Logger: logger}
}

type loginRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required"`
	ExpectedRole string `json:"expected_role" binding:"omitempty,usertype"`
}

type updateProfileRequest struct {
	FirstName *string `json:"first_name" binding:"omitempty,max=100"`
	LastName  *string `json:"last_name" binding:"omitempty,max=100"`
	Suffix    *string `json:"suffix" binding:"omitempty,max=20"`
	Phone     *string `json:"phone" binding:"omitempty,phone"`
	ResumeURL *string `json:"resume_url" binding:"omitempty,url"`
}

func withClientInfo(c *gin.Context) context.Context {
	return session.WithClientInfo(c.Request.Context(), session.ClientInfo{
		IP:        clientIP(c),
		UserAgent: c.GetHeader("User-Agent"),
	})
}

// client resolves the caller's session client or writes the error response.
func (h *SessionHandler) client(c *gin.Context) (*session.Client, bool) {
	cl, err := h.Sessions.Get(c.Request.Context(), c.GetString(middleware.CtxDeviceID))
	if err != nil {
		if h.Logger != nil {
			h.Logger.WithError(err).Warn("session restore failed")
		}
		response.Error[any](c, http.StatusServiceUnavailable, "session unavailable", nil)
		return nil, false
	}
	return cl, true
}

func (h *SessionHandler) setCookies(c *gin.Context, s *authprovider.Session) {
	if s == nil {
		return
	}
	h.Cookies.SetPair(c, s.AccessToken, s.AccessTokenExpiry, s.RefreshToken, s.RefreshTokenExpiry)
}

func sessionView(st session.State) gin.H {
	out := gin.H{"user": nil, "profile": nil, "profile_loaded": st.ProfileLoaded}
	if st.Identity != nil {
		out["user"] = identityView(st.Identity)
		out["profile"] = entity.ProfileView(st.Profile)
	}
	if len(st.Flags) > 0 {
		out["flags"] = st.Flags
	}
	return out
}

func identityView(i *entity.Identity) gin.H {
	return gin.H{
		"id":                 i.ID,
		"email":              i.Email,
		"email_confirmed_at": i.ConfirmedTime(),
		"user_metadata":      i.Metadata,
		"created_at":         i.CreatedAt,
	}
}

// Login POST /api/login
func (h *SessionHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	expected, _ := entity.ParseRole(req.ExpectedRole)

	cl, ok := h.client(c)
	if !ok {
		return
	}
	res, err := cl.Login(withClientInfo(c), req.Email, req.Password, expected)
	if err != nil {
		h.Cookies.Clear(c)
		writeLoginError(c, err, h.Logger)
		return
	}
	tokens := cl.Tokens()
	h.setCookies(c, tokens)
	var meta map[string]any
	if tokens != nil {
		meta = map[string]any{"access_expires_at": tokens.AccessTokenExpiry, "refresh_expires_at": tokens.RefreshTokenExpiry}
	}
	response.Success(c, http.StatusOK, gin.H{
		"user":    identityView(res.Identity),
		"profile": entity.ProfileView(res.Profile),
	}, "login successful", meta)
}

func writeLoginError(c *gin.Context, err error, log *logrus.Logger) {
	var mm *session.MismatchError
	switch {
	case errors.As(err, &mm):
		response.Error[any](c, http.StatusConflict, mm.Error(), gin.H{"registered_as": mm.Found, "expected": mm.Expected})
	case errors.Is(err, session.ErrEmailNotConfirmed):
		response.Error[any](c, http.StatusForbidden, session.ErrEmailNotConfirmed.Error(), nil)
	case errors.Is(err, session.ErrAuthenticationFailed):
		response.Error[any](c, http.StatusUnauthorized, err.Error(), nil)
	default:
		if log != nil {
			log.WithError(err).Error("login failed")
		}
		response.Error[any](c, http.StatusInternalServerError, "login failed", nil)
	}
}

// Refresh POST /api/refresh
func (h *SessionHandler) Refresh(c *gin.Context) {
	refresh, err := c.Cookie("refresh_token")
	if err != nil || refresh == "" {
		response.Error[any](c, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}
	cl, ok := h.client(c)
	if !ok {
		return
	}
	s, err := cl.Refresh(c.Request.Context(), refresh)
	if err != nil {
		if !errors.Is(err, authprovider.ErrInvalidRefreshToken) && h.Logger != nil {
			h.Logger.WithError(err).Warn("refresh failed")
		}
		h.Cookies.Clear(c)
		response.Error[any](c, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}
	h.setCookies(c, s)
	response.Success[any](c, http.StatusOK, map[string]any{"refreshed": true}, "token refreshed",
		map[string]any{"access_expires_at": s.AccessTokenExpiry, "refresh_expires_at": s.RefreshTokenExpiry})
}

// Logout POST /api/logout
func (h *SessionHandler) Logout(c *gin.Context) {
	device := c.GetString(middleware.CtxDeviceID)
	// restore first so a swept client still signs its provider session out
	if _, err := h.Sessions.Get(c.Request.Context(), device); err != nil && h.Logger != nil {
		h.Logger.WithError(err).Warn("session restore before logout failed")
	}
	h.Sessions.Teardown(withClientInfo(c), device)
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, map[string]any{"logged_out": true}, "logged out", nil)
}

// signedIn returns the caller's client after checking that its state belongs
// to the authenticated user.
func (h *SessionHandler) signedIn(c *gin.Context) (*session.Client, session.State, bool) {
	cl, ok := h.client(c)
	if !ok {
		return nil, session.State{}, false
	}
	st := cl.Snapshot()
	if st.Identity == nil || st.Identity.ID != c.GetString(middleware.CtxUserID) {
		response.Error[any](c, http.StatusUnauthorized, session.ErrNotAuthenticated.Error(), nil)
		return nil, st, false
	}
	return cl, st, true
}

// Me GET /api/me
func (h *SessionHandler) Me(c *gin.Context) {
	_, st, ok := h.signedIn(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, sessionView(st), "ok", nil)
}

// RefreshProfile POST /api/profile/refresh
func (h *SessionHandler) RefreshProfile(c *gin.Context) {
	cl, _, ok := h.signedIn(c)
	if !ok {
		return
	}
	p, err := cl.RefreshProfile(c.Request.Context())
	if err != nil {
		h.profileError(c, err)
		return
	}
	response.Success(c, http.StatusOK, entity.ProfileView(p), "profile refreshed", nil)
}

// UpdateProfile PUT /api/profile
func (h *SessionHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	cl, _, ok := h.signedIn(c)
	if !ok {
		return
	}
	p, err := cl.UpdateProfile(withClientInfo(c), repository.JobseekerUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Suffix:    req.Suffix,
		Phone:     req.Phone,
		ResumeURL: req.ResumeURL,
	})
	if err != nil {
		h.profileError(c, err)
		return
	}
	response.Success(c, http.StatusOK, entity.ProfileView(p), "profile updated", nil)
}

// UploadPicture POST /api/profile/picture (multipart field "file")
func (h *SessionHandler) UploadPicture(c *gin.Context) {
	cl, st, ok := h.signedIn(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "file is required", nil)
		return
	}
	if fh.Size > maxPictureBytes {
		response.Error[any](c, http.StatusRequestEntityTooLarge, "file too large", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "cannot read file", nil)
		return
	}
	defer func() { _ = f.Close() }()

	url, err := h.Uploader.ProfilePicture(c.Request.Context(), st.Identity.ID, fh.Filename, fh.Header.Get("Content-Type"), f)
	switch {
	case errors.Is(err, storage.ErrUnsupportedImage):
		response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
		return
	case errors.Is(err, storage.ErrNotConfigured):
		response.Error[any](c, http.StatusServiceUnavailable, "storage not configured", nil)
		return
	case err != nil:
		if h.Logger != nil {
			h.Logger.WithError(err).Error("profile picture upload failed")
		}
		response.Error[any](c, http.StatusInternalServerError, "upload failed", nil)
		return
	}
	p, err := cl.UpdateProfilePicture(withClientInfo(c), url)
	if err != nil {
		h.profileError(c, err)
		return
	}
	response.Success(c, http.StatusOK, entity.ProfileView(p), "profile picture updated", nil)
}

func (h *SessionHandler) profileError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotAuthenticated):
		response.Error[any](c, http.StatusUnauthorized, err.Error(), nil)
	case errors.Is(err, session.ErrUnsupportedProfile):
		response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, repository.ErrProfileNotFound):
		response.Error[any](c, http.StatusNotFound, "profile not found", nil)
	default:
		if h.Logger != nil {
			h.Logger.WithError(err).Error("profile operation failed")
		}
		response.Error[any](c, http.StatusInternalServerError, "profile operation failed", nil)
	}
}
