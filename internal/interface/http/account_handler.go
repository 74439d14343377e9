package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pesdo/placement-portal/internal/application/account"
	"github.com/pesdo/placement-portal/internal/domain/entity"
	"github.com/pesdo/placement-portal/internal/infrastructure/authprovider"
	"github.com/pesdo/placement-portal/internal/interface/middleware"
	"github.com/pesdo/placement-portal/pkg/response"
	"github.com/pesdo/placement-portal/pkg/validation"
)

type AccountHandler struct {
	Svc    *account.Service
	Logger *logrus.Logger
}

func NewAccountHandler(svc *account.Service, logger *logrus.Logger) *AccountHandler {
	return &AccountHandler{Svc: svc, Logger: logger}
}

func clientIP(c *gin.Context) string {
	if ip := c.GetString(middleware.CtxRealIP); ip != "" {
		return ip
	}
	return c.ClientIP()
}

type signupRequest struct {
	Email    string         `json:"email" binding:"required,email"`
	Password string         `json:"password" binding:"required,pwd"`
	UserType string         `json:"user_type" binding:"omitempty,signuptype"`
	Data     map[string]any `json:"data"`
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type resetInitRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetConfirmRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,pwd"`
}

// Signup POST /api/signup
func (h *AccountHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	role, _ := entity.ParseRole(req.UserType)
	res, err := h.Svc.Signup(c.Request.Context(), account.SignupInput{
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Password:  req.Password,
		UserType:  role,
		Data:      req.Data,
		IP:        clientIP(c),
		UserAgent: c.GetHeader("User-Agent"),
	})
	switch {
	case errors.Is(err, authprovider.ErrUserAlreadyExists):
		response.Error[any](c, http.StatusConflict, err.Error(), nil)
		return
	case errors.Is(err, authprovider.ErrWeakPassword), errors.Is(err, account.ErrInvalidUserType):
		response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
		return
	case err != nil:
		if h.Logger != nil {
			h.Logger.WithError(err).Error("signup failed")
		}
		response.Error[any](c, http.StatusInternalServerError, "signup failed", nil)
		return
	}
	data := gin.H{"user": identityView(res.Identity), "profile_created": res.Profile != nil}
	if res.Profile != nil {
		data["profile"] = entity.ProfileView(res.Profile)
	}
	response.Success(c, http.StatusCreated, data, "Registration successful. Please check your email to confirm your account.", nil)
}

// VerifyInit POST /api/auth/verify/init (auth required)
func (h *AccountHandler) VerifyInit(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserID)
	err := h.Svc.VerifyInit(c.Request.Context(), uid)
	switch {
	case errors.Is(err, account.ErrAlreadyVerified):
		response.Success(c, http.StatusOK, gin.H{"already_verified": true}, "already verified", nil)
	case err != nil:
		if h.Logger != nil {
			h.Logger.WithError(err).WithField("uid", uid).Error("verify init failed")
		}
		response.Error[any](c, http.StatusInternalServerError, "could not send verification email", nil)
	default:
		response.Success(c, http.StatusOK, gin.H{"sent": true}, "verification email sent", nil)
	}
}

// VerifyConfirm POST /api/auth/verify/confirm
func (h *AccountHandler) VerifyConfirm(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	uid, err := h.Svc.VerifyConfirm(c.Request.Context(), req.Token)
	switch {
	case errors.Is(err, account.ErrInvalidToken):
		response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
	case err != nil:
		if h.Logger != nil {
			h.Logger.WithError(err).Error("verify confirm failed")
		}
		response.Error[any](c, http.StatusInternalServerError, "verification failed", nil)
	default:
		response.Success(c, http.StatusOK, gin.H{"verified": true, "user_id": uid}, "email verified", nil)
	}
}

// ResetInit POST /api/auth/reset/init. The response is the same whether or
// not the email is registered.
func (h *AccountHandler) ResetInit(c *gin.Context) {
	var req resetInitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.ResetInit(c.Request.Context(), req.Email, clientIP(c), c.GetHeader("User-Agent")); err != nil && h.Logger != nil {
		h.Logger.WithError(err).Error("reset init failed")
	}
	response.Success(c, http.StatusOK, gin.H{"sent": true}, "If that email is registered, a reset link has been sent.", nil)
}

// ResetConfirm POST /api/auth/reset/confirm
func (h *AccountHandler) ResetConfirm(c *gin.Context) {
	var req resetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	err := h.Svc.ResetConfirm(c.Request.Context(), req.Token, req.Password)
	switch {
	case errors.Is(err, account.ErrInvalidToken), errors.Is(err, authprovider.ErrWeakPassword):
		response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
	case err != nil:
		if h.Logger != nil {
			h.Logger.WithError(err).Error("reset confirm failed")
		}
		response.Error[any](c, http.StatusInternalServerError, "password reset failed", nil)
	default:
		response.Success(c, http.StatusOK, gin.H{"reset": true}, "password updated", nil)
	}
}
