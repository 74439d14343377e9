package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pesdo/placement-portal/internal/infrastructure/authprovider"
	"github.com/pesdo/placement-portal/pkg/response"
)

// Gin context keys set by this package.
const (
	CtxUserID    = "userID"
	CtxUserEmail = "userEmail"
	CtxSessionID = "sessionID"
	CtxDeviceID  = "device_id"
	CtxRealIP    = "real_ip"
	CtxRequestID = "request_id"
)

// SessionValidator resolves an access token to its live provider session.
type SessionValidator interface {
	Validate(ctx context.Context, accessToken string) (*authprovider.StoredSession, error)
}

func accessToken(c *gin.Context) string {
	if tok, err := c.Cookie("access_token"); err == nil && tok != "" {
		return tok
	}
	if h := c.GetHeader("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Auth validates the access token and requires its session to still exist in
// Redis. It sets userID, userEmail and sessionID in the Gin context.
func Auth(v SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := accessToken(c)
		if token == "" {
			response.Error[any](c, http.StatusUnauthorized, "missing access token", nil)
			return
		}
		s, err := v.Validate(c.Request.Context(), token)
		if err != nil {
			response.Error[any](c, http.StatusUnauthorized, "session not found", nil)
			return
		}
		c.Set(CtxUserID, s.UserID)
		c.Set(CtxUserEmail, s.Email)
		c.Set(CtxSessionID, s.SessionID)
		if c.GetString(CtxDeviceID) == "" && s.DeviceID != "" {
			c.Set(CtxDeviceID, s.DeviceID)
		}
		c.Next()
	}
}
