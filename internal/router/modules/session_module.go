package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/pesdo/placement-portal/internal/interface/http"
	"github.com/pesdo/placement-portal/internal/interface/middleware"
)

// SessionModule wires login, refresh and the signed-in profile routes.
// Public: POST /api/login, POST /api/refresh
// Protected: POST /api/logout, GET /api/me, POST /api/profile/refresh,
// PUT /api/profile, POST /api/profile/picture
type SessionModule struct {
	Handler *handlers.SessionHandler
	Limits  Limits
}

func NewSessionModule(h *handlers.SessionHandler, limits Limits) *SessionModule {
	return &SessionModule{Handler: h, Limits: limits}
}

func (m *SessionModule) Register(rg *gin.RouterGroup) {
	rg.POST("/login", m.Limits.Login(), m.Handler.Login)
	rg.POST("/refresh", m.Limits.PerIP(), m.Handler.Refresh)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.Limits.Validator), m.Limits.PerUser())
	{
		auth.POST("/logout", m.Handler.Logout)
		auth.GET("/me", m.Handler.Me)
		auth.POST("/profile/refresh", m.Handler.RefreshProfile)
		auth.PUT("/profile", m.Handler.UpdateProfile)
		auth.POST("/profile/picture", m.Handler.UploadPicture)
	}
}
