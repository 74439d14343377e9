package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/pesdo/placement-portal/internal/interface/http"
	"github.com/pesdo/placement-portal/internal/interface/middleware"
)

type AdminModule struct {
	Handler *handlers.AdminHandler
	Limits  Limits
}

func NewAdminModule(h *handlers.AdminHandler, limits Limits) *AdminModule {
	return &AdminModule{Handler: h, Limits: limits}
}

func (m *AdminModule) Register(rg *gin.RouterGroup) {
	admin := rg.Group("/admin")
	admin.Use(middleware.Auth(m.Limits.Validator), m.Handler.RequireAdmin(), m.Limits.PerUser())
	{
		admin.GET("/logins/search", m.Handler.SearchLogins)
	}
}
