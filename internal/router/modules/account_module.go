package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/pesdo/placement-portal/internal/interface/http"
	"github.com/pesdo/placement-portal/internal/interface/middleware"
)

type AccountModule struct {
	Handler *handlers.AccountHandler
	Limits  Limits
}

func NewAccountModule(h *handlers.AccountHandler, limits Limits) *AccountModule {
	return &AccountModule{Handler: h, Limits: limits}
}

func (m *AccountModule) Register(rg *gin.RouterGroup) {
	rg.POST("/signup", m.Limits.Strict(), m.Handler.Signup)
	rg.POST("/auth/verify/confirm", m.Limits.PerIP(), m.Handler.VerifyConfirm)
	rg.POST("/auth/reset/init", m.Limits.Strict(), m.Handler.ResetInit)
	rg.POST("/auth/reset/confirm", m.Limits.PerIP(), m.Handler.ResetConfirm)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.Limits.Validator), m.Limits.Strict())
	{
		auth.POST("/auth/verify/init", m.Handler.VerifyInit)
	}
}
