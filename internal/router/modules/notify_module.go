package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/pesdo/placement-portal/internal/interface/http"
	"github.com/pesdo/placement-portal/internal/interface/middleware"
)

type NotifyModule struct {
	Handler *handlers.NotifyHandler
	Limits  Limits
}

func NewNotifyModule(h *handlers.NotifyHandler, limits Limits) *NotifyModule {
	return &NotifyModule{Handler: h, Limits: limits}
}

func (m *NotifyModule) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/notify")
	auth.Use(middleware.Auth(m.Limits.Validator), m.Limits.PerUser())
	{
		auth.POST("/email", m.Handler.Email)
		auth.POST("/sms", m.Handler.SMS)
	}
}
