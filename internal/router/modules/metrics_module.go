package modules

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pesdo/placement-portal/internal/interface/middleware"
	"github.com/pesdo/placement-portal/internal/metrics"
	"github.com/pesdo/placement-portal/pkg/response"
)

// MetricsModule exposes GET /metrics to private-network scrapers and
// GET /healthz to everyone.
type MetricsModule struct {
	Gatherer prometheus.Gatherer
}

func NewMetricsModule(g prometheus.Gatherer) *MetricsModule { return &MetricsModule{Gatherer: g} }

func privateOnly() gin.HandlerFunc {
	allow := middleware.AllowPrivateIP()
	return func(c *gin.Context) {
		if !allow(c) {
			response.Error[any](c, http.StatusForbidden, "forbidden", nil)
			return
		}
		c.Next()
	}
}

func (m *MetricsModule) Register(rg *gin.RouterGroup) {
	rg.GET("/healthz", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"ok": true}, "ok", nil)
	})
	if m.Gatherer != nil {
		rg.GET("/metrics", privateOnly(), gin.WrapH(metrics.Handler(m.Gatherer)))
	}
}
