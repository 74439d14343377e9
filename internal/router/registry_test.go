package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/pesdo/placement-portal/internal/metrics"
	"github.com/pesdo/placement-portal/internal/router/modules"
)

var ping = ModuleFunc(func(rg *gin.RouterGroup) {
	rg.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("tag")) })
})

func get(e *gin.Engine, path, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestRegistry_MountsAPIAndRoot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	metrics.NewCollector(reg).RecordLogin("success")

	e := gin.New()
	r := NewRegistry(e)
	r.Use(func(c *gin.Context) { c.Set("tag", "api"); c.Next() })
	r.Add(ping)
	r.AddRoot(modules.NewMetricsModule(reg))
	r.RegisterAll()

	w := get(e, "/api/ping", "192.0.2.1:1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "api", w.Body.String())

	assert.Equal(t, http.StatusNotFound, get(e, "/ping", "192.0.2.1:1").Code)
	assert.Equal(t, http.StatusOK, get(e, "/healthz", "192.0.2.1:1").Code)
	assert.Equal(t, http.StatusForbidden, get(e, "/metrics", "192.0.2.1:1").Code)

	w = get(e, "/metrics", "127.0.0.1:1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `portal_login_attempts_total{outcome="success"} 1`)
}

func TestRegistry_NoGathererNoMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	r := NewRegistry(e)
	r.AddRoot(modules.NewMetricsModule(nil))
	r.RegisterAll()

	assert.Equal(t, http.StatusOK, get(e, "/healthz", "127.0.0.1:1").Code)
	assert.Equal(t, http.StatusNotFound, get(e, "/metrics", "127.0.0.1:1").Code)
}
