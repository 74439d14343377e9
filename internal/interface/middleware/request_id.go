package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pesdo/placement-portal/internal/metrics"
)

// RequestID injects a request_id into the Gin context and echoes it back,
// reusing a well-formed incoming X-Request-ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(CtxRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// Observe records request metrics and, when log is non-nil, an access log line.
func Observe(m metrics.MetricsCollector, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		d := time.Since(start)
		path := normalizePath(c)
		if c.FullPath() == "" {
			path = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), d)
		if log != nil {
			log.WithFields(logrus.Fields{
				"method":     c.Request.Method,
				"path":       c.Request.URL.Path,
				"status":     c.Writer.Status(),
				"latency_ms": d.Milliseconds(),
				"ip":         ipFromCtx(c),
				"request_id": c.GetString(CtxRequestID),
			}).Info("http request")
		}
	}
}
