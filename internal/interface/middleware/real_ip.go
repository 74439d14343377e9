package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// edgeHeaders are set by the CDN or ingress in front of the API and are
// consulted before X-Forwarded-For.
var edgeHeaders = []string{"CF-Connecting-IP", "True-Client-IP", "X-Real-IP"}

// RealIP stores the caller's address under CtxRealIP for rate limiting and
// the audit trail.
func RealIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(CtxRealIP, realIP(c))
		c.Next()
	}
}

func realIP(c *gin.Context) string {
	for _, h := range edgeHeaders {
		if ip := parseIP(c.GetHeader(h)); ip != "" {
			return ip
		}
	}
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := parseIP(first); ip != "" {
			return ip
		}
	}
	return c.ClientIP()
}

func parseIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}
