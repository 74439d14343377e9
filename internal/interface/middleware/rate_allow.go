package middleware

import (
	"net"

	"github.com/gin-gonic/gin"
)

// AllowPrivateIP matches loopback and private-range clients. It bypasses rate
// limits for internal callers and guards the metrics endpoint.
func AllowPrivateIP() AllowFunc {
	return func(c *gin.Context) bool {
		parsed := net.ParseIP(ipFromCtx(c))
		return parsed != nil && (parsed.IsLoopback() || parsed.IsPrivate())
	}
}
