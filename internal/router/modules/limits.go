package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/pesdo/placement-portal/internal/interface/middleware"
)

// Limits carries the shared rate-limit settings and the session validator
// used by protected groups. RDB nil selects the in-process limiter.
type Limits struct {
	RDB       *redis.Client
	APIMax    int
	LoginMax  int
	Window    time.Duration
	Validator middleware.SessionValidator
}

func (l Limits) Login() gin.HandlerFunc {
	return middleware.RateLimit(l.RDB, l.LoginMax, l.Window, middleware.KeyByIPAndPath(), middleware.AllowPrivateIP())
}

// Strict is for endpoints that send mail or spend tokens.
func (l Limits) Strict() gin.HandlerFunc {
	return middleware.RateLimit(l.RDB, l.LoginMax/2+1, l.Window, middleware.KeyByIPAndPath(), nil)
}

func (l Limits) PerIP() gin.HandlerFunc {
	return middleware.RateLimit(l.RDB, l.APIMax, l.Window, middleware.KeyByIPAndPath(), middleware.AllowPrivateIP())
}

func (l Limits) PerUser() gin.HandlerFunc {
	return middleware.RateLimit(l.RDB, l.APIMax, l.Window, middleware.KeyByUserID(), nil)
}
