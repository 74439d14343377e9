package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SESSION_MISMATCH_HOLD", "")
	t.Setenv("NOTIFY_MAX_ATTEMPTS", "")
	cfg := Load()

	assert.Equal(t, 5*time.Second, cfg.MismatchHold)
	assert.Equal(t, 2, cfg.ProfileRetries)
	assert.Equal(t, time.Second, cfg.ProfileRetryDelay)
	assert.Equal(t, []string{"admin_authenticated", "admin_login_time", "admin_email"}, cfg.AdminFlagKeys())
	assert.Equal(t, 5, cfg.NotifyMaxAttempts)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SESSION_MISMATCH_HOLD", "250ms")
	t.Setenv("PROFILE_FETCH_RETRIES", "4")
	t.Setenv("AUTH_REQUIRE_CONFIRMED_EMAIL", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", " http://a.test , ,http://b.test")

	cfg := Load()
	assert.Equal(t, 250*time.Millisecond, cfg.MismatchHold)
	assert.Equal(t, 4, cfg.ProfileRetries)
	assert.True(t, cfg.RequireConfirmedEmail)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins())
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SESSION_OP_TIMEOUT", "soon")
	t.Setenv("REDIS_DB", "x")
	t.Setenv("SMS_SEND_ENABLED", "maybe")

	cfg := Load()
	assert.Equal(t, 10*time.Second, cfg.SessionOpTimeout)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.True(t, cfg.SMSSendEnabled)
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: "1", DBName: "d", DBSSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:1/d?sslmode=disable", cfg.PostgresDSN())
}
