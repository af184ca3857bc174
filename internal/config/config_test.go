package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func setRequired(t *testing.T) {
	t.Helper()
	for k, v := range map[string]string{
		"APP_ENV": "test", "APP_PORT": "8080", "DB_USER": "gym", "DB_HOST": "127.0.0.1",
		"DB_PORT": "3306", "DB_NAME": "gym", "JWT_SECRET": "s3cret", "ACCESS_TOKEN_TTL_MIN": "15",
		"REFRESH_TOKEN_TTL_DAYS": "7", "BCRYPT_COST": "4",
	} {
		t.Setenv(k, v)
	}
}

func TestLoad(t *testing.T) {
	setRequired(t)
	t.Setenv("PAYMENT_APPROVAL_MODE", "strict")
	t.Setenv("AMQP_URL", "amqp://u:p@mq:5672/")
	t.Setenv("JOB_MEMBERSHIP_EXPIRY_INTERVAL", "10s")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15, cfg.AccessTTLMin)
	assert.Equal(t, 4, cfg.BcryptCost)
	assert.Equal(t, "", cfg.DBPass)
	assert.Equal(t, "strict", cfg.ApprovalMode)
	assert.Equal(t, "amqp://u:p@mq:5672/", cfg.Queue.URL)
	assert.Equal(t, "logs", cfg.Queue.LogDir)
	assert.True(t, cfg.Jobs.ExpiryEnabled)
	assert.Equal(t, time.Minute, cfg.Jobs.ExpiryInterval)
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	cfg := Load()
	assert.Equal(t, "best_effort", cfg.ApprovalMode)
	assert.Equal(t, time.Hour, cfg.Jobs.ExpiryInterval)
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_ENABLED", "off")

	cfg := LoadRateLimitConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 1, cfg.RefillTokens)
	assert.Equal(t, 2*time.Second, cfg.RefillInterval)
	assert.Equal(t, 10*time.Second, cfg.TTL)
	assert.Equal(t, "gym:rl", cfg.Prefix)
	assert.Equal(t, map[string]bool{"POST": true, "PUT": true, "PATCH": true, "DELETE": true}, cfg.Methods)
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	t.Setenv("CACHE_TTL", "bogus")

	cfg := LoadCacheConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Methods)
	assert.Equal(t, 30*time.Second, cfg.TTL)
	assert.Equal(t, 1<<20, cfg.MaxBodyBytes)
}
