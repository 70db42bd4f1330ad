package config_test

import (
	"testing"
	"time"

	"taskboard/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 720*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, "local", cfg.StorageBackend)
	assert.Equal(t, 30*time.Second, cfg.UploadTimeout)
	assert.Equal(t, int64(20<<20), cfg.MaxUploadBytes)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("JWT_EXPIRY_HOURS", "2")
	t.Setenv("UPLOAD_TIMEOUT", "5s")
	t.Setenv("PUBLIC_BASE_URL", "https://tasks.example.com/")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("LOGIN_RATE_LIMIT", "3")

	cfg := config.Load()

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 2*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, 5*time.Second, cfg.UploadTimeout)
	assert.Equal(t, "https://tasks.example.com", cfg.PublicBaseURL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, 3, cfg.LoginRateLimit)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("JWT_EXPIRY_HOURS", "forever")
	t.Setenv("LOGIN_RATE_WINDOW", "-1m")

	cfg := config.Load()

	assert.Equal(t, 720*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, time.Minute, cfg.LoginRateWindow)
}
