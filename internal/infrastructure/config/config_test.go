package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"PORTAL_APP_NAME",
	"PORTAL_APP_ENV",
	"PORTAL_APP_PORT",
	"PORTAL_API_BASE_URL",
	"PORTAL_API_SERVICE_ID",
	"PORTAL_API_AUTH_KEY",
	"PORTAL_API_LOGIN_TIMEOUT",
	"PORTAL_API_TLS_SKIP_VERIFY",
	"PORTAL_SESSION_BACKEND",
	"PORTAL_CACHE_DURATION",
	"PORTAL_SEARCH_DEBOUNCE",
	"PORTAL_TELEMETRY_SAMPLING_RATIO",
}

func withCleanEnv(t *testing.T) {
	t.Helper()
	original := make(map[string]string, len(configEnvKeys))
	for _, k := range configEnvKeys {
		original[k] = os.Getenv(k)
		os.Unsetenv(k)
	}
	t.Cleanup(func() {
		for k, v := range original {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		withCleanEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "member-portal", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8090", cfg.App.Port)
		assert.Equal(t, "http://localhost:3000/api", cfg.API.BaseURL)
		assert.Equal(t, 15*time.Second, cfg.API.LoginTimeout)
		assert.Equal(t, 10*time.Second, cfg.API.RequestTimeout)
		assert.Equal(t, "memory", cfg.Session.Backend)
		assert.Equal(t, 24*time.Hour, cfg.Cache.Duration)
		assert.Equal(t, 300*time.Millisecond, cfg.Search.Debounce)
		assert.Equal(t, 10, cfg.Search.MaxResults)
		assert.Equal(t, 2, cfg.Search.MinQueryLength)
	})

	t.Run("loads values from environment variables with PORTAL prefix", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("PORTAL_APP_NAME", "test-portal")
		os.Setenv("PORTAL_API_BASE_URL", "https://api.example.org/v1")
		os.Setenv("PORTAL_API_SERVICE_ID", "svc")
		os.Setenv("PORTAL_API_AUTH_KEY", "key")
		os.Setenv("PORTAL_API_LOGIN_TIMEOUT", "5s")
		os.Setenv("PORTAL_SESSION_BACKEND", "sqlite")
		os.Setenv("PORTAL_CACHE_DURATION", "1h")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-portal", cfg.App.Name)
		assert.Equal(t, "https://api.example.org/v1", cfg.API.BaseURL)
		assert.Equal(t, "svc", cfg.API.ServiceID)
		assert.Equal(t, "key", cfg.API.AuthKey)
		assert.Equal(t, 5*time.Second, cfg.API.LoginTimeout)
		assert.Equal(t, "sqlite", cfg.Session.Backend)
		assert.Equal(t, time.Hour, cfg.Cache.Duration)
	})

	t.Run("rejects unknown session backend", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("PORTAL_SESSION_BACKEND", "localstorage")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "session.backend")
	})

	t.Run("rejects relative base URL", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("PORTAL_API_BASE_URL", "/api")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "absolute URL")
	})

	t.Run("rejects out of range sampling ratio", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("PORTAL_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	t.Run("requires api.base_url in production", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("PORTAL_APP_ENV", "production")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "api.base_url is required in production")
	})

	t.Run("does not fall back to the dev proxy in production", func(t *testing.T) {
		cfg := &Config{App: AppConfig{Env: "production"}}
		applyDefaults(cfg)
		assert.Empty(t, cfg.API.BaseURL)
	})

	t.Run("rejects tls skip verify in production", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("PORTAL_APP_ENV", "production")
		os.Setenv("PORTAL_API_BASE_URL", "https://api.example.org")
		os.Setenv("PORTAL_API_TLS_SKIP_VERIFY", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tls_skip_verify")
	})

	t.Run("accepts valid production config", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("PORTAL_APP_ENV", "production")
		os.Setenv("PORTAL_API_BASE_URL", "https://api.example.org")

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.App.IsProduction())
		assert.Equal(t, "https://api.example.org", cfg.API.BaseURL)
	})
}

func TestRedisConfig_Addr(t *testing.T) {
	r := RedisConfig{Host: "cache.local", Port: 6380}
	assert.Equal(t, "cache.local:6380", r.Addr())
}
