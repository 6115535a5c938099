package api

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfig_Defaults(t *testing.T) {
	cfg := LoadServerConfig()

	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, defaultHost, cfg.Host)
	assert.Equal(t, defaultTimeout, cfg.ReadTimeout)
	assert.Equal(t, defaultMaxRequestSize, cfg.MaxRequestSize)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, []string{"GET", "POST", "OPTIONS"}, cfg.CORS.AllowedMethods)
	assert.Equal(t, []string{"Content-Type", "X-Correlation-ID"}, cfg.CORS.AllowedHeaders)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestLoadServerConfig_FromEnv(t *testing.T) {
	t.Setenv("TRACKCHECK_SERVER_PORT", "9090")
	t.Setenv("TRACKCHECK_SERVER_HOST", "127.0.0.1")
	t.Setenv("TRACKCHECK_SERVER_MAX_REQUEST_SIZE", "1024")
	t.Setenv("TRACKCHECK_SERVER_SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("TRACKCHECK_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg := LoadServerConfig()

	assert.Equal(t, "127.0.0.1:9090", cfg.Address())
	assert.Equal(t, int64(1024), cfg.MaxRequestSize)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestServerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr error
	}{
		{"port zero", func(c *ServerConfig) { c.Port = 0 }, ErrInvalidPort},
		{"port too high", func(c *ServerConfig) { c.Port = 70000 }, ErrInvalidPort},
		{"empty host", func(c *ServerConfig) { c.Host = "" }, ErrEmptyHost},
		{"read timeout", func(c *ServerConfig) { c.ReadTimeout = 0 }, ErrInvalidReadTimeout},
		{"write timeout", func(c *ServerConfig) { c.WriteTimeout = -time.Second }, ErrInvalidWriteTimeout},
		{"shutdown timeout", func(c *ServerConfig) { c.ShutdownTimeout = 0 }, ErrInvalidShutdownTimeout},
		{"request size", func(c *ServerConfig) { c.MaxRequestSize = 0 }, ErrInvalidMaxRequestSize},
		{"cors max age", func(c *ServerConfig) { c.CORS.MaxAge = -1 }, ErrInvalidCORSMaxAge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadServerConfig()
			tt.mutate(cfg)

			assert.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestServerConfig_ValidateReportsEveryProblem(t *testing.T) {
	cfg := LoadServerConfig()
	cfg.Port = 0
	cfg.Host = ""
	cfg.WriteTimeout = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPort)
	assert.ErrorIs(t, err, ErrEmptyHost)
	assert.ErrorIs(t, err, ErrInvalidWriteTimeout)
	assert.NotErrorIs(t, err, ErrInvalidReadTimeout)
}
