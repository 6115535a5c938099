package api

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/correlator-io/trackcheck/internal/api/middleware"
	"github.com/correlator-io/trackcheck/internal/config"
)

const (
	defaultPort           = 8080
	maxPort               = 65535
	defaultHost           = "0.0.0.0"
	defaultTimeout        = 30 * time.Second
	defaultLogLevel       = slog.LevelInfo
	defaultMaxRequestSize = int64(32 << 20)

	defaultCORSOrigins = "*"
	defaultCORSMethods = "GET,POST,OPTIONS"
	defaultCORSHeaders = "Content-Type," + middleware.CorrelationIDHeader
	defaultCORSMaxAge  = 86400

	defaultListLimit = 20
	maxListLimit     = 200
)

// Configuration errors returned (joined) by ServerConfig.Validate.
var (
	ErrInvalidPort            = errors.New("invalid port")
	ErrEmptyHost              = errors.New("host cannot be empty")
	ErrInvalidReadTimeout     = errors.New("read timeout must be positive")
	ErrInvalidWriteTimeout    = errors.New("write timeout must be positive")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
	ErrInvalidMaxRequestSize  = errors.New("max request size must be positive")
	ErrInvalidCORSMaxAge      = errors.New("cors max age cannot be negative")
)

// ServerConfig configures the HTTP listener. Runtime collaborators are passed to
// NewServer through Dependencies.
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	LogLevel        slog.Level

	// MaxRequestSize caps an uploaded log in bytes.
	MaxRequestSize int64

	CORS middleware.CORSPolicy
}

// LoadServerConfig reads TRACKCHECK_SERVER_* and TRACKCHECK_CORS_* variables.
func LoadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:            config.GetEnvInt("TRACKCHECK_SERVER_PORT", defaultPort),
		Host:            config.GetEnvStr("TRACKCHECK_SERVER_HOST", defaultHost),
		ReadTimeout:     config.GetEnvDuration("TRACKCHECK_SERVER_READ_TIMEOUT", defaultTimeout),
		WriteTimeout:    config.GetEnvDuration("TRACKCHECK_SERVER_WRITE_TIMEOUT", defaultTimeout),
		ShutdownTimeout: config.GetEnvDuration("TRACKCHECK_SERVER_SHUTDOWN_TIMEOUT", defaultTimeout),
		LogLevel:        config.GetEnvLogLevel("TRACKCHECK_SERVER_LOG_LEVEL", defaultLogLevel),
		MaxRequestSize:  config.GetEnvInt64("TRACKCHECK_SERVER_MAX_REQUEST_SIZE", defaultMaxRequestSize),
		CORS: middleware.CORSPolicy{
			AllowedOrigins: envList("TRACKCHECK_CORS_ALLOWED_ORIGINS", defaultCORSOrigins),
			AllowedMethods: envList("TRACKCHECK_CORS_ALLOWED_METHODS", defaultCORSMethods),
			AllowedHeaders: envList("TRACKCHECK_CORS_ALLOWED_HEADERS", defaultCORSHeaders),
			MaxAge:         config.GetEnvInt("TRACKCHECK_CORS_MAX_AGE", defaultCORSMaxAge),
		},
	}
}

func envList(key, fallback string) []string {
	return config.ParseCommaSeparatedList(config.GetEnvStr(key, fallback))
}

// Address returns host:port for http.Server.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate reports every invalid setting at once.
func (c *ServerConfig) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > maxPort {
		errs = append(errs, fmt.Errorf("%w: %d, must be between 1 and %d", ErrInvalidPort, c.Port, maxPort))
	}

	if c.Host == "" {
		errs = append(errs, ErrEmptyHost)
	}

	for _, timeout := range []struct {
		value time.Duration
		err   error
	}{
		{c.ReadTimeout, ErrInvalidReadTimeout},
		{c.WriteTimeout, ErrInvalidWriteTimeout},
		{c.ShutdownTimeout, ErrInvalidShutdownTimeout},
	} {
		if timeout.value <= 0 {
			errs = append(errs, fmt.Errorf("%w: got %v", timeout.err, timeout.value))
		}
	}

	if c.MaxRequestSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: got %d bytes", ErrInvalidMaxRequestSize, c.MaxRequestSize))
	}

	if c.CORS.MaxAge < 0 {
		errs = append(errs, fmt.Errorf("%w: got %d", ErrInvalidCORSMaxAge, c.CORS.MaxAge))
	}

	return errors.Join(errs...)
}
