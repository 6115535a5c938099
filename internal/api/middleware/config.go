package middleware

import (
	"time"

	"github.com/correlator-io/trackcheck/internal/config"
)

// Config holds rate limiter configuration.
//
// GlobalRPS bounds the whole server; ClientRPS bounds each client address.
// Burst fields left at 0 default to 2 × the rate.
type Config struct {
	GlobalRPS int
	ClientRPS int

	GlobalBurst int
	ClientBurst int

	// Idle client limiters are dropped every CleanupInterval once unused for IdleTimeout.
	CleanupInterval time.Duration
	IdleTimeout     time.Duration
	MaxClients      int
}

// LoadConfig loads rate limiter config from TRACKCHECK_RATE_LIMIT_* variables.
func LoadConfig() *Config {
	return &Config{
		GlobalRPS:   config.GetEnvInt("TRACKCHECK_RATE_LIMIT_GLOBAL_RPS", defaultGlobalRPS),
		ClientRPS:   config.GetEnvInt("TRACKCHECK_RATE_LIMIT_CLIENT_RPS", defaultClientRPS),
		GlobalBurst: config.GetEnvInt("TRACKCHECK_RATE_LIMIT_GLOBAL_BURST", 0),
		ClientBurst: config.GetEnvInt("TRACKCHECK_RATE_LIMIT_CLIENT_BURST", 0),
		CleanupInterval: config.GetEnvDuration(
			"TRACKCHECK_RATE_LIMIT_CLEANUP_INTERVAL", rateLimiterCleanupInterval,
		),
		IdleTimeout: config.GetEnvDuration("TRACKCHECK_RATE_LIMIT_IDLE_TIMEOUT", rateLimiterIdleTimeout),
		MaxClients:  config.GetEnvInt("TRACKCHECK_RATE_LIMIT_MAX_CLIENTS", defaultMaxClients),
	}
}

// Enabled reports whether rate limiting should be installed at all.
// A non-positive global rate turns it off.
func (c *Config) Enabled() bool {
	return c.GlobalRPS > 0
}
