package main

import (
	"log/slog"

	"github.com/correlator-io/trackcheck/internal/api"
	"github.com/correlator-io/trackcheck/internal/api/middleware"
	"github.com/correlator-io/trackcheck/internal/config"
	"github.com/correlator-io/trackcheck/internal/metrics"
	"github.com/correlator-io/trackcheck/internal/publisher"
	"github.com/correlator-io/trackcheck/internal/storage"
	"github.com/correlator-io/trackcheck/internal/validation"
	"github.com/correlator-io/trackcheck/migrations"
)

// runServer wires the optional collaborators from the environment and blocks
// until the API server shuts down.
//
// Without DATABASE_URL runs are kept in memory; without TRACKCHECK_KAFKA_BROKERS
// nothing is published; TRACKCHECK_RATE_LIMIT_GLOBAL_RPS=0 disables rate limiting.
func runServer(validator *validation.FileValidator, logger *slog.Logger) int {
	serverConfig := api.LoadServerConfig()

	deps := api.Dependencies{
		Validator: validator,
		Metrics:   metrics.NewRecorder(),
		Logger:    logger,
	}

	storageConfig := storage.LoadConfig()
	if storageConfig.Enabled() {
		conn, err := storage.NewConnection(storageConfig)
		if err != nil {
			logger.Error("Failed to connect to database", slog.String("error", err.Error()))

			return exitUsage
		}

		defer func() {
			_ = conn.Close()
		}()

		if config.GetEnvBool("TRACKCHECK_AUTO_MIGRATE", false) {
			if err := migrations.Up(conn.DB, migrations.DefaultTable); err != nil {
				logger.Error("Failed to apply migrations", slog.String("error", err.Error()))

				return exitUsage
			}
		}

		store, err := storage.NewRunStore(conn, logger)
		if err != nil {
			logger.Error("Failed to create run store", slog.String("error", err.Error()))

			return exitUsage
		}

		deps.Store = store

		logger.Info("Run store initialized",
			slog.String("database_url", storageConfig.MaskDatabaseURL()),
			slog.Int("database_max_open_conns", storageConfig.MaxOpenConns),
			slog.Int("database_max_idle_conns", storageConfig.MaxIdleConns),
		)
	}

	publisherConfig := publisher.LoadConfig()

	pub, err := publisher.New(publisherConfig, logger)
	if err != nil {
		logger.Error("Failed to create result publisher", slog.String("error", err.Error()))

		return exitUsage
	}

	deps.Publisher = pub

	if publisherConfig.Enabled() {
		logger.Info("Result publishing enabled",
			slog.Any("brokers", publisherConfig.Brokers),
			slog.String("topic", publisherConfig.Topic),
		)
	}

	rateLimitConfig := middleware.LoadConfig()
	if rateLimitConfig.Enabled() {
		deps.RateLimiter = middleware.NewInMemoryRateLimiter(rateLimitConfig)

		logger.Info("Rate limiter initialized",
			slog.Int("global_rps", rateLimitConfig.GlobalRPS),
			slog.Int("client_rps", rateLimitConfig.ClientRPS),
		)
	}

	server, err := api.NewServer(serverConfig, deps)
	if err != nil {
		logger.Error("Failed to create server", slog.String("error", err.Error()))

		return exitUsage
	}

	if err := server.Start(); err != nil {
		logger.Error("Server stopped with error", slog.String("error", err.Error()))

		return exitInvalid
	}

	logger.Info("trackcheck service stopped")

	return exitValid
}
