// Package api serves the trackcheck validation HTTP API: log uploads are
// validated against the loaded schema, stored as runs and published.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/correlator-io/trackcheck/internal/api/middleware"
	"github.com/correlator-io/trackcheck/internal/metrics"
	"github.com/correlator-io/trackcheck/internal/publisher"
	"github.com/correlator-io/trackcheck/internal/storage"
	"github.com/correlator-io/trackcheck/internal/validation"
)

// ErrValidatorRequired is returned by NewServer without a FileValidator.
var ErrValidatorRequired = errors.New("file validator is required")

// Version is reported by /health and the X-Trackcheck-Version header.
// Overridden at build time with -ldflags "-X .../internal/api.Version=...".
var Version = "dev"

type (
	// Dependencies are the runtime collaborators of a Server.
	// Only Validator is required.
	Dependencies struct {
		Validator   *validation.FileValidator
		Store       validation.Store       // nil: in-memory store
		Publisher   publisher.Publisher    // nil: results are not published
		Metrics     *metrics.Recorder      // nil: private recorder
		RateLimiter middleware.RateLimiter // nil: no rate limiting
		Logger      *slog.Logger           // nil: JSON logger at cfg.LogLevel
	}

	// Server represents the HTTP API server.
	Server struct {
		httpServer   *http.Server
		handler      http.Handler
		logger       *slog.Logger
		config       *ServerConfig
		startTime    time.Time
		validator    *validation.FileValidator
		schemaDigest string
		store        validation.Store
		publisher    publisher.Publisher
		metrics      *metrics.Recorder
		rateLimiter  middleware.RateLimiter
	}
)

// NewServer wires routes and the middleware stack.
func NewServer(cfg *ServerConfig, deps Dependencies) (*Server, error) {
	if deps.Validator == nil {
		return nil, ErrValidatorRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	}

	schemaDigest, err := storage.SchemaDigest(deps.Validator.Schema())
	if err != nil {
		return nil, fmt.Errorf("failed to digest schema: %w", err)
	}

	server := &Server{
		logger:       logger,
		config:       cfg,
		validator:    deps.Validator,
		schemaDigest: schemaDigest,
		store:        deps.Store,
		publisher:    deps.Publisher,
		metrics:      deps.Metrics,
		rateLimiter:  deps.RateLimiter,
	}

	if server.store == nil {
		logger.Warn("Run store not configured - validation runs are kept in memory")

		server.store = storage.NewMemoryRunStore()
	}

	if server.publisher == nil {
		server.publisher = publisher.NoopPublisher{}
	}

	if server.metrics == nil {
		server.metrics = metrics.NewRecorder()
	}

	if deps.RateLimiter != nil {
		logger.Info("Rate limiting middleware enabled")
	} else {
		logger.Warn("RateLimiter not configured - rate limiting middleware disabled")
	}

	mux := http.NewServeMux()
	server.setupRoutes(mux)

	// Order: correlation ID first so every later layer can log it; recovery
	// wraps everything below; rate-limited requests are not request-logged.
	server.handler = middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(logger),
		middleware.WithRateLimit(deps.RateLimiter, logger),
		middleware.WithRequestLogger(logger),
		middleware.WithCORS(cfg.CORS),
	)

	server.httpServer = &http.Server{
		Addr:              cfg.Address(),
		Handler:           server.handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	return server, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server and blocks until shutdown.
// It handles graceful shutdown on SIGINT and SIGTERM signals.
func (s *Server) Start() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	s.startTime = time.Now()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	defer signal.Stop(stop)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("Starting trackcheck API server",
			slog.String("address", s.config.Address()),
			slog.String("version", Version),
			slog.Duration("read_timeout", s.config.ReadTimeout),
			slog.Duration("write_timeout", s.config.WriteTimeout),
			slog.Int64("max_request_size", s.config.MaxRequestSize),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server failed to start",
				slog.String("address", s.config.Address()),
				slog.String("error", err.Error()),
			)

			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-stop:
		s.logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

		return s.shutdown()
	}
}

// shutdown drains in-flight requests, then closes the collaborators that hold resources.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Initiating server shutdown",
		slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
	)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Server shutdown failed",
			slog.String("error", err.Error()),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.closeQuietly("publisher", s.publisher)
	s.closeQuietly("rate limiter", s.rateLimiter)

	s.logger.Info("Server shutdown completed successfully")

	return nil
}

func (s *Server) closeQuietly(name string, v any) {
	closer, ok := v.(io.Closer)
	if !ok || closer == nil {
		return
	}

	if err := closer.Close(); err != nil {
		s.logger.Error("Failed to close "+name, slog.String("error", err.Error()))

		return
	}

	s.logger.Info("Closed " + name)
}
