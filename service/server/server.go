package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lester-yat/POS-UMG-ARDUINO/service/db"
	"github.com/lester-yat/POS-UMG-ARDUINO/service/metrics"
	"github.com/lester-yat/POS-UMG-ARDUINO/service/nats"
)

// Server is the HTTP collaborator surface over the records the bridge
// produces: a read-only view of accounts and movements for dashboards, plus
// the admin account CRUD (register, top-up, delete).
type Server struct {
	addr      string
	store     *db.Store
	publisher nats.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	server    *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The publisher is optional - if nil, top-ups won't emit movement events.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, store *db.Store, publisher nats.Publisher, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:      addr,
		store:     store,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// routes builds the request mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Account routes
	mux.Handle("GET /api/v1/accounts", s.instrument("/api/v1/accounts", handleListAccounts(s.store, s.logger)))
	mux.Handle("POST /api/v1/accounts", s.instrument("/api/v1/accounts", handleRegisterAccount(s.store, s.logger)))
	mux.Handle("GET /api/v1/accounts/{tag}", s.instrument("/api/v1/accounts/{tag}", handleGetAccount(s.store, s.logger)))
	mux.Handle("DELETE /api/v1/accounts/{tag}", s.instrument("/api/v1/accounts/{tag}", handleDeleteAccount(s.store, s.logger)))
	mux.Handle("POST /api/v1/accounts/{tag}/topup", s.instrument("/api/v1/accounts/{tag}/topup", handleTopUpAccount(s.store, s.publisher, s.logger)))

	// Movement routes
	mux.Handle("GET /api/v1/movements", s.instrument("/api/v1/movements", handleListMovements(s.store, s.logger)))

	// Health check endpoint
	mux.Handle("GET /healthz", handleHealth(s.store, s.logger))

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	return mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// instrument wraps a handler with HTTP metrics when metrics are configured.
func (s *Server) instrument(name string, next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	return metrics.HTTPMetricsMiddleware(s.metrics, name)(next)
}
