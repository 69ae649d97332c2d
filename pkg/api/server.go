// Package api serves the settings record and its snapshots over HTTP.
//
// Every route under /api/v1 requires the X-API-Key header. /metrics is
// unauthenticated so Prometheus can scrape it.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// Server holds the dependencies shared by the handlers
type Server struct {
	manager   SettingsManager
	snapshots SnapshotStore
	config    ServerConfig
	metrics   *Metrics
	logger    zerolog.Logger
}

// NewServer creates a new API server. snapshots may be nil, in which case
// the snapshot routes answer 503.
func NewServer(manager SettingsManager, snapshots SnapshotStore, config ServerConfig, metrics *Metrics, logger zerolog.Logger) *Server {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Server{
		manager:   manager,
		snapshots: snapshots,
		config:    config,
		metrics:   metrics,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Metrics returns the server's metrics
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Router builds the HTTP handler with all routes configured
func (s *Server) Router() http.Handler {
	m := s.metrics
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", m.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(m.InstrumentAuthMiddleware(apiKeyMiddleware(s.config.APIKey)))

		r.Get("/health", m.InstrumentHandler("GET", "/api/v1/health", s.handleHealth))

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", m.InstrumentHandler("GET", "/api/v1/settings", s.handleGetSettings))
			r.Put("/", m.InstrumentHandler("PUT", "/api/v1/settings", s.handlePutSettings))
			r.Delete("/", m.InstrumentHandler("DELETE", "/api/v1/settings", s.handleEraseSettings))
			r.Get("/raw", m.InstrumentHandler("GET", "/api/v1/settings/raw", s.handleGetRaw))
			r.Get("/format", m.InstrumentHandler("GET", "/api/v1/settings/format", s.handleGetFormat))
			r.Get("/defaults", m.InstrumentHandler("GET", "/api/v1/settings/defaults", s.handleGetDefaults))
		})

		r.Route("/snapshots", func(r chi.Router) {
			r.Get("/", m.InstrumentHandler("GET", "/api/v1/snapshots", s.handleListSnapshots))
			r.Post("/", m.InstrumentHandler("POST", "/api/v1/snapshots", s.handleCreateSnapshot))
			r.Post("/{id}/restore", m.InstrumentHandler("POST", "/api/v1/snapshots/{id}/restore", s.handleRestoreSnapshot))
			r.Delete("/{id}", m.InstrumentHandler("DELETE", "/api/v1/snapshots/{id}", s.handleDeleteSnapshot))
		})
	})

	return r
}

// StartServer serves the API until ctx is canceled, then shuts down
// gracefully.
func StartServer(ctx context.Context, manager SettingsManager, snapshots SnapshotStore, config ServerConfig, logger zerolog.Logger) error {
	server := NewServer(manager, snapshots, config, NewMetrics(), logger)

	addr := net.JoinHostPort(config.Bind, strconv.Itoa(config.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		server.logger.Info().Str("addr", addr).Msg("starting settings API server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	server.logger.Info().Msg("shutting down settings API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}
