// Package server is the dashboard relay: it holds the authoritative
// DashboardState fed by the scanning swarm and serves it to dashboard
// clients over REST, server-sent events and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/gosuda/scanwatch/internal/config"
	"github.com/gosuda/scanwatch/internal/history"
	"github.com/gosuda/scanwatch/internal/server/middleware"
	"github.com/gosuda/scanwatch/internal/state"
)

// Server is the HTTP server that wires all relay routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	hub        *Hub
	tracker    *history.Tracker
	cfg        *config.Config
}

// New creates a Server with all routes wired. ctx bounds background
// goroutines such as the rate limiter cleanup.
func New(ctx context.Context, cfg *config.Config, store *state.Store, tracker *history.Tracker) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Cache-Control", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}).Handler)

	hub := NewHub(store, tracker, cfg.Stream.ClientBuffer)

	s := &Server{
		router:  router,
		hub:     hub,
		tracker: tracker,
		cfg:     cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	// API routes on /api with two sub-groups:
	// 1. Read-only group for snapshot and history endpoints.
	// 2. Rate-limited ingest group for swarm updates.
	router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			readConfig := huma.DefaultConfig("scanwatch API", "1.0.0")
			readConfig.Servers = []*huma.Server{
				{URL: "/api"},
			}
			readAPI := humachi.New(r, readConfig)
			RegisterReadRoutes(readAPI, hub, tracker)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(ctx, cfg.Ingest.RequestsPerSecond, cfg.Ingest.Burst))

			ingestConfig := huma.DefaultConfig("scanwatch ingest API", "1.0.0")
			ingestConfig.Servers = []*huma.Server{
				{URL: "/api"},
			}
			// Distinct doc paths so both groups can share the /api mux.
			ingestConfig.OpenAPIPath = "/ingest-openapi"
			ingestConfig.DocsPath = "/ingest-docs"
			ingestConfig.SchemasPath = "/ingest-schemas"
			ingestAPI := humachi.New(r, ingestConfig)
			RegisterIngestRoutes(ingestAPI, hub)
		})

		// Streaming and export endpoints are raw handlers; they do not fit
		// the request/response operation model.
		r.Get("/stream", s.handleStream)
		r.Get("/export", s.handleExport)
	})

	// WebSocket mirror of the event stream.
	router.Get("/ws", s.handleWS)

	// Health check (unauthenticated).
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Prometheus metrics.
	router.Handle("/metrics", promhttp.Handler())

	return s
}

// Hub returns the ingest/fan-out hub, used by the Redis bridge.
func (s *Server) Hub() *Hub { return s.hub }

// Router returns the underlying handler, used by tests.
func (s *Server) Router() http.Handler { return s.router }

// newHeartbeat returns the keep-alive ticker for stream handlers.
func (s *Server) newHeartbeat() *time.Ticker {
	return time.NewTicker(s.cfg.Stream.Heartbeat)
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
