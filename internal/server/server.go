// Package server exposes the signal pipeline over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/polyedge/polyedge/internal/server/handler"
	"github.com/polyedge/polyedge/internal/server/middleware"
	"github.com/polyedge/polyedge/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Nil handlers are skipped, so modes without a store can still serve the
// scan endpoints.
type Handlers struct {
	Health  *handler.HealthHandler
	Signals *handler.SignalHandler
	Markets *handler.MarketHandler
	Scan    *handler.ScanHandler
}

// Server is the headless HTTP + WebSocket API server for the signal service.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux
// and the middleware chain (logging, CORS) applied.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	if handlers.Health != nil {
		mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	}

	if handlers.Signals != nil {
		mux.HandleFunc("GET /api/signals", handlers.Signals.ListSignals)
		mux.HandleFunc("GET /api/signals/{id}", handlers.Signals.GetSignal)
		mux.HandleFunc("GET /api/stats", handlers.Signals.GetStats)
	}

	if handlers.Markets != nil {
		mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
		mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	}

	if handlers.Scan != nil {
		mux.HandleFunc("POST /api/scan", handlers.Scan.TriggerScan)
		mux.HandleFunc("GET /api/scanner/status", handlers.Scan.GetStatus)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout: 15 * time.Second,
		// A triggered scan responds synchronously and can take a while when
		// several upstream APIs are slow.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger.With(slog.String("component", "server")),
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// Handler returns the raw mux, exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}
