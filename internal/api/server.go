package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"vega/internal/api/health"
	"vega/internal/metrics"
	"vega/pkg/errors"
	"vega/pkg/logger"
)

// ServerConfig contains configuration for the HTTP server
type ServerConfig struct {
	Addr        string
	ServiceName string
	Version     string
}

// Server wraps the HTTP server with lifecycle management
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer creates and configures the HTTP server with all routes
func NewServer(cfg ServerConfig, healthHandler *health.Handler, log *logger.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", healthHandler.HandleHealth)
	mux.HandleFunc("/live", healthHandler.HandleLiveness)
	mux.Handle("/metrics", metrics.Handler())

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"service":"%s","version":"%s","status":"running"}`,
			cfg.ServiceName, cfg.Version)
	})

	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: httpServer, log: log}
}

// Start begins listening for HTTP requests. Blocks until the server is
// stopped or fails.
func (s *Server) Start() error {
	s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Infow("Stopping HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}
	return nil
}
