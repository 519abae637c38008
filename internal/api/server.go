package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/camera-control/ccc/internal/auth"
)

// Server is the HTTP API server.
type Server struct {
	httpServer     *http.Server
	orchestrator   OrchestratorPort
	telemetryHub   TelemetryPort
	authMiddleware *auth.Middleware
	startTime      time.Time
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
}

// NewServer creates an API server without authentication.
func NewServer(orchestrator OrchestratorPort, telemetryHub TelemetryPort, readTimeout, writeTimeout, idleTimeout time.Duration) *Server {
	return &Server{
		orchestrator: orchestrator,
		telemetryHub: telemetryHub,
		startTime:    time.Now(),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		idleTimeout:  idleTimeout,
	}
}

// NewServerWithAuth creates an API server enforcing bearer-token auth.
func NewServerWithAuth(orchestrator OrchestratorPort, telemetryHub TelemetryPort, authMiddleware *auth.Middleware, readTimeout, writeTimeout, idleTimeout time.Duration) *Server {
	s := NewServer(orchestrator, telemetryHub, readTimeout, writeTimeout, idleTimeout)
	s.authMiddleware = authMiddleware
	return s
}

// Start runs the HTTP server. It blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = s.buildHTTPServer(addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// buildHTTPServer assembles the configured http.Server. The write timeout
// applies to every handler; the telemetry handler clears its own write
// deadline so SSE streams outlive it.
func (s *Server) buildHTTPServer(addr string) *http.Server {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  s.idleTimeout,
	}
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
