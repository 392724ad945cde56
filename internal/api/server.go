package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rollcall/rollcall/internal/session"
)

// Server hosts the HTTP adapter over the session operations.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds the HTTP server on the given port.
func NewServer(manager *session.Manager, logger *zap.Logger, port int) *Server {
	handlers := NewHandlers(manager, logger)
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      NewRouter(handlers),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		logger: logger,
	}
}

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("api server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
