// Package effis implements the Eludris file service: bucketed uploads with
// deduplication, media fetches with on-demand resizing and a media proxy.
package effis

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/eludris/eludris/internal/logger"
	"github.com/eludris/eludris/pkg/config"
	"github.com/eludris/eludris/pkg/filestore"
	"github.com/eludris/eludris/pkg/ratelimit"
)

// Server provides the file service HTTP server.
type Server struct {
	cfg          *config.Config
	server       *http.Server
	shutdownOnce sync.Once
}

// NewServer creates the file server in a stopped state.
func NewServer(cfg *config.Config, files *filestore.Service, limiter *ratelimit.Limiter) *Server {
	return &Server{
		cfg: cfg,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Effis.Port),
			Handler: NewRouter(cfg, files, limiter),
			// Uploads and downloads can be large; keep generous timeouts.
			ReadTimeout:  5 * time.Minute,
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Start serves requests and blocks until the context is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("file server listening", "port", s.cfg.Effis.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("file server shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("file server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("file server shutdown error: %w", err)
		} else {
			logger.Info("file server stopped gracefully")
		}
	})
	return shutdownErr
}
