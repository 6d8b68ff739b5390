// Package api implements Oprish, the Eludris REST API service.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/eludris/eludris/internal/logger"
	"github.com/eludris/eludris/pkg/auth"
	"github.com/eludris/eludris/pkg/config"
	"github.com/eludris/eludris/pkg/email"
	"github.com/eludris/eludris/pkg/embeds"
	"github.com/eludris/eludris/pkg/presence"
	"github.com/eludris/eludris/pkg/pubsub"
	"github.com/eludris/eludris/pkg/ratelimit"
	"github.com/eludris/eludris/pkg/store"
)

// Deps bundles the services the REST API depends on.
type Deps struct {
	DB       *store.Store
	Tokens   *auth.TokenService
	Limiter  *ratelimit.Limiter
	Pub      *pubsub.Publisher
	Presence *presence.Service
	Crawler  *embeds.Crawler
	Mail     *email.Service
}

// Server provides the REST API HTTP server.
//
// The server supports graceful shutdown; Stop is safe to call more than once
// and concurrently with Start.
type Server struct {
	cfg          *config.Config
	server       *http.Server
	shutdownOnce sync.Once
}

// NewServer creates the API server in a stopped state. Call Start to begin
// serving requests.
func NewServer(cfg *config.Config, deps Deps) *Server {
	return &Server{
		cfg: cfg,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Oprish.Port),
			Handler:      NewRouter(cfg, deps),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Start serves requests and blocks until the context is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", s.cfg.Oprish.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}
