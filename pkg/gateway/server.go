// Package gateway implements Pandemonium, the WebSocket event gateway.
//
// Each socket runs a small state machine (unauthenticated → authenticated)
// supervised by three cooperative tasks: a dead-connection watcher, an
// inbound reader and the event fan-out. The first task to finish tears the
// connection down.
package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eludris/eludris/internal/logger"
	"github.com/eludris/eludris/pkg/auth"
	"github.com/eludris/eludris/pkg/config"
	"github.com/eludris/eludris/pkg/presence"
	"github.com/eludris/eludris/pkg/pubsub"
	"github.com/eludris/eludris/pkg/ratelimit"
	"github.com/eludris/eludris/pkg/store"
)

const (
	// heartbeatInterval is advertised in HELLO; the watcher allows an extra
	// slack before declaring the connection dead.
	heartbeatInterval = 45 * time.Second
	heartbeatSlack    = 3 * time.Second

	writeTimeout = 10 * time.Second
	sendBuffer   = 64
)

// Server is the gateway HTTP server upgrading connections to WebSockets.
type Server struct {
	cfg      *config.Config
	tokens   *auth.TokenService
	db       *store.Store
	limiter  *ratelimit.Limiter
	presence *presence.Service
	subs     *pubsub.Subscriber

	server       *http.Server
	upgrader     websocket.Upgrader
	shutdownOnce sync.Once
}

// NewServer creates a gateway server in a stopped state.
func NewServer(cfg *config.Config, tokens *auth.TokenService, db *store.Store, limiter *ratelimit.Limiter, pres *presence.Service, subs *pubsub.Subscriber) *Server {
	s := &Server{
		cfg:      cfg,
		tokens:   tokens,
		db:       db,
		limiter:  limiter,
		presence: pres,
		subs:     subs,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browsers connect from any origin; tokens gate everything that
			// matters.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleConnect)
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Pandemonium.Port),
		Handler: mux,
	}
	return s
}

// Start serves gateway connections until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "port", s.cfg.Pandemonium.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("gateway shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("gateway server failed: %w", err)
	}
}

// Stop shuts the gateway down gracefully. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("gateway shutdown error: %w", err)
		} else {
			logger.Info("gateway stopped gracefully")
		}
	})
	return shutdownErr
}

// handleConnect upgrades the request and runs the connection to completion.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := newConnection(s, ws, clientIP(r))
	conn.run(r.Context())
}

// clientIP resolves the effective client address, trusting the usual proxy
// headers before the socket peer. The peer's ephemeral port is dropped so
// reconnects from one address share a rate limit bucket.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
