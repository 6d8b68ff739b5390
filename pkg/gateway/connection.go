package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eludris/eludris/internal/logger"
	"github.com/eludris/eludris/pkg/metrics"
	"github.com/eludris/eludris/pkg/models"
)

// Close reasons. The code distinguishes protocol violations from server
// faults so clients can decide whether to retry.
const (
	closeReasonDead        = "Client connection dead"
	closeReasonRateLimited = "Client got ratelimited"
	closeReasonBadToken    = "Invalid credentials"
)

// connection is one gateway socket and its state machine.
type connection struct {
	srv *Server
	ws  *websocket.Conn
	ip  string

	send chan models.ServerPayload

	mu          sync.Mutex
	lastPing    time.Time
	user        *models.User
	rateLimited bool
}

func newConnection(srv *Server, ws *websocket.Conn, ip string) *connection {
	return &connection{
		srv:      srv,
		ws:       ws,
		ip:       ip,
		send:     make(chan models.ServerPayload, sendBuffer),
		lastPing: time.Now(),
	}
}

// run drives the connection: HELLO, then the three supervised tasks plus the
// single writer. The first task to return cancels the rest.
func (c *connection) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Debug("gateway connection opened", "ip", c.ip)
	metrics.GatewayConnections.Inc()
	defer metrics.GatewayConnections.Dec()

	// The opening rate limit check; an already-exhausted IP starts out in
	// rate-limited mode and gets told how long to wait. The miss counts
	// towards the consecutive-exceedance close.
	if _, apiErr := c.checkRateLimit(ctx); apiErr != nil {
		c.mu.Lock()
		c.rateLimited = true
		c.mu.Unlock()
		c.enqueue(models.ServerPayload{
			Op: models.OpRateLimit,
			D:  &models.RateLimitData{Wait: apiErr.RetryAfter},
		})
	}

	c.enqueue(models.ServerPayload{
		Op: models.OpHello,
		D: &models.HelloData{
			HeartbeatInterval: heartbeatInterval.Milliseconds(),
			InstanceInfo:      c.srv.cfg.InstanceInfo(false),
			RateLimit: models.HelloRateLimit{
				Limit:      c.srv.cfg.Pandemonium.RateLimit.Limit,
				ResetAfter: c.srv.cfg.Pandemonium.RateLimit.ResetAfter,
			},
		},
	})

	var wg sync.WaitGroup
	writerDone := make(chan struct{})

	wg.Add(3)
	go func() { defer wg.Done(); defer cancel(); c.watchHeartbeat(ctx) }()
	go func() { defer wg.Done(); defer cancel(); c.readLoop(ctx) }()
	go func() { defer wg.Done(); defer cancel(); c.fanOut(ctx) }()

	go func() {
		defer close(writerDone)
		c.writeLoop(ctx)
	}()

	wg.Wait()
	cancel()
	<-writerDone
	c.ws.Close()

	// Presence bookkeeping happens only for sockets that authenticated.
	c.mu.Lock()
	user := c.user
	c.mu.Unlock()
	if user != nil {
		disconnectCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := c.srv.presence.Disconnect(disconnectCtx, *user); err != nil {
			logger.Error("presence disconnect failed", "user_id", user.ID, "error", err)
		}
	}
	logger.Debug("gateway connection closed", "ip", c.ip)
}

func (c *connection) enqueue(payload models.ServerPayload) {
	select {
	case c.send <- payload:
		metrics.GatewayEvents.WithLabelValues(payload.Op).Inc()
	default:
		logger.Warn("gateway send buffer full, dropping frame", "ip", c.ip, "op", payload.Op)
	}
}

// writeLoop is the only goroutine that writes to the socket.
func (c *connection) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteJSON(payload); err != nil {
				logger.Debug("gateway write failed", "ip", c.ip, "error", err)
				return
			}
		}
	}
}

// closeWith sends a close frame through the socket. Control frames are safe
// to write concurrently with the writer goroutine.
func (c *connection) closeWith(code int, reason string) {
	deadline := time.Now().Add(writeTimeout)
	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.ws.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		logger.Debug("gateway close frame failed", "ip", c.ip, "error", err)
	}
}

// watchHeartbeat closes connections whose last PING is older than the
// advertised interval plus slack.
func (c *connection) watchHeartbeat(ctx context.Context) {
	deadline := heartbeatInterval + heartbeatSlack
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			last := c.lastPing
			c.mu.Unlock()
			if time.Since(last) > deadline {
				c.closeWith(websocket.ClosePolicyViolation, closeReasonDead)
				return
			}
		}
	}
}

func (c *connection) checkRateLimit(ctx context.Context) (bool, *models.APIError) {
	bucket := c.srv.cfg.Pandemonium.RateLimit.Bucket("gateway")
	_, apiErr := c.srv.limiter.Check(ctx, bucket, c.ip)
	return apiErr == nil, apiErr
}

// readLoop decodes and handles inbound frames.
func (c *connection) readLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		ok, apiErr := c.checkRateLimit(ctx)
		if !ok && apiErr != nil && apiErr.Type == models.ErrorTypeRateLimited {
			c.mu.Lock()
			again := c.rateLimited
			c.rateLimited = true
			c.mu.Unlock()
			if again {
				// Second consecutive exceedance: the client is not backing
				// off.
				c.closeWith(websocket.ClosePolicyViolation, closeReasonRateLimited)
				return
			}
			c.enqueue(models.ServerPayload{
				Op: models.OpRateLimit,
				D:  &models.RateLimitData{Wait: apiErr.RetryAfter},
			})
			continue
		}
		c.mu.Lock()
		c.rateLimited = false
		c.mu.Unlock()

		var payload models.ClientPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			logger.Debug("gateway dropped undecodable frame", "ip", c.ip, "error", err)
			continue
		}

		switch payload.Op {
		case models.OpPing:
			c.mu.Lock()
			c.lastPing = time.Now()
			c.mu.Unlock()
			c.enqueue(models.ServerPayload{Op: models.OpPong})
		case models.OpAuthenticate:
			if done := c.authenticate(ctx, payload.Token()); done {
				return
			}
		}
	}
}

// authenticate validates the token and promotes the connection. Returns true
// when the connection must close.
func (c *connection) authenticate(ctx context.Context, token string) bool {
	c.mu.Lock()
	already := c.user != nil
	c.mu.Unlock()
	if already {
		return false
	}

	claims, err := c.srv.tokens.Verify(token)
	if err != nil {
		c.closeWith(websocket.ClosePolicyViolation, closeReasonBadToken)
		return true
	}
	live, err := c.srv.db.SessionExists(ctx, claims.UserID, claims.SessionID)
	if err != nil || !live {
		c.closeWith(websocket.ClosePolicyViolation, closeReasonBadToken)
		return true
	}

	user, err := c.srv.db.GetUser(ctx, claims.UserID)
	if err != nil {
		c.closeWith(websocket.ClosePolicyViolation, closeReasonBadToken)
		return true
	}
	spheres, err := c.srv.db.UserSpheres(ctx, user.ID)
	if err != nil {
		logger.Error("failed to load spheres for gateway auth", "user_id", user.ID, "error", err)
		c.closeWith(websocket.CloseInternalServerErr, "Server error")
		return true
	}

	if err := c.srv.presence.Connect(ctx, user); err != nil {
		logger.Error("presence connect failed", "user_id", user.ID, "error", err)
	}

	c.mu.Lock()
	c.user = &user
	c.mu.Unlock()

	c.enqueue(models.ServerPayload{
		Op: models.OpAuthenticated,
		D: &models.AuthenticatedData{
			User:    user,
			Spheres: spheres,
		},
	})
	logger.Debug("gateway connection authenticated", "ip", c.ip, "user_id", user.ID)
	return false
}

// fanOut relays bus events, filtered and rewritten for this session.
func (c *connection) fanOut(ctx context.Context) {
	events, err := c.srv.subs.Subscribe(ctx)
	if err != nil {
		logger.Error("gateway subscription failed", "ip", c.ip, "error", err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			c.mu.Lock()
			user := c.user
			c.mu.Unlock()
			if user == nil {
				// Unauthenticated sessions receive nothing from the bus.
				continue
			}
			if payload, send := c.rewrite(ctx, *user, event); send {
				c.enqueue(payload)
			}
		}
	}
}

// rewrite applies the per-session view of an event: private fields are
// stripped and presence redacted on USER_UPDATEs about other users.
func (c *connection) rewrite(ctx context.Context, viewer models.User, event models.ServerPayload) (models.ServerPayload, bool) {
	if event.Op != models.OpUserUpdate {
		return event, true
	}
	updated, ok := event.D.(*models.User)
	if !ok {
		return event, true
	}
	if updated.ID == viewer.ID {
		return event, true
	}

	online, err := c.srv.presence.Online(ctx, updated.ID)
	if err != nil {
		logger.Warn("presence lookup failed during fan-out", "user_id", updated.ID, "error", err)
		online = false
	}
	view := updated.StripPrivate().RedactPresence(online)
	return models.ServerPayload{Op: models.OpUserUpdate, D: &view}, true
}
