package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eludris/eludris/pkg/auth"
	"github.com/eludris/eludris/pkg/cache"
	"github.com/eludris/eludris/pkg/config"
	"github.com/eludris/eludris/pkg/models"
	"github.com/eludris/eludris/pkg/presence"
	"github.com/eludris/eludris/pkg/pubsub"
	"github.com/eludris/eludris/pkg/ratelimit"
)

func testConfig(limit int) *config.Config {
	return &config.Config{
		InstanceName:    "testinstance",
		Secret:          "0123456789abcdef",
		ShutdownTimeout: time.Second,
		Oprish: config.OprishConfig{
			URL:          "http://localhost:7159",
			MessageLimit: 2048,
			BioLimit:     4096,
		},
		Pandemonium: config.PandemoniumConfig{
			URL:       "ws://localhost:7160",
			Port:      7160,
			RateLimit: config.RateLimitConfig{Limit: limit, ResetAfter: 10},
		},
		Effis: config.EffisConfig{URL: "http://localhost:7161"},
	}
}

// newTestGateway stands up a gateway over an httptest listener.
func newTestGateway(t *testing.T, limit int) *httptest.Server {
	t.Helper()

	mr := miniredis.RunT(t)
	c := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })

	cfg := testConfig(limit)
	srv := NewServer(cfg,
		auth.NewTokenService(cfg.Secret),
		nil,
		ratelimit.NewLimiter(c),
		presence.NewService(c, pubsub.NewPublisher(c)),
		pubsub.NewSubscriber(c),
	)

	ts := httptest.NewServer(http.HandlerFunc(srv.handleConnect))
	t.Cleanup(ts.Close)
	return ts
}

func dialGateway(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	return ws
}

func dialTestGateway(t *testing.T, limit int) *websocket.Conn {
	t.Helper()
	return dialGateway(t, newTestGateway(t, limit))
}

func readPayload(t *testing.T, ws *websocket.Conn) models.ServerPayload {
	t.Helper()
	var payload models.ServerPayload
	require.NoError(t, ws.ReadJSON(&payload))
	return payload
}

func TestGatewayHello(t *testing.T) {
	ws := dialTestGateway(t, 100)

	payload := readPayload(t, ws)
	require.Equal(t, models.OpHello, payload.Op)

	hello, ok := payload.D.(*models.HelloData)
	require.True(t, ok)
	assert.Equal(t, heartbeatInterval.Milliseconds(), hello.HeartbeatInterval)
	assert.Equal(t, "testinstance", hello.InstanceInfo.InstanceName)
	assert.Equal(t, 100, hello.RateLimit.Limit)
	assert.Equal(t, 10, hello.RateLimit.ResetAfter)
	// The unauthenticated instance info never includes the full tables.
	assert.Nil(t, hello.InstanceInfo.RateLimits)
}

func TestGatewayPingPong(t *testing.T) {
	ws := dialTestGateway(t, 100)
	readPayload(t, ws)

	for i := 0; i < 3; i++ {
		require.NoError(t, ws.WriteJSON(map[string]string{"op": "PING"}))
		payload := readPayload(t, ws)
		assert.Equal(t, models.OpPong, payload.Op)
	}
}

func TestGatewayIgnoresGarbageFrames(t *testing.T) {
	ws := dialTestGateway(t, 100)
	readPayload(t, ws)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, ws.WriteJSON(map[string]string{"op": "PING"}))

	payload := readPayload(t, ws)
	assert.Equal(t, models.OpPong, payload.Op)
}

func TestGatewayRateLimit(t *testing.T) {
	// The connect itself consumes the single slot, so the first frame already
	// exceeds the bucket.
	ws := dialTestGateway(t, 1)
	readPayload(t, ws)

	require.NoError(t, ws.WriteJSON(map[string]string{"op": "PING"}))
	payload := readPayload(t, ws)
	require.Equal(t, models.OpRateLimit, payload.Op)
	data, ok := payload.D.(*models.RateLimitData)
	require.True(t, ok)
	assert.Positive(t, data.Wait)

	// A client that keeps sending while limited is disconnected.
	require.NoError(t, ws.WriteJSON(map[string]string{"op": "PING"}))
	for {
		var next models.ServerPayload
		err := ws.ReadJSON(&next)
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		require.ErrorAs(t, err, &closeErr)
		assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
		assert.Equal(t, closeReasonRateLimited, closeErr.Text)
		return
	}
}

func TestGatewayOpeningRateLimitCountsTowardsClose(t *testing.T) {
	ts := newTestGateway(t, 1)

	// The first socket consumes the single slot for this host.
	first := dialGateway(t, ts)
	readPayload(t, first)

	// The second socket opens already exhausted: it is warned before HELLO
	// and the warning counts as the first exceedance.
	second := dialGateway(t, ts)
	payload := readPayload(t, second)
	require.Equal(t, models.OpRateLimit, payload.Op)
	data, ok := payload.D.(*models.RateLimitData)
	require.True(t, ok)
	assert.Positive(t, data.Wait)

	payload = readPayload(t, second)
	require.Equal(t, models.OpHello, payload.Op)

	// Its very next frame is the second consecutive exceedance.
	require.NoError(t, second.WriteJSON(map[string]string{"op": "PING"}))
	for {
		var next models.ServerPayload
		err := second.ReadJSON(&next)
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		require.ErrorAs(t, err, &closeErr)
		assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
		assert.Equal(t, closeReasonRateLimited, closeErr.Text)
		return
	}
}

func TestGatewayRejectsBadToken(t *testing.T) {
	ws := dialTestGateway(t, 100)
	readPayload(t, ws)

	require.NoError(t, ws.WriteJSON(map[string]string{"op": "AUTHENTICATE", "d": "not-a-token"}))
	for {
		var next models.ServerPayload
		err := ws.ReadJSON(&next)
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		require.ErrorAs(t, err, &closeErr)
		assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
		assert.Equal(t, closeReasonBadToken, closeErr.Text)
		return
	}
}
