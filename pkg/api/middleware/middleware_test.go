package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eludris/eludris/pkg/cache"
	"github.com/eludris/eludris/pkg/models"
	"github.com/eludris/eludris/pkg/ratelimit"
)

func TestCORS(t *testing.T) {
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("AttachesHeaders", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
		assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "X-RateLimit-Reset")
	})

	t.Run("PreflightShortCircuits", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")
	})
}

func TestRateLimiterMiddleware(t *testing.T) {
	newLimiter := func(t *testing.T) *RateLimiter {
		t.Helper()
		mr := miniredis.RunT(t)
		c := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
		t.Cleanup(func() { _ = c.Close() })
		return &RateLimiter{Limiter: ratelimit.NewLimiter(c)}
	}

	bucket := ratelimit.Bucket{Name: "test", Limit: 2, ResetAfter: 10 * time.Second}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("PassesUnderTheLimit", func(t *testing.T) {
		rl := newLimiter(t)
		handler := rl.Limit(bucket)(ok)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Request-Count"))
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Max"))
	})

	t.Run("RejectsOverTheLimit", func(t *testing.T) {
		rl := newLimiter(t)
		handler := rl.Limit(bucket)(ok)

		var rec *httptest.ResponseRecorder
		for i := 0; i < 3; i++ {
			rec = httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		}

		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		// Headers still present on the rejection.
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Request-Count"))

		var body models.APIError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, models.ErrorTypeRateLimited, body.Type)
		assert.Positive(t, body.RetryAfter)
	})

	t.Run("SharesTheBucketAcrossPorts", func(t *testing.T) {
		// Each TCP connection carries a fresh ephemeral port; the subject is
		// the host alone so they all land in one bucket.
		rl := newLimiter(t)
		handler := rl.Limit(bucket)(ok)

		for i, port := range []string{"1000", "2000"} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "1.2.3.4:" + port
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
		}

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "1.2.3.4:3000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("KeysOnClientHost", func(t *testing.T) {
		rl := newLimiter(t)
		handler := rl.Limit(bucket)(ok)

		for i := 0; i < 2; i++ {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "1.2.3.4:1000"
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)
		}

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "5.6.7.8:1000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
