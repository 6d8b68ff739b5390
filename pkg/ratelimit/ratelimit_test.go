package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eludris/eludris/pkg/cache"
	"github.com/eludris/eludris/pkg/models"
)

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return NewLimiter(c), mr
}

func TestLimiterCheck(t *testing.T) {
	ctx := context.Background()
	bucket := Bucket{Name: "test", Limit: 3, ResetAfter: 10 * time.Second}

	t.Run("AllowsUpToTheLimit", func(t *testing.T) {
		l, _ := newTestLimiter(t)

		for i := 1; i <= 3; i++ {
			res, apiErr := l.Check(ctx, bucket, "1.2.3.4")
			require.Nil(t, apiErr)
			assert.Equal(t, uint64(i), res.RequestCount)
		}

		res, apiErr := l.Check(ctx, bucket, "1.2.3.4")
		require.NotNil(t, apiErr)
		assert.ErrorIs(t, apiErr, models.ErrRateLimited(0))
		assert.Positive(t, apiErr.RetryAfter)
		// The result is still usable for headers.
		assert.Equal(t, uint64(4), res.RequestCount)
	})

	t.Run("SubjectsAreIndependent", func(t *testing.T) {
		l, _ := newTestLimiter(t)

		for i := 0; i < 3; i++ {
			_, apiErr := l.Check(ctx, bucket, "1.2.3.4")
			require.Nil(t, apiErr)
		}
		_, apiErr := l.Check(ctx, bucket, "5.6.7.8")
		assert.Nil(t, apiErr)
	})

	t.Run("WindowExpiryResetsTheCount", func(t *testing.T) {
		l, mr := newTestLimiter(t)

		for i := 0; i < 3; i++ {
			_, apiErr := l.Check(ctx, bucket, "1.2.3.4")
			require.Nil(t, apiErr)
		}
		_, apiErr := l.Check(ctx, bucket, "1.2.3.4")
		require.NotNil(t, apiErr)

		mr.FastForward(11 * time.Second)

		res, apiErr := l.Check(ctx, bucket, "1.2.3.4")
		require.Nil(t, apiErr)
		assert.Equal(t, uint64(1), res.RequestCount)
	})
}

func TestLimiterCheckBytes(t *testing.T) {
	ctx := context.Background()
	bucket := Bucket{
		Name:          "attachments",
		Limit:         10,
		ResetAfter:    10 * time.Second,
		FileSizeLimit: 1000,
	}

	t.Run("ByteBudgetExhausts", func(t *testing.T) {
		l, _ := newTestLimiter(t)

		_, apiErr := l.CheckBytes(ctx, bucket, "1.2.3.4", 600)
		require.Nil(t, apiErr)

		// 600 + 600 exceeds the 1000 byte budget while the request count is
		// well under its own limit.
		_, apiErr = l.CheckBytes(ctx, bucket, "1.2.3.4", 600)
		require.NotNil(t, apiErr)
		assert.Equal(t, models.ErrorTypeRateLimited, apiErr.Type)
	})

	t.Run("ZeroBytesOnlyCountsTheRequest", func(t *testing.T) {
		l, _ := newTestLimiter(t)

		for i := 0; i < 5; i++ {
			_, apiErr := l.CheckBytes(ctx, bucket, "1.2.3.4", 0)
			require.Nil(t, apiErr)
		}
	})

	t.Run("NoByteLimitSkipsTheByteCounter", func(t *testing.T) {
		l, _ := newTestLimiter(t)
		unbounded := Bucket{Name: "assets", Limit: 10, ResetAfter: 10 * time.Second}

		_, apiErr := l.CheckBytes(ctx, unbounded, "1.2.3.4", 1<<30)
		assert.Nil(t, apiErr)
	})
}

func TestResultHeaders(t *testing.T) {
	res := Result{
		Bucket:       Bucket{Name: "test", Limit: 5, ResetAfter: 10 * time.Second},
		RequestCount: 2,
		Reset:        4 * time.Second,
	}

	h := make(http.Header)
	res.Headers(h)

	assert.Equal(t, "10000", h.Get("X-RateLimit-Reset"))
	assert.Equal(t, "5", h.Get("X-RateLimit-Max"))
	assert.Equal(t, "2", h.Get("X-RateLimit-Request-Count"))
	assert.NotEmpty(t, h.Get("X-RateLimit-Last-Reset"))
}
