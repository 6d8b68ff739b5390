// Package ratelimit implements the fixed-window rate limiter shared by all
// three Eludris services.
//
// Counters live in Redis under rl:{bucket}:{subject} with a TTL of the
// bucket's window, so limits hold across service restarts and across
// processes. One canonical limiter serves both request-counted buckets and
// the Effis buckets that add a byte cost per upload.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/eludris/eludris/pkg/cache"
	"github.com/eludris/eludris/pkg/models"
)

// Bucket configures one named rate limit bucket.
type Bucket struct {
	// Name keys the counter, e.g. "create_message".
	Name string
	// Limit is the number of requests allowed per window.
	Limit int
	// ResetAfter is the window length.
	ResetAfter time.Duration
	// FileSizeLimit, when non-zero, adds a byte budget per window on top of
	// the request count (Effis asset/attachment buckets).
	FileSizeLimit uint64
}

// Conf converts the bucket to its instance-info wire shape.
func (b Bucket) Conf() models.RateLimitConf {
	return models.RateLimitConf{
		Limit:         b.Limit,
		ResetAfter:    int(b.ResetAfter / time.Second),
		FileSizeLimit: b.FileSizeLimit,
	}
}

// Result reports a passed check, carrying what the response headers need.
type Result struct {
	Bucket       Bucket
	RequestCount uint64
	// Reset is the remaining time until the window resets.
	Reset time.Duration
}

// Headers attaches the structured rate limit headers to a response.
//
// The headers are attached on success and on failure alike, so clients can
// pace themselves without hitting 429s.
func (r Result) Headers(h http.Header) {
	h.Set("X-RateLimit-Reset", strconv.FormatInt(int64(r.Bucket.ResetAfter/time.Millisecond), 10))
	h.Set("X-RateLimit-Max", strconv.Itoa(r.Bucket.Limit))
	h.Set("X-RateLimit-Last-Reset", strconv.FormatInt(time.Now().Add(r.Reset-r.Bucket.ResetAfter).UnixMilli(), 10))
	h.Set("X-RateLimit-Request-Count", strconv.FormatUint(r.RequestCount, 10))
}

// Limiter checks buckets against the shared cache.
type Limiter struct {
	cache *cache.Cache
}

// NewLimiter creates a limiter over the shared cache.
func NewLimiter(c *cache.Cache) *Limiter {
	return &Limiter{cache: c}
}

func key(bucket, subject string) string {
	return fmt.Sprintf("rl:%s:%s", bucket, subject)
}

// Check counts one request against bucket for subject. On exhaustion it
// returns a RATE_LIMITED error carrying retry_after in milliseconds; the
// Result is valid either way so handlers can always emit headers.
func (l *Limiter) Check(ctx context.Context, bucket Bucket, subject string) (Result, *models.APIError) {
	count, remaining, err := l.cache.IncrWindow(ctx, key(bucket.Name, subject), 1, bucket.ResetAfter)
	if err != nil {
		return Result{Bucket: bucket}, models.ErrServer("Rate limiter unavailable")
	}
	res := Result{Bucket: bucket, RequestCount: count, Reset: remaining}
	if count > uint64(bucket.Limit) {
		return res, models.ErrRateLimited(remaining.Milliseconds())
	}
	return res, nil
}

// CheckBytes counts one request plus a byte cost against bucket. Used by the
// Effis buckets whose windows also budget uploaded bytes.
func (l *Limiter) CheckBytes(ctx context.Context, bucket Bucket, subject string, bytes uint64) (Result, *models.APIError) {
	res, apiErr := l.Check(ctx, bucket, subject)
	if apiErr != nil {
		return res, apiErr
	}
	if bucket.FileSizeLimit == 0 || bytes == 0 {
		return res, nil
	}
	used, remaining, err := l.cache.IncrWindow(ctx, key(bucket.Name, subject)+":bytes", bytes, bucket.ResetAfter)
	if err != nil {
		return res, models.ErrServer("Rate limiter unavailable")
	}
	if used > bucket.FileSizeLimit {
		return res, models.ErrRateLimited(remaining.Milliseconds())
	}
	return res, nil
}
