package middleware

import (
	"net"
	"net/http"
	"strconv"

	"github.com/eludris/eludris/pkg/ratelimit"
)

// RateLimiter produces per-bucket middleware over the shared limiter.
type RateLimiter struct {
	Limiter *ratelimit.Limiter
}

// RemoteIP resolves the client host from the request, dropping the ephemeral
// port so every connection from one address shares a bucket.
func RemoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// subject keys the counter by the bearer when authenticated, otherwise by
// the client host.
func subject(r *http.Request) string {
	if user, ok := UserFrom(r.Context()); ok {
		return strconv.FormatUint(user.ID, 10)
	}
	return RemoteIP(r)
}

// Limit checks the bucket before the handler runs. The rate limit headers
// are attached on success and on rejection alike.
func (rl *RateLimiter) Limit(bucket ratelimit.Bucket) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, apiErr := rl.Limiter.Check(r.Context(), bucket, subject(r))
			res.Headers(w.Header())
			if apiErr != nil {
				apiErr.WriteJSON(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
