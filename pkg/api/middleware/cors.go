package middleware

import "net/http"

// CORS applies the open cross-origin policy: any origin, the API's methods,
// the Authorization header, and the rate limit headers exposed to scripts.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		h.Set("Access-Control-Expose-Headers",
			"X-RateLimit-Reset, X-RateLimit-Max, X-RateLimit-Last-Reset, X-RateLimit-Request-Count")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
