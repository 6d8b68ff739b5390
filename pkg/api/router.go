package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/eludris/eludris/internal/logger"
	"github.com/eludris/eludris/pkg/api/handlers"
	"github.com/eludris/eludris/pkg/api/middleware"
	"github.com/eludris/eludris/pkg/config"
	"github.com/eludris/eludris/pkg/metrics"
)

// NewRouter configures the chi router with the middleware stack and the full
// route table.
//
// Every route sits behind its own named rate limit bucket; the limits come
// from the instance configuration and are advertised on the instance info
// endpoint.
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.CORS)

	h := &handlers.Handlers{
		Cfg:      cfg,
		DB:       deps.DB,
		Pub:      deps.Pub,
		Presence: deps.Presence,
		Crawler:  deps.Crawler,
		Mail:     deps.Mail,
	}
	sh := &handlers.SessionHandlers{Handlers: h, Tokens: deps.Tokens}

	authn := &middleware.Authenticator{Tokens: deps.Tokens, DB: deps.DB}
	rl := &middleware.RateLimiter{Limiter: deps.Limiter}
	limits := cfg.Oprish.RateLimits
	limit := func(name string, c config.RateLimitConfig) func(http.Handler) http.Handler {
		return rl.Limit(c.Bucket(name))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})
	r.Handle("/metrics", metrics.Handler())

	r.With(authn.Optional, limit("get_instance_info", limits.GetInstanceInfo)).
		Get("/", h.GetInstanceInfo)

	r.Route("/users", func(r chi.Router) {
		r.With(limit("create_user", limits.CreateUser)).Post("/", h.CreateUser)
		r.With(limit("reset_password", limits.ResetPassword)).Post("/reset-password", h.CreatePasswordReset)
		r.With(limit("reset_password", limits.ResetPassword)).Patch("/reset-password", h.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(authn.Require)
			r.With(limit("verify_user", limits.VerifyUser)).Post("/verify", h.VerifyUser)
			r.With(limit("verify_user", limits.VerifyUser)).Post("/resend-verification", h.ResendVerification)
			r.With(limit("edit_user", limits.EditUser)).Patch("/", h.EditUser)
			r.With(limit("edit_user", limits.EditUser)).Patch("/profile", h.EditProfile)
			r.With(limit("delete_user", limits.DeleteUser)).Delete("/", h.DeleteUser)
		})

		r.With(authn.Optional, limit("get_user", limits.GetUser)).Get("/{user}", h.GetUser)
	})

	r.Route("/sessions", func(r chi.Router) {
		r.With(limit("create_session", limits.CreateSession)).Post("/", sh.CreateSession)
		r.Group(func(r chi.Router) {
			r.Use(authn.Require)
			r.With(limit("get_sessions", limits.GetSessions)).Get("/", sh.GetSessions)
			r.With(limit("delete_session", limits.DeleteSession)).Delete("/{session}", sh.DeleteSession)
		})
	})

	r.Route("/spheres", func(r chi.Router) {
		r.Use(authn.Require)
		r.With(limit("create_sphere", limits.CreateSphere)).Post("/", h.CreateSphere)

		r.Route("/{sphere}", func(r chi.Router) {
			r.With(limit("get_sphere", limits.GetSphere)).Get("/", h.GetSphere)
			r.With(limit("edit_sphere", limits.EditSphere)).Patch("/", h.EditSphere)
			r.With(limit("join_sphere", limits.JoinSphere)).Post("/join", h.JoinSphere)
			r.With(limit("join_sphere", limits.JoinSphere)).Delete("/leave", h.LeaveSphere)

			r.With(limit("edit_category", limits.EditCategory)).Post("/categories", h.CreateCategory)
			r.With(limit("edit_category", limits.EditCategory)).Patch("/categories/{category}", h.EditCategory)
			r.With(limit("edit_category", limits.EditCategory)).Delete("/categories/{category}", h.DeleteCategory)

			r.With(limit("edit_channel", limits.EditChannel)).Post("/channels", h.CreateChannel)
			r.With(limit("edit_channel", limits.EditChannel)).Patch("/channels/{channel}", h.EditChannel)
			r.With(limit("edit_channel", limits.EditChannel)).Delete("/channels/{channel}", h.DeleteChannel)

			r.With(limit("get_member", limits.GetMember)).Get("/members/{member}", h.GetMember)
			r.With(limit("edit_member", limits.EditMember)).Patch("/members/{member}", h.EditMember)

			r.With(limit("create_emoji", limits.CreateEmoji)).Post("/emojis", h.CreateEmoji)
			r.With(limit("get_emoji", limits.GetEmoji)).Get("/emojis", h.GetSphereEmojis)
		})
	})

	r.Route("/channels/{channel}/messages", func(r chi.Router) {
		r.Use(authn.Require)
		r.With(limit("create_message", limits.CreateMessage)).Post("/", h.CreateMessage)
		r.With(limit("get_messages", limits.GetMessages)).Get("/", h.GetMessages)
		r.With(limit("get_messages", limits.GetMessages)).Get("/{message}", h.GetMessage)
		r.With(limit("edit_message", limits.EditMessage)).Patch("/{message}", h.EditMessage)
		r.With(limit("delete_message", limits.DeleteMessage)).Delete("/{message}", h.DeleteMessage)

		r.With(limit("react", limits.React)).Post("/{message}/emojis", h.AddReaction)
		r.With(limit("react", limits.React)).Delete("/{message}/emojis", h.RemoveReaction)
		r.With(limit("react", limits.React)).Delete("/{message}/reactions/clear", h.ClearReactions)
	})

	r.Route("/emojis", func(r chi.Router) {
		r.Use(authn.Require)
		r.With(limit("get_emoji", limits.GetEmoji)).Get("/{emoji}", h.GetEmoji)
		r.With(limit("edit_emoji", limits.EditEmoji)).Patch("/{emoji}", h.EditEmoji)
		r.With(limit("edit_emoji", limits.EditEmoji)).Delete("/{emoji}", h.DeleteEmoji)
	})

	return r
}

// requestLogger logs each request and feeds the request counters.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := chimw.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		metrics.HTTPRequests.WithLabelValues("oprish", r.Method, fmt.Sprintf("%dxx", ww.Status()/100)).Inc()
		metrics.HTTPDuration.WithLabelValues("oprish", r.Method).Observe(duration.Seconds())

		logger.Info("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
		)
	})
}
