// Package middleware holds the HTTP middleware shared by the Oprish routes:
// token authentication, rate limiting and CORS.
package middleware

import (
	"context"
	"net/http"

	"github.com/eludris/eludris/pkg/auth"
	"github.com/eludris/eludris/pkg/models"
	"github.com/eludris/eludris/pkg/store"
)

type contextKey int

const (
	userKey contextKey = iota
	claimsKey
)

// Authenticator resolves bearer tokens into users. Tokens are only accepted
// while their session row still exists, so logout revokes them immediately.
type Authenticator struct {
	Tokens *auth.TokenService
	DB     *store.Store
}

// UserFrom returns the authenticated user stored in the request context.
func UserFrom(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(userKey).(models.User)
	return u, ok
}

// ClaimsFrom returns the token claims stored in the request context.
func ClaimsFrom(ctx context.Context) (auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(auth.Claims)
	return c, ok
}

func (a *Authenticator) resolve(r *http.Request) (models.User, auth.Claims, *models.APIError) {
	token := r.Header.Get("Authorization")
	if token == "" {
		return models.User{}, auth.Claims{}, models.ErrUnauthorized()
	}

	claims, err := a.Tokens.Verify(token)
	if err != nil {
		return models.User{}, auth.Claims{}, models.ErrUnauthorized()
	}
	live, err := a.DB.SessionExists(r.Context(), claims.UserID, claims.SessionID)
	if err != nil {
		return models.User{}, auth.Claims{}, models.AsAPIError(err)
	}
	if !live {
		return models.User{}, auth.Claims{}, models.ErrUnauthorized()
	}
	user, err := a.DB.GetUser(r.Context(), claims.UserID)
	if err != nil {
		return models.User{}, auth.Claims{}, models.ErrUnauthorized()
	}
	return user, claims, nil
}

// Require rejects requests without a valid session token.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, claims, apiErr := a.resolve(r)
		if apiErr != nil {
			apiErr.WriteJSON(w)
			return
		}
		ctx := context.WithValue(r.Context(), userKey, user)
		ctx = context.WithValue(ctx, claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional attaches the bearer when a valid token is present and passes the
// request through untouched otherwise.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			if user, claims, apiErr := a.resolve(r); apiErr == nil {
				ctx := context.WithValue(r.Context(), userKey, user)
				ctx = context.WithValue(ctx, claimsKey, claims)
				r = r.WithContext(ctx)
			}
		}
		next.ServeHTTP(w, r)
	})
}
