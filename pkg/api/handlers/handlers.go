// Package handlers implements the Oprish REST endpoints. Each handler
// validates, calls into the stores, publishes the mutation's event and
// serializes the result.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/eludris/eludris/pkg/api/middleware"
	"github.com/eludris/eludris/pkg/config"
	"github.com/eludris/eludris/pkg/email"
	"github.com/eludris/eludris/pkg/embeds"
	"github.com/eludris/eludris/pkg/models"
	"github.com/eludris/eludris/pkg/presence"
	"github.com/eludris/eludris/pkg/pubsub"
	"github.com/eludris/eludris/pkg/store"
)

// Handlers carries the dependencies shared by every endpoint.
type Handlers struct {
	Cfg      *config.Config
	DB       *store.Store
	Pub      *pubsub.Publisher
	Presence *presence.Service
	Crawler  *embeds.Crawler
	Mail     *email.Service
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func respondErr(w http.ResponseWriter, err error) {
	models.AsAPIError(err).WriteJSON(w)
}

// decode parses a JSON body into dst.
func decode(r *http.Request, dst any) *models.APIError {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return models.ErrValidation("body", "The request body is not valid JSON")
	}
	return nil
}

func pathID(r *http.Request, name string) (uint64, *models.APIError) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, models.ErrValidation(name, "Expected a numeric id")
	}
	return id, nil
}

// resolveUser resolves a user identifier: "@me", a numeric id or a username.
func (h *Handlers) resolveUser(r *http.Request, identifier string) (models.User, *models.APIError) {
	if identifier == "@me" {
		user, ok := middleware.UserFrom(r.Context())
		if !ok {
			return models.User{}, models.ErrUnauthorized()
		}
		return user, nil
	}
	if id, err := strconv.ParseUint(identifier, 10, 64); err == nil {
		user, err := h.DB.GetUser(r.Context(), id)
		if err != nil {
			return models.User{}, models.AsAPIError(err)
		}
		return user, nil
	}
	user, err := h.DB.GetUserByUsername(r.Context(), strings.ToLower(identifier))
	if err != nil {
		return models.User{}, models.AsAPIError(err)
	}
	return user, nil
}

// viewUser shapes a user for the requester: private fields and live presence
// are only visible to the account owner.
func (h *Handlers) viewUser(r *http.Request, u models.User) models.User {
	if viewer, ok := middleware.UserFrom(r.Context()); ok && viewer.ID == u.ID {
		return u
	}
	online, err := h.Presence.Online(r.Context(), u.ID)
	if err != nil {
		online = false
	}
	return u.StripPrivate().RedactPresence(online)
}

// resolveSphere resolves a sphere identifier, numeric id or slug.
func (h *Handlers) resolveSphere(r *http.Request) (models.Sphere, *models.APIError) {
	identifier := chi.URLParam(r, "sphere")
	sphere, err := h.DB.ResolveSphere(r.Context(), identifier)
	if err != nil {
		return models.Sphere{}, models.AsAPIError(err)
	}
	return sphere, nil
}

// requireOwner loads the sphere and checks the bearer owns it.
func (h *Handlers) requireOwner(r *http.Request) (models.Sphere, models.User, *models.APIError) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		return models.Sphere{}, models.User{}, models.ErrUnauthorized()
	}
	sphere, apiErr := h.resolveSphere(r)
	if apiErr != nil {
		return models.Sphere{}, models.User{}, apiErr
	}
	if sphere.OwnerID != user.ID {
		return models.Sphere{}, models.User{}, models.ErrForbidden()
	}
	return sphere, user, nil
}

// requireMember loads the sphere and checks the bearer belongs to it.
func (h *Handlers) requireMember(r *http.Request) (models.Sphere, models.User, *models.APIError) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		return models.Sphere{}, models.User{}, models.ErrUnauthorized()
	}
	sphere, apiErr := h.resolveSphere(r)
	if apiErr != nil {
		return models.Sphere{}, models.User{}, apiErr
	}
	member, err := h.DB.IsMember(r.Context(), sphere.ID, user.ID)
	if err != nil {
		return models.Sphere{}, models.User{}, models.AsAPIError(err)
	}
	if !member {
		return models.Sphere{}, models.User{}, models.ErrForbidden()
	}
	return sphere, user, nil
}
