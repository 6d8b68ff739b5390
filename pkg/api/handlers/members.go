package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eludris/eludris/pkg/api/middleware"
	"github.com/eludris/eludris/pkg/models"
)

// GetMember answers GET /spheres/{sphere}/members/{member} where the member
// identifier is @me, a user id or a username.
func (h *Handlers) GetMember(w http.ResponseWriter, r *http.Request) {
	sphere, _, apiErr := h.requireMember(r)
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	target, apiErr := h.resolveUser(r, chi.URLParam(r, "member"))
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	member, err := h.DB.GetMember(r.Context(), sphere.ID, target.ID)
	if err != nil {
		respondErr(w, err)
		return
	}
	member.User = h.viewUser(r, member.User)
	respond(w, http.StatusOK, member)
}

// EditMember answers PATCH /spheres/{sphere}/members/@me: the bearer's own
// sphere-local profile.
func (h *Handlers) EditMember(w http.ResponseWriter, r *http.Request) {
	sphere, user, apiErr := h.requireMember(r)
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	identifier := chi.URLParam(r, "member")
	target, apiErr := h.resolveUser(r, identifier)
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if target.ID != user.ID {
		models.ErrForbidden().WriteJSON(w)
		return
	}

	var edit models.MemberEdit
	if apiErr := decode(r, &edit); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if apiErr := edit.Validate(); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	member, err := h.DB.EditMember(r.Context(), sphere.ID, user.ID, edit)
	if err != nil {
		respondErr(w, err)
		return
	}

	if viewer, ok := middleware.UserFrom(r.Context()); ok {
		member.User = viewer
	}
	respond(w, http.StatusOK, member)
}
