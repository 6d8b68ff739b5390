package handlers

import (
	"net/http"

	"github.com/eludris/eludris/pkg/api/middleware"
	"github.com/eludris/eludris/pkg/models"
)

// CreateSphere answers POST /spheres. The creator becomes owner and first
// member; the sphere gets its default category and a general channel.
func (h *Handlers) CreateSphere(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	var create models.SphereCreate
	if apiErr := decode(r, &create); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if apiErr := create.Validate(); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	sphere, err := h.DB.CreateSphere(r.Context(), user.ID, create)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, sphere)
}

// GetSphere answers GET /spheres/{sphere} (id or slug), fully populated.
func (h *Handlers) GetSphere(w http.ResponseWriter, r *http.Request) {
	sphere, apiErr := h.resolveSphere(r)
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	full, err := h.DB.GetSphere(r.Context(), sphere.ID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, full)
}

// EditSphere answers PATCH /spheres/{sphere}. Owner only; the type may only
// upgrade to HYBRID.
func (h *Handlers) EditSphere(w http.ResponseWriter, r *http.Request) {
	sphere, _, apiErr := h.requireOwner(r)
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	var edit models.SphereEdit
	if apiErr := decode(r, &edit); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if apiErr := edit.Validate(); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if edit.Type != nil && !sphere.Type.CanUpgradeTo(*edit.Type) {
		models.ErrValidation("type", "A sphere's type may only be upgraded to HYBRID").WriteJSON(w)
		return
	}

	updated, err := h.DB.EditSphere(r.Context(), sphere.ID, edit)
	if err != nil {
		respondErr(w, err)
		return
	}

	h.Pub.PublishLogged(r.Context(), models.ServerPayload{
		Op: models.OpSphereUpdate,
		D:  &models.SphereUpdateData{Data: updated, SphereID: updated.ID},
	})
	respond(w, http.StatusOK, updated)
}

// JoinSphere answers POST /spheres/{sphere}/join for the bearer.
func (h *Handlers) JoinSphere(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		models.ErrUnauthorized().WriteJSON(w)
		return
	}
	sphere, apiErr := h.resolveSphere(r)
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	if already, err := h.DB.IsMember(r.Context(), sphere.ID, user.ID); err != nil {
		respondErr(w, err)
		return
	} else if already {
		models.ErrConflict("member").WriteJSON(w)
		return
	}

	if _, err := h.DB.JoinSphere(r.Context(), sphere.ID, user.ID); err != nil {
		respondErr(w, err)
		return
	}

	h.Pub.PublishLogged(r.Context(), models.ServerPayload{
		Op: models.OpSphereMemberJoin,
		D:  &models.SphereMemberJoinData{User: user.StripPrivate(), SphereID: sphere.ID},
	})

	full, err := h.DB.GetSphere(r.Context(), sphere.ID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, full)
}

// LeaveSphere answers DELETE /spheres/{sphere}/leave. Owners cannot leave
// their own sphere.
func (h *Handlers) LeaveSphere(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		models.ErrUnauthorized().WriteJSON(w)
		return
	}
	sphere, apiErr := h.resolveSphere(r)
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if sphere.OwnerID == user.ID {
		models.ErrForbidden().WriteJSON(w)
		return
	}

	if err := h.DB.LeaveSphere(r.Context(), sphere.ID, user.ID); err != nil {
		respondErr(w, err)
		return
	}

	h.Pub.PublishLogged(r.Context(), models.ServerPayload{
		Op: models.OpSphereMemberLeave,
		D:  &models.SphereMemberLeaveData{UserID: user.ID, SphereID: sphere.ID},
	})
	respond(w, http.StatusNoContent, nil)
}
