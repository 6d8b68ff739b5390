package handlers

import (
	"net/http"

	"github.com/eludris/eludris/pkg/models"
)

// CreateCategory answers POST /spheres/{sphere}/categories. Owner only.
func (h *Handlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	sphere, _, apiErr := h.requireOwner(r)
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	var create models.CategoryCreate
	if apiErr := decode(r, &create); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if apiErr := create.Validate(); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	category, err := h.DB.CreateCategory(r.Context(), sphere.ID, create)
	if err != nil {
		respondErr(w, err)
		return
	}

	h.Pub.PublishLogged(r.Context(), models.ServerPayload{
		Op: models.OpCategoryCreate,
		D:  &category,
	})
	respond(w, http.StatusOK, category)
}

// EditCategory answers PATCH /spheres/{sphere}/categories/{category}. The
// default category is immutable.
func (h *Handlers) EditCategory(w http.ResponseWriter, r *http.Request) {
	sphere, _, apiErr := h.requireOwner(r)
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	categoryID, apiErr := pathID(r, "category")
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if categoryID == sphere.ID {
		models.ErrValidation("category", "The default category cannot be edited").WriteJSON(w)
		return
	}

	var edit models.CategoryEdit
	if apiErr := decode(r, &edit); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if apiErr := edit.Validate(); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if edit.Position != nil && *edit.Position == 0 {
		// Position 0 is pinned to the default category.
		models.ErrValidation("position", "Position 0 is reserved for the default category").WriteJSON(w)
		return
	}

	category, err := h.DB.EditCategory(r.Context(), sphere.ID, categoryID, edit)
	if err != nil {
		respondErr(w, err)
		return
	}

	h.Pub.PublishLogged(r.Context(), models.ServerPayload{
		Op: models.OpCategoryEdit,
		D:  &category,
	})
	respond(w, http.StatusOK, category)
}

// DeleteCategory answers DELETE /spheres/{sphere}/categories/{category}.
func (h *Handlers) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	sphere, _, apiErr := h.requireOwner(r)
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	categoryID, apiErr := pathID(r, "category")
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if categoryID == sphere.ID {
		models.ErrValidation("category", "The default category cannot be deleted").WriteJSON(w)
		return
	}

	if err := h.DB.DeleteCategory(r.Context(), sphere.ID, categoryID); err != nil {
		respondErr(w, err)
		return
	}

	h.Pub.PublishLogged(r.Context(), models.ServerPayload{
		Op: models.OpCategoryDelete,
		D:  &models.CategoryDeleteData{CategoryID: categoryID, SphereID: sphere.ID},
	})
	respond(w, http.StatusNoContent, nil)
}
