package handlers

import (
	"net/http"

	"github.com/eludris/eludris/pkg/api/middleware"
	"github.com/eludris/eludris/pkg/models"
)

// CreateEmoji answers POST /spheres/{sphere}/emojis. Any member may upload.
func (h *Handlers) CreateEmoji(w http.ResponseWriter, r *http.Request) {
	sphere, user, apiErr := h.requireMember(r)
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	var create models.EmojiCreate
	if apiErr := decode(r, &create); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if apiErr := create.Validate(); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if _, err := h.DB.GetFile(r.Context(), models.BucketEmojis, create.FileID); err != nil {
		models.ErrValidation("file_id", "The emoji's file_id must reference a file in the emojis bucket").WriteJSON(w)
		return
	}

	emoji, err := h.DB.CreateEmoji(r.Context(), sphere.ID, user.ID, create)
	if err != nil {
		respondErr(w, err)
		return
	}

	h.Pub.PublishLogged(r.Context(), models.ServerPayload{
		Op: models.OpEmojiCreate,
		D:  &emoji,
	})
	respond(w, http.StatusOK, emoji)
}

// GetSphereEmojis answers GET /spheres/{sphere}/emojis.
func (h *Handlers) GetSphereEmojis(w http.ResponseWriter, r *http.Request) {
	sphere, _, apiErr := h.requireMember(r)
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	emojis, err := h.DB.SphereEmojis(r.Context(), sphere.ID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, emojis)
}

// GetEmoji answers GET /emojis/{emoji}.
func (h *Handlers) GetEmoji(w http.ResponseWriter, r *http.Request) {
	emojiID, apiErr := pathID(r, "emoji")
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	emoji, err := h.DB.GetEmoji(r.Context(), emojiID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, emoji)
}

// canManageEmoji reports whether the bearer may edit or delete the emoji:
// its uploader or the owning sphere's owner.
func (h *Handlers) canManageEmoji(r *http.Request, emoji models.Emoji) (bool, error) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		return false, nil
	}
	if emoji.UploaderID == user.ID {
		return true, nil
	}
	sphere, err := h.DB.GetSphere(r.Context(), emoji.SphereID)
	if err != nil {
		return false, err
	}
	return sphere.OwnerID == user.ID, nil
}

// EditEmoji answers PATCH /emojis/{emoji}: a rename by the uploader or the
// sphere owner.
func (h *Handlers) EditEmoji(w http.ResponseWriter, r *http.Request) {
	emojiID, apiErr := pathID(r, "emoji")
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	emoji, err := h.DB.GetEmoji(r.Context(), emojiID)
	if err != nil {
		respondErr(w, err)
		return
	}
	if allowed, err := h.canManageEmoji(r, emoji); err != nil {
		respondErr(w, err)
		return
	} else if !allowed {
		models.ErrForbidden().WriteJSON(w)
		return
	}

	var edit models.EmojiEdit
	if apiErr := decode(r, &edit); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if apiErr := edit.Validate(); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	updated, err := h.DB.EditEmoji(r.Context(), emojiID, edit)
	if err != nil {
		respondErr(w, err)
		return
	}

	h.Pub.PublishLogged(r.Context(), models.ServerPayload{
		Op: models.OpEmojiUpdate,
		D:  &updated,
	})
	respond(w, http.StatusOK, updated)
}

// DeleteEmoji answers DELETE /emojis/{emoji}.
func (h *Handlers) DeleteEmoji(w http.ResponseWriter, r *http.Request) {
	emojiID, apiErr := pathID(r, "emoji")
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	emoji, err := h.DB.GetEmoji(r.Context(), emojiID)
	if err != nil {
		respondErr(w, err)
		return
	}
	if allowed, err := h.canManageEmoji(r, emoji); err != nil {
		respondErr(w, err)
		return
	} else if !allowed {
		models.ErrForbidden().WriteJSON(w)
		return
	}

	if err := h.DB.DeleteEmoji(r.Context(), emojiID); err != nil {
		respondErr(w, err)
		return
	}

	h.Pub.PublishLogged(r.Context(), models.ServerPayload{
		Op: models.OpEmojiDelete,
		D:  &models.EmojiDeleteData{EmojiID: emojiID, SphereID: emoji.SphereID},
	})
	respond(w, http.StatusNoContent, nil)
}
