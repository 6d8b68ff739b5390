package handlers

import (
	"net/http"

	"github.com/eludris/eludris/pkg/models"
)

// CreateChannel answers POST /spheres/{sphere}/channels. Owner only.
func (h *Handlers) CreateChannel(w http.ResponseWriter, r *http.Request) {
	sphere, _, apiErr := h.requireOwner(r)
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	var create models.SphereChannelCreate
	if apiErr := decode(r, &create); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if apiErr := create.Validate(); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	channel, err := h.DB.CreateChannel(r.Context(), sphere.ID, create)
	if err != nil {
		respondErr(w, err)
		return
	}

	h.Pub.PublishLogged(r.Context(), models.ServerPayload{
		Op: models.OpSphereChannelCreate,
		D:  &channel,
	})
	respond(w, http.StatusOK, channel)
}

// EditChannel answers PATCH /spheres/{sphere}/channels/{channel}: renames,
// topic changes and position or category moves.
func (h *Handlers) EditChannel(w http.ResponseWriter, r *http.Request) {
	sphere, _, apiErr := h.requireOwner(r)
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	channelID, apiErr := pathID(r, "channel")
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	var edit models.SphereChannelEdit
	if apiErr := decode(r, &edit); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if apiErr := edit.Validate(); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	channel, err := h.DB.EditChannel(r.Context(), sphere.ID, channelID, edit)
	if err != nil {
		respondErr(w, err)
		return
	}

	h.Pub.PublishLogged(r.Context(), models.ServerPayload{
		Op: models.OpSphereChannelUpdate,
		D:  &channel,
	})
	respond(w, http.StatusOK, channel)
}

// DeleteChannel answers DELETE /spheres/{sphere}/channels/{channel}.
func (h *Handlers) DeleteChannel(w http.ResponseWriter, r *http.Request) {
	sphere, _, apiErr := h.requireOwner(r)
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	channelID, apiErr := pathID(r, "channel")
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	channel, err := h.DB.GetSphereChannel(r.Context(), sphere.ID, channelID)
	if err != nil {
		respondErr(w, err)
		return
	}
	if err := h.DB.DeleteChannel(r.Context(), sphere.ID, channelID); err != nil {
		respondErr(w, err)
		return
	}

	h.Pub.PublishLogged(r.Context(), models.ServerPayload{
		Op: models.OpSphereChannelDelete,
		D: &models.SphereChannelDeleteData{
			ChannelID:  channelID,
			SphereID:   sphere.ID,
			CategoryID: channel.CategoryID,
		},
	})
	respond(w, http.StatusNoContent, nil)
}
