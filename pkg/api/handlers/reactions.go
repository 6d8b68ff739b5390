package handlers

import (
	"net/http"

	"github.com/eludris/eludris/pkg/models"
)

// checkReactionEmoji validates the emoji reference: a custom id must resolve
// to a live emoji and a Unicode sequence must be on the allow-list.
func (h *Handlers) checkReactionEmoji(r *http.Request, emoji models.ReactionEmoji) *models.APIError {
	if apiErr := emoji.Validate(); apiErr != nil {
		return apiErr
	}
	if emoji.CustomID != nil {
		if _, err := h.DB.GetEmoji(r.Context(), *emoji.CustomID); err != nil {
			return models.ErrValidation("emoji", "The custom emoji does not exist")
		}
		return nil
	}
	if !models.ValidUnicodeEmoji(*emoji.Unicode) {
		return models.ErrValidation("emoji", "The unicode sequence is not a known emoji")
	}
	return nil
}

// AddReaction answers POST /channels/{channel}/messages/{message}/emojis.
func (h *Handlers) AddReaction(w http.ResponseWriter, r *http.Request) {
	channel, user, apiErr := h.requireChannelMember(r)
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	messageID, apiErr := pathID(r, "message")
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	var emoji models.ReactionEmoji
	if apiErr := decode(r, &emoji); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if apiErr := h.checkReactionEmoji(r, emoji); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	exists, err := h.DB.MessageExists(r.Context(), channel.ID, messageID)
	if err != nil {
		respondErr(w, err)
		return
	}
	if !exists {
		models.ErrNotFound().WriteJSON(w)
		return
	}

	added, err := h.DB.AddReaction(r.Context(), messageID, emoji, user.ID)
	if err != nil {
		respondErr(w, err)
		return
	}
	if !added {
		models.ErrConflict("reaction").WriteJSON(w)
		return
	}

	h.Pub.PublishLogged(r.Context(), models.ServerPayload{
		Op: models.OpMessageReactionCreate,
		D: &models.MessageReactionData{
			ChannelID: channel.ID,
			MessageID: messageID,
			UserID:    user.ID,
			Emoji:     emoji,
		},
	})
	respond(w, http.StatusNoContent, nil)
}

// RemoveReaction answers DELETE
// /channels/{channel}/messages/{message}/emojis for the bearer's own
// reaction.
func (h *Handlers) RemoveReaction(w http.ResponseWriter, r *http.Request) {
	channel, user, apiErr := h.requireChannelMember(r)
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	messageID, apiErr := pathID(r, "message")
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	var emoji models.ReactionEmoji
	if apiErr := decode(r, &emoji); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if apiErr := emoji.Validate(); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	removed, err := h.DB.RemoveReaction(r.Context(), messageID, emoji, user.ID)
	if err != nil {
		respondErr(w, err)
		return
	}
	if !removed {
		models.ErrNotFound().WriteJSON(w)
		return
	}

	h.Pub.PublishLogged(r.Context(), models.ServerPayload{
		Op: models.OpMessageReactionDelete,
		D: &models.MessageReactionData{
			ChannelID: channel.ID,
			MessageID: messageID,
			UserID:    user.ID,
			Emoji:     emoji,
		},
	})
	respond(w, http.StatusNoContent, nil)
}

// ClearReactions answers DELETE
// /channels/{channel}/messages/{message}/reactions/clear. Only the message's
// author may clear.
func (h *Handlers) ClearReactions(w http.ResponseWriter, r *http.Request) {
	channel, user, apiErr := h.requireChannelMember(r)
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	messageID, apiErr := pathID(r, "message")
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	message, err := h.DB.GetMessage(r.Context(), channel.ID, messageID)
	if err != nil {
		respondErr(w, err)
		return
	}
	if message.AuthorID == nil || *message.AuthorID != user.ID {
		models.ErrForbidden().WriteJSON(w)
		return
	}
	if len(message.Reactions) == 0 {
		models.ErrNotFound().WriteJSON(w)
		return
	}

	if err := h.DB.ClearReactions(r.Context(), messageID); err != nil {
		respondErr(w, err)
		return
	}

	h.Pub.PublishLogged(r.Context(), models.ServerPayload{
		Op: models.OpMessageReactionClear,
		D:  &models.MessageReactionClearData{ChannelID: channel.ID, MessageID: messageID},
	})
	respond(w, http.StatusNoContent, nil)
}
