package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/eludris/eludris/internal/logger"
	"github.com/eludris/eludris/pkg/api/middleware"
	"github.com/eludris/eludris/pkg/models"
)

const (
	defaultMessageLimit = 50
	maxMessagePageSize  = 100
	embedCrawlTimeout   = 30 * time.Second
)

// requireChannelMember loads the channel and checks the bearer belongs to the
// sphere it lives in.
func (h *Handlers) requireChannelMember(r *http.Request) (models.SphereChannel, models.User, *models.APIError) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		return models.SphereChannel{}, models.User{}, models.ErrUnauthorized()
	}
	channelID, apiErr := pathID(r, "channel")
	if apiErr != nil {
		return models.SphereChannel{}, models.User{}, apiErr
	}
	channel, err := h.DB.GetChannel(r.Context(), channelID)
	if err != nil {
		return models.SphereChannel{}, models.User{}, models.AsAPIError(err)
	}
	member, err := h.DB.IsMember(r.Context(), channel.SphereID, user.ID)
	if err != nil {
		return models.SphereChannel{}, models.User{}, models.AsAPIError(err)
	}
	if !member {
		return models.SphereChannel{}, models.User{}, models.ErrForbidden()
	}
	return channel, user, nil
}

// CreateMessage answers POST /channels/{channel}/messages.
func (h *Handlers) CreateMessage(w http.ResponseWriter, r *http.Request) {
	channel, user, apiErr := h.requireChannelMember(r)
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	var create models.MessageCreate
	if apiErr := decode(r, &create); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if apiErr := create.Validate(h.Cfg.Oprish.MessageLimit); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	for _, attachment := range create.Attachments {
		if _, err := h.DB.GetFile(r.Context(), models.BucketAttachments, attachment.FileID); err != nil {
			models.ErrValidation("attachments", "An attachment's file_id must reference an uploaded attachment").WriteJSON(w)
			return
		}
	}
	if create.Reference != nil {
		exists, err := h.DB.MessageExists(r.Context(), channel.ID, *create.Reference)
		if err != nil {
			respondErr(w, err)
			return
		}
		if !exists {
			models.ErrValidation("reference", "The referenced message does not exist in this channel").WriteJSON(w)
			return
		}
	}

	message, err := h.DB.CreateMessage(r.Context(), channel.ID, user.ID, create)
	if err != nil {
		respondErr(w, err)
		return
	}

	h.Pub.PublishLogged(r.Context(), models.ServerPayload{
		Op: models.OpMessageCreate,
		D:  &message,
	})

	if message.Content != nil {
		go h.populateEmbeds(channel.ID, message.ID, *message.Content)
	}
	respond(w, http.StatusOK, message)
}

// populateEmbeds crawls the message's URLs after the response has been sent
// and delivers any resulting embeds over the gateway. It runs detached from
// the request context.
func (h *Handlers) populateEmbeds(channelID, messageID uint64, content string) {
	ctx, cancel := context.WithTimeout(context.Background(), embedCrawlTimeout)
	defer cancel()

	found := h.Crawler.Populate(ctx, content, models.MaxMessageEmbeds)
	if len(found) == 0 {
		return
	}
	combined, err := h.DB.AppendMessageEmbeds(ctx, messageID, found)
	if err != nil {
		logger.Warn("embed append failed", "message_id", messageID, "error", err)
		return
	}
	h.Pub.PublishLogged(ctx, models.ServerPayload{
		Op: models.OpMessageEmbedPopulate,
		D: &models.MessageEmbedPopulateData{
			ChannelID: channelID,
			MessageID: messageID,
			Embeds:    combined,
		},
	})
}

// GetMessage answers GET /channels/{channel}/messages/{message}.
func (h *Handlers) GetMessage(w http.ResponseWriter, r *http.Request) {
	channel, _, apiErr := h.requireChannelMember(r)
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
	respond(w, http.StatusOK, message)
}

// GetMessages answers GET /channels/{channel}/messages with optional before
// and limit query parameters. Messages come back in chronological order.
func (h *Handlers) GetMessages(w http.ResponseWriter, r *http.Request) {
	channel, _, apiErr := h.requireChannelMember(r)
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	var before uint64
	if raw := r.URL.Query().Get("before"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			models.ErrValidation("before", "Expected a numeric message id").WriteJSON(w)
			return
		}
		before = v
	}
	limit := defaultMessageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			models.ErrValidation("limit", "Expected a positive integer").WriteJSON(w)
			return
		}
		limit = min(v, maxMessagePageSize)
	}

	messages, err := h.DB.GetMessages(r.Context(), channel.ID, before, limit)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, messages)
}

// EditMessage answers PATCH /channels/{channel}/messages/{message}. Author
// only.
func (h *Handlers) EditMessage(w http.ResponseWriter, r *http.Request) {
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

	var edit models.MessageEdit
	if apiErr := decode(r, &edit); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if apiErr := edit.Validate(h.Cfg.Oprish.MessageLimit); apiErr != nil {
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

	if v, ok := edit.Attachments.Value(); ok {
		for _, attachment := range v {
			if _, err := h.DB.GetFile(r.Context(), models.BucketAttachments, attachment.FileID); err != nil {
				models.ErrValidation("attachments", "An attachment's file_id must reference an uploaded attachment").WriteJSON(w)
				return
			}
		}
	}
	if apiErr := edit.Apply(&message); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	updated, err := h.DB.UpdateMessage(r.Context(), message)
	if err != nil {
		respondErr(w, err)
		return
	}

	h.Pub.PublishLogged(r.Context(), models.ServerPayload{
		Op: models.OpMessageUpdate,
		D: &models.MessageUpdateData{
			ChannelID: channel.ID,
			MessageID: updated.ID,
			Data:      updated,
		},
	})
	respond(w, http.StatusOK, updated)
}

// DeleteMessage answers DELETE /channels/{channel}/messages/{message}. Author
// only.
func (h *Handlers) DeleteMessage(w http.ResponseWriter, r *http.Request) {
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

	if err := h.DB.DeleteMessage(r.Context(), channel.ID, messageID); err != nil {
		respondErr(w, err)
		return
	}

	h.Pub.PublishLogged(r.Context(), models.ServerPayload{
		Op: models.OpMessageDelete,
		D:  &models.MessageDeleteData{ChannelID: channel.ID, MessageID: messageID},
	})
	respond(w, http.StatusNoContent, nil)
}
