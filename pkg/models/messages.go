package models

import "strings"

// MaxMessageAttachments bounds the attachments on one message.
const MaxMessageAttachments = 10

// MaxMessageEmbeds bounds the embeds on one message.
const MaxMessageEmbeds = 10

// Attachment is a file attached to a message. The file must live in the
// attachments bucket.
type Attachment struct {
	FileID      uint64  `json:"file_id"`
	Description *string `json:"description,omitempty"`
	Spoiler     bool    `json:"spoiler"`
}

// Validate checks the attachment metadata.
func (a *Attachment) Validate() *APIError {
	if a.Description != nil && len(*a.Description) > 256 {
		return ErrValidation("attachments", "An attachment's description must be at most 256 characters in length")
	}
	return nil
}

// Reaction is the set of users who reacted to a message with one emoji.
// A reaction with no users does not exist.
type Reaction struct {
	Emoji   ReactionEmoji `json:"emoji"`
	UserIDs []uint64      `json:"user_ids"`
}

// Message is a chat message in a text channel.
//
// AuthorID is nil when the author's account has been deleted. At least one of
// content, attachments or embeds is non-empty, and edits must preserve that.
type Message struct {
	ID          uint64       `json:"id"`
	ChannelID   uint64       `json:"channel_id"`
	AuthorID    *uint64      `json:"author_id,omitempty"`
	Content     *string      `json:"content,omitempty"`
	Reference   *uint64      `json:"reference,omitempty"`
	Attachments []Attachment `json:"attachments"`
	Embeds      []Embed      `json:"embeds"`
	Reactions   []Reaction   `json:"reactions"`
}

// IsEmpty reports whether the message carries no content, attachments or
// embeds. Empty messages are invalid.
func (m Message) IsEmpty() bool {
	return (m.Content == nil || *m.Content == "") &&
		len(m.Attachments) == 0 && len(m.Embeds) == 0
}

// MessageCreate is the POST /channels/{channel}/messages payload.
type MessageCreate struct {
	Content     *string      `json:"content,omitempty"`
	Reference   *uint64      `json:"reference,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Embeds      []Embed      `json:"embeds,omitempty"`
}

// Validate normalizes and checks the payload. messageLimit comes from
// instance config.
func (m *MessageCreate) Validate(messageLimit int) *APIError {
	if m.Content != nil {
		trimmed := strings.TrimSpace(*m.Content)
		if trimmed == "" {
			m.Content = nil
		} else {
			m.Content = &trimmed
			if len(trimmed) > messageLimit {
				return ErrValidation("content", "The message's content must be between 1 and the instance's message limit in length")
			}
		}
	}
	if m.Content == nil && len(m.Attachments) == 0 && len(m.Embeds) == 0 {
		return ErrValidation("content", "A message must have at least one of content, attachments or embeds")
	}
	if len(m.Attachments) > MaxMessageAttachments {
		return ErrValidation("attachments", "A message may have at most 10 attachments")
	}
	if len(m.Embeds) > MaxMessageEmbeds {
		return ErrValidation("embeds", "A message may have at most 10 embeds")
	}
	for i := range m.Attachments {
		if err := m.Attachments[i].Validate(); err != nil {
			return err
		}
	}
	for i := range m.Embeds {
		if err := m.Embeds[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// MessageEdit is the PATCH /channels/{channel}/messages/{message} payload.
//
// Merge semantics: an absent field is unchanged; content set to an explicit
// empty string (or null) clears it; attachments/embeds, when present, fully
// replace their sets.
type MessageEdit struct {
	Content     Omittable[string]       `json:"content"`
	Attachments Omittable[[]Attachment] `json:"attachments"`
	Embeds      Omittable[[]Embed]      `json:"embeds"`
}

// Validate checks the payload against the instance's message limit.
func (m *MessageEdit) Validate(messageLimit int) *APIError {
	if !m.Content.IsSet() && !m.Attachments.IsSet() && !m.Embeds.IsSet() {
		return ErrValidation("body", "At least one field must be provided")
	}
	if v, ok := m.Content.Value(); ok && len(strings.TrimSpace(v)) > messageLimit {
		return ErrValidation("content", "The message's content must be between 1 and the instance's message limit in length")
	}
	if v, ok := m.Attachments.Value(); ok {
		if len(v) > MaxMessageAttachments {
			return ErrValidation("attachments", "A message may have at most 10 attachments")
		}
		for i := range v {
			if err := v[i].Validate(); err != nil {
				return err
			}
		}
	}
	if v, ok := m.Embeds.Value(); ok {
		if len(v) > MaxMessageEmbeds {
			return ErrValidation("embeds", "A message may have at most 10 embeds")
		}
		for i := range v {
			if err := v[i].Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Apply merges the edit into msg and reports the post-edit validity. The
// caller persists the result only when the returned error is nil.
func (m *MessageEdit) Apply(msg *Message) *APIError {
	if m.Content.IsSet() {
		if v, ok := m.Content.Value(); ok && strings.TrimSpace(v) != "" {
			trimmed := strings.TrimSpace(v)
			msg.Content = &trimmed
		} else {
			msg.Content = nil
		}
	}
	if m.Attachments.IsSet() {
		if v, ok := m.Attachments.Value(); ok {
			msg.Attachments = v
		} else {
			msg.Attachments = nil
		}
	}
	if m.Embeds.IsSet() {
		if v, ok := m.Embeds.Value(); ok {
			msg.Embeds = v
		} else {
			msg.Embeds = nil
		}
	}
	if msg.IsEmpty() {
		return ErrValidation("content", "A message must have at least one of content, attachments or embeds")
	}
	return nil
}
