package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Emoji is a custom sphere emoji backed by a file in the emojis bucket.
type Emoji struct {
	ID         uint64 `json:"id"`
	SphereID   uint64 `json:"sphere_id"`
	UploaderID uint64 `json:"uploader_id"`
	FileID     uint64 `json:"file_id"`
	Name       string `json:"name"`

	IsDeleted bool `json:"-"`
}

// ValidateEmojiName checks the emoji name grammar.
func ValidateEmojiName(name string) *APIError {
	if len(name) < 2 || len(name) > 32 {
		return ErrValidation("name", "The emoji's name must be between 2 and 32 characters in length")
	}
	return nil
}

// EmojiCreate is the POST /spheres/{sphere}/emojis payload.
type EmojiCreate struct {
	Name   string `json:"name"`
	FileID uint64 `json:"file_id"`
}

// Validate normalizes and checks the payload.
func (e *EmojiCreate) Validate() *APIError {
	e.Name = strings.TrimSpace(e.Name)
	return ValidateEmojiName(e.Name)
}

// EmojiEdit is the PATCH /emojis/{emoji} payload.
type EmojiEdit struct {
	Name string `json:"name"`
}

// Validate normalizes and checks the payload.
func (e *EmojiEdit) Validate() *APIError {
	e.Name = strings.TrimSpace(e.Name)
	return ValidateEmojiName(e.Name)
}

// ReactionEmoji references either a custom emoji by id or an allow-listed
// Unicode codepoint sequence. Exactly one of the fields is set.
type ReactionEmoji struct {
	CustomID *uint64 `json:"custom_id,omitempty"`
	Unicode  *string `json:"unicode,omitempty"`
}

// Validate checks that exactly one reference form is present. Whether a
// Unicode sequence is allow-listed is checked against the static emoji table
// by the message service.
func (r *ReactionEmoji) Validate() *APIError {
	if (r.CustomID == nil) == (r.Unicode == nil) {
		return ErrValidation("emoji", "Exactly one of custom_id or unicode must be provided")
	}
	return nil
}

// Ref returns the canonical storage key for the reference, stable across
// both variants so it can back the (message, emoji, user) uniqueness index.
func (r ReactionEmoji) Ref() string {
	if r.CustomID != nil {
		return "c:" + strconv.FormatUint(*r.CustomID, 10)
	}
	if r.Unicode != nil {
		return "u:" + *r.Unicode
	}
	return ""
}

// ReactionEmojiFromRef parses a storage key produced by Ref.
func ReactionEmojiFromRef(ref string) (ReactionEmoji, error) {
	switch {
	case strings.HasPrefix(ref, "c:"):
		id, err := strconv.ParseUint(ref[2:], 10, 64)
		if err != nil {
			return ReactionEmoji{}, fmt.Errorf("invalid custom emoji ref %q: %w", ref, err)
		}
		return ReactionEmoji{CustomID: &id}, nil
	case strings.HasPrefix(ref, "u:"):
		unicode := ref[2:]
		return ReactionEmoji{Unicode: &unicode}, nil
	}
	return ReactionEmoji{}, fmt.Errorf("invalid emoji ref %q", ref)
}
