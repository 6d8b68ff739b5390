package models

import "strings"

// Category is an ordered grouping of channels within a sphere.
//
// Positions of live categories in a sphere form a contiguous permutation of
// [0, N). The category whose id equals the sphere id is the implicit default
// at position 0; it cannot be edited or deleted.
type Category struct {
	ID       uint64          `json:"id"`
	SphereID uint64          `json:"sphere_id"`
	Name     string          `json:"name"`
	Position uint32          `json:"position"`
	Channels []SphereChannel `json:"channels"`

	IsDeleted bool `json:"-"`
}

// IsDefault reports whether this is the sphere's implicit default category.
func (c Category) IsDefault() bool { return c.ID == c.SphereID }

// ChannelType distinguishes the sphere channel variants.
type ChannelType string

const (
	ChannelTypeText  ChannelType = "TEXT"
	ChannelTypeVoice ChannelType = "VOICE"
)

// Valid reports whether the channel type is a known variant.
func (c ChannelType) Valid() bool {
	return c == ChannelTypeText || c == ChannelTypeVoice
}

// SphereChannel is a text or voice container inside a category.
//
// Positions of live channels in a category form a contiguous permutation of
// [0, M). Topic is only meaningful for TEXT channels.
type SphereChannel struct {
	ID         uint64      `json:"id"`
	SphereID   uint64      `json:"sphere_id"`
	Type       ChannelType `json:"type"`
	Name       string      `json:"name"`
	Topic      *string     `json:"topic,omitempty"`
	CategoryID uint64      `json:"category_id"`
	Position   uint32      `json:"position"`

	IsDeleted bool `json:"-"`
}

// ValidateChannelName checks a category or channel name.
func ValidateChannelName(valueName, name string) *APIError {
	if len(name) < 1 || len(name) > 32 {
		return ErrValidation(valueName, "The name must be between 1 and 32 characters in length")
	}
	return nil
}

// CategoryCreate is the POST /spheres/{sphere}/categories payload.
type CategoryCreate struct {
	Name string `json:"name"`
}

// Validate normalizes and checks the payload.
func (c *CategoryCreate) Validate() *APIError {
	c.Name = strings.TrimSpace(c.Name)
	return ValidateChannelName("name", c.Name)
}

// CategoryEdit is the PATCH /spheres/{sphere}/categories/{category} payload.
type CategoryEdit struct {
	Name     *string `json:"name,omitempty"`
	Position *uint32 `json:"position,omitempty"`
}

// Validate checks the payload.
func (c *CategoryEdit) Validate() *APIError {
	if c.Name == nil && c.Position == nil {
		return ErrValidation("body", "At least one of name or position must be provided")
	}
	if c.Name != nil {
		trimmed := strings.TrimSpace(*c.Name)
		c.Name = &trimmed
		if err := ValidateChannelName("name", trimmed); err != nil {
			return err
		}
	}
	return nil
}

// SphereChannelCreate is the POST /spheres/{sphere}/channels payload.
type SphereChannelCreate struct {
	Type       ChannelType `json:"type"`
	Name       string      `json:"name"`
	Topic      *string     `json:"topic,omitempty"`
	CategoryID *uint64     `json:"category_id,omitempty"`
}

// Validate normalizes and checks the payload.
func (c *SphereChannelCreate) Validate() *APIError {
	c.Name = strings.TrimSpace(c.Name)
	if !c.Type.Valid() {
		return ErrValidation("type", "The channel's type must be one of TEXT or VOICE")
	}
	if err := ValidateChannelName("name", c.Name); err != nil {
		return err
	}
	if c.Topic != nil {
		if c.Type != ChannelTypeText {
			return ErrValidation("topic", "Only text channels may have a topic")
		}
		if len(*c.Topic) < 1 || len(*c.Topic) > 4096 {
			return ErrValidation("topic", "The channel's topic must be between 1 and 4096 characters in length")
		}
	}
	return nil
}

// SphereChannelEdit is the PATCH /spheres/{sphere}/channels/{channel}
// payload. Setting CategoryID moves the channel across categories.
type SphereChannelEdit struct {
	Name       *string           `json:"name,omitempty"`
	Topic      Omittable[string] `json:"topic"`
	Position   *uint32           `json:"position,omitempty"`
	CategoryID *uint64           `json:"category_id,omitempty"`
}

// Validate checks the payload.
func (c *SphereChannelEdit) Validate() *APIError {
	if c.Name == nil && !c.Topic.IsSet() && c.Position == nil && c.CategoryID == nil {
		return ErrValidation("body", "At least one field must be provided")
	}
	if c.Name != nil {
		trimmed := strings.TrimSpace(*c.Name)
		c.Name = &trimmed
		if err := ValidateChannelName("name", trimmed); err != nil {
			return err
		}
	}
	if v, ok := c.Topic.Value(); ok && (len(v) < 1 || len(v) > 4096) {
		return ErrValidation("topic", "The channel's topic must be between 1 and 4096 characters in length")
	}
	return nil
}
