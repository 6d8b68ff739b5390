package models

import (
	"regexp"
	"strings"
)

// SphereType describes a sphere's layout.
type SphereType string

const (
	SphereTypeChat   SphereType = "CHAT"
	SphereTypeForum  SphereType = "FORUM"
	SphereTypeHybrid SphereType = "HYBRID"
)

// Valid reports whether the sphere type is a known variant.
func (s SphereType) Valid() bool {
	switch s {
	case SphereTypeChat, SphereTypeForum, SphereTypeHybrid:
		return true
	}
	return false
}

// CanUpgradeTo reports whether a sphere may move from its current type to
// target. CHAT and FORUM may only upgrade to HYBRID; nothing downgrades.
func (s SphereType) CanUpgradeTo(target SphereType) bool {
	if s == target {
		return true
	}
	return target == SphereTypeHybrid
}

// Sphere is a community namespace containing categories, channels, members
// and emojis.
type Sphere struct {
	ID          uint64     `json:"id"`
	OwnerID     uint64     `json:"owner_id"`
	Slug        string     `json:"slug"`
	Name        *string    `json:"name,omitempty"`
	Type        SphereType `json:"type"`
	Description *string    `json:"description,omitempty"`
	Icon        *uint64    `json:"icon,omitempty"`
	Banner      *uint64    `json:"banner,omitempty"`
	Badges      uint64     `json:"badges"`

	// Categories (with their channels) and Members are populated on full
	// fetches; list endpoints leave them empty.
	Categories []Category `json:"categories,omitempty"`
	Members    []Member   `json:"members,omitempty"`
}

var slugRegex = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)

// ValidateSlug checks the sphere slug grammar.
func ValidateSlug(slug string) *APIError {
	if !slugRegex.MatchString(slug) {
		return ErrValidation("slug", "The sphere's slug must be between 1 and 32 characters in length and only consist of lowercase letters, numbers, underscores and dashes")
	}
	return nil
}

// SphereCreate is the POST /spheres payload.
type SphereCreate struct {
	Slug        string     `json:"slug"`
	Type        SphereType `json:"type"`
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Icon        *uint64    `json:"icon,omitempty"`
	Banner      *uint64    `json:"banner,omitempty"`
}

// Validate normalizes and checks the payload.
func (s *SphereCreate) Validate() *APIError {
	s.Slug = strings.ToLower(strings.TrimSpace(s.Slug))
	if err := ValidateSlug(s.Slug); err != nil {
		return err
	}
	if !s.Type.Valid() {
		return ErrValidation("type", "The sphere's type must be one of CHAT, FORUM or HYBRID")
	}
	if s.Name != nil && (len(*s.Name) < 1 || len(*s.Name) > 32) {
		return ErrValidation("name", "The sphere's name must be between 1 and 32 characters in length")
	}
	if s.Description != nil && (len(*s.Description) < 1 || len(*s.Description) > 4096) {
		return ErrValidation("description", "The sphere's description must be between 1 and 4096 characters in length")
	}
	return nil
}

// SphereEdit is the PATCH /spheres/{sphere} payload. Nullable fields use
// three-state semantics; Type may only upgrade towards HYBRID.
type SphereEdit struct {
	Name        Omittable[string] `json:"name"`
	Type        *SphereType       `json:"type,omitempty"`
	Description Omittable[string] `json:"description"`
	Icon        Omittable[uint64] `json:"icon"`
	Banner      Omittable[uint64] `json:"banner"`
}

// Validate checks the payload.
func (s *SphereEdit) Validate() *APIError {
	if !s.Name.IsSet() && s.Type == nil && !s.Description.IsSet() &&
		!s.Icon.IsSet() && !s.Banner.IsSet() {
		return ErrValidation("body", "At least one field must be provided")
	}
	if v, ok := s.Name.Value(); ok && (len(v) < 1 || len(v) > 32) {
		return ErrValidation("name", "The sphere's name must be between 1 and 32 characters in length")
	}
	if s.Type != nil && *s.Type != SphereTypeHybrid {
		return ErrValidation("type", "A sphere's type may only be upgraded to HYBRID")
	}
	if v, ok := s.Description.Value(); ok && (len(v) < 1 || len(v) > 4096) {
		return ErrValidation("description", "The sphere's description must be between 1 and 4096 characters in length")
	}
	return nil
}
