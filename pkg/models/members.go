package models

// Member is the intersection of a user with a sphere, carrying sphere-local
// profile overrides. Unique per (user, sphere).
type Member struct {
	User     User   `json:"user"`
	SphereID uint64 `json:"sphere_id"`

	Nickname     *string `json:"nickname,omitempty"`
	SphereAvatar *uint64 `json:"sphere_avatar,omitempty"`
	SphereBanner *uint64 `json:"sphere_banner,omitempty"`
	SphereBio    *string `json:"sphere_bio,omitempty"`
	SphereStatus *string `json:"sphere_status,omitempty"`
}

// MemberEdit is the PATCH /spheres/{sphere}/members/{member} payload. All
// fields are three-state.
type MemberEdit struct {
	Nickname     Omittable[string] `json:"nickname"`
	SphereAvatar Omittable[uint64] `json:"sphere_avatar"`
	SphereBanner Omittable[uint64] `json:"sphere_banner"`
	SphereBio    Omittable[string] `json:"sphere_bio"`
	SphereStatus Omittable[string] `json:"sphere_status"`
}

// Validate checks the payload.
func (m *MemberEdit) Validate() *APIError {
	if !m.Nickname.IsSet() && !m.SphereAvatar.IsSet() && !m.SphereBanner.IsSet() &&
		!m.SphereBio.IsSet() && !m.SphereStatus.IsSet() {
		return ErrValidation("body", "At least one field must be provided")
	}
	if v, ok := m.Nickname.Value(); ok && (len(v) < 1 || len(v) > 32) {
		return ErrValidation("nickname", "The member's nickname must be between 1 and 32 characters in length")
	}
	if v, ok := m.SphereBio.Value(); ok && (len(v) < 1 || len(v) > 4096) {
		return ErrValidation("sphere_bio", "The member's sphere bio must be between 1 and 4096 characters in length")
	}
	if v, ok := m.SphereStatus.Value(); ok && (len(v) < 1 || len(v) > 128) {
		return ErrValidation("sphere_status", "The member's sphere status must be between 1 and 128 characters in length")
	}
	return nil
}
