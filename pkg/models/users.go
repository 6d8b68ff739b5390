package models

import (
	"regexp"
	"strings"
)

// StatusType is a user's presence bucket.
type StatusType string

const (
	StatusOnline  StatusType = "ONLINE"
	StatusIdle    StatusType = "IDLE"
	StatusBusy    StatusType = "BUSY"
	StatusOffline StatusType = "OFFLINE"
)

// Valid reports whether the status type is one of the known variants.
func (s StatusType) Valid() bool {
	switch s {
	case StatusOnline, StatusIdle, StatusBusy, StatusOffline:
		return true
	}
	return false
}

// Status is a user's presence, a type plus optional free text.
type Status struct {
	Type StatusType `json:"type"`
	Text *string    `json:"text,omitempty"`
}

// User is an Eludris account.
//
// Email, Verified and Password are only serialized towards the account owner;
// fan-out to other users strips them (see the gateway rewrite rules). A user
// with IsDeleted set is treated as non-existent by every lookup except the
// cleanup sweeper.
type User struct {
	ID           uint64  `json:"id"`
	Username     string  `json:"username"`
	DisplayName  *string `json:"display_name,omitempty"`
	SocialCredit int32   `json:"social_credit"`
	Status       Status  `json:"status"`
	Bio          *string `json:"bio,omitempty"`
	Avatar       *uint64 `json:"avatar,omitempty"`
	Banner       *uint64 `json:"banner,omitempty"`
	Badges       uint64  `json:"badges"`
	Permissions  uint64  `json:"permissions"`

	Email    *string `json:"email,omitempty"`
	Verified *bool   `json:"verified,omitempty"`

	// PasswordHash never leaves the store layer.
	PasswordHash string `json:"-"`
	IsDeleted    bool   `json:"-"`
}

// StripPrivate removes fields only the account owner may see. Used when a
// user object is serialized towards anyone other than the bearer.
func (u User) StripPrivate() User {
	u.Email = nil
	u.Verified = nil
	return u
}

// RedactPresence rewrites the status for viewers when the user has no active
// gateway session: the type becomes OFFLINE and the text is blanked.
func (u User) RedactPresence(online bool) User {
	if !online {
		u.Status = Status{Type: StatusOffline}
	}
	return u
}

var usernameRegex = regexp.MustCompile(`^[a-z0-9_-]{2,32}$`)

// ValidateUsername enforces the username grammar: 2..32 chars of
// [a-z0-9_-] with at least one letter. Input is expected pre-lowercased.
func ValidateUsername(username string) *APIError {
	if !usernameRegex.MatchString(username) {
		return ErrValidation("username", "The user's username must be between 2 and 32 characters in length and only consist of lowercase letters, numbers, underscores and dashes")
	}
	if !strings.ContainsFunc(username, func(r rune) bool { return r >= 'a' && r <= 'z' }) {
		return ErrValidation("username", "The user's username must have at least one alphabetical letter")
	}
	return nil
}

// emailRegex is intentionally loose; real validation happens by sending mail.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateEmail performs a shape check on the address.
func ValidateEmail(email string) *APIError {
	if !emailRegex.MatchString(email) {
		return ErrValidation("email", "The provided email is invalid")
	}
	return nil
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(password string) *APIError {
	if len(password) < 8 {
		return ErrValidation("password", "The user's password must be at least 8 characters in length")
	}
	return nil
}

// UserCreate is the POST /users payload.
type UserCreate struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate normalizes and checks the payload.
func (u *UserCreate) Validate() *APIError {
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if err := ValidateUsername(u.Username); err != nil {
		return err
	}
	if err := ValidateEmail(u.Email); err != nil {
		return err
	}
	return ValidatePassword(u.Password)
}

// UserEdit is the PATCH /users payload. All changes require the current
// password; at least one of the optional fields must be present.
type UserEdit struct {
	Password    string  `json:"password"`
	Username    *string `json:"username,omitempty"`
	Email       *string `json:"email,omitempty"`
	NewPassword *string `json:"new_password,omitempty"`
}

// Validate normalizes and checks the payload.
func (u *UserEdit) Validate() *APIError {
	if u.Username == nil && u.Email == nil && u.NewPassword == nil {
		return ErrValidation("body", "At least one of username, email or new_password must be provided")
	}
	if u.Username != nil {
		normalized := strings.ToLower(strings.TrimSpace(*u.Username))
		u.Username = &normalized
		if err := ValidateUsername(normalized); err != nil {
			return err
		}
	}
	if u.Email != nil {
		normalized := strings.ToLower(strings.TrimSpace(*u.Email))
		u.Email = &normalized
		if err := ValidateEmail(normalized); err != nil {
			return err
		}
	}
	if u.NewPassword != nil {
		if err := ValidatePassword(*u.NewPassword); err != nil {
			return err
		}
	}
	return nil
}

// ProfileEdit is the PATCH /users/profile payload. Every field is
// three-state: absent leaves the value, null clears it, a value replaces it.
type ProfileEdit struct {
	DisplayName Omittable[string]     `json:"display_name"`
	Bio         Omittable[string]     `json:"bio"`
	Status      Omittable[string]     `json:"status"`
	StatusType  Omittable[StatusType] `json:"status_type"`
	Avatar      Omittable[uint64]     `json:"avatar"`
	Banner      Omittable[uint64]     `json:"banner"`
}

// Validate checks field constraints. bioLimit comes from instance config.
func (p *ProfileEdit) Validate(bioLimit int) *APIError {
	if !p.DisplayName.IsSet() && !p.Bio.IsSet() && !p.Status.IsSet() &&
		!p.StatusType.IsSet() && !p.Avatar.IsSet() && !p.Banner.IsSet() {
		return ErrValidation("body", "At least one field must be provided")
	}
	if v, ok := p.DisplayName.Value(); ok {
		if len(v) < 2 || len(v) > 32 {
			return ErrValidation("display_name", "The user's display name must be between 2 and 32 characters in length")
		}
	}
	if v, ok := p.Bio.Value(); ok {
		if len(v) < 1 || len(v) > bioLimit {
			return ErrValidation("bio", "The user's bio must be between 1 and the instance's bio limit in length")
		}
	}
	if v, ok := p.Status.Value(); ok {
		if len(v) < 1 || len(v) > 128 {
			return ErrValidation("status", "The user's status must be between 1 and 128 characters in length")
		}
	}
	if v, ok := p.StatusType.Value(); ok && !v.Valid() {
		return ErrValidation("status_type", "The user's status type must be one of ONLINE, IDLE, BUSY or OFFLINE")
	}
	return nil
}

// PasswordDeleteCredentials authenticates destructive account actions.
type PasswordDeleteCredentials struct {
	Password string `json:"password"`
}

// CreatePasswordResetCode is the POST /users/reset-password payload.
type CreatePasswordResetCode struct {
	Email string `json:"email"`
}

// ResetPassword is the PATCH /users/reset-password payload.
type ResetPassword struct {
	Code     string `json:"code"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
