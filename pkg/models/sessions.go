package models

import "strings"

// Session is a persisted credential allowing a token holder to act as a user
// from a specific client and platform.
type Session struct {
	ID       uint64 `json:"id"`
	UserID   uint64 `json:"user_id"`
	Platform string `json:"platform"`
	Client   string `json:"client"`
	IP       string `json:"-"`
}

// SessionCreate is the POST /sessions payload. Identifier is a username or
// an email address.
type SessionCreate struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	Platform   string `json:"platform"`
	Client     string `json:"client"`
}

// Validate normalizes the payload. Platform and client are lower-cased, like
// usernames, so they compare predictably.
func (s *SessionCreate) Validate() *APIError {
	s.Identifier = strings.ToLower(strings.TrimSpace(s.Identifier))
	s.Platform = strings.ToLower(strings.TrimSpace(s.Platform))
	s.Client = strings.ToLower(strings.TrimSpace(s.Client))
	if s.Identifier == "" {
		return ErrValidation("identifier", "The session's identifier must be a username or an email address")
	}
	if s.Platform == "" || len(s.Platform) > 32 {
		return ErrValidation("platform", "The session's platform must be between 1 and 32 characters in length")
	}
	if s.Client == "" || len(s.Client) > 32 {
		return ErrValidation("client", "The session's client must be between 1 and 32 characters in length")
	}
	return nil
}

// SessionCreated is the 201 response for session creation.
type SessionCreated struct {
	Token   string  `json:"token"`
	Session Session `json:"session"`
}
