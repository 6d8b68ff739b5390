package handlers

import (
	"net/http"

	"github.com/eludris/eludris/internal/logger"
	"github.com/eludris/eludris/pkg/api/middleware"
	"github.com/eludris/eludris/pkg/auth"
	"github.com/eludris/eludris/pkg/models"
)

// SessionHandlers additionally needs the token service to mint tokens.
type SessionHandlers struct {
	*Handlers
	Tokens *auth.TokenService
}

// CreateSession answers POST /sessions: password login producing a token.
func (h *SessionHandlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var create models.SessionCreate
	if apiErr := decode(r, &create); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if apiErr := create.Validate(); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	user, err := h.DB.GetUserByIdentifier(r.Context(), create.Identifier)
	if err != nil {
		// Same answer for unknown identifier and wrong password.
		models.ErrUnauthorized().WriteJSON(w)
		return
	}
	if ok, err := auth.VerifyPassword(create.Password, user.PasswordHash); err != nil || !ok {
		models.ErrUnauthorized().WriteJSON(w)
		return
	}

	session, err := h.DB.CreateSession(r.Context(), user.ID, create, r.RemoteAddr)
	if err != nil {
		respondErr(w, err)
		return
	}

	token, err := h.Tokens.Sign(auth.Claims{UserID: user.ID, SessionID: session.ID})
	if err != nil {
		logger.Error("token signing failed", "user_id", user.ID, "error", err)
		models.ErrServer("Failed to create session").WriteJSON(w)
		return
	}

	respond(w, http.StatusCreated, models.SessionCreated{Token: token, Session: session})
}

// GetSessions answers GET /sessions for the bearer.
func (h *SessionHandlers) GetSessions(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())
	sessions, err := h.DB.GetSessions(r.Context(), user.ID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, sessions)
}

// DeleteSession answers DELETE /sessions/{session}, logging that session
// out. Tokens bound to it stop verifying immediately.
func (h *SessionHandlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())
	sessionID, apiErr := pathID(r, "session")
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if err := h.DB.DeleteSession(r.Context(), user.ID, sessionID); err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}
