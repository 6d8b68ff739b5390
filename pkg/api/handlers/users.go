package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/eludris/eludris/internal/logger"
	"github.com/eludris/eludris/pkg/api/middleware"
	"github.com/eludris/eludris/pkg/auth"
	"github.com/eludris/eludris/pkg/models"
)

// CreateUser answers POST /users. New accounts start unverified; when the
// instance has email configured a verification code is sent.
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var create models.UserCreate
	if apiErr := decode(r, &create); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if apiErr := create.Validate(); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	hash, err := auth.HashPassword(create.Password)
	if err != nil {
		logger.Error("password hashing failed", "error", err)
		models.ErrServer("Failed to create user").WriteJSON(w)
		return
	}

	user, err := h.DB.CreateUser(r.Context(), create, hash)
	if err != nil {
		respondErr(w, err)
		return
	}

	if h.Mail.Enabled() {
		if err := h.Mail.SendVerification(r.Context(), user.ID, create.Email); err != nil {
			logger.Error("verification mail failed", "user_id", user.ID, "error", err)
		}
	} else {
		// No mail transport means nothing to verify against.
		if err := h.DB.VerifyUser(r.Context(), user.ID); err == nil {
			verified := true
			user.Verified = &verified
		}
	}

	respond(w, http.StatusOK, user)
}

// GetUser answers GET /users/{user} where the identifier is @me, an id or a
// username.
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	user, apiErr := h.resolveUser(r, chi.URLParam(r, "user"))
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	respond(w, http.StatusOK, h.viewUser(r, user))
}

// EditUser answers PATCH /users: username, email and password changes,
// gated on the current password.
func (h *Handlers) EditUser(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	var edit models.UserEdit
	if apiErr := decode(r, &edit); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if apiErr := edit.Validate(); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if ok, err := auth.VerifyPassword(edit.Password, user.PasswordHash); err != nil || !ok {
		models.ErrUnauthorized().WriteJSON(w)
		return
	}

	var newHash string
	if edit.NewPassword != nil {
		var err error
		if newHash, err = auth.HashPassword(*edit.NewPassword); err != nil {
			logger.Error("password hashing failed", "error", err)
			models.ErrServer("Failed to edit user").WriteJSON(w)
			return
		}
	}

	emailChanged := edit.Email != nil && (user.Email == nil || *user.Email != *edit.Email)
	updated, err := h.DB.EditUser(r.Context(), user.ID, edit, newHash)
	if err != nil {
		respondErr(w, err)
		return
	}
	if emailChanged && h.Mail.Enabled() {
		if err := h.Mail.SendVerification(r.Context(), updated.ID, *edit.Email); err != nil {
			logger.Error("verification mail failed", "user_id", updated.ID, "error", err)
		}
	}

	h.publishUserUpdate(r, updated)
	respond(w, http.StatusOK, updated)
}

// EditProfile answers PATCH /users/profile with three-state fields.
func (h *Handlers) EditProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	var edit models.ProfileEdit
	if apiErr := decode(r, &edit); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if apiErr := edit.Validate(h.Cfg.Oprish.BioLimit); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	updated, err := h.DB.EditProfile(r.Context(), user.ID, edit)
	if err != nil {
		respondErr(w, err)
		return
	}
	h.publishUserUpdate(r, updated)
	respond(w, http.StatusOK, updated)
}

// DeleteUser answers DELETE /users, gated on the current password. The
// account is tombstoned and swept later.
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	var creds models.PasswordDeleteCredentials
	if apiErr := decode(r, &creds); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if ok, err := auth.VerifyPassword(creds.Password, user.PasswordHash); err != nil || !ok {
		models.ErrUnauthorized().WriteJSON(w)
		return
	}

	if err := h.DB.SoftDeleteUser(r.Context(), user.ID); err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

// VerifyUser answers POST /users/verify?code=NNNNNN.
func (h *Handlers) VerifyUser(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	if !h.Mail.Enabled() {
		models.ErrMisdirected("This instance does not have email configured").WriteJSON(w)
		return
	}
	if user.Verified != nil && *user.Verified {
		models.ErrValidation("code", "The user is already verified").WriteJSON(w)
		return
	}
	code := r.URL.Query().Get("code")
	if apiErr := h.Mail.CheckVerification(r.Context(), user.ID, code); apiErr != nil {
		respondErr(w, apiErr)
		return
	}
	if err := h.DB.VerifyUser(r.Context(), user.ID); err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

// ResendVerification answers POST /users/resend-verification, minting a new
// code and invalidating the previous one.
func (h *Handlers) ResendVerification(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	if !h.Mail.Enabled() {
		models.ErrMisdirected("This instance does not have email configured").WriteJSON(w)
		return
	}
	if user.Verified != nil && *user.Verified {
		models.ErrValidation("code", "The user is already verified").WriteJSON(w)
		return
	}
	if user.Email == nil {
		models.ErrValidation("email", "The user has no email address on record").WriteJSON(w)
		return
	}
	if err := h.Mail.SendVerification(r.Context(), user.ID, *user.Email); err != nil {
		logger.Error("verification mail failed", "user_id", user.ID, "error", err)
		models.ErrServer("Failed to send verification email").WriteJSON(w)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

// CreatePasswordReset answers POST /users/reset-password. The response never
// reveals whether the address exists.
func (h *Handlers) CreatePasswordReset(w http.ResponseWriter, r *http.Request) {
	if !h.Mail.Enabled() {
		models.ErrMisdirected("This instance does not have email configured").WriteJSON(w)
		return
	}

	var payload models.CreatePasswordResetCode
	if apiErr := decode(r, &payload); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	payload.Email = strings.ToLower(strings.TrimSpace(payload.Email))
	if apiErr := models.ValidateEmail(payload.Email); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	if _, err := h.DB.GetUserByIdentifier(r.Context(), payload.Email); err == nil {
		if err := h.Mail.SendPasswordReset(r.Context(), payload.Email); err != nil {
			logger.Error("reset mail failed", "error", err)
		}
	}
	respond(w, http.StatusNoContent, nil)
}

// ResetPassword answers PATCH /users/reset-password with the emailed code.
func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	if !h.Mail.Enabled() {
		models.ErrMisdirected("This instance does not have email configured").WriteJSON(w)
		return
	}

	var payload models.ResetPassword
	if apiErr := decode(r, &payload); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	payload.Email = strings.ToLower(strings.TrimSpace(payload.Email))
	if apiErr := models.ValidatePassword(payload.Password); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if apiErr := h.Mail.CheckPasswordReset(r.Context(), payload.Email, payload.Code); apiErr != nil {
		respondErr(w, apiErr)
		return
	}

	user, err := h.DB.GetUserByIdentifier(r.Context(), payload.Email)
	if err != nil {
		respondErr(w, err)
		return
	}
	hash, err := auth.HashPassword(payload.Password)
	if err != nil {
		logger.Error("password hashing failed", "error", err)
		models.ErrServer("Failed to reset password").WriteJSON(w)
		return
	}
	if err := h.DB.SetUserPassword(r.Context(), user.ID, hash); err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

// publishUserUpdate fans a USER_UPDATE out to the gateway. The gateway
// strips private fields for everyone but the user themself.
func (h *Handlers) publishUserUpdate(r *http.Request, user models.User) {
	h.Pub.PublishLogged(r.Context(), models.ServerPayload{
		Op: models.OpUserUpdate,
		D:  &user,
	})
}
