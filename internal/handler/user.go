package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gitinspire/gitinspire-server/internal/apperror"
	"github.com/gitinspire/gitinspire-server/internal/auth"
	"github.com/gitinspire/gitinspire-server/internal/model"
	"github.com/gitinspire/gitinspire-server/internal/service"
)

// UserHandler serves the user endpoints.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// HandleGet looks up one user together with their contributions: every
// repository and tag they suggested. A missing id answers 200 with null
// payloads. The ban reason is visible to admins only.
//
// GET /api/users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := service.ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			writeJSON(w, http.StatusOK, envelope{
				"message":       "User was not found.",
				"user":          nil,
				"contributions": nil,
			})
			return
		}
		writeError(w, err)
		return
	}

	contributions, err := h.users.Contributions(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	view := *user
	if caller, ok := auth.UserFromContext(r.Context()); !ok || caller.Status.Level() < model.StatusAdmin.Level() {
		view = user.Redacted()
	}

	writeJSON(w, http.StatusOK, envelope{
		"message":       "Successfully retrieved user.",
		"user":          view,
		"contributions": contributions,
	})
}

// HandleBanned lists every banned account, ban reasons included.
//
// GET /api/users/banned
func (h *UserHandler) HandleBanned(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.Banned(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"message": "Successfully retrieved banned users.",
		"users":   users,
	})
}

// HandleRefresh re-syncs a user profile with GitHub. A profile that is
// gone upstream keeps its local row but answers 410.
//
// GET /api/users/{id}/refresh
func (h *UserHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	id, err := service.ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Refresh(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"message": "Successfully refreshed user.",
		"user":    user,
	})
}

// HandleUpdate applies a moderation decision to another account.
//
// PATCH /api/users/{id} {"account_status": "...", "ban_reason": "..."}
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("User is not authenticated."))
		return
	}

	id, err := service.ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		AccountStatus string `json:"account_status"`
		BanReason     string `json:"ban_reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "Invalid JSON body."))
		return
	}

	user, err := h.users.UpdateStatus(r.Context(), caller, id, req.AccountStatus, req.BanReason)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"message": "Successfully updated user.",
		"user":    user,
	})
}
