package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gitinspire/gitinspire-server/internal/apperror"
	"github.com/gitinspire/gitinspire-server/internal/auth"
	"github.com/gitinspire/gitinspire-server/internal/service"
)

// AuthHandler completes GitHub logins and manages session cookies.
type AuthHandler struct {
	auth   *service.AuthService
	secure bool
	logger *slog.Logger
}

func NewAuthHandler(authService *service.AuthService, secure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: authService, secure: secure, logger: logger}
}

// HandleAuthenticate exchanges the OAuth authorization code sent by the
// frontend for a session.
//
// POST /api/auth/authenticate {"code": "..."}
func (h *AuthHandler) HandleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "Invalid JSON body."))
		return
	}

	user, tokens, err := h.auth.Authenticate(r.Context(), req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	auth.SetSessionCookies(w, tokens.Access, tokens.Refresh, h.secure)
	writeJSON(w, http.StatusOK, envelope{
		"message":    "Successfully authenticated.",
		"user":       user,
		"csrf_token": tokens.CSRF,
	})
}

// HandleRefreshToken trades the refresh cookie for a new session.
//
// POST /api/auth/token/refresh
func (h *AuthHandler) HandleRefreshToken(w http.ResponseWriter, r *http.Request) {
	refreshToken, err := auth.RefreshTokenFromRequest(r)
	if err != nil {
		writeError(w, apperror.Unauthorized("User is not authenticated."))
		return
	}

	user, tokens, err := h.auth.RefreshSession(r.Context(), refreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	auth.SetSessionCookies(w, tokens.Access, tokens.Refresh, h.secure)
	writeJSON(w, http.StatusOK, envelope{
		"message":    "Successfully refreshed session.",
		"user":       user,
		"csrf_token": tokens.CSRF,
	})
}

// HandleLogout clears the session cookies. The JWTs themselves stay
// valid until expiry; there is no revocation list.
//
// POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookies(w, h.secure)
	writeJSON(w, http.StatusOK, envelope{"message": "Successfully logged out."})
}
