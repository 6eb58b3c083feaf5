package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gitinspire/gitinspire-server/internal/apperror"
	"github.com/gitinspire/gitinspire-server/internal/auth"
	"github.com/gitinspire/gitinspire-server/internal/model"
	"github.com/gitinspire/gitinspire-server/internal/service"
)

// TagHandler serves the tag endpoints.
type TagHandler struct {
	tags   *service.TagService
	logger *slog.Logger
}

func NewTagHandler(tags *service.TagService, logger *slog.Logger) *TagHandler {
	return &TagHandler{tags: tags, logger: logger}
}

// HandleList returns every tag, grouped by kind.
//
// GET /api/tags
func (h *TagHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	primary, err := h.tags.List(r.Context(), model.TagPrimary)
	if err != nil {
		writeError(w, err)
		return
	}
	userGen, err := h.tags.List(r.Context(), model.TagUserGen)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"message":  "Successfully retrieved tags.",
		"primary":  primary,
		"user_gen": userGen,
	})
}

// HandleCreate suggests a new tag. Suggesting an existing slug returns
// the stored tag unchanged.
//
// POST /api/tags {"display_name": "...", "type": "primary|user_gen"}
func (h *TagHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("User is not authenticated."))
		return
	}

	var req struct {
		DisplayName string `json:"display_name"`
		Type        string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "Invalid JSON body."))
		return
	}

	tag, err := h.tags.Create(r.Context(), caller, req.DisplayName, model.TagKind(req.Type))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"message": "Successfully created tag.",
		"tag":     tag,
	})
}

// HandleRename moves a tag to a new slug, rewriting every reference.
//
// PATCH /api/tags/{name} {"display_name": "..."}
func (h *TagHandler) HandleRename(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("User is not authenticated."))
		return
	}

	var req struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "Invalid JSON body."))
		return
	}

	tag, err := h.tags.Rename(r.Context(), caller, r.PathValue("name"), req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"message": "Successfully updated tag.",
		"tag":     tag,
	})
}

// HandleDelete removes a tag. Primary tags need a replacement slug in
// the query string.
//
// DELETE /api/tags/{name}?replacement=...
func (h *TagHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("User is not authenticated."))
		return
	}

	if err := h.tags.Delete(r.Context(), caller, r.PathValue("name"), r.URL.Query().Get("replacement")); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{"message": "Successfully deleted tag."})
}
