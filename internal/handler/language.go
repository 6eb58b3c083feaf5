package handler

import (
	"log/slog"
	"net/http"

	"github.com/gitinspire/gitinspire-server/internal/service"
)

// LanguageHandler serves the language list.
type LanguageHandler struct {
	langs  *service.LanguageService
	logger *slog.Logger
}

func NewLanguageHandler(langs *service.LanguageService, logger *slog.Logger) *LanguageHandler {
	return &LanguageHandler{langs: langs, logger: logger}
}

// HandleList returns every language seen across mirrored repositories.
//
// GET /api/languages
func (h *LanguageHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	languages, err := h.langs.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"message":   "Successfully retrieved languages.",
		"languages": languages,
	})
}
