package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gitinspire/gitinspire-server/internal/service"
)

// LogHandler serves the audit trail.
type LogHandler struct {
	logs   *service.LogService
	logger *slog.Logger
}

func NewLogHandler(logs *service.LogService, logger *slog.Logger) *LogHandler {
	return &LogHandler{logs: logs, logger: logger}
}

// HandleList pages through the audit trail, newest first. Same
// currPage/numPages contract as the repository filter.
//
// GET /api/logs?limit&page
func (h *LogHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := service.DefaultLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			page = n
		}
	}

	logs, total, err := h.logs.List(r.Context(), limit, page)
	if err != nil {
		writeError(w, err)
		return
	}

	currPage, numPages := pageCounts(total, limit, page, len(logs))
	writeJSON(w, http.StatusOK, envelope{
		"message":  "Successfully retrieved logs.",
		"logs":     logs,
		"currPage": currPage,
		"numPages": numPages,
	})
}
