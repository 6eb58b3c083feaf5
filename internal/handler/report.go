package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gitinspire/gitinspire-server/internal/apperror"
	"github.com/gitinspire/gitinspire-server/internal/auth"
	"github.com/gitinspire/gitinspire-server/internal/service"
)

// ReportHandler serves the report endpoints.
type ReportHandler struct {
	reports *service.ReportService
	logger  *slog.Logger
}

func NewReportHandler(reports *service.ReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, logger: logger}
}

// HandleCreate files a report.
//
// POST /api/report
// {"type": "repository|tag|user", "content_id": "...", "reason": "...",
//  "maintain_link": "...", "info": "..."}
func (h *ReportHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("User is not authenticated."))
		return
	}

	var req struct {
		Type         string `json:"type"`
		ContentID    string `json:"content_id"`
		Reason       string `json:"reason"`
		MaintainLink string `json:"maintain_link"`
		Info         string `json:"info"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "Invalid JSON body."))
		return
	}

	report, err := h.reports.Create(r.Context(), caller, req.Type, req.ContentID, req.Reason, req.MaintainLink, req.Info)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{
		"message": "Successfully created report.",
		"report":  report,
	})
}

// HandleList returns every open report, newest first.
//
// GET /api/report
func (h *ReportHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reports.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"message": "Successfully retrieved reports.",
		"reports": reports,
	})
}

// HandleDelete resolves or dismisses a report. An already-removed report
// answers 200 with a null payload.
//
// DELETE /api/report/{id}?action=resolve|dismiss
func (h *ReportHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
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

	report, err := h.reports.Resolve(r.Context(), caller, id, r.URL.Query().Get("action"))
	if err != nil {
		writeError(w, err)
		return
	}
	if report == nil {
		writeJSON(w, http.StatusOK, envelope{
			"message": "Report was not found.",
			"report":  nil,
		})
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"message": "Successfully handled report.",
		"report":  report,
	})
}
