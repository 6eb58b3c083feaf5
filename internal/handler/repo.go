package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gitinspire/gitinspire-server/internal/apperror"
	"github.com/gitinspire/gitinspire-server/internal/auth"
	"github.com/gitinspire/gitinspire-server/internal/model"
	"github.com/gitinspire/gitinspire-server/internal/repository"
	"github.com/gitinspire/gitinspire-server/internal/service"
)

// RepoHandler serves the repository endpoints: filtering, lookup,
// suggestion, refresh, curation updates, and deletion.
type RepoHandler struct {
	repos  *service.RepoService
	logger *slog.Logger
}

func NewRepoHandler(repos *service.RepoService, logger *slog.Logger) *RepoHandler {
	return &RepoHandler{repos: repos, logger: logger}
}

// HandleFilter lists repositories matching the query predicate.
//
// GET /api/repositories/filter?minStars&maxStars&primary_tag&tags&languages&sort&order&page&limit
func (h *RepoHandler) HandleFilter(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := repository.FilterOptions{
		Limit:      service.DefaultFilterLimit,
		Page:       1,
		PrimaryTag: model.Slugify(q.Get("primary_tag")),
		Tags:       slugList(q.Get("tags")),
		Languages:  slugList(q.Get("languages")),
		Descending: q.Get("order") == "desc",
	}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			opts.Page = n
		}
	}
	if v := q.Get("minStars"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.MinStars = n
		}
	}
	if v := q.Get("maxStars"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.MaxStars = n
			opts.HasMaxStars = true
		}
	}

	sortKey, err := service.ParseSortKey(q.Get("sort"))
	if err != nil {
		writeError(w, err)
		return
	}
	opts.Sort = sortKey

	repos, total, err := h.repos.Filter(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}

	currPage, numPages := pageCounts(total, opts.Limit, opts.Page, len(repos))
	writeJSON(w, http.StatusOK, envelope{
		"message":      "Successfully retrieved filtered repositories.",
		"repositories": repos,
		"currPage":     currPage,
		"numPages":     numPages,
	})
}

// HandleGet looks up one repository. A missing id answers 200 with a
// null payload, not 404.
//
// GET /api/repositories/{id}
func (h *RepoHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := service.ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	repo, err := h.repos.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			writeJSON(w, http.StatusOK, envelope{
				"message":    "Repository was not found.",
				"repository": nil,
			})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"message":    "Successfully retrieved repository.",
		"repository": repo,
	})
}

// HandleRandom returns one random mirrored repository.
//
// GET /api/random
func (h *RepoHandler) HandleRandom(w http.ResponseWriter, r *http.Request) {
	repo, err := h.repos.Random(r.Context())
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			writeJSON(w, http.StatusOK, envelope{
				"message":    "No repositories available.",
				"repository": nil,
			})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"message":    "Successfully retrieved a random repository.",
		"repository": repo,
	})
}

// HandleSuggest mirrors a GitHub repository into the catalog.
//
// POST /api/repositories
// {"author": "...", "repo_name": "...", "primary_tag": "...", "tags": ["..."]}
func (h *RepoHandler) HandleSuggest(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("User is not authenticated."))
		return
	}

	var req struct {
		Author     string   `json:"author"`
		RepoName   string   `json:"repo_name"`
		PrimaryTag string   `json:"primary_tag"`
		Tags       []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "Invalid JSON body."))
		return
	}

	repo, existed, err := h.repos.Suggest(r.Context(), caller, req.Author, req.RepoName, req.PrimaryTag, req.Tags)
	if err != nil {
		writeError(w, err)
		return
	}

	message := "Successfully suggested repository."
	status := http.StatusCreated
	if existed {
		message = "Repository already exists in our database."
		status = http.StatusOK
	}
	writeJSON(w, status, envelope{
		"message":    message,
		"repository": repo,
	})
}

// HandleRefresh re-syncs a repository with GitHub. A repository that
// vanished upstream is deleted locally and answered with 410.
//
// GET /api/repositories/{id}/refresh
func (h *RepoHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	id, err := service.ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	repo, err := h.repos.Refresh(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"message":    "Successfully refreshed repository.",
		"repository": repo,
	})
}

// HandleUpdate replaces the curated fields of a repository.
//
// PATCH /api/repositories/{id}
// {"primary_tag": "...", "tags": ["..."], "maintain_link": "..."}
func (h *RepoHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
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
		PrimaryTag   string   `json:"primary_tag"`
		Tags         []string `json:"tags"`
		MaintainLink string   `json:"maintain_link"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "Invalid JSON body."))
		return
	}

	repo, err := h.repos.Update(r.Context(), caller, id, req.PrimaryTag, req.Tags, req.MaintainLink)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"message":    "Successfully updated repository.",
		"repository": repo,
	})
}

// HandleDelete removes a repository and its join rows.
//
// DELETE /api/repositories/{id}
func (h *RepoHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.repos.Delete(r.Context(), caller, id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{"message": "Successfully deleted repository."})
}

// slugList splits a comma-separated query value into slugs, dropping
// empties.
func slugList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if slug := model.Slugify(part); slug != "" {
			out = append(out, slug)
		}
	}
	return out
}
