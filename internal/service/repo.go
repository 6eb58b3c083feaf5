package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gitinspire/gitinspire-server/internal/apperror"
	"github.com/gitinspire/gitinspire-server/internal/github"
	"github.com/gitinspire/gitinspire-server/internal/model"
	"github.com/gitinspire/gitinspire-server/internal/repository"
)

const (
	// MinSuggestAccountAgeMonths is how old (in 30-day months) a GitHub
	// account must be before it may suggest repositories.
	MinSuggestAccountAgeMonths = 3

	// RefreshStaleness is how old a mirrored row must be before a refresh
	// hits GitHub instead of returning the cached copy.
	RefreshStaleness = 24 * time.Hour

	DefaultFilterLimit = 15
)

// RepoService manages the repository lifecycle: suggestion against live
// GitHub data, filtering, refresh, curation updates, and deletion.
type RepoService struct {
	repos  repository.RepoRepository
	tags   repository.TagRepository
	langs  repository.LanguageRepository
	github github.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewRepoService(
	repos repository.RepoRepository,
	tags repository.TagRepository,
	langs repository.LanguageRepository,
	gh github.Client,
	logger *slog.Logger,
) *RepoService {
	return &RepoService{
		repos:  repos,
		tags:   tags,
		langs:  langs,
		github: gh,
		logger: logger,
		now:    time.Now,
	}
}

func (s *RepoService) Get(ctx context.Context, id int64) (*model.Repository, error) {
	return s.repos.GetRepo(ctx, id)
}

func (s *RepoService) Random(ctx context.Context) (*model.Repository, error) {
	return s.repos.RandomRepo(ctx)
}

// Filter lists repositories matching the composed predicate, returning
// the requested page and the total match count. Inputs are clamped here
// so every caller gets the same sane ranges.
func (s *RepoService) Filter(ctx context.Context, opts repository.FilterOptions) ([]model.Repository, int, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultFilterLimit
	}
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.MinStars < 0 {
		opts.MinStars = 0
	}
	if opts.HasMaxStars && opts.MaxStars < opts.MinStars {
		opts.HasMaxStars = false
		opts.MaxStars = 0
	}

	return s.repos.FilterRepos(ctx, opts)
}

// Suggest validates and mirrors a GitHub repository. A repository that
// already exists under the returned GitHub id is returned as-is; the
// second suggestion is idempotent, not an error.
func (s *RepoService) Suggest(ctx context.Context, caller *model.User, author, name, primaryTag string, extraTags []string) (*model.Repository, bool, error) {
	if !caller.OlderThanMonths(MinSuggestAccountAgeMonths, s.now()) {
		return nil, false, apperror.Forbidden(
			fmt.Sprintf("GitHub account must be at least %d months old to suggest a repository.", MinSuggestAccountAgeMonths))
	}

	author = strings.TrimSpace(author)
	name = strings.TrimSpace(name)
	if author == "" || name == "" {
		return nil, false, apperror.ValidationFailed("repository", "Repository author and name are required.")
	}

	primary, tagRows, err := s.resolveTags(ctx, primaryTag, extraTags)
	if err != nil {
		return nil, false, err
	}

	info, err := s.github.GetRepository(ctx, author, name)
	if err != nil {
		s.logger.Warn("GitHub repository lookup failed",
			slog.String("author", author),
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, false, apperror.Upstream("Repository was not found.")
	}

	if existing, err := s.repos.GetRepo(ctx, info.ID); err == nil {
		return existing, true, nil
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, err
	}

	breakdown, err := s.github.ListLanguages(ctx, info.Author, info.Name)
	if err != nil {
		return nil, false, apperror.Upstream("Repository was not found.")
	}
	langSlugs, langRows := s.languageRows(ctx, info.ID, breakdown)
	if err := s.langs.EnsureLanguages(ctx, languageModels(breakdown)); err != nil {
		return nil, false, fmt.Errorf("ensuring languages: %w", err)
	}

	repo := &model.Repository{
		ID:          info.ID,
		Author:      info.Author,
		Name:        info.Name,
		Description: info.Description,
		Stars:       info.Stars,
		PrimaryTag:  *primary,
		Languages:   langSlugs,
		SuggestedBy: caller.ID,
	}
	joinTags := make([]model.RepoTag, 0, len(tagRows))
	for _, t := range tagRows {
		repo.Tags = append(repo.Tags, t)
		joinTags = append(joinTags, model.RepoTag{RepoID: info.ID, TagName: t.Name})
	}

	if err := s.repos.CreateRepo(ctx, repo, langRows, joinTags); err != nil {
		s.logger.Error("failed to create repository",
			slog.Int64("id", info.ID),
			slog.String("error", err.Error()),
		)
		return nil, false, fmt.Errorf("creating repository: %w", err)
	}

	s.logger.Info("repository suggested",
		slog.Int64("id", repo.ID),
		slog.String("repo", repo.Author+"/"+repo.Name),
		slog.Int64("suggested_by", caller.ID),
	)

	return repo, false, nil
}

// Refresh re-syncs a mirrored repository with GitHub, subject to the
// staleness window. A repository that disappeared upstream is cascade
// deleted locally with a bot-attributed audit entry.
func (s *RepoService) Refresh(ctx context.Context, id int64) (*model.Repository, error) {
	repo, err := s.repos.GetRepo(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMsg("Repository was not found.")
		}
		return nil, err
	}

	now := s.now()
	if now.Sub(repo.LastUpdated) < RefreshStaleness {
		return repo, nil
	}

	info, err := s.github.GetRepositoryByID(ctx, id, repo.LastUpdated)
	switch {
	case errors.Is(err, github.ErrNotModified):
		if err := s.repos.TouchRepo(ctx, id); err != nil {
			return nil, err
		}
		repo.LastUpdated = now.UTC()
		return repo, nil

	case errors.Is(err, github.ErrGone):
		entry := &model.Log{
			Action:    "delete (auto)",
			Target:    model.RepositoryTarget(id),
			EnactedBy: model.BotUserID,
		}
		if err := s.repos.DeleteRepo(ctx, id, entry); err != nil {
			return nil, err
		}
		s.logger.Info("repository gone upstream, deleted locally", slog.Int64("id", id))
		return nil, apperror.Gone("Repository is no longer publicly available on GitHub.")

	case err != nil:
		s.logger.Warn("GitHub repository refresh failed",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Upstream("Unable to refresh repository from GitHub.")
	}

	breakdown, err := s.github.ListLanguages(ctx, info.Author, info.Name)
	if err != nil {
		return nil, apperror.Upstream("Unable to refresh repository from GitHub.")
	}
	langSlugs, langRows := s.languageRows(ctx, id, breakdown)
	if err := s.langs.EnsureLanguages(ctx, languageModels(breakdown)); err != nil {
		return nil, fmt.Errorf("ensuring languages: %w", err)
	}

	repo.Author = info.Author
	repo.Name = info.Name
	repo.Description = info.Description
	repo.Stars = info.Stars
	repo.Languages = langSlugs
	if err := s.repos.RefreshRepo(ctx, repo, langRows); err != nil {
		return nil, fmt.Errorf("refreshing repository %d: %w", id, err)
	}

	return s.repos.GetRepo(ctx, id)
}

// Update replaces the curated fields: primary tag, the full tag set, and
// the maintain link.
func (s *RepoService) Update(ctx context.Context, caller *model.User, id int64, primaryTag string, tags []string, maintainLink string) (*model.Repository, error) {
	repo, err := s.repos.GetRepo(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMsg("Repository was not found.")
		}
		return nil, err
	}

	primary, tagRows, err := s.resolveTags(ctx, primaryTag, tags)
	if err != nil {
		return nil, err
	}

	maintainLink = strings.TrimSpace(maintainLink)
	if maintainLink != "" {
		u, err := url.Parse(maintainLink)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, apperror.ValidationFailed("maintain_link", "Maintain link must be a valid URL.")
		}
	}

	action := "update"
	if maintainLink != repo.MaintainLink {
		action = "update (maintain link)"
	}
	entry := &model.Log{
		Action:    action,
		Target:    model.RepositoryTarget(id),
		EnactedBy: caller.ID,
	}

	joinTags := make([]model.RepoTag, 0, len(tagRows))
	for _, t := range tagRows {
		joinTags = append(joinTags, model.RepoTag{RepoID: id, TagName: t.Name})
	}
	if err := s.repos.UpdateRepoCuration(ctx, id, primary.Name, joinTags, maintainLink, entry); err != nil {
		return nil, fmt.Errorf("updating repository %d: %w", id, err)
	}

	s.logger.Info("repository updated",
		slog.Int64("id", id),
		slog.String("action", action),
		slog.Int64("enacted_by", caller.ID),
	)

	return s.repos.GetRepo(ctx, id)
}

// Delete removes a mirrored repository and its join rows.
func (s *RepoService) Delete(ctx context.Context, caller *model.User, id int64) error {
	entry := &model.Log{
		Action:    "delete",
		Target:    model.RepositoryTarget(id),
		EnactedBy: caller.ID,
	}
	if err := s.repos.DeleteRepo(ctx, id, entry); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotFoundMsg("Repository was not found.")
		}
		return err
	}

	s.logger.Info("repository deleted", slog.Int64("id", id), slog.Int64("enacted_by", caller.ID))
	return nil
}

// resolveTags loads the primary tag and every extra tag, failing with a
// single validation error when any of them is missing.
func (s *RepoService) resolveTags(ctx context.Context, primaryTag string, extraTags []string) (*model.Tag, []model.Tag, error) {
	primary, err := s.tags.GetTag(ctx, model.Slugify(primaryTag))
	if err != nil || primary.Kind != model.TagPrimary {
		return nil, nil, apperror.ValidationFailed("tags", "Invalid tags.")
	}

	rows := make([]model.Tag, 0, len(extraTags))
	seen := map[string]bool{}
	for _, raw := range extraTags {
		slug := model.Slugify(raw)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		tag, err := s.tags.GetTag(ctx, slug)
		if err != nil {
			return nil, nil, apperror.ValidationFailed("tags", "Invalid tags.")
		}
		rows = append(rows, *tag)
	}

	return primary, rows, nil
}

// languageRows orders GitHub's byte-count breakdown into language slugs,
// dominant language first and flagged primary. Ties sort by name so the
// order is deterministic.
func (s *RepoService) languageRows(_ context.Context, repoID int64, breakdown map[string]int) ([]string, []model.RepoLanguage) {
	names := make([]string, 0, len(breakdown))
	for name := range breakdown {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if breakdown[names[i]] != breakdown[names[j]] {
			return breakdown[names[i]] > breakdown[names[j]]
		}
		return names[i] < names[j]
	})

	slugs := make([]string, 0, len(names))
	rows := make([]model.RepoLanguage, 0, len(names))
	for i, name := range names {
		slug := model.Slugify(name)
		slugs = append(slugs, slug)
		rows = append(rows, model.RepoLanguage{
			RepoID:       repoID,
			LanguageName: slug,
			IsPrimary:    i == 0,
		})
	}

	return slugs, rows
}

func languageModels(breakdown map[string]int) []model.Language {
	langs := make([]model.Language, 0, len(breakdown))
	for name := range breakdown {
		langs = append(langs, model.Language{
			Name:        model.Slugify(name),
			DisplayName: name,
		})
	}
	return langs
}

// ParseSortKey validates a sort query value. Unrecognized values fail
// rather than silently falling back.
func ParseSortKey(v string) (repository.SortKey, error) {
	switch v {
	case "":
		return repository.SortNone, nil
	case "stars":
		return repository.SortStars, nil
	case "date":
		return repository.SortDate, nil
	}
	return repository.SortNone, apperror.ValidationFailed("sort", "Sort must be one of: stars, date.")
}

// ParseID parses a numeric route parameter.
func ParseID(v string) (int64, error) {
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, apperror.ValidationFailed("id", "Invalid id.")
	}
	return id, nil
}
