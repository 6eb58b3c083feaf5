// Package service contains the business logic layer: validation,
// permission rules beyond the route guards, and orchestration across the
// storage and GitHub collaborators. Handlers stay HTTP-only; repositories
// stay SQL-only.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gitinspire/gitinspire-server/internal/apperror"
	"github.com/gitinspire/gitinspire-server/internal/model"
	"github.com/gitinspire/gitinspire-server/internal/repository"
)

// MinTagAccountAgeMonths is how old (in 30-day months) a GitHub account
// must be before it may suggest tags.
const MinTagAccountAgeMonths = 12

// TagService manages the tag lifecycle: suggestion, rename with
// reference rewrite, and the two deletion protocols.
type TagService struct {
	tags   repository.TagRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewTagService(tags repository.TagRepository, logger *slog.Logger) *TagService {
	return &TagService{
		tags:   tags,
		logger: logger,
		now:    time.Now,
	}
}

func (s *TagService) Get(ctx context.Context, name string) (*model.Tag, error) {
	return s.tags.GetTag(ctx, model.Slugify(name))
}

func (s *TagService) List(ctx context.Context, kind model.TagKind) ([]model.Tag, error) {
	return s.tags.ListTags(ctx, kind)
}

// Create suggests a new tag. Non-owner callers always get a user_gen tag
// regardless of the requested kind, and suggesting an existing slug
// returns the existing tag rather than an error.
func (s *TagService) Create(ctx context.Context, caller *model.User, displayName string, kind model.TagKind) (*model.Tag, error) {
	if !caller.OlderThanMonths(MinTagAccountAgeMonths, s.now()) {
		return nil, apperror.Forbidden(
			fmt.Sprintf("GitHub account must be at least %d months old to suggest a tag.", MinTagAccountAgeMonths))
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, apperror.ValidationFailed("display_name", "Tag name can't be empty.")
	}
	if len(displayName) > model.MaxTagDisplayNameLength {
		return nil, apperror.ValidationFailed("display_name", "Tag name can't be more than 25 characters.")
	}

	if caller.Status != model.StatusOwner || !kind.Valid() {
		kind = model.TagUserGen
	}

	slug := model.Slugify(displayName)
	if existing, err := s.tags.GetTag(ctx, slug); err == nil {
		return existing, nil
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	now := s.now().UTC()
	tag := &model.Tag{
		Name:        slug,
		DisplayName: displayName,
		Kind:        kind,
		SuggestedBy: caller.ID,
		CreatedAt:   now,
		LastUpdated: now,
	}
	if err := s.tags.CreateTag(ctx, tag); err != nil {
		s.logger.Error("failed to create tag",
			slog.String("name", slug),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating tag: %w", err)
	}

	s.logger.Info("tag created",
		slog.String("name", tag.Name),
		slog.String("kind", string(tag.Kind)),
		slog.Int64("suggested_by", caller.ID),
	)

	return tag, nil
}

// Rename moves a tag to a new slug, rewriting every reference. Primary
// tags may only be renamed by the owner; the route guard already limits
// callers to admins.
func (s *TagService) Rename(ctx context.Context, caller *model.User, name, newDisplayName string) (*model.Tag, error) {
	old, err := s.tags.GetTag(ctx, model.Slugify(name))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMsg("Tag was not found.")
		}
		return nil, err
	}

	if old.Kind == model.TagPrimary && caller.Status != model.StatusOwner {
		return nil, apperror.Forbidden("Owner only.")
	}

	newDisplayName = strings.TrimSpace(newDisplayName)
	if newDisplayName == "" {
		return nil, apperror.ValidationFailed("display_name", "Tag name can't be empty.")
	}
	if len(newDisplayName) > model.MaxTagDisplayNameLength {
		return nil, apperror.ValidationFailed("display_name", "Tag name can't be more than 25 characters.")
	}

	newSlug := model.Slugify(newDisplayName)
	if newSlug == old.Name {
		return nil, apperror.ValidationFailed("display_name", "Nothing is being updated.")
	}
	if _, err := s.tags.GetTag(ctx, newSlug); err == nil {
		return nil, apperror.ValidationFailed("display_name", "Tag already exists.")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	// The renamed tag keeps its original suggester and creation time.
	newTag := &model.Tag{
		Name:        newSlug,
		DisplayName: newDisplayName,
		Kind:        old.Kind,
		SuggestedBy: old.SuggestedBy,
		CreatedAt:   old.CreatedAt,
		LastUpdated: s.now().UTC(),
	}
	entry := &model.Log{
		Action:    fmt.Sprintf("update (%s -> %s)", old.Name, newSlug),
		Target:    model.TagTarget(newSlug),
		EnactedBy: caller.ID,
	}
	if err := s.tags.RenameTag(ctx, old, newTag, entry); err != nil {
		s.logger.Error("failed to rename tag",
			slog.String("old", old.Name),
			slog.String("new", newSlug),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("renaming tag: %w", err)
	}

	s.logger.Info("tag renamed",
		slog.String("old", old.Name),
		slog.String("new", newSlug),
		slog.Int64("enacted_by", caller.ID),
	)

	return newTag, nil
}

// Delete removes a tag. user_gen tags drop their repository references;
// primary tags are owner-only and every repository using them is
// re-pointed to the mandatory replacement first.
func (s *TagService) Delete(ctx context.Context, caller *model.User, name, replacement string) error {
	tag, err := s.tags.GetTag(ctx, model.Slugify(name))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotFoundMsg("Tag was not found.")
		}
		return err
	}

	entry := &model.Log{
		Action:    "delete",
		Target:    model.TagTarget(tag.Name),
		EnactedBy: caller.ID,
	}

	if tag.Kind == model.TagUserGen {
		if err := s.tags.DeleteUserTag(ctx, tag.Name, entry); err != nil {
			return fmt.Errorf("deleting tag %s: %w", tag.Name, err)
		}
		s.logger.Info("tag deleted", slog.String("name", tag.Name), slog.Int64("enacted_by", caller.ID))
		return nil
	}

	if caller.Status != model.StatusOwner {
		return apperror.Forbidden("Owner only.")
	}
	replacementSlug := model.Slugify(replacement)
	if replacementSlug == "" {
		return apperror.ValidationFailed("replacement", "A replacement tag is required to delete a primary tag.")
	}
	if replacementSlug == tag.Name {
		return apperror.ValidationFailed("replacement", "The replacement tag must differ from the tag being deleted.")
	}

	if err := s.tags.DeletePrimaryTag(ctx, tag.Name, replacementSlug, entry); err != nil {
		return fmt.Errorf("deleting primary tag %s: %w", tag.Name, err)
	}

	s.logger.Info("primary tag deleted",
		slog.String("name", tag.Name),
		slog.String("replacement", replacementSlug),
		slog.Int64("enacted_by", caller.ID),
	)

	return nil
}
