package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gitinspire/gitinspire-server/internal/apperror"
	"github.com/gitinspire/gitinspire-server/internal/github"
	"github.com/gitinspire/gitinspire-server/internal/model"
	"github.com/gitinspire/gitinspire-server/internal/repository"
)

// UserService manages mirrored GitHub accounts: profile refresh and the
// moderation status machine.
type UserService struct {
	users  repository.UserRepository
	repos  repository.RepoRepository
	tags   repository.TagRepository
	github github.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewUserService(users repository.UserRepository, repos repository.RepoRepository, tags repository.TagRepository, gh github.Client, logger *slog.Logger) *UserService {
	return &UserService{
		users:  users,
		repos:  repos,
		tags:   tags,
		github: gh,
		logger: logger,
		now:    time.Now,
	}
}

func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	return s.users.GetUser(ctx, id)
}

// Contributions gathers everything the user has suggested. Both slices
// are present even when empty.
func (s *UserService) Contributions(ctx context.Context, id int64) (*model.Contributions, error) {
	repos, err := s.repos.ListReposBySuggester(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing repositories suggested by %d: %w", id, err)
	}
	tags, err := s.tags.ListTagsBySuggester(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing tags suggested by %d: %w", id, err)
	}
	return &model.Contributions{SuggestedRepos: repos, SuggestedTags: tags}, nil
}

func (s *UserService) Banned(ctx context.Context) ([]model.User, error) {
	return s.users.ListBannedUsers(ctx)
}

// Refresh re-syncs a mirrored profile with GitHub, subject to the same
// staleness window as repositories. Unlike repositories, a user that
// disappeared upstream is kept locally so suggestion history stays
// attributable; the caller just gets 410.
func (s *UserService) Refresh(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMsg("User was not found.")
		}
		return nil, err
	}

	now := s.now()
	if now.Sub(user.LastUpdated) < RefreshStaleness {
		return user, nil
	}

	info, err := s.github.GetUserByID(ctx, id, user.LastUpdated)
	switch {
	case errors.Is(err, github.ErrNotModified):
		if err := s.users.TouchUser(ctx, id); err != nil {
			return nil, err
		}
		user.LastUpdated = now.UTC()
		return user, nil

	case errors.Is(err, github.ErrGone):
		return nil, apperror.Gone("User is no longer accessible on GitHub.")

	case err != nil:
		s.logger.Warn("GitHub user refresh failed",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Upstream("Unable to refresh user from GitHub.")
	}

	if err := s.users.UpdateUserProfile(ctx, id, info.Login, info.AvatarURL); err != nil {
		return nil, fmt.Errorf("refreshing user %d: %w", id, err)
	}

	return s.users.GetUser(ctx, id)
}

// UpdateStatus applies a moderation decision. The self-protecting
// hierarchy: nobody updates themselves, only the owner touches admins
// (including promoting to admin), and owners are untouchable.
func (s *UserService) UpdateStatus(ctx context.Context, caller *model.User, id int64, statusStr, banReason string) (*model.User, error) {
	if caller.ID == id {
		return nil, apperror.ValidationFailed("id", "You cannot update yourself.")
	}

	status, err := model.ParseAccountStatus(strings.TrimSpace(statusStr))
	if err != nil || (status != model.StatusUser && status != model.StatusBanned && status != model.StatusAdmin) {
		return nil, apperror.ValidationFailed("account_status", "Invalid account status.")
	}

	target, err := s.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMsg("User was not found.")
		}
		return nil, err
	}

	if target.Status.Level() >= model.StatusAdmin.Level() && caller.Status != model.StatusOwner {
		return nil, apperror.ValidationFailed("id", "You don't have permission to update this user.")
	}
	if target.Status == model.StatusOwner {
		return nil, apperror.ValidationFailed("id", "You don't have permission to update this user.")
	}
	if status == model.StatusAdmin && caller.Status != model.StatusOwner {
		return nil, apperror.ValidationFailed("account_status", "You don't have permission to update this user.")
	}

	banReason = strings.TrimSpace(banReason)
	if status != model.StatusBanned {
		banReason = ""
	}
	if status == target.Status && banReason == target.BanReason {
		return nil, apperror.ValidationFailed("", "Nothing is being updated.")
	}

	action := fmt.Sprintf("update (%s -> %s)", target.Status, status)
	if status == target.Status {
		action = "update (ban reason)"
	}
	entry := &model.Log{
		Action:    action,
		Target:    model.UserTarget(id),
		EnactedBy: caller.ID,
	}
	if err := s.users.UpdateUserStatus(ctx, id, status, banReason, entry); err != nil {
		return nil, fmt.Errorf("updating user %d status: %w", id, err)
	}

	s.logger.Info("user status updated",
		slog.Int64("id", id),
		slog.String("status", string(status)),
		slog.Int64("enacted_by", caller.ID),
	)

	return s.users.GetUser(ctx, id)
}
