package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gitinspire/gitinspire-server/internal/apperror"
	"github.com/gitinspire/gitinspire-server/internal/auth"
	"github.com/gitinspire/gitinspire-server/internal/model"
	"github.com/gitinspire/gitinspire-server/internal/repository"
)

// SessionTokens is a freshly issued token pair plus the CSRF value the
// client must echo in the X-CSRF-Token header.
type SessionTokens struct {
	Access  string
	Refresh string
	CSRF    string
}

// AuthService completes GitHub logins and issues sessions.
type AuthService struct {
	provider auth.OAuthProvider
	tokens   *auth.TokenService
	users    repository.UserRepository
	ownerID  int64
	logger   *slog.Logger
}

func NewAuthService(
	provider auth.OAuthProvider,
	tokens *auth.TokenService,
	users repository.UserRepository,
	ownerID int64,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		provider: provider,
		tokens:   tokens,
		users:    users,
		ownerID:  ownerID,
		logger:   logger,
	}
}

// Authenticate exchanges an OAuth authorization code, upserts the user,
// and issues a session. First login defaults to status user (owner for
// the configured owner id); an existing row, including a banned one,
// is returned exactly as stored, so logging in never lifts a ban.
func (s *AuthService) Authenticate(ctx context.Context, code string) (*model.User, *SessionTokens, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil, apperror.ValidationFailed("code", "An authorization code is required.")
	}

	ghUser, err := s.provider.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("OAuth code exchange failed", slog.String("error", err.Error()))
		return nil, nil, apperror.Unauthorized("GitHub authentication failed.")
	}

	status := model.StatusUser
	if ghUser.ID == s.ownerID {
		status = model.StatusOwner
	}

	user, err := s.users.EnsureUser(ctx, &model.User{
		ID:              ghUser.ID,
		Username:        ghUser.Login,
		AvatarURL:       ghUser.AvatarURL,
		GitHubCreatedAt: ghUser.CreatedAt,
		Status:          status,
	})
	if err != nil {
		return nil, nil, err
	}

	tokens, err := s.issue(user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("user authenticated",
		slog.Int64("id", user.ID),
		slog.String("username", user.Username),
	)

	return user, tokens, nil
}

// RefreshSession trades a valid refresh token for a fresh token pair.
func (s *AuthService) RefreshSession(ctx context.Context, refreshToken string) (*model.User, *SessionTokens, error) {
	userID, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, nil, apperror.Unauthorized("User is not authenticated.")
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, apperror.Unauthorized("User is not authenticated.")
	}

	tokens, err := s.issue(user.ID)
	if err != nil {
		return nil, nil, err
	}

	return user, tokens, nil
}

func (s *AuthService) issue(userID int64) (*SessionTokens, error) {
	access, csrf, err := s.tokens.GenerateAccess(userID)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.GenerateRefresh(userID)
	if err != nil {
		return nil, err
	}
	return &SessionTokens{Access: access, Refresh: refresh, CSRF: csrf}, nil
}
