package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubUser is the portion of the GitHub /user response the service
// keeps. GitHub returns a much larger object.
type GitHubUser struct {
	ID        int64     `json:"id"`
	Login     string    `json:"login"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

// OAuthProvider exchanges an authorization code for a GitHub profile.
// Tests substitute a fake.
type OAuthProvider interface {
	Exchange(ctx context.Context, code string) (*GitHubUser, error)
}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization
// Code flow. The frontend drives the redirect; this side only performs
// the server-to-server code exchange.
type GitHubProvider struct {
	config *oauth2.Config
}

var _ OAuthProvider = (*GitHubProvider)(nil)

// NewGitHubProvider creates a GitHubProvider. redirectURL must match the
// OAuth app's registered callback URL exactly.
func NewGitHubProvider(clientID, clientSecret, redirectURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user"},
			Endpoint:     github.Endpoint,
		},
	}
}

// Exchange trades the authorization code for an access token, then calls
// the /user endpoint for the profile behind it. The OAuth token itself is
// discarded once the profile is fetched; sessions are our own JWTs.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get("https://api.github.com/user")
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var ghUser GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&ghUser); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}

	if ghUser.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	return &ghUser, nil
}
