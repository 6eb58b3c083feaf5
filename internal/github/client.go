// Package github wraps the GitHub REST API surface this service consumes:
// repository metadata, per-repository language breakdowns, and user
// profiles. All access is read-only; the OAuth code exchange lives in
// internal/auth.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v57/github"
)

// Sentinel errors callers branch on. The service layer translates these
// into the 410/500 responses of the refresh protocol.
var (
	// ErrGone means the upstream resource returned 404: it no longer
	// exists (or is no longer visible) on GitHub.
	ErrGone = errors.New("github: resource gone upstream")
	// ErrNotModified means the upstream resource has not changed since
	// the timestamp supplied in the conditional request.
	ErrNotModified = errors.New("github: not modified")
	// ErrRateLimited covers 403 and 422: rate limit hit, validation
	// failed, or the endpoint has been spammed.
	ErrRateLimited = errors.New("github: rate limited or rejected")
)

// RepoInfo is the slice of GitHub's repository object this service keeps.
type RepoInfo struct {
	ID          int64
	Author      string
	Name        string
	Description string
	Stars       int
}

// UserInfo is the slice of GitHub's user object this service keeps.
type UserInfo struct {
	ID        int64
	Login     string
	AvatarURL string
	CreatedAt time.Time
}

// Client is the read-only GitHub surface the lifecycle managers depend
// on. Tests substitute a fake.
type Client interface {
	GetRepository(ctx context.Context, owner, name string) (*RepoInfo, error)
	// GetRepositoryByID refreshes by GitHub id. A non-zero since makes
	// the request conditional; an unchanged resource yields ErrNotModified.
	GetRepositoryByID(ctx context.Context, id int64, since time.Time) (*RepoInfo, error)
	// ListLanguages returns the byte count per language.
	ListLanguages(ctx context.Context, owner, name string) (map[string]int, error)
	GetUserByID(ctx context.Context, id int64, since time.Time) (*UserInfo, error)
}

// RESTClient implements Client on google/go-github, authenticated with
// the OAuth app's client credentials for the higher rate limit.
type RESTClient struct {
	gh *github.Client
}

var _ Client = (*RESTClient)(nil)

// NewRESTClient builds a client. With empty credentials requests are
// anonymous (fine for tests, rate-limited in production).
func NewRESTClient(clientID, clientSecret string) *RESTClient {
	var httpClient *http.Client
	if clientID != "" {
		tr := &github.BasicAuthTransport{Username: clientID, Password: clientSecret}
		httpClient = tr.Client()
	}
	return &RESTClient{gh: github.NewClient(httpClient)}
}

func (c *RESTClient) GetRepository(ctx context.Context, owner, name string) (*RepoInfo, error) {
	repo, resp, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, mapError(resp, err)
	}
	return repoInfo(repo), nil
}

func (c *RESTClient) GetRepositoryByID(ctx context.Context, id int64, since time.Time) (*RepoInfo, error) {
	req, err := c.gh.NewRequest("GET", fmt.Sprintf("repositories/%d", id), nil)
	if err != nil {
		return nil, fmt.Errorf("github: building repository request: %w", err)
	}
	if !since.IsZero() {
		req.Header.Set("If-Modified-Since", since.UTC().Format(http.TimeFormat))
	}

	repo := new(github.Repository)
	resp, err := c.gh.Do(ctx, req, repo)
	if err != nil {
		return nil, mapError(resp, err)
	}
	return repoInfo(repo), nil
}

func (c *RESTClient) ListLanguages(ctx context.Context, owner, name string) (map[string]int, error) {
	langs, resp, err := c.gh.Repositories.ListLanguages(ctx, owner, name)
	if err != nil {
		return nil, mapError(resp, err)
	}
	return langs, nil
}

func (c *RESTClient) GetUserByID(ctx context.Context, id int64, since time.Time) (*UserInfo, error) {
	req, err := c.gh.NewRequest("GET", fmt.Sprintf("user/%d", id), nil)
	if err != nil {
		return nil, fmt.Errorf("github: building user request: %w", err)
	}
	if !since.IsZero() {
		req.Header.Set("If-Modified-Since", since.UTC().Format(http.TimeFormat))
	}

	user := new(github.User)
	resp, err := c.gh.Do(ctx, req, user)
	if err != nil {
		return nil, mapError(resp, err)
	}

	return &UserInfo{
		ID:        user.GetID(),
		Login:     user.GetLogin(),
		AvatarURL: user.GetAvatarURL(),
		CreatedAt: user.GetCreatedAt().Time,
	}, nil
}

func repoInfo(repo *github.Repository) *RepoInfo {
	return &RepoInfo{
		ID:          repo.GetID(),
		Author:      repo.GetOwner().GetLogin(),
		Name:        repo.GetName(),
		Description: repo.GetDescription(),
		Stars:       repo.GetStargazersCount(),
	}
}

// mapError translates go-github errors into the sentinel taxonomy. Rate
// limit codes are read but deliberately not reacted to beyond failing the
// request.
func mapError(resp *github.Response, err error) error {
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusNotModified:
			return ErrNotModified
		case http.StatusNotFound:
			return ErrGone
		case http.StatusForbidden, http.StatusUnprocessableEntity:
			return ErrRateLimited
		}
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return ErrRateLimited
	}
	return fmt.Errorf("github: request failed: %w", err)
}
