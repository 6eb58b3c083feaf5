package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Repository is a GitHub repository suggested by a user. The primary key
// is GitHub's numeric repository id. PrimaryTag is required; application
// logic guarantees every repository always carries exactly one.
type Repository struct {
	ID           int64     `json:"id"`
	Author       string    `json:"author"`
	Name         string    `json:"repo_name"`
	Description  string    `json:"description"`
	Stars        int       `json:"stars"`
	MaintainLink string    `json:"maintain_link,omitempty"`
	PrimaryTag   Tag       `json:"primary_tag"`
	Languages    []string  `json:"languages"` // slugs, dominant language first
	Tags         []Tag     `json:"tags"`
	SuggestedBy  int64     `json:"suggested_by"`
	LastUpdated  time.Time `json:"last_updated"`
}

// Link derives the GitHub URL from author and name. It is never stored.
func (r *Repository) Link() string {
	return fmt.Sprintf("https://github.com/%s/%s", r.Author, r.Name)
}

// MarshalJSON includes the derived repo_link alongside the stored fields.
func (r Repository) MarshalJSON() ([]byte, error) {
	type alias Repository
	return json.Marshal(struct {
		alias
		RepoLink string `json:"repo_link"`
	}{alias(r), r.Link()})
}

// RepoLanguage is a row of the repository/language join relation. Exactly
// one row per repository has IsPrimary set: the language with the most
// bytes in GitHub's breakdown.
type RepoLanguage struct {
	RepoID       int64  `json:"repo_id"`
	LanguageName string `json:"language_name"`
	IsPrimary    bool   `json:"is_primary"`
}

// RepoTag is a row of the repository/tag join relation for the
// non-primary descriptive tags.
type RepoTag struct {
	RepoID  int64  `json:"repo_id"`
	TagName string `json:"tag_name"`
}
