// Package repository defines the storage interfaces the service layer
// depends on. The sqlite subpackage provides the concrete implementation;
// tests substitute in-memory fakes.
package repository

import (
	"context"

	"github.com/gitinspire/gitinspire-server/internal/model"
)

// SortKey names the recognized sort columns for repository filtering.
// The zero value means "no explicit sort": rows come back in id order.
type SortKey string

const (
	SortNone  SortKey = ""
	SortStars SortKey = "stars"
	SortDate  SortKey = "date"
)

// FilterOptions is the composed predicate set for repository listing.
// Tags and Languages use AND semantics: a repository must carry every
// listed value to match.
type FilterOptions struct {
	Limit       int
	Page        int // 1-indexed
	MinStars    int
	MaxStars    int
	HasMaxStars bool
	PrimaryTag  string
	Tags        []string
	Languages   []string
	Sort        SortKey
	Descending  bool
}

type LanguageRepository interface {
	// EnsureLanguages creates any of the given languages that do not
	// exist yet. Existing rows are left untouched.
	EnsureLanguages(ctx context.Context, langs []model.Language) error
	ListLanguages(ctx context.Context) ([]model.Language, error)
}

type TagRepository interface {
	CreateTag(ctx context.Context, tag *model.Tag) error
	// GetTag returns the tag for the given slug, or apperror.ErrNotFound.
	GetTag(ctx context.Context, name string) (*model.Tag, error)
	ListTags(ctx context.Context, kind model.TagKind) ([]model.Tag, error)
	// ListTagsBySuggester returns every tag the user suggested.
	ListTagsBySuggester(ctx context.Context, userID int64) ([]model.Tag, error)
	// RenameTag inserts newTag, rewrites every reference from oldTag's
	// slug to newTag's, deletes oldTag, and appends the audit entry, all
	// in one transaction.
	RenameTag(ctx context.Context, oldTag, newTag *model.Tag, entry *model.Log) error
	// DeleteUserTag removes a user_gen tag and its RepoTag rows.
	DeleteUserTag(ctx context.Context, name string, entry *model.Log) error
	// DeletePrimaryTag re-points every repository using name to
	// replacement, then deletes the tag.
	DeletePrimaryTag(ctx context.Context, name, replacement string, entry *model.Log) error
}

type UserRepository interface {
	// EnsureUser creates the user if absent and returns the canonical
	// row. Existing rows, including banned ones, are returned as-is.
	EnsureUser(ctx context.Context, user *model.User) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	ListBannedUsers(ctx context.Context) ([]model.User, error)
	// TouchUser bumps last_updated without any semantic change.
	TouchUser(ctx context.Context, id int64) error
	UpdateUserProfile(ctx context.Context, id int64, username, avatarURL string) error
	// UpdateUserStatus changes status and ban reason and appends the
	// audit entry in one transaction.
	UpdateUserStatus(ctx context.Context, id int64, status model.AccountStatus, banReason string, entry *model.Log) error
}

type RepoRepository interface {
	// CreateRepo inserts the repository row plus its language and tag
	// join rows in one transaction.
	CreateRepo(ctx context.Context, repo *model.Repository, langs []model.RepoLanguage, tags []model.RepoTag) error
	GetRepo(ctx context.Context, id int64) (*model.Repository, error)
	// FilterRepos returns the matching page and the total match count.
	FilterRepos(ctx context.Context, opts FilterOptions) ([]model.Repository, int, error)
	// ListReposBySuggester returns every repository the user suggested.
	ListReposBySuggester(ctx context.Context, userID int64) ([]model.Repository, error)
	RandomRepo(ctx context.Context) (*model.Repository, error)
	// RefreshRepo overwrites the GitHub-sourced scalar fields and fully
	// replaces the language join set.
	RefreshRepo(ctx context.Context, repo *model.Repository, langs []model.RepoLanguage) error
	// UpdateRepoCuration replaces primary tag, tag set, and maintain
	// link, and appends the audit entry, in one transaction.
	UpdateRepoCuration(ctx context.Context, id int64, primaryTag string, tags []model.RepoTag, maintainLink string, entry *model.Log) error
	TouchRepo(ctx context.Context, id int64) error
	// DeleteRepo cascades join-row deletion, deletes the repository, and
	// appends the audit entry in one transaction.
	DeleteRepo(ctx context.Context, id int64, entry *model.Log) error
}

type ReportRepository interface {
	CreateReport(ctx context.Context, report *model.Report) error
	ListReports(ctx context.Context) ([]model.Report, error)
	GetReport(ctx context.Context, id int64) (*model.Report, error)
	DeleteReport(ctx context.Context, id int64, entry *model.Log) error
}

type LogRepository interface {
	CreateLog(ctx context.Context, entry *model.Log) error
	// ListLogs returns the requested page, newest first, plus the total
	// entry count.
	ListLogs(ctx context.Context, limit, page int) ([]model.Log, int, error)
}
