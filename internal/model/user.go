package model

import (
	"fmt"
	"time"
)

// AccountStatus is the closed set of user account states. It is stored,
// transported, and validated as this type at every layer, never as a raw
// string.
type AccountStatus string

const (
	StatusBanned AccountStatus = "banned"
	StatusUser   AccountStatus = "user"
	StatusBot    AccountStatus = "bot"
	StatusAdmin  AccountStatus = "admin"
	StatusOwner  AccountStatus = "owner"
)

// Level returns the ordinal used for permission comparisons. The gaps are
// deliberate: admin starts at 50, owner at 100, leaving room between.
// Unknown statuses map to 0 and therefore fail every threshold check.
func (s AccountStatus) Level() int {
	switch s {
	case StatusBanned:
		return 1
	case StatusUser:
		return 2
	case StatusBot:
		return 3
	case StatusAdmin:
		return 50
	case StatusOwner:
		return 100
	default:
		return 0
	}
}

func (s AccountStatus) Valid() bool {
	return s.Level() > 0
}

// ParseAccountStatus validates a wire value into an AccountStatus.
func ParseAccountStatus(v string) (AccountStatus, error) {
	s := AccountStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("model: %q is an invalid account status", v)
	}
	return s, nil
}

// BotUserID is the sentinel account used to attribute automated actions,
// such as deleting repositories that disappeared from GitHub.
const BotUserID int64 = -1

// User is a GitHub account mirrored locally. The primary key is GitHub's
// numeric user id, so there is no separate internal id to reconcile.
type User struct {
	ID              int64         `json:"id"`
	Username        string        `json:"username"`
	AvatarURL       string        `json:"avatar_url"`
	GitHubCreatedAt time.Time     `json:"github_created_at"`
	Status          AccountStatus `json:"account_status"`
	BanReason       string        `json:"ban_reason,omitempty"`
	LastUpdated     time.Time     `json:"last_updated"`
}

// Redacted returns a copy with the ban reason hidden. Handlers use this
// when the caller is not an admin or owner.
func (u User) Redacted() User {
	u.BanReason = ""
	return u
}

// Contributions collects everything a user has suggested, for the
// profile page.
type Contributions struct {
	SuggestedRepos []Repository `json:"suggested_repos"`
	SuggestedTags  []Tag        `json:"suggested_tags"`
}

// OlderThanMonths reports whether the GitHub account was created at least
// months*30 days ago. Deliberately calendar-coarse.
func (u *User) OlderThanMonths(months int, now time.Time) bool {
	return !u.GitHubCreatedAt.After(now.AddDate(0, 0, -months*30))
}
