package model

import (
	"fmt"
	"strconv"
)

// TargetKind names the entity class a report or audit log entry points at.
type TargetKind string

const (
	TargetRepository TargetKind = "repository"
	TargetTag        TargetKind = "tag"
	TargetUser       TargetKind = "user"
)

func (k TargetKind) Valid() bool {
	switch k {
	case TargetRepository, TargetTag, TargetUser:
		return true
	}
	return false
}

// Target is a tagged reference to exactly one of a repository (by id), a
// tag (by slug), or a user (by id). Constructing it through the typed
// helpers makes the "exactly one of repo_id/tag_name is set" convention
// of the reports and logs tables impossible to violate.
type Target struct {
	kind     TargetKind
	repoID   int64
	tagName  string
	userID   int64
}

func RepositoryTarget(id int64) Target {
	return Target{kind: TargetRepository, repoID: id}
}

func TagTarget(slug string) Target {
	return Target{kind: TargetTag, tagName: slug}
}

func UserTarget(id int64) Target {
	return Target{kind: TargetUser, userID: id}
}

// ParseTarget reconstructs a Target from its stored (type, content_id)
// pair.
func ParseTarget(kind TargetKind, contentID string) (Target, error) {
	switch kind {
	case TargetTag:
		if contentID == "" {
			return Target{}, fmt.Errorf("model: tag target needs a tag name")
		}
		return TagTarget(contentID), nil
	case TargetRepository, TargetUser:
		id, err := strconv.ParseInt(contentID, 10, 64)
		if err != nil {
			return Target{}, fmt.Errorf("model: %s target needs a numeric id: %w", kind, err)
		}
		if kind == TargetRepository {
			return RepositoryTarget(id), nil
		}
		return UserTarget(id), nil
	default:
		return Target{}, fmt.Errorf("model: %q is an invalid target type", kind)
	}
}

func (t Target) Kind() TargetKind { return t.kind }

func (t Target) IsZero() bool { return t.kind == "" }

// ContentID is the string form persisted in the content_id column.
func (t Target) ContentID() string {
	switch t.kind {
	case TargetRepository:
		return strconv.FormatInt(t.repoID, 10)
	case TargetTag:
		return t.tagName
	case TargetUser:
		return strconv.FormatInt(t.userID, 10)
	default:
		return ""
	}
}

// RepoID returns the repository id and whether this target is one.
func (t Target) RepoID() (int64, bool) {
	return t.repoID, t.kind == TargetRepository
}

// TagName returns the tag slug and whether this target is one.
func (t Target) TagName() (string, bool) {
	return t.tagName, t.kind == TargetTag
}

// UserID returns the user id and whether this target is one.
func (t Target) UserID() (int64, bool) {
	return t.userID, t.kind == TargetUser
}
