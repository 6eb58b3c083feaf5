package model

import (
	"fmt"
	"time"
)

// TagKind separates the single mandatory classifier on a repository
// (primary) from free-form descriptive labels (user_gen).
type TagKind string

const (
	TagPrimary TagKind = "primary"
	TagUserGen TagKind = "user_gen"
)

func (k TagKind) Valid() bool {
	return k == TagPrimary || k == TagUserGen
}

func ParseTagKind(v string) (TagKind, error) {
	k := TagKind(v)
	if !k.Valid() {
		return "", fmt.Errorf("model: %q is an invalid tag type", v)
	}
	return k, nil
}

// Tag is keyed by its slug (Name); DisplayName keeps the original casing.
type Tag struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Kind        TagKind   `json:"type"`
	SuggestedBy int64     `json:"suggested_by"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// MaxTagDisplayNameLength caps suggested tag names.
const MaxTagDisplayNameLength = 25
