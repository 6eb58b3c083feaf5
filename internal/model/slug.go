package model

import "strings"

// Slugify converts a display name into its stable key form: lowercased,
// trimmed, with runs of whitespace collapsed to single underscores.
// Punctuation survives, so "C++" slugifies to "c++" rather than "c".
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "_")
}
