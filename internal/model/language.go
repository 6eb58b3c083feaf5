package model

// Language is a programming language observed on GitHub. Rows are created
// lazily the first time a suggested repository reports the language, and
// never mutated afterwards.
type Language struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}
