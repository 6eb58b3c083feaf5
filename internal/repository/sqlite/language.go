package sqlite

import (
	"context"
	"fmt"

	"github.com/gitinspire/gitinspire-server/internal/model"
	"github.com/gitinspire/gitinspire-server/internal/repository"
)

var _ repository.LanguageRepository = (*DB)(nil)

// EnsureLanguages lazily creates any languages not seen before. Existing
// rows keep their display name; languages are immutable once created.
func (db *DB) EnsureLanguages(ctx context.Context, langs []model.Language) error {
	for _, lang := range langs {
		_, err := db.conn.ExecContext(ctx,
			`INSERT OR IGNORE INTO languages (name, display_name) VALUES (?, ?)`,
			lang.Name, lang.DisplayName,
		)
		if err != nil {
			return fmt.Errorf("sqlite: ensuring language %s: %w", lang.Name, err)
		}
	}
	return nil
}

func (db *DB) ListLanguages(ctx context.Context) ([]model.Language, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT name, display_name FROM languages ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing languages: %w", err)
	}
	defer rows.Close()

	langs := []model.Language{}
	for rows.Next() {
		var l model.Language
		if err := rows.Scan(&l.Name, &l.DisplayName); err != nil {
			return nil, fmt.Errorf("sqlite: scanning language row: %w", err)
		}
		langs = append(langs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating languages: %w", err)
	}

	return langs, nil
}
