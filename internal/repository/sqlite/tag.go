package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gitinspire/gitinspire-server/internal/apperror"
	"github.com/gitinspire/gitinspire-server/internal/model"
	"github.com/gitinspire/gitinspire-server/internal/repository"
)

var _ repository.TagRepository = (*DB)(nil)

func (db *DB) CreateTag(ctx context.Context, tag *model.Tag) error {
	now := time.Now().UTC()
	tag.CreatedAt = now
	tag.LastUpdated = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO tags (name, display_name, kind, suggested_by, created_at, last_updated)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tag.Name,
		tag.DisplayName,
		string(tag.Kind),
		tag.SuggestedBy,
		tag.CreatedAt,
		tag.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating tag %s: %w", tag.Name, err)
	}

	return nil
}

func (db *DB) GetTag(ctx context.Context, name string) (*model.Tag, error) {
	return getTag(ctx, db.conn, name)
}

// querier covers both *sql.DB and *sql.Tx so lookups can run inside or
// outside a transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTag(ctx context.Context, q querier, name string) (*model.Tag, error) {
	var t model.Tag
	var kind string

	err := q.QueryRowContext(ctx,
		`SELECT name, display_name, kind, suggested_by, created_at, last_updated
		 FROM tags WHERE name = ?`,
		name,
	).Scan(&t.Name, &t.DisplayName, &kind, &t.SuggestedBy, &t.CreatedAt, &t.LastUpdated)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("tag", name)
		}
		return nil, fmt.Errorf("sqlite: getting tag %s: %w", name, err)
	}
	t.Kind = model.TagKind(kind)

	return &t, nil
}

func (db *DB) ListTags(ctx context.Context, kind model.TagKind) ([]model.Tag, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT name, display_name, kind, suggested_by, created_at, last_updated
		 FROM tags WHERE kind = ? ORDER BY name`,
		string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing %s tags: %w", kind, err)
	}
	defer rows.Close()

	tags := []model.Tag{}
	for rows.Next() {
		var t model.Tag
		var k string
		if err := rows.Scan(&t.Name, &t.DisplayName, &k, &t.SuggestedBy, &t.CreatedAt, &t.LastUpdated); err != nil {
			return nil, fmt.Errorf("sqlite: scanning tag row: %w", err)
		}
		t.Kind = model.TagKind(k)
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tags: %w", err)
	}

	return tags, nil
}

// ListTagsBySuggester returns every tag the user suggested, in slug
// order.
func (db *DB) ListTagsBySuggester(ctx context.Context, userID int64) ([]model.Tag, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT name, display_name, kind, suggested_by, created_at, last_updated
		 FROM tags WHERE suggested_by = ? ORDER BY name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tags suggested by %d: %w", userID, err)
	}
	defer rows.Close()

	tags := []model.Tag{}
	for rows.Next() {
		var t model.Tag
		var k string
		if err := rows.Scan(&t.Name, &t.DisplayName, &k, &t.SuggestedBy, &t.CreatedAt, &t.LastUpdated); err != nil {
			return nil, fmt.Errorf("sqlite: scanning tag row: %w", err)
		}
		t.Kind = model.TagKind(k)
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tags: %w", err)
	}

	return tags, nil
}

// RenameTag performs the full rename cascade in one transaction: insert
// the tag under its new slug, rewrite every referencing row, delete the
// old row, and append the audit entry.
func (db *DB) RenameTag(ctx context.Context, oldTag, newTag *model.Tag, entry *model.Log) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		newTag.CreatedAt = now
		newTag.LastUpdated = now

		_, err := tx.ExecContext(ctx,
			`INSERT INTO tags (name, display_name, kind, suggested_by, created_at, last_updated)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			newTag.Name, newTag.DisplayName, string(newTag.Kind),
			newTag.SuggestedBy, newTag.CreatedAt, newTag.LastUpdated,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting renamed tag %s: %w", newTag.Name, err)
		}

		// Primary tags live on the repository row itself; user_gen tags
		// live in the join table.
		if oldTag.Kind == model.TagPrimary {
			_, err = tx.ExecContext(ctx,
				`UPDATE repositories SET primary_tag = ? WHERE primary_tag = ?`,
				newTag.Name, oldTag.Name,
			)
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE repository_tags SET tag_name = ? WHERE tag_name = ?`,
				newTag.Name, oldTag.Name,
			)
		}
		if err != nil {
			return fmt.Errorf("sqlite: rewriting references %s -> %s: %w", oldTag.Name, newTag.Name, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE name = ?`, oldTag.Name); err != nil {
			return fmt.Errorf("sqlite: deleting old tag %s: %w", oldTag.Name, err)
		}

		return insertLog(tx, entry)
	})
}

func (db *DB) DeleteUserTag(ctx context.Context, name string, entry *model.Log) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM repository_tags WHERE tag_name = ?`, name); err != nil {
			return fmt.Errorf("sqlite: deleting tag associations for %s: %w", name, err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE name = ?`, name)
		if err != nil {
			return fmt.Errorf("sqlite: deleting tag %s: %w", name, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return apperror.NotFound("tag", name)
		}

		return insertLog(tx, entry)
	})
}

// DeletePrimaryTag re-points every repository carrying name to the
// replacement before deleting the tag, so no repository is ever left
// without a primary tag.
func (db *DB) DeletePrimaryTag(ctx context.Context, name, replacement string, entry *model.Log) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getTag(ctx, tx, replacement); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			`UPDATE repositories SET primary_tag = ? WHERE primary_tag = ?`,
			replacement, name,
		)
		if err != nil {
			return fmt.Errorf("sqlite: re-pointing repositories %s -> %s: %w", name, replacement, err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE name = ?`, name)
		if err != nil {
			return fmt.Errorf("sqlite: deleting tag %s: %w", name, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return apperror.NotFound("tag", name)
		}

		return insertLog(tx, entry)
	})
}
