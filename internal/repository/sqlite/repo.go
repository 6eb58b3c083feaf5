package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gitinspire/gitinspire-server/internal/apperror"
	"github.com/gitinspire/gitinspire-server/internal/model"
	"github.com/gitinspire/gitinspire-server/internal/repository"
)

var _ repository.RepoRepository = (*DB)(nil)

// CreateRepo inserts the repository row, its language join rows, and its
// tag join rows in one transaction: either the whole suggestion lands or
// none of it does.
func (db *DB) CreateRepo(ctx context.Context, repo *model.Repository, langs []model.RepoLanguage, tags []model.RepoTag) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		repo.LastUpdated = time.Now().UTC()

		_, err := tx.ExecContext(ctx,
			`INSERT INTO repositories (id, author, name, description, stars, maintain_link, primary_tag, suggested_by, last_updated)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			repo.ID,
			repo.Author,
			repo.Name,
			repo.Description,
			repo.Stars,
			repo.MaintainLink,
			repo.PrimaryTag.Name,
			repo.SuggestedBy,
			repo.LastUpdated,
		)
		if err != nil {
			return fmt.Errorf("sqlite: creating repository %d: %w", repo.ID, err)
		}

		if err := insertRepoLanguages(ctx, tx, langs); err != nil {
			return err
		}

		for _, t := range tags {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO repository_tags (repo_id, tag_name) VALUES (?, ?)`,
				t.RepoID, t.TagName,
			)
			if err != nil {
				return fmt.Errorf("sqlite: creating tag association %s for repository %d: %w", t.TagName, t.RepoID, err)
			}
		}

		return nil
	})
}

func insertRepoLanguages(ctx context.Context, tx *sql.Tx, langs []model.RepoLanguage) error {
	for _, l := range langs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO repository_languages (repo_id, language_name, is_primary) VALUES (?, ?, ?)`,
			l.RepoID, l.LanguageName, l.IsPrimary,
		)
		if err != nil {
			return fmt.Errorf("sqlite: creating language association %s for repository %d: %w", l.LanguageName, l.RepoID, err)
		}
	}
	return nil
}

func (db *DB) GetRepo(ctx context.Context, id int64) (*model.Repository, error) {
	return db.getRepoWhere(ctx, `WHERE r.id = ?`, id)
}

func (db *DB) RandomRepo(ctx context.Context) (*model.Repository, error) {
	return db.getRepoWhere(ctx, `ORDER BY RANDOM() LIMIT 1`)
}

func (db *DB) getRepoWhere(ctx context.Context, clause string, args ...any) (*model.Repository, error) {
	repo, err := scanRepo(db.conn.QueryRowContext(ctx,
		`SELECT r.id, r.author, r.name, r.description, r.stars, r.maintain_link, r.suggested_by, r.last_updated,
		        t.name, t.display_name, t.kind, t.suggested_by, t.created_at, t.last_updated
		 FROM repositories r
		 JOIN tags t ON t.name = r.primary_tag `+clause,
		args...,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			id := ""
			if len(args) > 0 {
				id = fmt.Sprint(args[0])
			}
			return nil, apperror.NotFound("repository", id)
		}
		return nil, fmt.Errorf("sqlite: getting repository: %w", err)
	}

	if err := db.loadRepoAssociations(ctx, repo); err != nil {
		return nil, err
	}
	return repo, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRepo(row rowScanner) (*model.Repository, error) {
	var r model.Repository
	var kind string
	err := row.Scan(
		&r.ID, &r.Author, &r.Name, &r.Description, &r.Stars, &r.MaintainLink, &r.SuggestedBy, &r.LastUpdated,
		&r.PrimaryTag.Name, &r.PrimaryTag.DisplayName, &kind,
		&r.PrimaryTag.SuggestedBy, &r.PrimaryTag.CreatedAt, &r.PrimaryTag.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	r.PrimaryTag.Kind = model.TagKind(kind)
	return &r, nil
}

// loadRepoAssociations fills Languages (primary first, then insertion
// order, which is GitHub's byte count descending) and Tags.
func (db *DB) loadRepoAssociations(ctx context.Context, repo *model.Repository) error {
	langRows, err := db.conn.QueryContext(ctx,
		`SELECT language_name FROM repository_languages
		 WHERE repo_id = ? ORDER BY is_primary DESC, rowid`,
		repo.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: loading languages for repository %d: %w", repo.ID, err)
	}
	defer langRows.Close()

	repo.Languages = []string{}
	for langRows.Next() {
		var name string
		if err := langRows.Scan(&name); err != nil {
			return fmt.Errorf("sqlite: scanning language association: %w", err)
		}
		repo.Languages = append(repo.Languages, name)
	}
	if err := langRows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterating language associations: %w", err)
	}

	tagRows, err := db.conn.QueryContext(ctx,
		`SELECT t.name, t.display_name, t.kind, t.suggested_by, t.created_at, t.last_updated
		 FROM repository_tags rt
		 JOIN tags t ON t.name = rt.tag_name
		 WHERE rt.repo_id = ? ORDER BY t.name`,
		repo.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: loading tags for repository %d: %w", repo.ID, err)
	}
	defer tagRows.Close()

	repo.Tags = []model.Tag{}
	for tagRows.Next() {
		var t model.Tag
		var kind string
		if err := tagRows.Scan(&t.Name, &t.DisplayName, &kind, &t.SuggestedBy, &t.CreatedAt, &t.LastUpdated); err != nil {
			return fmt.Errorf("sqlite: scanning tag association: %w", err)
		}
		t.Kind = model.TagKind(kind)
		repo.Tags = append(repo.Tags, t)
	}
	if err := tagRows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterating tag associations: %w", err)
	}

	return nil
}

// FilterRepos composes the conjunctive predicate set from opts. Each tag
// and each language contributes its own EXISTS clause, so the result is
// the AND of every value, not membership in a set.
func (db *DB) FilterRepos(ctx context.Context, opts repository.FilterOptions) ([]model.Repository, int, error) {
	where := []string{"r.stars >= ?"}
	args := []any{opts.MinStars}

	if opts.HasMaxStars {
		where = append(where, "r.stars <= ?")
		args = append(args, opts.MaxStars)
	}
	if opts.PrimaryTag != "" {
		where = append(where, "r.primary_tag = ?")
		args = append(args, opts.PrimaryTag)
	}
	for _, tag := range opts.Tags {
		where = append(where,
			"EXISTS (SELECT 1 FROM repository_tags rt WHERE rt.repo_id = r.id AND rt.tag_name = ?)")
		args = append(args, tag)
	}
	for _, lang := range opts.Languages {
		where = append(where,
			"EXISTS (SELECT 1 FROM repository_languages rl WHERE rl.repo_id = r.id AND rl.language_name = ?)")
		args = append(args, lang)
	}
	whereClause := "WHERE " + strings.Join(where, " AND ")

	var total int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM repositories r `+whereClause, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting filtered repositories: %w", err)
	}

	order := "r.id ASC"
	switch opts.Sort {
	case repository.SortStars:
		order = "r.stars ASC"
		if opts.Descending {
			order = "r.stars DESC"
		}
	case repository.SortDate:
		order = "r.last_updated ASC"
		if opts.Descending {
			order = "r.last_updated DESC"
		}
	}

	limit := opts.Limit
	offset := (opts.Page - 1) * limit
	pageArgs := append(append([]any{}, args...), limit, offset)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT r.id, r.author, r.name, r.description, r.stars, r.maintain_link, r.suggested_by, r.last_updated,
		        t.name, t.display_name, t.kind, t.suggested_by, t.created_at, t.last_updated
		 FROM repositories r
		 JOIN tags t ON t.name = r.primary_tag `+
			whereClause+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		pageArgs...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: filtering repositories: %w", err)
	}
	defer rows.Close()

	repos := []model.Repository{}
	for rows.Next() {
		repo, err := scanRepo(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning repository row: %w", err)
		}
		repos = append(repos, *repo)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating repositories: %w", err)
	}

	for i := range repos {
		if err := db.loadRepoAssociations(ctx, &repos[i]); err != nil {
			return nil, 0, err
		}
	}

	return repos, total, nil
}

// ListReposBySuggester returns every repository the user suggested, in
// id order, associations loaded.
func (db *DB) ListReposBySuggester(ctx context.Context, userID int64) ([]model.Repository, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT r.id, r.author, r.name, r.description, r.stars, r.maintain_link, r.suggested_by, r.last_updated,
		        t.name, t.display_name, t.kind, t.suggested_by, t.created_at, t.last_updated
		 FROM repositories r
		 JOIN tags t ON t.name = r.primary_tag
		 WHERE r.suggested_by = ? ORDER BY r.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing repositories suggested by %d: %w", userID, err)
	}
	defer rows.Close()

	repos := []model.Repository{}
	for rows.Next() {
		repo, err := scanRepo(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning repository row: %w", err)
		}
		repos = append(repos, *repo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating repositories: %w", err)
	}

	for i := range repos {
		if err := db.loadRepoAssociations(ctx, &repos[i]); err != nil {
			return nil, err
		}
	}

	return repos, nil
}

// RefreshRepo overwrites the GitHub-sourced scalar fields and replaces
// the language join set wholesale (delete-all-then-reinsert, not a diff).
func (db *DB) RefreshRepo(ctx context.Context, repo *model.Repository, langs []model.RepoLanguage) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		repo.LastUpdated = time.Now().UTC()

		res, err := tx.ExecContext(ctx,
			`UPDATE repositories SET author = ?, name = ?, description = ?, stars = ?, last_updated = ?
			 WHERE id = ?`,
			repo.Author, repo.Name, repo.Description, repo.Stars, repo.LastUpdated, repo.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: refreshing repository %d: %w", repo.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return apperror.NotFound("repository", strconv.FormatInt(repo.ID, 10))
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM repository_languages WHERE repo_id = ?`, repo.ID,
		); err != nil {
			return fmt.Errorf("sqlite: clearing language associations for repository %d: %w", repo.ID, err)
		}

		return insertRepoLanguages(ctx, tx, langs)
	})
}

// UpdateRepoCuration replaces the primary tag, the whole tag set, and the
// maintain link, and appends the audit entry, in one transaction.
func (db *DB) UpdateRepoCuration(ctx context.Context, id int64, primaryTag string, tags []model.RepoTag, maintainLink string, entry *model.Log) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE repositories SET primary_tag = ?, maintain_link = ?, last_updated = ? WHERE id = ?`,
			primaryTag, maintainLink, time.Now().UTC(), id,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating repository %d: %w", id, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return apperror.NotFound("repository", strconv.FormatInt(id, 10))
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM repository_tags WHERE repo_id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: clearing tag associations for repository %d: %w", id, err)
		}
		for _, t := range tags {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO repository_tags (repo_id, tag_name) VALUES (?, ?)`,
				id, t.TagName,
			); err != nil {
				return fmt.Errorf("sqlite: creating tag association %s for repository %d: %w", t.TagName, id, err)
			}
		}

		return insertLog(tx, entry)
	})
}

func (db *DB) TouchRepo(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE repositories SET last_updated = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: touching repository %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperror.NotFound("repository", strconv.FormatInt(id, 10))
	}
	return nil
}

// DeleteRepo cascades: join rows first, then the repository row, then the
// audit entry, all in one transaction so no orphans remain.
func (db *DB) DeleteRepo(ctx context.Context, id int64, entry *model.Log) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM repository_languages WHERE repo_id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting language associations for repository %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM repository_tags WHERE repo_id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting tag associations for repository %d: %w", id, err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM repositories WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting repository %d: %w", id, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return apperror.NotFound("repository", strconv.FormatInt(id, 10))
		}

		return insertLog(tx, entry)
	})
}
