// Package sqlite implements the repository interfaces on SQLite via the
// pure-Go modernc.org/sqlite driver, so no C toolchain is required and tests
// run against ":memory:" databases.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gitinspire/gitinspire-server/internal/model"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides the repository methods.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath, applies pragmas, and
// runs migrations. Use ":memory:" for a throwaway in-memory database.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads during writes; foreign keys are off by
	// default in SQLite and the schema relies on them.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn exposes the underlying pool for out-of-core tooling such as the
// CSV migration command. Application code goes through the repository
// interfaces instead.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS languages (
			name         TEXT PRIMARY KEY,
			display_name TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS users (
			id                INTEGER PRIMARY KEY,
			username          TEXT NOT NULL,
			avatar_url        TEXT NOT NULL DEFAULT '',
			github_created_at DATETIME NOT NULL,
			account_status    TEXT NOT NULL DEFAULT 'user',
			ban_reason        TEXT NOT NULL DEFAULT '',
			last_updated      DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tags (
			name         TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			kind         TEXT NOT NULL,
			suggested_by INTEGER NOT NULL REFERENCES users(id),
			created_at   DATETIME NOT NULL,
			last_updated DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS repositories (
			id            INTEGER PRIMARY KEY,
			author        TEXT NOT NULL,
			name          TEXT NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			stars         INTEGER NOT NULL DEFAULT 0,
			maintain_link TEXT NOT NULL DEFAULT '',
			primary_tag   TEXT NOT NULL REFERENCES tags(name),
			suggested_by  INTEGER NOT NULL REFERENCES users(id),
			last_updated  DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_repositories_stars ON repositories(stars);
		CREATE INDEX IF NOT EXISTS idx_repositories_primary_tag ON repositories(primary_tag);

		CREATE TABLE IF NOT EXISTS repository_languages (
			repo_id       INTEGER NOT NULL REFERENCES repositories(id),
			language_name TEXT NOT NULL REFERENCES languages(name),
			is_primary    INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (repo_id, language_name)
		);

		CREATE TABLE IF NOT EXISTS repository_tags (
			repo_id  INTEGER NOT NULL REFERENCES repositories(id),
			tag_name TEXT NOT NULL REFERENCES tags(name),
			PRIMARY KEY (repo_id, tag_name)
		);

		CREATE TABLE IF NOT EXISTS reports (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			type          TEXT NOT NULL,
			content_id    TEXT NOT NULL DEFAULT '',
			reason        TEXT NOT NULL,
			maintain_link TEXT NOT NULL DEFAULT '',
			info          TEXT NOT NULL DEFAULT '',
			reported_by   INTEGER NOT NULL REFERENCES users(id),
			created_at    DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS logs (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			action     TEXT NOT NULL,
			type       TEXT NOT NULL,
			content_id TEXT NOT NULL DEFAULT '',
			enacted_by INTEGER NOT NULL REFERENCES users(id),
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_logs_created_at ON logs(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}

	// The bot account attributes automated actions (e.g. auto-deletion of
	// repositories that vanished upstream).
	now := time.Now().UTC()
	_, err = db.conn.Exec(
		`INSERT OR IGNORE INTO users (id, username, avatar_url, github_created_at, account_status, last_updated)
		 VALUES (?, ?, '', ?, ?, ?)`,
		model.BotUserID, "gitinspire-bot", now, model.StatusBot, now,
	)
	if err != nil {
		return fmt.Errorf("seeding bot user: %w", err)
	}

	return nil
}

// withTx runs fn inside a single transaction. Every multi-step mutation
// goes through here so a failure mid-sequence leaves no partial state.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// insertLog appends an audit entry within tx and fills in its id and
// timestamp. Before inserting it nudges the logs sequence counter back in
// step with MAX(id) (external bulk loads have been seen to desync it)
// and swallows any failure of that fixup.
func insertLog(tx *sql.Tx, entry *model.Log) error {
	if entry == nil {
		return nil
	}

	// Best effort; the row may not even exist before the first insert.
	tx.Exec(`UPDATE sqlite_sequence
	         SET seq = (SELECT COALESCE(MAX(id), 0) FROM logs)
	         WHERE name = 'logs'`)

	entry.CreatedAt = time.Now().UTC()
	res, err := tx.Exec(
		`INSERT INTO logs (action, type, content_id, enacted_by, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.Action,
		string(entry.Target.Kind()),
		entry.Target.ContentID(),
		entry.EnactedBy,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting log entry: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}
