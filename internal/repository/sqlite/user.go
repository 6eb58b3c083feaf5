package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gitinspire/gitinspire-server/internal/apperror"
	"github.com/gitinspire/gitinspire-server/internal/model"
	"github.com/gitinspire/gitinspire-server/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

// EnsureUser creates the user on first login and otherwise returns the
// stored row untouched. A banned account stays banned; logging in again
// never resets status.
func (db *DB) EnsureUser(ctx context.Context, user *model.User) (*model.User, error) {
	existing, err := db.GetUser(ctx, user.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	user.LastUpdated = time.Now().UTC()
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, avatar_url, github_created_at, account_status, ban_reason, last_updated)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.AvatarURL,
		user.GitHubCreatedAt,
		string(user.Status),
		user.BanReason,
		user.LastUpdated,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: inserting user %d: %w", user.ID, err)
	}

	return user, nil
}

func (db *DB) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	var status string

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, username, avatar_url, github_created_at, account_status, ban_reason, last_updated
		 FROM users WHERE id = ?`,
		id,
	).Scan(&u.ID, &u.Username, &u.AvatarURL, &u.GitHubCreatedAt, &status, &u.BanReason, &u.LastUpdated)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	u.Status = model.AccountStatus(status)

	return &u, nil
}

func (db *DB) ListBannedUsers(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, username, avatar_url, github_created_at, account_status, ban_reason, last_updated
		 FROM users WHERE account_status = ? ORDER BY id`,
		string(model.StatusBanned),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing banned users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		var status string
		if err := rows.Scan(&u.ID, &u.Username, &u.AvatarURL, &u.GitHubCreatedAt, &status, &u.BanReason, &u.LastUpdated); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		u.Status = model.AccountStatus(status)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	return users, nil
}

func (db *DB) TouchUser(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET last_updated = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: touching user %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	return nil
}

func (db *DB) UpdateUserProfile(ctx context.Context, id int64, username, avatarURL string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET username = ?, avatar_url = ?, last_updated = ? WHERE id = ?`,
		username, avatarURL, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %d profile: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	return nil
}

func (db *DB) UpdateUserStatus(ctx context.Context, id int64, status model.AccountStatus, banReason string, entry *model.Log) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET account_status = ?, ban_reason = ?, last_updated = ? WHERE id = ?`,
			string(status), banReason, time.Now().UTC(), id,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %d status: %w", id, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return apperror.NotFound("user", strconv.FormatInt(id, 10))
		}

		return insertLog(tx, entry)
	})
}
