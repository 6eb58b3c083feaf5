package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gitinspire/gitinspire-server/internal/model"
	"github.com/gitinspire/gitinspire-server/internal/repository"
)

var _ repository.LogRepository = (*DB)(nil)

func (db *DB) CreateLog(ctx context.Context, entry *model.Log) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return insertLog(tx, entry)
	})
}

// ListLogs pages through the audit trail newest first.
func (db *DB) ListLogs(ctx context.Context, limit, page int) ([]model.Log, int, error) {
	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM logs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting logs: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, action, type, content_id, enacted_by, created_at
		 FROM logs ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, (page-1)*limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing logs: %w", err)
	}
	defer rows.Close()

	logs := []model.Log{}
	for rows.Next() {
		var l model.Log
		var kind, contentID string
		if err := rows.Scan(&l.ID, &l.Action, &kind, &contentID, &l.EnactedBy, &l.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning log row: %w", err)
		}
		target, err := model.ParseTarget(model.TargetKind(kind), contentID)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: log %d has a malformed target: %w", l.ID, err)
		}
		l.Target = target
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating logs: %w", err)
	}

	return logs, total, nil
}
