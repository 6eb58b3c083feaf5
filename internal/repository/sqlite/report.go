package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/gitinspire/gitinspire-server/internal/apperror"
	"github.com/gitinspire/gitinspire-server/internal/model"
	"github.com/gitinspire/gitinspire-server/internal/repository"
)

var _ repository.ReportRepository = (*DB)(nil)

func (db *DB) CreateReport(ctx context.Context, report *model.Report) error {
	report.CreatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO reports (type, content_id, reason, maintain_link, info, reported_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(report.Target.Kind()),
		report.Target.ContentID(),
		report.Reason,
		report.MaintainLink,
		report.Info,
		report.ReportedBy,
		report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating report: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		report.ID = id
	}

	return nil
}

func (db *DB) ListReports(ctx context.Context) ([]model.Report, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, type, content_id, reason, maintain_link, info, reported_by, created_at
		 FROM reports ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing reports: %w", err)
	}
	defer rows.Close()

	reports := []model.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating reports: %w", err)
	}

	return reports, nil
}

func (db *DB) GetReport(ctx context.Context, id int64) (*model.Report, error) {
	r, err := scanReport(db.conn.QueryRowContext(ctx,
		`SELECT id, type, content_id, reason, maintain_link, info, reported_by, created_at
		 FROM reports WHERE id = ?`,
		id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("report", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting report %d: %w", id, err)
	}
	return r, nil
}

func scanReport(row rowScanner) (*model.Report, error) {
	var r model.Report
	var kind, contentID string

	err := row.Scan(&r.ID, &kind, &contentID, &r.Reason, &r.MaintainLink, &r.Info, &r.ReportedBy, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	target, err := model.ParseTarget(model.TargetKind(kind), contentID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: report %d has a malformed target: %w", r.ID, err)
	}
	r.Target = target

	return &r, nil
}

func (db *DB) DeleteReport(ctx context.Context, id int64, entry *model.Log) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting report %d: %w", id, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return apperror.NotFound("report", strconv.FormatInt(id, 10))
		}

		return insertLog(tx, entry)
	})
}
