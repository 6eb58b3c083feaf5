// Command migrate moves data between database provisionings via CSV
// files: one file per table, header row first.
//
//	migrate -db data/gitinspire.db -export dump/
//	migrate -db data/fresh.db -import dump/
//
// Import expects files produced by export and inserts rows as-is, so the
// target database should be empty apart from the seeded bot user.
package main

import (
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	sqliteRepo "github.com/gitinspire/gitinspire-server/internal/repository/sqlite"
)

// tables lists every table in dependency order, so import never trips a
// foreign key.
var tables = []string{
	"languages",
	"users",
	"tags",
	"repositories",
	"repository_languages",
	"repository_tags",
	"reports",
	"logs",
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	dbPath := flag.String("db", "data/gitinspire.db", "path to the SQLite database")
	exportDir := flag.String("export", "", "directory to export CSV files into")
	importDir := flag.String("import", "", "directory to import CSV files from")
	flag.Parse()

	if (*exportDir == "") == (*importDir == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -export or -import is required")
		flag.Usage()
		os.Exit(2)
	}

	db, err := sqliteRepo.New(*dbPath)
	if err != nil {
		logger.Error("failed to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	if *exportDir != "" {
		err = exportAll(db.Conn(), *exportDir, logger)
	} else {
		err = importAll(db.Conn(), *importDir, logger)
	}
	if err != nil {
		logger.Error("migration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func exportAll(conn *sql.DB, dir string, logger *slog.Logger) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}

	for _, table := range tables {
		n, err := exportTable(conn, dir, table)
		if err != nil {
			return fmt.Errorf("exporting %s: %w", table, err)
		}
		logger.Info("table exported", slog.String("table", table), slog.Int("rows", n))
	}
	return nil
}

func exportTable(conn *sql.DB, dir, table string) (int, error) {
	rows, err := conn.Query("SELECT * FROM " + table)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}

	f, err := os.Create(filepath.Join(dir, table+".csv"))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(cols); err != nil {
		return 0, err
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	count := 0
	record := make([]string, len(cols))
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return count, err
		}
		for i, v := range values {
			record[i] = fieldString(v)
		}
		if err := w.Write(record); err != nil {
			return count, err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, err
	}

	w.Flush()
	return count, w.Error()
}

func importAll(conn *sql.DB, dir string, logger *slog.Logger) error {
	for _, table := range tables {
		n, err := importTable(conn, dir, table)
		if err != nil {
			return fmt.Errorf("importing %s: %w", table, err)
		}
		logger.Info("table imported", slog.String("table", table), slog.Int("rows", n))
	}
	return nil
}

func importTable(conn *sql.DB, dir, table string) (int, error) {
	f, err := os.Open(filepath.Join(dir, table+".csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return 0, err
	}
	if len(records) < 2 {
		return 0, nil
	}

	cols := records[0]
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
	// INSERT OR IGNORE lets an import re-run after a partial failure and
	// tolerate the pre-seeded bot user.
	stmt := fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), placeholders)

	tx, err := conn.Begin()
	if err != nil {
		return 0, err
	}

	count := 0
	args := make([]any, len(cols))
	for _, record := range records[1:] {
		if len(record) != len(cols) {
			tx.Rollback()
			return count, fmt.Errorf("row has %d fields, want %d", len(record), len(cols))
		}
		for i, v := range record {
			args[i] = v
		}
		if _, err := tx.Exec(stmt, args...); err != nil {
			tx.Rollback()
			return count, err
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return count, err
	}
	return count, nil
}

// fieldString renders a scanned SQLite value for CSV. The driver hands
// back int64, float64, string, []byte, or nil.
func fieldString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}
