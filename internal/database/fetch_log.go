package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"suppliersync/internal/models"
)

// InsertFetchLog appends one call-attempt row and fills in the id.
func (db *DB) InsertFetchLog(ctx context.Context, entry *models.FetchLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.Attempt == 0 {
		entry.Attempt = 1
	}

	res, err := db.ExecContext(ctx,
		`INSERT INTO fetch_logs (supplier_code, account, endpoint, attempt, request, status_code, response, error, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.SupplierCode, entry.Account, entry.Endpoint, entry.Attempt,
		entry.Request, entry.StatusCode, entry.Response, entry.Error, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert fetch log: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("fetch log id: %w", err)
	}
	entry.ID = id
	return nil
}

const fetchLogColumns = `id, supplier_code, account, endpoint, attempt, request, status_code, response, error, created_at`

// GetFetchLogs resolves a list of log ids, preserving only rows that exist.
func (db *DB) GetFetchLogs(ctx context.Context, ids []int64) ([]models.FetchLog, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimRight(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+fetchLogColumns+` FROM fetch_logs WHERE id IN (`+placeholders+`) ORDER BY id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("get fetch logs: %w", err)
	}
	defer rows.Close()

	return scanFetchLogs(rows)
}

// ListFailedFetchLogs returns failing attempts for the operator dashboard
// and the retry endpoint, newest first.
func (db *DB) ListFailedFetchLogs(ctx context.Context, supplierCode string, since time.Time, limit int) ([]models.FetchLog, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + fetchLogColumns + ` FROM fetch_logs
              WHERE (error IS NOT NULL OR status_code < 200 OR status_code >= 300)
              AND created_at >= ?`
	args := []interface{}{since}
	if supplierCode != "" {
		query += ` AND supplier_code = ?`
		args = append(args, supplierCode)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list failed fetch logs: %w", err)
	}
	defer rows.Close()

	return scanFetchLogs(rows)
}

type logRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanFetchLogs(rows logRows) ([]models.FetchLog, error) {
	var logs []models.FetchLog
	for rows.Next() {
		var l models.FetchLog
		err := rows.Scan(
			&l.ID, &l.SupplierCode, &l.Account, &l.Endpoint, &l.Attempt,
			&l.Request, &l.StatusCode, &l.Response, &l.Error, &l.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fetch log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
