package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"suppliersync/internal/models"
)

// ErrJobConflict is returned by CreateJob when the single-flight guard finds
// another queued/running job of the same (supplier, job type).
var ErrJobConflict = errors.New("a job of this type is already queued or running")

const jobColumns = `id, supplier_code, job_type, status, params, progress, last_error, created_at, started_at, finished_at, updated_at`

// CreateJob inserts a new queued job. The single-flight check and the insert
// run in one transaction so two concurrent triggers cannot both pass the
// guard.
func (db *DB) CreateJob(ctx context.Context, job *models.SyncJob) error {
	params, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("encode job params: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create job: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM sync_jobs WHERE supplier_code = ? AND job_type = ? AND status IN (?, ?) LIMIT 1`,
		job.SupplierCode, job.JobType, models.JobQueued, models.JobRunning,
	).Scan(&existing)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrJobConflict, existing)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("single-flight check: %w", err)
	}

	now := time.Now()
	job.Status = models.JobQueued
	job.CreatedAt = now
	job.UpdatedAt = now

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sync_jobs (id, supplier_code, job_type, status, params, progress, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		job.ID, job.SupplierCode, job.JobType, job.Status, string(params), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	return tx.Commit()
}

// GetJob returns the job or (nil, nil) when it does not exist.
func (db *DB) GetJob(ctx context.Context, id string) (*models.SyncJob, error) {
	row := db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM sync_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

// ListJobs returns recent jobs, optionally filtered.
func (db *DB) ListJobs(ctx context.Context, supplierCode, jobType, status string, limit int) ([]models.SyncJob, error) {
	query := `SELECT ` + jobColumns + ` FROM sync_jobs WHERE 1=1`
	var args []interface{}
	if supplierCode != "" {
		query += ` AND supplier_code = ?`
		args = append(args, supplierCode)
	}
	if jobType != "" {
		query += ` AND job_type = ?`
		args = append(args, jobType)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.SyncJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// MarkJobRunning flips a queued job to running.
func (db *DB) MarkJobRunning(ctx context.Context, id string) error {
	now := time.Now()
	res, err := db.ExecContext(ctx,
		`UPDATE sync_jobs SET status = ?, started_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		models.JobRunning, now, now, id, models.JobQueued,
	)
	if err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("job %s is not queued", id)
	}
	return nil
}

// UpdateJobProgress bumps the monotonic progress counter and the heartbeat.
func (db *DB) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	_, err := db.ExecContext(ctx,
		`UPDATE sync_jobs SET progress = ?, updated_at = ? WHERE id = ?`,
		progress, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// FinishJob records the terminal status. errMsg is stored only for failed.
func (db *DB) FinishJob(ctx context.Context, id, status, errMsg string) error {
	now := time.Now()
	var lastError *string
	if errMsg != "" {
		lastError = &errMsg
	}
	_, err := db.ExecContext(ctx,
		`UPDATE sync_jobs SET status = ?, last_error = ?, finished_at = ?, updated_at = ? WHERE id = ?`,
		status, lastError, now, now, id,
	)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return nil
}

// SweepStaleJobs force-fails queued/running jobs whose heartbeat is older
// than the TTL and returns how many were reclaimed.
func (db *DB) SweepStaleJobs(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().Add(-ttl)
	now := time.Now()
	res, err := db.ExecContext(ctx,
		`UPDATE sync_jobs SET status = ?, last_error = ?, finished_at = ?, updated_at = ?
         WHERE status IN (?, ?) AND updated_at < ?`,
		models.JobFailed, models.StaleJobError, now, now,
		models.JobQueued, models.JobRunning, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("sweep stale jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		db.log.Warn().Int64("count", n).Dur("ttl", ttl).Msg("reclaimed stale jobs")
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.SyncJob, error) {
	var job models.SyncJob
	var params string
	err := row.Scan(
		&job.ID,
		&job.SupplierCode,
		&job.JobType,
		&job.Status,
		&params,
		&job.Progress,
		&job.LastError,
		&job.CreatedAt,
		&job.StartedAt,
		&job.FinishedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if params != "" {
		if err := json.Unmarshal([]byte(params), &job.Params); err != nil {
			return nil, fmt.Errorf("decode job params: %w", err)
		}
	}
	return &job, nil
}
