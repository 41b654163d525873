// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/SuperSonnix71/github-invite-plus/internal/logging"
	"github.com/SuperSonnix71/github-invite-plus/internal/models"
)

const jobColumns = `id, type, payload_json, status, attempts, max_attempts, created_at, updated_at, last_error`

// EnqueueJob inserts a queued job unless a queued or running job with the
// same type and byte-identical payload exists, in which case that job's id is
// returned with created=false.
func (db *DB) EnqueueJob(ctx context.Context, jobType models.JobType, payload []byte, maxAttempts int) (id string, created bool, err error) {
	if maxAttempts <= 0 {
		maxAttempts = models.DefaultMaxAttempts
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	db.enqueueMu.Lock()
	defer db.enqueueMu.Unlock()

	err = db.conn.QueryRowContext(ctx, `
		SELECT id FROM jobs
		WHERE type = ? AND payload_json = ? AND status IN ('queued', 'running')
		ORDER BY seq LIMIT 1`,
		string(jobType), string(payload)).Scan(&id)
	switch {
	case err == nil:
		logging.Debug().Str("job_id", id).Str("type", string(jobType)).Msg("Job already queued or running, skipping duplicate")
		return id, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", false, fmt.Errorf("failed to check for duplicate job: %w", err)
	}

	id = uuid.NewString()
	now := db.now()
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO jobs (id, type, payload_json, status, attempts, max_attempts, created_at, updated_at)
		VALUES (?, ?, ?, 'queued', 0, ?, ?, ?)`,
		id, string(jobType), string(payload), maxAttempts, now, now)
	if err != nil {
		return "", false, fmt.Errorf("failed to insert job: %w", err)
	}
	return id, true, nil
}

// DequeueNextJob claims the oldest queued job by moving it to running in a
// single UPDATE ... RETURNING statement. It returns (nil, nil) when the
// queue is empty.
func (db *DB) DequeueNextJob(ctx context.Context) (*models.Job, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var job *models.Job
	err := retryOnConflict(ctx, func() error {
		row := db.conn.QueryRowContext(ctx, `
			UPDATE jobs SET status = 'running', updated_at = ?
			WHERE status = 'queued' AND id = (
				SELECT id FROM jobs WHERE status = 'queued'
				ORDER BY created_at ASC, seq ASC LIMIT 1
			)
			RETURNING `+jobColumns,
			db.now())
		j, err := scanJob(row)
		if err != nil {
			return err
		}
		job = j
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}
	return job, nil
}

// MarkJobDone resolves a job as done.
func (db *DB) MarkJobDone(ctx context.Context, id string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, `UPDATE jobs SET status = 'done', updated_at = ? WHERE id = ?`, db.now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark job %s done: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkJobFailed records a failed attempt. The job is requeued while
// attempts+1 < maxAttempts and becomes terminally failed otherwise. The
// resulting status is returned.
func (db *DB) MarkJobFailed(ctx context.Context, id, lastError string, attempts, maxAttempts int) (models.JobStatus, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	status := models.JobQueued
	if attempts+1 >= maxAttempts {
		status = models.JobFailed
	}

	res, err := db.conn.ExecContext(ctx, `
		UPDATE jobs SET status = ?, attempts = ?, updated_at = ?, last_error = ?
		WHERE id = ?`,
		string(status), attempts+1, db.now(), lastError, id)
	if err != nil {
		return "", fmt.Errorf("failed to mark job %s failed: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", ErrNotFound
	}
	return status, nil
}

// RecoverStuckJobs resets every running job to queued. It must only run at
// startup, before the scheduler claims anything.
func (db *DB) RecoverStuckJobs(ctx context.Context) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, `UPDATE jobs SET status = 'queued', updated_at = ? WHERE status = 'running'`, db.now())
	if err != nil {
		return 0, fmt.Errorf("failed to recover stuck jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// GetJob returns a job by id or ErrNotFound.
func (db *DB) GetJob(ctx context.Context, id string) (*models.Job, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	job, err := scanJob(db.conn.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if err != nil {
		return nil, notFoundIfNoRows(err)
	}
	return job, nil
}

// ListJobs returns jobs in queue order. An empty status lists every job.
func (db *DB) ListJobs(ctx context.Context, status models.JobStatus, limit int) ([]models.Job, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at ASC, seq ASC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer closeQuietly(rows)

	jobs := []models.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// CountJobsByStatus returns the number of jobs in each status.
func (db *DB) CountJobsByStatus(ctx context.Context) (map[models.JobStatus]int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer closeQuietly(rows)

	counts := map[models.JobStatus]int64{
		models.JobQueued:  0,
		models.JobRunning: 0,
		models.JobDone:    0,
		models.JobFailed:  0,
	}
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan job count: %w", err)
		}
		counts[models.JobStatus(status)] = n
	}
	return counts, rows.Err()
}

// CleanupDoneJobs deletes done jobs last updated before cutoff.
func (db *DB) CleanupDoneJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, `DELETE FROM jobs WHERE status = 'done' AND updated_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up done jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		job     models.Job
		jobType string
		payload string
		status  string
		lastErr sql.NullString
	)
	if err := row.Scan(&job.ID, &jobType, &payload, &status, &job.Attempts, &job.MaxAttempts,
		&job.CreatedAt, &job.UpdatedAt, &lastErr); err != nil {
		return nil, err
	}
	job.Type = models.JobType(jobType)
	job.Payload = []byte(payload)
	job.Status = models.JobStatus(status)
	job.LastError = lastErr.String
	return &job, nil
}
