package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"memcat/internal/models"
	"memcat/internal/store"
)

const jobColumns = `id, job_id, task_type, payload, queue, status, related_entity_type, related_entity_id, error, created_at, updated_at`

func scanJob(row rowScanner) (*models.BackgroundJob, error) {
	var (
		job     models.BackgroundJob
		payload string
	)
	err := row.Scan(&job.ID, &job.JobID, &job.TaskType, &payload, &job.Queue, &job.Status,
		&job.RelatedEntityType, &job.RelatedEntityID, &job.Error, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	job.Payload = []byte(payload)
	return &job, nil
}

func (s *Store) RecordJobEnqueue(ctx context.Context, params store.JobRecordParams) error {
	payload := "{}"
	if len(params.Payload) > 0 {
		payload = string(params.Payload)
	}
	var (
		entityType *string
		entityID   *uuid.UUID
	)
	if params.RelatedEntityType != "" {
		entityType = &params.RelatedEntityType
	}
	if params.RelatedEntityID != uuid.Nil {
		entityID = &params.RelatedEntityID
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO background_jobs (job_id, task_type, payload, queue, status, related_entity_type, related_entity_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id) DO NOTHING`,
		params.JobID, params.TaskType, payload, params.Queue, params.Status, entityType, entityID, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to record job enqueue event for JobID %s: %w", params.JobID, err)
	}
	return nil
}

func (s *Store) UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status, errMsg string) error {
	var errCol *string
	if errMsg != "" {
		errCol = &errMsg
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE background_jobs SET status = ?, error = ?, updated_at = ? WHERE job_id = ?`,
		status, errCol, time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("failed to update job status for job %s: %w", jobID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s not found to update status: %w", jobID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID uuid.UUID) (*models.BackgroundJob, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM background_jobs WHERE job_id = ?`, jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	return job, nil
}

func (s *Store) ListJobs(ctx context.Context, limit, offset int) ([]*models.BackgroundJob, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM background_jobs ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query background jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*models.BackgroundJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan background job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
