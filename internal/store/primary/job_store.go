package primary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"memcat/internal/models"
	"memcat/internal/store"
)

const jobColumns = `id, job_id, task_type, payload, queue, status, related_entity_type, related_entity_id, error, created_at, updated_at`

func scanJob(row pgx.Row) (*models.BackgroundJob, error) {
	job := &models.BackgroundJob{}
	err := row.Scan(
		&job.ID, &job.JobID, &job.TaskType, &job.Payload, &job.Queue, &job.Status,
		&job.RelatedEntityType, &job.RelatedEntityID, &job.Error,
		&job.CreatedAt, &job.UpdatedAt,
	)
	return job, err
}

// RecordJobEnqueue inserts a record into the background_jobs table.
func (s *StoreImpl) RecordJobEnqueue(ctx context.Context, params store.JobRecordParams) error {
	query := `
		INSERT INTO background_jobs (job_id, task_type, payload, queue, status, related_entity_type, related_entity_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (job_id) DO NOTHING
		RETURNING id`

	payload := json.RawMessage("{}")
	if len(params.Payload) > 0 {
		payload = json.RawMessage(params.Payload)
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

	var insertedID int64
	err := s.db.QueryRow(ctx, query,
		params.JobID, params.TaskType, payload, params.Queue, params.Status,
		entityType, entityID, time.Now().UTC(),
	).Scan(&insertedID)
	if err != nil {
		// ON CONFLICT DO NOTHING returns no row when the job is already recorded.
		if errors.Is(err, pgx.ErrNoRows) {
			log.Debugf("Job %s already recorded, skipping insertion.", params.JobID)
			return nil
		}
		return fmt.Errorf("failed to record job enqueue event for JobID %s: %w", params.JobID, err)
	}
	log.Debugf("Recorded job enqueue event for JobID %s with DB ID %d", params.JobID, insertedID)
	return nil
}

// UpdateJobStatus updates the status of a job given its Asynq Task UUID.
func (s *StoreImpl) UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status, errMsg string) error {
	var errCol *string
	if errMsg != "" {
		errCol = &errMsg
	}
	query := `UPDATE background_jobs SET status = $1, error = $2, updated_at = $3 WHERE job_id = $4`
	cmdTag, err := s.db.Exec(ctx, query, status, errCol, time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("failed to update job status for job %s: %w", jobID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("job %s not found to update status: %w", jobID, store.ErrNotFound)
	}
	return nil
}

func (s *StoreImpl) GetJob(ctx context.Context, jobID uuid.UUID) (*models.BackgroundJob, error) {
	job, err := scanJob(s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM background_jobs WHERE job_id = $1`, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	return job, nil
}

// ListJobs returns background jobs, newest first.
func (s *StoreImpl) ListJobs(ctx context.Context, limit, offset int) ([]*models.BackgroundJob, error) {
	query := `SELECT ` + jobColumns + ` FROM background_jobs ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`
	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query background jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.BackgroundJob, error) {
		return scanJob(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan background jobs: %w", err)
	}
	return jobs, nil
}
