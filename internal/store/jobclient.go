package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"memcat/internal/models"
	"memcat/internal/tasks"
)

var _ JobClient = (*AsynqJobClient)(nil)

// enqueuer is the part of *asynq.Client the job client uses.
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// AsynqJobClient enqueues tasks and records them to the JobStore.
type AsynqJobClient struct {
	client   enqueuer
	jobStore JobStore
}

// RedisOptions carries the Redis connection settings.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
}

func NewAsynqJobClient(opts RedisOptions, js JobStore) (*AsynqJobClient, error) {
	if js == nil {
		return nil, fmt.Errorf("JobStore cannot be nil for AsynqJobClient")
	}
	if opts.Address == "" {
		return nil, fmt.Errorf("redis address is required for AsynqJobClient")
	}
	cli := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &AsynqJobClient{client: cli, jobStore: js}, nil
}

func (jc *AsynqJobClient) Close() error {
	return jc.client.Close()
}

// Enqueue enqueues a task under a fresh UUID task ID and records the event.
// A failure to record is logged; the task is already queued at that point.
func (jc *AsynqJobClient) Enqueue(ctx context.Context, task *asynq.Task, relatedEntityType string, relatedEntityID uuid.UUID, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if jc.client == nil {
		return nil, fmt.Errorf("AsynqJobClient internal client is not initialized")
	}
	jobID := uuid.New()
	opts = append(opts, asynq.TaskID(jobID.String()))

	info, err := jc.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		log.Errorf("Failed to enqueue task type '%s': %v", task.Type(), err)
		return nil, err
	}
	log.Debugf("Enqueued task type '%s' id=%s queue=%s", task.Type(), info.ID, info.Queue)

	recordParams := JobRecordParams{
		JobID:             jobID,
		TaskType:          task.Type(),
		Payload:           task.Payload(),
		Queue:             info.Queue,
		Status:            models.JobStatusEnqueued,
		RelatedEntityType: relatedEntityType,
		RelatedEntityID:   relatedEntityID,
	}
	if err := jc.jobStore.RecordJobEnqueue(ctx, recordParams); err != nil {
		log.Errorf("Failed to record job enqueue event for task ID %s: %v", info.ID, err)
	}
	return info, nil
}

// EnqueueCategorizationJob queues background categorization of a memory and
// returns the job ID.
func (jc *AsynqJobClient) EnqueueCategorizationJob(ctx context.Context, memoryID uuid.UUID) (uuid.UUID, error) {
	task, err := tasks.NewCategorizeMemoryTask(memoryID)
	if err != nil {
		return uuid.Nil, err
	}
	info, err := jc.Enqueue(ctx, task, models.EntityTypeMemory, memoryID,
		asynq.Queue(tasks.QueueCategorization),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("enqueue categorization job for memory %s: %w", memoryID, err)
	}
	jobID, err := uuid.Parse(info.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse task ID %q: %w", info.ID, err)
	}
	return jobID, nil
}
