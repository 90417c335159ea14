// Package worker runs background jobs pulled from the asynq queues.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"memcat/internal/config"
	"memcat/internal/costtracker"
	"memcat/internal/models"
	"memcat/internal/store"
	"memcat/internal/tasks"
)

// MemoryCategorizer is the service call a categorization job runs.
type MemoryCategorizer interface {
	CategorizeMemory(ctx context.Context, memoryID uuid.UUID) ([]string, error)
}

// CategorizationDeps holds dependencies for the categorization handler.
type CategorizationDeps struct {
	Categorizer MemoryCategorizer
	JobStore    store.JobStore // optional; job rows are not updated when nil

	// taskID reads the asynq task ID from the handler context.
	taskID func(ctx context.Context) (string, bool)
}

// HandleCategorizationJob returns the asynq handler for TypeCategorizeMemory.
// Bad payloads and memories that no longer exist are not retried.
func HandleCategorizationJob(deps CategorizationDeps) asynq.HandlerFunc {
	if deps.taskID == nil {
		deps.taskID = asynq.GetTaskID
	}
	return func(ctx context.Context, t *asynq.Task) error {
		payload, err := tasks.ParseCategorizeMemoryPayload(t.Payload())
		if err != nil {
			log.Errorf("Invalid categorization payload: %v", err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		jobID := uuid.Nil
		if id, ok := deps.taskID(ctx); ok {
			if parsed, err := uuid.Parse(id); err == nil {
				jobID = parsed
				ctx = costtracker.WithJobID(ctx, jobID)
			}
		}
		entry := log.WithFields(log.Fields{"job_id": jobID, "memory_id": payload.MemoryID})
		updateStatus(ctx, deps.JobStore, jobID, models.JobStatusRunning, "")

		labels, err := deps.Categorizer.CategorizeMemory(ctx, payload.MemoryID)
		if err != nil {
			entry.Errorf("Categorization job failed: %v", err)
			updateStatus(ctx, deps.JobStore, jobID, models.JobStatusFailed, err.Error())
			if errors.Is(err, store.ErrNotFound) || errors.Is(err, models.ErrInvalidState) {
				return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
			}
			return err
		}

		entry.Infof("Categorization job completed with %d categories", len(labels))
		updateStatus(ctx, deps.JobStore, jobID, models.JobStatusCompleted, "")
		return nil
	}
}

func updateStatus(ctx context.Context, js store.JobStore, jobID uuid.UUID, status, errMsg string) {
	if js == nil || jobID == uuid.Nil {
		return
	}
	if err := js.UpdateJobStatus(ctx, jobID, status, errMsg); err != nil {
		log.Warnf("Failed to update status of job %s to %s: %v", jobID, status, err)
	}
}

// RegisterHandlers registers every job handler on mux.
func RegisterHandlers(mux *asynq.ServeMux, deps CategorizationDeps) {
	log.Infof("Registering %s handler", tasks.TypeCategorizeMemory)
	mux.HandleFunc(tasks.TypeCategorizeMemory, HandleCategorizationJob(deps))
}

// NewServer builds the asynq server from the redis and worker settings.
func NewServer(cfg *config.Config) *asynq.Server {
	redisOpts := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	return asynq.NewServer(redisOpts, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues:      cfg.Worker.Queues,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			id, _ := asynq.GetTaskID(ctx)
			log.Errorf("Asynq task failed: task_id=%s type=%s payload=%s err=%v",
				id, task.Type(), string(task.Payload()), err)
		}),
		Logger: log.StandardLogger(),
	})
}

// Run starts srv and blocks until ctx is done or SIGINT/SIGTERM arrives.
func Run(ctx context.Context, srv *asynq.Server, mux *asynq.ServeMux) error {
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("failed to start Asynq server: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("Shutdown signal received. Initiating graceful shutdown...")
	srv.Shutdown()
	log.Info("Worker shutdown complete.")
	return nil
}
