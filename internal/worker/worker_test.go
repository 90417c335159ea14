package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memcat/internal/costtracker"
	"memcat/internal/models"
	"memcat/internal/store"
	"memcat/internal/store/sqlite"
	"memcat/internal/tasks"
)

type fakeCategorizer struct {
	labels []string
	err    error
	gotID  uuid.UUID
	gotJob *uuid.UUID
}

func (f *fakeCategorizer) CategorizeMemory(ctx context.Context, id uuid.UUID) ([]string, error) {
	f.gotID = id
	f.gotJob = costtracker.JobIDFromContext(ctx)
	return f.labels, f.err
}

func newJobStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), sqlite.MemoryPath, store.PoolOptions{PoolSize: 1})
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

// recordJob stores an enqueued job row and returns a handler context carrying its ID.
func recordJob(t *testing.T, js store.JobStore, memoryID uuid.UUID) (uuid.UUID, func(context.Context) (string, bool)) {
	t.Helper()
	jobID := uuid.New()
	require.NoError(t, js.RecordJobEnqueue(context.Background(), store.JobRecordParams{
		JobID:             jobID,
		TaskType:          tasks.TypeCategorizeMemory,
		Payload:           []byte(fmt.Sprintf(`{"memory_id":%q}`, memoryID)),
		Queue:             tasks.QueueCategorization,
		Status:            models.JobStatusEnqueued,
		RelatedEntityType: models.EntityTypeMemory,
		RelatedEntityID:   memoryID,
	}))
	return jobID, func(context.Context) (string, bool) { return jobID.String(), true }
}

func TestHandleCategorizationJob_Completes(t *testing.T) {
	js := newJobStore(t)
	memoryID := uuid.New()
	jobID, taskID := recordJob(t, js, memoryID)
	fake := &fakeCategorizer{labels: []string{"work"}}

	task, err := tasks.NewCategorizeMemoryTask(memoryID)
	require.NoError(t, err)
	h := HandleCategorizationJob(CategorizationDeps{Categorizer: fake, JobStore: js, taskID: taskID})
	require.NoError(t, h(context.Background(), task))

	assert.Equal(t, memoryID, fake.gotID)
	require.NotNil(t, fake.gotJob)
	assert.Equal(t, jobID, *fake.gotJob)

	job, err := js.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
}

func TestHandleCategorizationJob_TransientFailureRetries(t *testing.T) {
	js := newJobStore(t)
	memoryID := uuid.New()
	jobID, taskID := recordJob(t, js, memoryID)
	fake := &fakeCategorizer{err: errors.New("categorizer: retries exhausted after 3 attempt(s): timeout")}

	task, _ := tasks.NewCategorizeMemoryTask(memoryID)
	err := HandleCategorizationJob(CategorizationDeps{Categorizer: fake, JobStore: js, taskID: taskID})(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	job, err := js.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Contains(t, *job.Error, "timeout")
}

func TestHandleCategorizationJob_SkipRetry(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		err     error
	}{
		{"malformed payload", []byte(`{not json`), nil},
		{"missing memory id", []byte(`{}`), nil},
		{"memory not found", nil, fmt.Errorf("failed to load memory: %w", store.ErrNotFound)},
		{"memory deleted", nil, fmt.Errorf("memory is deleted: %w", models.ErrInvalidState)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := tt.payload
			if payload == nil {
				payload = []byte(fmt.Sprintf(`{"memory_id":%q}`, uuid.New()))
			}
			fake := &fakeCategorizer{err: tt.err}
			h := HandleCategorizationJob(CategorizationDeps{Categorizer: fake})
			err := h(context.Background(), asynq.NewTask(tasks.TypeCategorizeMemory, payload))
			assert.ErrorIs(t, err, asynq.SkipRetry)
		})
	}
}

func TestHandleCategorizationJob_WithoutTaskID(t *testing.T) {
	fake := &fakeCategorizer{labels: []string{}}
	task, _ := tasks.NewCategorizeMemoryTask(uuid.New())
	h := HandleCategorizationJob(CategorizationDeps{
		Categorizer: fake,
		taskID:      func(context.Context) (string, bool) { return "", false },
	})
	require.NoError(t, h(context.Background(), task))
	assert.Nil(t, fake.gotJob)
}

func TestRegisterHandlers(t *testing.T) {
	mux := asynq.NewServeMux()
	fake := &fakeCategorizer{labels: []string{"travel"}}
	RegisterHandlers(mux, CategorizationDeps{
		Categorizer: fake,
		taskID:      func(context.Context) (string, bool) { return "", false },
	})

	task, _ := tasks.NewCategorizeMemoryTask(uuid.New())
	require.NoError(t, mux.ProcessTask(context.Background(), task))
	assert.NotEqual(t, uuid.Nil, fake.gotID)
}
