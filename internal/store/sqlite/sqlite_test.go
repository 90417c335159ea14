package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memcat/internal/models"
	"memcat/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), MemoryPath, store.PoolOptions{PoolSize: 1})
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func createMemory(t *testing.T, s *Store, content string) *models.Memory {
	t.Helper()
	m := &models.Memory{UserID: "alice", AppName: "tests", Content: content}
	require.NoError(t, s.CreateMemory(context.Background(), m))
	return m
}

func TestDSN(t *testing.T) {
	dsn := DSN("./memcat.db", store.PoolOptions{PoolTimeout: 2 * time.Second})
	assert.Contains(t, dsn, "file:./memcat.db?")
	assert.Contains(t, dsn, "_busy_timeout=2000")
	assert.Contains(t, dsn, "_journal_mode=WAL")
	assert.Contains(t, dsn, "_foreign_keys=on")

	a, b := DSN(MemoryPath, store.PoolOptions{}), DSN(MemoryPath, store.PoolOptions{})
	assert.Contains(t, a, "mode=memory")
	assert.NotEqual(t, a, b, "each in-memory store is private")
}

func TestOpen_FileAndMigrateTwice(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "memcat.db")
	s, err := Open(ctx, path, store.PoolOptions{PoolSize: 5, MaxOverflow: 10})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Ping(ctx))

	_, err = Open(ctx, "  ", store.PoolOptions{})
	assert.Error(t, err)
}

func TestMemoryLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := &models.Memory{UserID: "alice", Content: "Likes green tea", Metadata: json.RawMessage(`{"source":"chat"}`)}
	require.NoError(t, s.CreateMemory(ctx, m))
	assert.NotEqual(t, uuid.Nil, m.ID)
	assert.Equal(t, models.MemoryStateActive, m.State)

	got, err := s.GetMemory(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Likes green tea", got.Content)
	assert.JSONEq(t, `{"source":"chat"}`, string(got.Metadata))
	assert.WithinDuration(t, m.CreatedAt, got.CreatedAt, time.Second)
	assert.Nil(t, got.ArchivedAt)

	updated, err := s.UpdateMemoryContent(ctx, m.ID, "Likes oolong tea")
	require.NoError(t, err)
	assert.Equal(t, "Likes oolong tea", updated.Content)

	require.NoError(t, s.UpdateMemoryState(ctx, m.ID, models.MemoryStateArchived))
	got, err = s.GetMemory(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MemoryStateArchived, got.State)
	require.NotNil(t, got.ArchivedAt)

	err = s.CreateMemory(ctx, &models.Memory{ID: m.ID, Content: "dup"})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestMemory_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	missing := uuid.New()

	_, err := s.GetMemory(ctx, missing)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.UpdateMemoryContent(ctx, missing, "x")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.UpdateMemoryState(ctx, missing, models.MemoryStateDeleted), store.ErrNotFound)
}

func TestListMemories_Filters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := createMemory(t, s, "first")
	second := createMemory(t, s, "second")
	third := createMemory(t, s, "third")
	other := &models.Memory{UserID: "bob", Content: "bob's memory"}
	require.NoError(t, s.CreateMemory(ctx, other))
	require.NoError(t, s.UpdateMemoryState(ctx, third.ID, models.MemoryStateDeleted))

	cats, err := s.GetOrCreateCategories(ctx, []string{"work"}, models.DefaultCategoryDescription)
	require.NoError(t, err)
	require.NoError(t, s.AddMemoryCategories(ctx, first.ID, []uuid.UUID{cats[0].ID}))

	all, err := s.ListMemories(ctx, models.MemoryFilter{UserID: "alice"})
	require.NoError(t, err)
	require.Len(t, all, 2, "deleted memories are hidden by default")
	assert.Equal(t, second.ID, all[0].ID, "newest first")

	deleted, err := s.ListMemories(ctx, models.MemoryFilter{State: models.MemoryStateDeleted})
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, third.ID, deleted[0].ID)

	work, err := s.ListMemories(ctx, models.MemoryFilter{Category: " Work "})
	require.NoError(t, err)
	require.Len(t, work, 1)
	assert.Equal(t, first.ID, work[0].ID)

	page, err := s.ListMemories(ctx, models.MemoryFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestCategories_GetOrCreateAndLink(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m := createMemory(t, s, "Booked flights to Lisbon for the team offsite")

	cats, err := s.GetOrCreateCategories(ctx, []string{"travel", "work", "travel", " ", ""}, models.DefaultCategoryDescription)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	require.NotNil(t, cats[0].Description)
	assert.Equal(t, models.DefaultCategoryDescription, *cats[0].Description)

	again, err := s.GetOrCreateCategories(ctx, []string{"work"}, "ignored")
	require.NoError(t, err)
	assert.Equal(t, cats[1].ID, again[0].ID, "existing category is reused")
	assert.Equal(t, models.DefaultCategoryDescription, *again[0].Description)

	ids := []uuid.UUID{cats[0].ID, cats[1].ID}
	require.NoError(t, s.AddMemoryCategories(ctx, m.ID, ids))
	require.NoError(t, s.AddMemoryCategories(ctx, m.ID, ids), "linking twice is a no-op")

	linked, err := s.GetMemoryCategories(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, linked, 2)
	assert.Equal(t, "travel", linked[0].Name)

	byMemory, err := s.GetCategoriesForMemories(ctx, []uuid.UUID{m.ID, uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, []string{"travel", "work"}, byMemory[m.ID])

	listed, err := s.ListCategories(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, int64(1), listed[0].MemoryCount)

	err = s.AddMemoryCategories(ctx, uuid.New(), ids)
	assert.ErrorIs(t, err, store.ErrForeignKeyViolation)
}

func TestUsage(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	memoryID := uuid.New()

	require.NoError(t, s.RecordUsage(ctx, &models.AIUsageLog{
		ProviderName: "openai", ServiceType: models.ServiceTypeCategorization, ModelName: "gpt-4o-mini",
		InputTokens: 100, OutputTokens: 10, Cost: 0.25, RelatedMemoryID: &memoryID,
	}))
	second := &models.AIUsageLog{ProviderName: "gemini", ServiceType: models.ServiceTypeCategorization, ModelName: "gemini-1.5-flash", InputTokens: 50, OutputTokens: 5, Cost: 0.5}
	require.NoError(t, s.RecordUsage(ctx, second))
	assert.NotZero(t, second.ID)

	logs, err := s.ListUsage(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "gemini", logs[0].ProviderName)
	require.NotNil(t, logs[1].RelatedMemoryID)
	assert.Equal(t, memoryID, *logs[1].RelatedMemoryID)
	assert.Nil(t, logs[0].RelatedMemoryID)

	sum, err := s.GetUsageSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum.Calls)
	assert.InDelta(t, 0.75, sum.TotalCost, 1e-9)
	assert.Equal(t, int64(150), sum.TotalInputTokens)
	assert.Equal(t, int64(15), sum.TotalOutputTokens)
}

func TestUsageSummary_Empty(t *testing.T) {
	sum, err := newTestStore(t).GetUsageSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.UsageSummary{}, sum)
}

func TestJobs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	jobID, memoryID := uuid.New(), uuid.New()

	params := store.JobRecordParams{
		JobID: jobID, TaskType: "memory:categorize", Payload: []byte(`{"memory_id":"` + memoryID.String() + `"}`),
		Queue: "categorization", Status: models.JobStatusEnqueued,
		RelatedEntityType: models.EntityTypeMemory, RelatedEntityID: memoryID,
	}
	require.NoError(t, s.RecordJobEnqueue(ctx, params))
	require.NoError(t, s.RecordJobEnqueue(ctx, params), "recording twice is ignored")

	require.NoError(t, s.UpdateJobStatus(ctx, jobID, models.JobStatusFailed, "model unavailable"))
	job, err := s.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, "model unavailable", *job.Error)
	require.NotNil(t, job.RelatedEntityID)
	assert.Equal(t, memoryID, *job.RelatedEntityID)
	assert.JSONEq(t, string(params.Payload), string(job.Payload))

	require.NoError(t, s.UpdateJobStatus(ctx, jobID, models.JobStatusCompleted, ""))
	jobs, err := s.ListJobs(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Nil(t, jobs[0].Error)

	assert.ErrorIs(t, s.UpdateJobStatus(ctx, uuid.New(), models.JobStatusRunning, ""), store.ErrNotFound)
	_, err = s.GetJob(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "concurrent.db")
	s, err := Open(ctx, path, store.PoolOptions{PoolSize: 2, MaxOverflow: 2, PoolTimeout: 5 * time.Second})
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Migrate(ctx))

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.CreateMemory(ctx, &models.Memory{Content: "parallel"})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	all, err := s.ListMemories(ctx, models.MemoryFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 20)
}
