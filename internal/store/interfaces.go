package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"memcat/internal/models"
)

// --- Job Client ---

type JobClient interface {
	// Enqueue records the related entity alongside the job row.
	Enqueue(ctx context.Context, task *asynq.Task, relatedEntityType string, relatedEntityID uuid.UUID, opts ...asynq.Option) (*asynq.TaskInfo, error)
	EnqueueCategorizationJob(ctx context.Context, memoryID uuid.UUID) (uuid.UUID, error)
	Close() error
}

// --- Memory Store ---

type MemoryStore interface {
	CreateMemory(ctx context.Context, memory *models.Memory) error
	GetMemory(ctx context.Context, id uuid.UUID) (*models.Memory, error)
	// UpdateMemoryContent replaces the content and bumps updated_at.
	UpdateMemoryContent(ctx context.Context, id uuid.UUID, content string) (*models.Memory, error)
	// UpdateMemoryState sets the state and the matching archived_at/deleted_at stamp.
	UpdateMemoryState(ctx context.Context, id uuid.UUID, state models.MemoryState) error
	ListMemories(ctx context.Context, filter models.MemoryFilter) ([]*models.Memory, error)
}

// --- Category Store ---

type CategoryStore interface {
	// GetOrCreateCategories returns one category per distinct name, creating
	// the missing ones with description.
	GetOrCreateCategories(ctx context.Context, names []string, description string) ([]*models.Category, error)
	// AddMemoryCategories links categories to a memory. Existing links are kept.
	AddMemoryCategories(ctx context.Context, memoryID uuid.UUID, categoryIDs []uuid.UUID) error
	GetMemoryCategories(ctx context.Context, memoryID uuid.UUID) ([]*models.Category, error)
	GetCategoriesForMemories(ctx context.Context, memoryIDs []uuid.UUID) (map[uuid.UUID][]string, error)
	ListCategories(ctx context.Context, limit, offset int) ([]*models.Category, error)
}

// --- Usage Store ---

type UsageStore interface {
	RecordUsage(ctx context.Context, log *models.AIUsageLog) error
	ListUsage(ctx context.Context, limit, offset int) ([]*models.AIUsageLog, error)
	GetUsageSummary(ctx context.Context) (models.UsageSummary, error)
}

// --- Job Store ---

// JobRecordParams holds parameters for recording a job event.
type JobRecordParams struct {
	JobID             uuid.UUID
	TaskType          string
	Payload           []byte
	Queue             string
	Status            string
	RelatedEntityType string    // Optional: e.g., "memory"
	RelatedEntityID   uuid.UUID // Optional: uuid.Nil when unset
}

type JobStore interface {
	RecordJobEnqueue(ctx context.Context, params JobRecordParams) error
	// UpdateJobStatus sets the status; errMsg is stored when non-empty.
	UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status, errMsg string) error
	GetJob(ctx context.Context, jobID uuid.UUID) (*models.BackgroundJob, error)
	ListJobs(ctx context.Context, limit, offset int) ([]*models.BackgroundJob, error)
}

// Store is everything a database backend provides.
type Store interface {
	MemoryStore
	CategoryStore
	UsageStore
	JobStore

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// PoolOptions sizes a backend's connection pool.
type PoolOptions struct {
	// PoolSize connections are kept open; MaxOverflow more may be opened under load.
	PoolSize    int
	MaxOverflow int
	// PoolTimeout bounds connection establishment (Postgres) or lock waits (SQLite).
	PoolTimeout time.Duration
	// PoolRecycle is the maximum connection lifetime; 0 keeps connections forever.
	PoolRecycle time.Duration
	// PrePing checks a connection before handing it out.
	PrePing      bool
	PingInterval time.Duration
}

// MaxConns is the hard connection ceiling.
func (o PoolOptions) MaxConns() int {
	return o.PoolSize + o.MaxOverflow
}
