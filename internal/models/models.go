package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MemoryState is the lifecycle state of a memory.
type MemoryState string

const (
	MemoryStateActive   MemoryState = "active"
	MemoryStatePaused   MemoryState = "paused"
	MemoryStateArchived MemoryState = "archived"
	MemoryStateDeleted  MemoryState = "deleted"
)

// Valid reports whether s is a known state.
func (s MemoryState) Valid() bool {
	switch s {
	case MemoryStateActive, MemoryStatePaused, MemoryStateArchived, MemoryStateDeleted:
		return true
	}
	return false
}

// Memory is a single free-text fact remembered for a user.
type Memory struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	UserID     string          `db:"user_id" json:"user_id"`
	AppName    string          `db:"app_name" json:"app_name"`
	Content    string          `db:"content" json:"content"`
	Metadata   json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	State      MemoryState     `db:"state" json:"state"`
	ArchivedAt *time.Time      `db:"archived_at" json:"archived_at,omitempty"`
	DeletedAt  *time.Time      `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`

	// Categories is filled by the service layer, not stored in the row.
	Categories []string `db:"-" json:"categories"`
}

// Category is a topical label shared by many memories.
type Category struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	MemoryCount int64 `db:"memory_count" json:"memory_count"`
}

// MemoryFilter selects memories for listing. Zero values mean "any".
type MemoryFilter struct {
	UserID   string
	Category string
	State    MemoryState
	Limit    int
	Offset   int
}

// AIUsageLog represents a record of AI API usage for cost tracking.
type AIUsageLog struct {
	ID              int64      `db:"id" json:"id"`
	Timestamp       time.Time  `db:"timestamp" json:"timestamp"`
	ProviderName    string     `db:"provider_name" json:"provider_name"`
	ServiceType     string     `db:"service_type" json:"service_type"`
	ModelName       string     `db:"model_name" json:"model_name"`
	InputTokens     int        `db:"input_tokens" json:"input_tokens"`
	OutputTokens    int        `db:"output_tokens" json:"output_tokens"`
	Cost            float64    `db:"cost" json:"cost"`
	RelatedMemoryID *uuid.UUID `db:"related_memory_id" json:"related_memory_id,omitempty"`
	RelatedJobID    *uuid.UUID `db:"related_job_id" json:"related_job_id,omitempty"`
}

// UsageSummary aggregates AIUsageLog rows.
type UsageSummary struct {
	Calls             int64   `json:"calls"`
	TotalCost         float64 `json:"total_cost"`
	TotalInputTokens  int64   `json:"total_input_tokens"`
	TotalOutputTokens int64   `json:"total_output_tokens"`
}

// BackgroundJob mirrors the background_jobs table schema.
type BackgroundJob struct {
	ID                int64           `db:"id" json:"id"`
	JobID             uuid.UUID       `db:"job_id" json:"job_id"` // Asynq Task ID
	TaskType          string          `db:"task_type" json:"task_type"`
	Payload           json.RawMessage `db:"payload" json:"payload"`
	Queue             string          `db:"queue" json:"queue"`
	Status            string          `db:"status" json:"status"`
	RelatedEntityType *string         `db:"related_entity_type" json:"related_entity_type,omitempty"`
	RelatedEntityID   *uuid.UUID      `db:"related_entity_id" json:"related_entity_id,omitempty"`
	Error             *string         `db:"error" json:"error,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}
