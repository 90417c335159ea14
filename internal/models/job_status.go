package models

// Job status constants
const (
	JobStatusEnqueued  = "enqueued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Usage service types recorded in ai_usage_logs.
const (
	ServiceTypeCategorization = "categorization"
)

// Entity types referenced by background jobs.
const (
	EntityTypeMemory = "memory"
)

// DefaultCategoryDescription is attached to categories created from model output.
const DefaultCategoryDescription = "Automatically created category"
