package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// TypeCategorizeMemory assigns categories to a stored memory.
	TypeCategorizeMemory = "memory:categorize"

	// QueueCategorization is the queue categorization jobs are sent to.
	QueueCategorization = "categorization"
)

// CategorizeMemoryPayload is the JSON body of a TypeCategorizeMemory task.
type CategorizeMemoryPayload struct {
	MemoryID uuid.UUID `json:"memory_id"`
}

// NewCategorizeMemoryTask builds the task for memoryID.
func NewCategorizeMemoryTask(memoryID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(CategorizeMemoryPayload{MemoryID: memoryID})
	if err != nil {
		return nil, fmt.Errorf("marshal categorize payload: %w", err)
	}
	return asynq.NewTask(TypeCategorizeMemory, payload), nil
}

// ParseCategorizeMemoryPayload decodes a TypeCategorizeMemory payload.
func ParseCategorizeMemoryPayload(data []byte) (CategorizeMemoryPayload, error) {
	var p CategorizeMemoryPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode categorize payload: %w", err)
	}
	if p.MemoryID == uuid.Nil {
		return p, fmt.Errorf("decode categorize payload: memory_id is required")
	}
	return p, nil
}
