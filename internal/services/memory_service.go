// Package services holds the memory and categorization business logic
// shared by the HTTP API, the CLI and the worker.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"memcat/internal/config"
	"memcat/internal/models"
	"memcat/internal/store"
	"memcat/internal/util"
)

type CreateMemoryParams struct {
	UserID   string
	AppName  string
	Content  string
	Metadata json.RawMessage
}

type MemoryServiceDeps struct {
	MemoryStore           store.MemoryStore
	CategoryStore         store.CategoryStore
	CategorizationService *CategorizationService // nil disables categorization
	JobClient             store.JobClient        // required for async mode
	Mode                  string                 // config.ModeSync, ModeAsync or ModeOff
}

type MemoryService struct {
	memories   store.MemoryStore
	categories store.CategoryStore
	cats       *CategorizationService
	jobs       store.JobClient
	mode       string
}

func NewMemoryService(deps MemoryServiceDeps) *MemoryService {
	mode := deps.Mode
	if mode == "" {
		mode = config.ModeSync
	}
	return &MemoryService{
		memories:   deps.MemoryStore,
		categories: deps.CategoryStore,
		cats:       deps.CategorizationService,
		jobs:       deps.JobClient,
		mode:       mode,
	}
}

// CreateMemory stores a new active memory and categorizes it according to
// the configured mode. Categorization failures never fail the create.
func (s *MemoryService) CreateMemory(ctx context.Context, p CreateMemoryParams) (*models.Memory, error) {
	content, err := cleanContent(p.Content)
	if err != nil {
		return nil, err
	}
	if len(p.Metadata) > 0 && !json.Valid(p.Metadata) {
		return nil, fmt.Errorf("metadata must be valid JSON: %w", models.ErrValidation)
	}

	memory := &models.Memory{
		UserID:   p.UserID,
		AppName:  p.AppName,
		Content:  content,
		Metadata: p.Metadata,
		State:    models.MemoryStateActive,
	}
	if err := s.memories.CreateMemory(ctx, memory); err != nil {
		return nil, fmt.Errorf("create memory: %w", err)
	}
	log.WithFields(log.Fields{"memory_id": memory.ID, "user_id": memory.UserID}).Info("Memory created")

	s.triggerCategorization(ctx, memory.ID)
	return memory, s.attachCategories(ctx, memory)
}

// UpdateMemory replaces the content of an active or paused memory and
// categorizes it again. New categories are added to the existing ones.
func (s *MemoryService) UpdateMemory(ctx context.Context, id uuid.UUID, content string) (*models.Memory, error) {
	content, err := cleanContent(content)
	if err != nil {
		return nil, err
	}
	current, err := s.GetMemory(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.State == models.MemoryStateArchived {
		return nil, fmt.Errorf("memory %s is archived: %w", id, models.ErrInvalidState)
	}

	memory, err := s.memories.UpdateMemoryContent(ctx, id, content)
	if err != nil {
		return nil, wrapStoreErr("update memory", id, err)
	}
	s.triggerCategorization(ctx, id)
	return memory, s.attachCategories(ctx, memory)
}

// GetMemory returns a memory with its categories. Deleted memories are not found.
func (s *MemoryService) GetMemory(ctx context.Context, id uuid.UUID) (*models.Memory, error) {
	memory, err := s.memories.GetMemory(ctx, id)
	if err != nil {
		return nil, wrapStoreErr("get memory", id, err)
	}
	if memory.State == models.MemoryStateDeleted {
		return nil, fmt.Errorf("memory %s: %w", id, models.ErrNotFound)
	}
	return memory, s.attachCategories(ctx, memory)
}

// ListMemories lists memories matching filter with their categories.
func (s *MemoryService) ListMemories(ctx context.Context, filter models.MemoryFilter) ([]*models.Memory, error) {
	if filter.State != "" && !filter.State.Valid() {
		return nil, fmt.Errorf("unknown memory state %q: %w", filter.State, models.ErrValidation)
	}
	memories, err := s.memories.ListMemories(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories from store: %w", err)
	}
	if len(memories) == 0 {
		return memories, nil
	}

	ids := make([]uuid.UUID, len(memories))
	for i, m := range memories {
		ids[i] = m.ID
	}
	byMemory, err := s.categories.GetCategoriesForMemories(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories for memories: %w", err)
	}
	for _, m := range memories {
		m.Categories = byMemory[m.ID]
		if m.Categories == nil {
			m.Categories = []string{}
		}
	}
	return memories, nil
}

// ArchiveMemory moves a memory to the archived state. Archiving twice is allowed.
func (s *MemoryService) ArchiveMemory(ctx context.Context, id uuid.UUID) (*models.Memory, error) {
	if _, err := s.GetMemory(ctx, id); err != nil {
		return nil, err
	}
	if err := s.memories.UpdateMemoryState(ctx, id, models.MemoryStateArchived); err != nil {
		return nil, wrapStoreErr("archive memory", id, err)
	}
	return s.GetMemory(ctx, id)
}

// DeleteMemory soft-deletes a memory. Its category links are kept.
func (s *MemoryService) DeleteMemory(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetMemory(ctx, id); err != nil {
		return err
	}
	if err := s.memories.UpdateMemoryState(ctx, id, models.MemoryStateDeleted); err != nil {
		return wrapStoreErr("delete memory", id, err)
	}
	log.WithField("memory_id", id).Info("Memory deleted")
	return nil
}

// RecategorizeMemory runs categorization inline whatever the mode and
// returns the memory with its updated categories.
func (s *MemoryService) RecategorizeMemory(ctx context.Context, id uuid.UUID) (*models.Memory, error) {
	memory, err := s.GetMemory(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cats == nil {
		return memory, nil
	}
	if _, err := s.cats.CategorizeMemory(ctx, id); err != nil {
		return nil, err
	}
	return memory, s.attachCategories(ctx, memory)
}

func (s *MemoryService) triggerCategorization(ctx context.Context, id uuid.UUID) {
	switch s.mode {
	case config.ModeOff:
		return
	case config.ModeAsync:
		if s.jobs == nil {
			log.Warnf("Cannot enqueue categorization for memory %s: %v", id, models.ErrJobsDisabled)
			return
		}
		jobID, err := s.jobs.EnqueueCategorizationJob(ctx, id)
		if err != nil {
			log.Errorf("Failed to enqueue categorization job for memory %s: %v", id, err)
			return
		}
		log.Debugf("Enqueued categorization job %s for memory %s", jobID, id)
	default:
		if s.cats == nil {
			return
		}
		if _, err := s.cats.CategorizeMemory(ctx, id); err != nil {
			log.Errorf("Error categorizing memory %s: %v", id, err)
		}
	}
}

func (s *MemoryService) attachCategories(ctx context.Context, memory *models.Memory) error {
	cats, err := s.categories.GetMemoryCategories(ctx, memory.ID)
	if err != nil {
		return fmt.Errorf("failed to load categories for memory %s: %w", memory.ID, err)
	}
	memory.Categories = make([]string, 0, len(cats))
	for _, c := range cats {
		memory.Categories = append(memory.Categories, c.Name)
	}
	return nil
}

func cleanContent(raw string) (string, error) {
	content, err := util.CleanText([]byte(raw), "memory content")
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, models.ErrValidation)
	}
	if content == "" {
		return "", fmt.Errorf("memory content cannot be empty: %w", models.ErrValidation)
	}
	return content, nil
}

func wrapStoreErr(op string, id uuid.UUID, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", op, id, models.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, id, err)
}
