package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"memcat/internal/config"
	"memcat/internal/costtracker"
	"memcat/internal/models"
	"memcat/internal/store"
	"memcat/pkg/categorizer"
)

// CategorizationService runs the categorizer and applies its labels to
// stored memories.
type CategorizationService struct {
	categorizer categorizer.MemoryCategorizer
	memories    store.MemoryStore
	categories  store.CategoryStore
	cache       *ristretto.Cache // nil when caching is disabled
}

// NewCategorizationService wires the categorizer to the stores. A disabled
// cache config skips result caching.
func NewCategorizationService(cat categorizer.MemoryCategorizer, memories store.MemoryStore, categories store.CategoryStore, cacheCfg config.CacheConfig) (*CategorizationService, error) {
	if cat == nil {
		return nil, errors.New("categorization service requires a categorizer")
	}
	s := &CategorizationService{categorizer: cat, memories: memories, categories: categories}
	if cacheCfg.Enabled {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: cacheCfg.NumCounters,
			MaxCost:     cacheCfg.MaxCost,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create categorization cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// Close releases the result cache.
func (s *CategorizationService) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Suggest categorizes free text without touching the store. Only successful
// model answers are cached; a disabled or failed run is retried next time.
func (s *CategorizationService) Suggest(ctx context.Context, text string) (categorizer.Result, error) {
	key := cacheKey(text)
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			if labels, ok := v.([]string); ok {
				return categorizer.Result{Labels: append([]string{}, labels...), Status: categorizer.StatusOK}, nil
			}
		}
	}

	res, err := s.categorizer.CategorizeDetailed(ctx, text)
	if err != nil {
		return res, err
	}
	if s.cache != nil && res.OK() {
		s.cache.Set(key, append([]string{}, res.Labels...), 1)
	}
	return res, nil
}

// CategorizeMemory categorizes a stored memory and links the resulting
// categories to it. Existing links are kept. It returns the labels the model
// produced, which may be empty.
func (s *CategorizationService) CategorizeMemory(ctx context.Context, memoryID uuid.UUID) ([]string, error) {
	memory, err := s.memories.GetMemory(ctx, memoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory %s: %w", memoryID, err)
	}
	if memory.State == models.MemoryStateDeleted {
		return nil, fmt.Errorf("memory %s is deleted: %w", memoryID, models.ErrInvalidState)
	}

	ctx = costtracker.WithMemoryID(ctx, memoryID)
	res, err := s.Suggest(ctx, memory.Content)
	if err != nil {
		return nil, fmt.Errorf("categorize memory %s: %w", memoryID, err)
	}
	if err := s.ApplyCategories(ctx, memoryID, res.Labels); err != nil {
		return nil, err
	}
	return res.Labels, nil
}

// ApplyCategories links the named categories to a memory, creating the
// missing ones. An empty list is a no-op.
func (s *CategorizationService) ApplyCategories(ctx context.Context, memoryID uuid.UUID, labels []string) error {
	if len(labels) == 0 {
		log.Debugf("No categories to apply for memory %s", memoryID)
		return nil
	}
	cats, err := s.categories.GetOrCreateCategories(ctx, labels, models.DefaultCategoryDescription)
	if err != nil {
		return fmt.Errorf("failed to get or create categories %v: %w", labels, err)
	}
	ids := make([]uuid.UUID, 0, len(cats))
	for _, c := range cats {
		ids = append(ids, c.ID)
	}
	if err := s.categories.AddMemoryCategories(ctx, memoryID, ids); err != nil {
		return fmt.Errorf("failed to link categories to memory %s: %w", memoryID, err)
	}
	log.Infof("Applied categories %v to memory %s", labels, memoryID)
	return nil
}

// ListCategories returns categories with their memory counts.
func (s *CategorizationService) ListCategories(ctx context.Context, limit, offset int) ([]*models.Category, error) {
	cats, err := s.categories.ListCategories(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories from store: %w", err)
	}
	return cats, nil
}
