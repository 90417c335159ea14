package services

import (
	"context"
	"fmt"

	"memcat/internal/models"
	"memcat/internal/store"
)

// UsageService provides methods for accessing AI usage cost data.
type UsageService struct {
	store store.UsageStore
}

// NewUsageService creates a new UsageService.
func NewUsageService(store store.UsageStore) *UsageService {
	return &UsageService{store: store}
}

// ListUsage retrieves a paginated list of AI usage logs, newest first.
func (s *UsageService) ListUsage(ctx context.Context, limit, offset int) ([]*models.AIUsageLog, error) {
	logs, err := s.store.ListUsage(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage logs from store: %w", err)
	}
	return logs, nil
}

// GetSummary retrieves the total cost and token usage summary.
func (s *UsageService) GetSummary(ctx context.Context) (models.UsageSummary, error) {
	summary, err := s.store.GetUsageSummary(ctx)
	if err != nil {
		return models.UsageSummary{}, fmt.Errorf("failed to get usage summary from store: %w", err)
	}
	return summary, nil
}
