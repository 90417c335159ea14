package primary

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"memcat/internal/models"
)

// RecordUsage inserts a new AI usage log entry.
func (s *StoreImpl) RecordUsage(ctx context.Context, log *models.AIUsageLog) error {
	query := `
		INSERT INTO ai_usage_logs (
			timestamp, provider_name, service_type, model_name,
			input_tokens, output_tokens, cost,
			related_memory_id, related_job_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}
	err := s.db.QueryRow(ctx, query,
		log.Timestamp,
		log.ProviderName,
		log.ServiceType,
		log.ModelName,
		log.InputTokens,
		log.OutputTokens,
		log.Cost,
		log.RelatedMemoryID,
		log.RelatedJobID,
	).Scan(&log.ID)
	if err != nil {
		return fmt.Errorf("failed to insert ai_usage_log: %w", err)
	}
	return nil
}

// ListUsage returns AI usage logs, newest first.
func (s *StoreImpl) ListUsage(ctx context.Context, limit, offset int) ([]*models.AIUsageLog, error) {
	query := `
		SELECT id, timestamp, provider_name, service_type, model_name,
		       input_tokens, output_tokens, cost, related_memory_id, related_job_id
		FROM ai_usage_logs
		ORDER BY timestamp DESC, id DESC
		LIMIT $1 OFFSET $2`
	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query ai_usage_logs: %w", err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.AIUsageLog, error) {
		var log models.AIUsageLog
		err := row.Scan(
			&log.ID,
			&log.Timestamp,
			&log.ProviderName,
			&log.ServiceType,
			&log.ModelName,
			&log.InputTokens,
			&log.OutputTokens,
			&log.Cost,
			&log.RelatedMemoryID,
			&log.RelatedJobID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ai_usage_log: %w", err)
		}
		return &log, nil
	})
}

// GetUsageSummary returns the call count, total cost and token usage.
func (s *StoreImpl) GetUsageSummary(ctx context.Context) (models.UsageSummary, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(cost), 0),
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0)
		FROM ai_usage_logs`
	var sum models.UsageSummary
	err := s.db.QueryRow(ctx, query).Scan(&sum.Calls, &sum.TotalCost, &sum.TotalInputTokens, &sum.TotalOutputTokens)
	if err != nil {
		return models.UsageSummary{}, fmt.Errorf("failed to summarize ai_usage_logs: %w", err)
	}
	return sum, nil
}
