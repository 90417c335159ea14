package sqlite

import (
	"context"
	"fmt"
	"time"

	"memcat/internal/models"
)

func (s *Store) RecordUsage(ctx context.Context, log *models.AIUsageLog) error {
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_usage_logs (
			timestamp, provider_name, service_type, model_name,
			input_tokens, output_tokens, cost, related_memory_id, related_job_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.Timestamp, log.ProviderName, log.ServiceType, log.ModelName,
		log.InputTokens, log.OutputTokens, log.Cost, log.RelatedMemoryID, log.RelatedJobID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ai_usage_log: %w", err)
	}
	if log.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read ai_usage_log id: %w", err)
	}
	return nil
}

func (s *Store) ListUsage(ctx context.Context, limit, offset int) ([]*models.AIUsageLog, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, provider_name, service_type, model_name,
		       input_tokens, output_tokens, cost, related_memory_id, related_job_id
		FROM ai_usage_logs
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query ai_usage_logs: %w", err)
	}
	defer rows.Close()

	logs := []*models.AIUsageLog{}
	for rows.Next() {
		var l models.AIUsageLog
		err := rows.Scan(&l.ID, &l.Timestamp, &l.ProviderName, &l.ServiceType, &l.ModelName,
			&l.InputTokens, &l.OutputTokens, &l.Cost, &l.RelatedMemoryID, &l.RelatedJobID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ai_usage_log: %w", err)
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

func (s *Store) GetUsageSummary(ctx context.Context) (models.UsageSummary, error) {
	var sum models.UsageSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(cost), 0.0), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
		FROM ai_usage_logs`,
	).Scan(&sum.Calls, &sum.TotalCost, &sum.TotalInputTokens, &sum.TotalOutputTokens)
	if err != nil {
		return models.UsageSummary{}, fmt.Errorf("failed to summarize ai_usage_logs: %w", err)
	}
	return sum, nil
}
