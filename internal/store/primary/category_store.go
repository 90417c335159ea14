package primary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"memcat/internal/models"
	"memcat/internal/store"
)

// uniqueNames trims names, drops blanks and keeps the first of each duplicate.
func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func (s *StoreImpl) GetOrCreateCategories(ctx context.Context, names []string, description string) ([]*models.Category, error) {
	names = uniqueNames(names)
	categories := make([]*models.Category, 0, len(names))
	if len(names) == 0 {
		return categories, nil
	}

	// The no-op update makes RETURNING yield the existing row on conflict.
	query := `
		INSERT INTO categories (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, description, created_at, updated_at`
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		for _, name := range names {
			c := &models.Category{}
			err := tx.QueryRow(ctx, query, uuid.New(), name, description, now).Scan(
				&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to get or create category '%s': %w", name, err)
			}
			categories = append(categories, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *StoreImpl) AddMemoryCategories(ctx context.Context, memoryID uuid.UUID, categoryIDs []uuid.UUID) error {
	if len(categoryIDs) == 0 {
		return nil
	}
	query := `INSERT INTO memory_categories (memory_id, category_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		for _, id := range categoryIDs {
			if _, err := tx.Exec(ctx, query, memoryID, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return fmt.Errorf("memory %s or one of its categories does not exist: %w", memoryID, store.ErrForeignKeyViolation)
		}
		return fmt.Errorf("failed to link categories to memory %s: %w", memoryID, err)
	}
	return nil
}

func (s *StoreImpl) GetMemoryCategories(ctx context.Context, memoryID uuid.UUID) ([]*models.Category, error) {
	query := `
		SELECT c.id, c.name, c.description, c.created_at, c.updated_at
		FROM categories c
		JOIN memory_categories mc ON mc.category_id = c.id
		WHERE mc.memory_id = $1
		ORDER BY c.name`
	rows, err := s.db.Query(ctx, query, memoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories for memory %s: %w", memoryID, err)
	}
	defer rows.Close()

	categories, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Category, error) {
		c := &models.Category{}
		err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan categories for memory %s: %w", memoryID, err)
	}
	return categories, nil
}

func (s *StoreImpl) GetCategoriesForMemories(ctx context.Context, memoryIDs []uuid.UUID) (map[uuid.UUID][]string, error) {
	result := make(map[uuid.UUID][]string, len(memoryIDs))
	if len(memoryIDs) == 0 {
		return result, nil
	}
	query := `
		SELECT mc.memory_id, c.name
		FROM memory_categories mc
		JOIN categories c ON c.id = mc.category_id
		WHERE mc.memory_id = ANY($1)
		ORDER BY c.name`
	rows, err := s.db.Query(ctx, query, memoryIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories for memories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   uuid.UUID
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan memory category: %w", err)
		}
		result[id] = append(result[id], name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memory categories: %w", err)
	}
	return result, nil
}

func (s *StoreImpl) ListCategories(ctx context.Context, limit, offset int) ([]*models.Category, error) {
	query := `
		SELECT c.id, c.name, c.description, c.created_at, c.updated_at, COUNT(mc.memory_id)
		FROM categories c
		LEFT JOIN memory_categories mc ON mc.category_id = c.id
		GROUP BY c.id
		ORDER BY c.name
		LIMIT $1 OFFSET $2`
	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	categories, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Category, error) {
		c := &models.Category{}
		err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt, &c.MemoryCount)
		return c, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []*models.Category{}, nil
		}
		return nil, fmt.Errorf("failed to scan categories: %w", err)
	}
	return categories, nil
}
