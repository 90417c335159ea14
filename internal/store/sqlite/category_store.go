package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"memcat/internal/models"
	"memcat/internal/store"
)

func (s *Store) GetOrCreateCategories(ctx context.Context, names []string, description string) ([]*models.Category, error) {
	seen := make(map[string]struct{}, len(names))
	categories := make([]*models.Category, 0, len(names))

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}

			// RETURNING loses the DATETIME column types, so read the row back.
			_, err := tx.ExecContext(ctx, `
				INSERT INTO categories (id, name, description, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (name) DO NOTHING`,
				uuid.New(), name, description, now, now)
			if err != nil {
				return fmt.Errorf("failed to create category '%s': %w", name, err)
			}
			c := &models.Category{}
			err = tx.QueryRowContext(ctx,
				`SELECT id, name, description, created_at, updated_at FROM categories WHERE name = ?`, name,
			).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
			if err != nil {
				return fmt.Errorf("failed to get category '%s': %w", name, err)
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

func (s *Store) AddMemoryCategories(ctx context.Context, memoryID uuid.UUID, categoryIDs []uuid.UUID) error {
	if len(categoryIDs) == 0 {
		return nil
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range categoryIDs {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO memory_categories (memory_id, category_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
				memoryID, id)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
			return fmt.Errorf("memory %s or one of its categories does not exist: %w", memoryID, store.ErrForeignKeyViolation)
		}
		return fmt.Errorf("failed to link categories to memory %s: %w", memoryID, err)
	}
	return nil
}

func (s *Store) GetMemoryCategories(ctx context.Context, memoryID uuid.UUID) ([]*models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.description, c.created_at, c.updated_at
		FROM categories c
		JOIN memory_categories mc ON mc.category_id = c.id
		WHERE mc.memory_id = ?
		ORDER BY c.name`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories for memory %s: %w", memoryID, err)
	}
	defer rows.Close()

	categories := []*models.Category{}
	for rows.Next() {
		c := &models.Category{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) GetCategoriesForMemories(ctx context.Context, memoryIDs []uuid.UUID) (map[uuid.UUID][]string, error) {
	result := make(map[uuid.UUID][]string, len(memoryIDs))
	if len(memoryIDs) == 0 {
		return result, nil
	}
	args := make([]any, len(memoryIDs))
	for i, id := range memoryIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT mc.memory_id, c.name
		FROM memory_categories mc
		JOIN categories c ON c.id = mc.category_id
		WHERE mc.memory_id IN (`+placeholders(len(args))+`)
		ORDER BY c.name`, args...)
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
	return result, rows.Err()
}

func (s *Store) ListCategories(ctx context.Context, limit, offset int) ([]*models.Category, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.description, c.created_at, c.updated_at, COUNT(mc.memory_id)
		FROM categories c
		LEFT JOIN memory_categories mc ON mc.category_id = c.id
		GROUP BY c.id
		ORDER BY c.name
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := []*models.Category{}
	for rows.Next() {
		c := &models.Category{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt, &c.MemoryCount); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
