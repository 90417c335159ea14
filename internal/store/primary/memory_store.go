package primary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"memcat/internal/models"
	"memcat/internal/store"
)

const memoryColumns = `id, user_id, app_name, content, metadata, state, archived_at, deleted_at, created_at, updated_at`

func scanMemory(row pgx.Row) (*models.Memory, error) {
	m := &models.Memory{}
	err := row.Scan(
		&m.ID, &m.UserID, &m.AppName, &m.Content, &m.Metadata, &m.State,
		&m.ArchivedAt, &m.DeletedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// CreateMemory inserts a memory. A zero ID is replaced with a new UUID.
func (s *StoreImpl) CreateMemory(ctx context.Context, memory *models.Memory) error {
	if memory.ID == uuid.Nil {
		memory.ID = uuid.New()
	}
	if memory.State == "" {
		memory.State = models.MemoryStateActive
	}
	if len(memory.Metadata) == 0 {
		memory.Metadata = json.RawMessage("{}")
	}
	now := time.Now().UTC()
	query := `
		INSERT INTO memories (id, user_id, app_name, content, metadata, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`
	err := s.db.QueryRow(ctx, query,
		memory.ID, memory.UserID, memory.AppName, memory.Content, memory.Metadata,
		memory.State, now, now,
	).Scan(&memory.CreatedAt, &memory.UpdatedAt)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return fmt.Errorf("memory %s already exists: %w", memory.ID, store.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	return nil
}

func (s *StoreImpl) GetMemory(ctx context.Context, id uuid.UUID) (*models.Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories WHERE id = $1`
	m, err := scanMemory(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get memory %s: %w", id, err)
	}
	return m, nil
}

func (s *StoreImpl) UpdateMemoryContent(ctx context.Context, id uuid.UUID, content string) (*models.Memory, error) {
	query := `UPDATE memories SET content = $1, updated_at = $2 WHERE id = $3 RETURNING ` + memoryColumns
	m, err := scanMemory(s.db.QueryRow(ctx, query, content, time.Now().UTC(), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update memory %s: %w", id, err)
	}
	return m, nil
}

func (s *StoreImpl) UpdateMemoryState(ctx context.Context, id uuid.UUID, state models.MemoryState) error {
	now := time.Now().UTC()
	archivedAt, deletedAt := stateTimestamps(state, now)
	query := `
		UPDATE memories
		SET state = $1, archived_at = COALESCE($2, archived_at), deleted_at = COALESCE($3, deleted_at), updated_at = $4
		WHERE id = $5`
	cmdTag, err := s.db.Exec(ctx, query, state, archivedAt, deletedAt, now, id)
	if err != nil {
		return fmt.Errorf("failed to update state for memory %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("memory %s not found to update state: %w", id, store.ErrNotFound)
	}
	return nil
}

func stateTimestamps(state models.MemoryState, now time.Time) (archivedAt, deletedAt *time.Time) {
	switch state {
	case models.MemoryStateArchived:
		archivedAt = &now
	case models.MemoryStateDeleted:
		deletedAt = &now
	}
	return archivedAt, deletedAt
}

// ListMemories returns memories newest first. Without a state filter deleted
// memories are left out.
func (s *StoreImpl) ListMemories(ctx context.Context, filter models.MemoryFilter) ([]*models.Memory, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.UserID != "" {
		where = append(where, "m.user_id = "+arg(filter.UserID))
	}
	if filter.State != "" {
		where = append(where, "m.state = "+arg(filter.State))
	} else {
		where = append(where, "m.state <> "+arg(models.MemoryStateDeleted))
	}
	if filter.Category != "" {
		where = append(where, `EXISTS (
			SELECT 1 FROM memory_categories mc JOIN categories c ON c.id = mc.category_id
			WHERE mc.memory_id = m.id AND c.name = `+arg(strings.ToLower(strings.TrimSpace(filter.Category)))+`)`)
	}

	query := `SELECT m.id, m.user_id, m.app_name, m.content, m.metadata, m.state, m.archived_at, m.deleted_at, m.created_at, m.updated_at
		FROM memories m WHERE ` + strings.Join(where, " AND ") + ` ORDER BY m.created_at DESC`
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	memories, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Memory, error) {
		return scanMemory(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan memories: %w", err)
	}
	return memories, nil
}
