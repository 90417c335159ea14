package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"memcat/internal/models"
	"memcat/internal/store"
)

const memoryColumns = `m.id, m.user_id, m.app_name, m.content, m.metadata, m.state, m.archived_at, m.deleted_at, m.created_at, m.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*models.Memory, error) {
	var (
		m        models.Memory
		metadata sql.NullString
	)
	err := row.Scan(
		&m.ID, &m.UserID, &m.AppName, &m.Content, &metadata, &m.State,
		&m.ArchivedAt, &m.DeletedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if metadata.Valid && metadata.String != "" {
		m.Metadata = json.RawMessage(metadata.String)
	}
	return &m, nil
}

func (s *Store) CreateMemory(ctx context.Context, memory *models.Memory) error {
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
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (id, user_id, app_name, content, metadata, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		memory.ID, memory.UserID, memory.AppName, memory.Content, string(memory.Metadata),
		memory.State, now, now,
	)
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintPrimaryKey) || isConstraint(err, sqlite3.ErrConstraintUnique) {
			return fmt.Errorf("memory %s already exists: %w", memory.ID, store.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	memory.CreatedAt, memory.UpdatedAt = now, now
	return nil
}

func (s *Store) GetMemory(ctx context.Context, id uuid.UUID) (*models.Memory, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories m WHERE m.id = ?`, id)
	m, err := scanMemory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get memory %s: %w", id, err)
	}
	return m, nil
}

func (s *Store) UpdateMemoryContent(ctx context.Context, id uuid.UUID, content string) (*models.Memory, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET content = ?, updated_at = ? WHERE id = ?`,
		content, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update memory %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetMemory(ctx, id)
}

func (s *Store) UpdateMemoryState(ctx context.Context, id uuid.UUID, state models.MemoryState) error {
	now := time.Now().UTC()
	query := `UPDATE memories SET state = ?, updated_at = ?`
	args := []any{state, now}
	switch state {
	case models.MemoryStateArchived:
		query += `, archived_at = ?`
		args = append(args, now)
	case models.MemoryStateDeleted:
		query += `, deleted_at = ?`
		args = append(args, now)
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update state for memory %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("memory %s not found to update state: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) ListMemories(ctx context.Context, filter models.MemoryFilter) ([]*models.Memory, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != "" {
		where = append(where, "m.user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.State != "" {
		where = append(where, "m.state = ?")
		args = append(args, filter.State)
	} else {
		where = append(where, "m.state <> ?")
		args = append(args, models.MemoryStateDeleted)
	}
	if filter.Category != "" {
		where = append(where, `EXISTS (
			SELECT 1 FROM memory_categories mc JOIN categories c ON c.id = mc.category_id
			WHERE mc.memory_id = m.id AND c.name = ?)`)
		args = append(args, strings.ToLower(strings.TrimSpace(filter.Category)))
	}

	query := `SELECT ` + memoryColumns + ` FROM memories m WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY m.created_at DESC, m.rowid DESC`
	// SQLite needs a LIMIT before OFFSET; -1 means unbounded.
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	memories := []*models.Memory{}
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		memories = append(memories, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memories: %w", err)
	}
	return memories, nil
}
