// Package sqlite is the embedded store backend used for local installs and tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"memcat/internal/store"
)

var _ store.Store = (*Store)(nil)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store implements store.Store on a SQLite file.
type Store struct {
	db *sql.DB
}

// DSN builds the go-sqlite3 connection string for path.
func DSN(path string, opts store.PoolOptions) string {
	params := url.Values{}
	params.Set("_foreign_keys", "on")
	if path == MemoryPath {
		// Each connection to a plain :memory: database sees its own empty
		// database, so name it and share the cache between connections.
		params.Set("mode", "memory")
		params.Set("cache", "shared")
		return "file:memcat-" + uuid.NewString() + "?" + params.Encode()
	}
	params.Set("_journal_mode", "WAL")
	busy := opts.PoolTimeout.Milliseconds()
	if busy <= 0 {
		busy = 5000
	}
	params.Set("_busy_timeout", fmt.Sprint(busy))
	return "file:" + path + "?" + params.Encode()
}

// Open opens (creating if needed) the database at path and verifies it.
func Open(ctx context.Context, path string, opts store.PoolOptions) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite database path cannot be empty")
	}
	db, err := sql.Open("sqlite3", DSN(path, opts))
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}

	if path == MemoryPath {
		// The database lives as long as one connection does.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		if maxConns := opts.MaxConns(); maxConns > 0 {
			db.SetMaxOpenConns(maxConns)
		}
		if opts.PoolSize > 0 {
			db.SetMaxIdleConns(opts.PoolSize)
		}
		if opts.PoolRecycle > 0 {
			db.SetConnMaxLifetime(opts.PoolRecycle)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping sqlite database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for i, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply schema statement %d: %w", i+1, err)
			}
		}
		return nil
	})
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == code
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS memories (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL DEFAULT '',
		app_name    TEXT NOT NULL DEFAULT '',
		content     TEXT NOT NULL,
		metadata    TEXT NOT NULL DEFAULT '{}',
		state       TEXT NOT NULL DEFAULT 'active',
		archived_at DATETIME,
		deleted_at  DATETIME,
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_memories_user_state ON memories (user_id, state)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		description TEXT,
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS memory_categories (
		memory_id   TEXT NOT NULL REFERENCES memories (id) ON DELETE CASCADE,
		category_id TEXT NOT NULL REFERENCES categories (id) ON DELETE CASCADE,
		PRIMARY KEY (memory_id, category_id)
	)`,
	`CREATE TABLE IF NOT EXISTS ai_usage_logs (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp         DATETIME NOT NULL,
		provider_name     TEXT NOT NULL,
		service_type      TEXT NOT NULL,
		model_name        TEXT NOT NULL,
		input_tokens      INTEGER NOT NULL DEFAULT 0,
		output_tokens     INTEGER NOT NULL DEFAULT 0,
		cost              REAL NOT NULL DEFAULT 0,
		related_memory_id TEXT,
		related_job_id    TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS background_jobs (
		id                  INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id              TEXT NOT NULL UNIQUE,
		task_type           TEXT NOT NULL,
		payload             TEXT NOT NULL DEFAULT '{}',
		queue               TEXT NOT NULL,
		status              TEXT NOT NULL,
		related_entity_type TEXT,
		related_entity_id   TEXT,
		error               TEXT,
		created_at          DATETIME NOT NULL,
		updated_at          DATETIME NOT NULL
	)`,
}
