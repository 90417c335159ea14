// Package primary is the PostgreSQL store backend.
package primary

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"memcat/internal/store"
)

var _ store.Store = (*StoreImpl)(nil)

// StoreImpl implements store.Store using PostgreSQL.
type StoreImpl struct {
	db *pgxpool.Pool
}

// PoolConfig translates the pool options into a pgxpool configuration.
func PoolConfig(dsn string, opts store.PoolOptions) (*pgxpool.Config, error) {
	if dsn == "" {
		return nil, errors.New("database DSN cannot be empty")
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database DSN: %w", err)
	}
	if opts.PoolSize > 0 {
		poolConfig.MinConns = int32(opts.PoolSize)
		poolConfig.MaxConns = int32(opts.MaxConns())
	}
	if opts.PoolTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = opts.PoolTimeout
	}
	if opts.PoolRecycle > 0 {
		poolConfig.MaxConnLifetime = opts.PoolRecycle
	}
	if opts.PingInterval > 0 {
		poolConfig.HealthCheckPeriod = opts.PingInterval
	}
	if opts.PrePing {
		poolConfig.BeforeAcquire = func(ctx context.Context, conn *pgx.Conn) bool {
			if err := conn.Ping(ctx); err != nil {
				log.Warnf("Discarding stale database connection: %v", err)
				return false
			}
			return true
		}
	}
	return poolConfig, nil
}

// NewPrimaryStore creates a PostgreSQL store and verifies connectivity.
func NewPrimaryStore(ctx context.Context, dsn string, opts store.PoolOptions) (*StoreImpl, error) {
	poolConfig, err := PoolConfig(dsn, opts)
	if err != nil {
		return nil, err
	}

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &StoreImpl{db: dbpool}, nil
}

// Ping checks the database connection.
func (s *StoreImpl) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection pool.
func (s *StoreImpl) Close() error {
	s.db.Close()
	return nil
}

// Migrate creates the schema if it does not exist yet.
func (s *StoreImpl) Migrate(ctx context.Context) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		for i, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply schema statement %d: %w", i+1, err)
			}
		}
		return nil
	})
}

// pgCode returns the SQLSTATE of a PostgreSQL error, or "".
func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
)
