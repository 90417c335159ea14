// Package database opens the store backend named by a database URL.
package database

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"memcat/internal/config"
	"memcat/internal/store"
	"memcat/internal/store/primary"
	"memcat/internal/store/sqlite"
)

// Backend names.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Target is a parsed database URL.
type Target struct {
	Backend string
	// DSN is what the backend driver receives: the URL itself for Postgres,
	// a file path (or sqlite.MemoryPath) for SQLite.
	DSN string
}

// ParseURL maps a database URL to its backend. For SQLite, sqlite:///relative.db
// names a relative path and sqlite:////absolute.db an absolute one.
func ParseURL(rawURL string) (Target, error) {
	u := strings.TrimSpace(rawURL)
	switch {
	case u == "":
		return Target{}, fmt.Errorf("%w: database URL is empty", store.ErrUnsupportedURL)
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return Target{Backend: BackendPostgres, DSN: u}, nil
	case strings.HasPrefix(u, "sqlite://"):
		path := strings.TrimPrefix(u, "sqlite://")
		path = strings.TrimPrefix(path, "/")
		if path == "" {
			path = sqlite.MemoryPath
		}
		return Target{Backend: BackendSQLite, DSN: path}, nil
	case strings.HasPrefix(u, "file:"):
		path := strings.TrimPrefix(u, "file:")
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		if path == "" {
			return Target{}, fmt.Errorf("%w: %q has no path", store.ErrUnsupportedURL, rawURL)
		}
		return Target{Backend: BackendSQLite, DSN: path}, nil
	}
	return Target{}, fmt.Errorf("%w: %q (want postgres://, sqlite:// or file:)", store.ErrUnsupportedURL, rawURL)
}

// PoolOptions converts the database config to store pool options.
func PoolOptions(cfg config.DatabaseConfig) store.PoolOptions {
	return store.PoolOptions{
		PoolSize:     cfg.PoolSize,
		MaxOverflow:  cfg.MaxOverflow,
		PoolTimeout:  cfg.PoolTimeout,
		PoolRecycle:  cfg.PoolRecycle,
		PrePing:      cfg.PoolPrePing,
		PingInterval: cfg.PingInterval,
	}
}

// Open connects to the configured database.
func Open(ctx context.Context, cfg config.DatabaseConfig) (store.Store, error) {
	target, err := ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	opts := PoolOptions(cfg)
	log.WithFields(log.Fields{
		"backend":   target.Backend,
		"pool_size": opts.PoolSize,
		"max_conns": opts.MaxConns(),
	}).Debug("Opening database")

	if target.Backend == BackendPostgres {
		ps, err := primary.NewPrimaryStore(ctx, target.DSN, opts)
		if err != nil {
			return nil, err
		}
		return ps, nil
	}
	ss, err := sqlite.Open(ctx, target.DSN, opts)
	if err != nil {
		return nil, err
	}
	return ss, nil
}
