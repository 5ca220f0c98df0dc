// Package db is the Postgres-backed coordination store for the hub:
// connection pooling, migrations, and the repository the dispatcher
// executes protocol operations against.
package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const logPrefix = "db:pool"

// PoolOpts sizes the connection pool. Zero values use defaults.
type PoolOpts struct {
	MaxConns int32
	MinConns int32
}

// NewPool creates a pgx connection pool and verifies it with a ping.
func NewPool(ctx context.Context, databaseURL string, opts *PoolOpts) (*pgxpool.Pool, error) {
	slog.Info(fmt.Sprintf("%s - Connecting to database", logPrefix))

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to parse database URL: %w", logPrefix, err)
	}

	config.MaxConns = 20
	config.MinConns = 2
	if opts != nil {
		if opts.MaxConns > 0 {
			config.MaxConns = opts.MaxConns
		}
		if opts.MinConns > 0 && opts.MinConns <= config.MaxConns {
			config.MinConns = opts.MinConns
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create pool: %w", logPrefix, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s - failed to ping database: %w", logPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Database connection established (max=%d min=%d)", logPrefix, config.MaxConns, config.MinConns))
	return pool, nil
}
