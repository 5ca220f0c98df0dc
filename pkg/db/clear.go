package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const clearLogPrefix = "db:clear"

// hubTables lists every coordination table. Order does not matter under CASCADE.
var hubTables = []string{"message_acks", "messages", "handoffs", "claims", "locks", "tasks", "agents", "peers"}

// ClearHub truncates all coordination state. The schema is kept.
func ClearHub(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info(fmt.Sprintf("%s - Clearing hub tables %v", clearLogPrefix, hubTables))

	sql := "TRUNCATE TABLE "
	for i, t := range hubTables {
		if i > 0 {
			sql += ", "
		}
		sql += quoteIdent(t)
	}
	sql += " CASCADE"

	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("%s - truncate failed: %w", clearLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Hub cleared", clearLogPrefix))
	return nil
}

// PurgeExpired deletes claims and locks whose TTL has passed and returns
// how many rows were removed.
func (r *Repository) PurgeExpired(ctx context.Context) (int64, error) {
	now := r.now()
	var total int64
	for _, table := range []string{"claims", "locks"} {
		tag, err := r.pool.Exec(ctx, `DELETE FROM `+quoteIdent(table)+` WHERE expires_at <= $1`, now)
		if err != nil {
			return total, fmt.Errorf("%s - purge %s failed: %w", clearLogPrefix, table, err)
		}
		total += tag.RowsAffected()
	}
	if total > 0 {
		slog.Info(fmt.Sprintf("%s - Purged %d expired claims/locks", clearLogPrefix, total))
	}
	return total, nil
}
