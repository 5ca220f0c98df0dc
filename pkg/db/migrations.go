package db

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

const migrationsLogPrefix = "db:migrations"

// schemaMarkerTable is created by the first migration; its presence means
// the schema has been applied.
const schemaMarkerTable = "agents"

// Migration is one SQL file from the migrations directory.
type Migration struct {
	Name string
	SQL  string
}

// LoadMigrations reads all .sql files from dir, sorted by file name.
func LoadMigrations(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read migration dir %s: %w", migrationsLogPrefix, dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".sql" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to read %s: %w", migrationsLogPrefix, path, err)
		}
		out = append(out, Migration{Name: name, SQL: string(data)})
	}
	slog.Info(fmt.Sprintf("%s - Loaded %d migration files from %s", migrationsLogPrefix, len(out), dir))
	return out, nil
}

// RunMigrations applies migrations in order. Every migration is written to
// be idempotent, so re-running is safe.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) error {
	slog.Info(fmt.Sprintf("%s - Running %d migrations", migrationsLogPrefix, len(migrations)))

	for _, m := range migrations {
		if _, err := pool.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("%s - migration %s failed: %w", migrationsLogPrefix, m.Name, err)
		}
		slog.Debug(fmt.Sprintf("%s - Applied %s", migrationsLogPrefix, m.Name))
	}

	slog.Info(fmt.Sprintf("%s - Migrations complete", migrationsLogPrefix))
	return nil
}

// SchemaApplied reports whether the hub schema exists.
func SchemaApplied(ctx context.Context, pool *pgxpool.Pool) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`,
		schemaMarkerTable).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s - failed to check schema: %w", migrationsLogPrefix, err)
	}
	return exists, nil
}

// MigrationStatus writes whether the schema is applied and which files exist.
func MigrationStatus(ctx context.Context, pool *pgxpool.Pool, migrationPath string, w io.Writer) error {
	applied, err := SchemaApplied(ctx, pool)
	if err != nil {
		return err
	}

	migrations, err := LoadMigrations(migrationPath)
	if err != nil {
		return fmt.Errorf("%s - load migration list: %w", migrationsLogPrefix, err)
	}

	if applied {
		fmt.Fprintf(w, "Migration status: applied (schema present, %d migration files in %s)\n", len(migrations), migrationPath)
	} else {
		fmt.Fprintf(w, "Migration status: not applied (run 'coordhub migrate up'). %d migration files in %s\n", len(migrations), migrationPath)
	}
	for _, m := range migrations {
		fmt.Fprintf(w, "  %s\n", m.Name)
	}
	return nil
}

// MigrationDown is not supported: migrations are forward-only.
func MigrationDown(w io.Writer) {
	fmt.Fprintln(w, "Migration down: not supported (migrations are forward-only). Use 'coordhub clear' or a database backup.")
}
