// Package migrations embeds the SQL schema and applies it in file order.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed *.sql
var files embed.FS

// Migration is one up or down script.
type Migration struct {
	Name string
	SQL  string
}

// Up returns the .up.sql scripts sorted by filename.
func Up() ([]Migration, error) {
	return read(".up.sql", false)
}

// Down returns the .down.sql scripts in reverse filename order.
func Down() ([]Migration, error) {
	return read(".down.sql", true)
}

// Apply executes every up migration in order. The scripts are idempotent,
// so running Apply against an already migrated database is a no-op.
func Apply(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	return run(ctx, pool, Up)
}

// Revert executes every down migration, newest first.
func Revert(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	return run(ctx, pool, Down)
}

func run(ctx context.Context, pool *pgxpool.Pool, list func() ([]Migration, error)) ([]string, error) {
	migrations, err := list()
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	applied := make([]string, 0, len(migrations))
	for _, migration := range migrations {
		if _, err := pool.Exec(ctx, migration.SQL); err != nil {
			return applied, fmt.Errorf("failed to execute migration %s: %w", migration.Name, err)
		}
		applied = append(applied, migration.Name)
	}

	return applied, nil
}

func read(suffix string, reverse bool) ([]Migration, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		content, err := fs.ReadFile(files, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{Name: entry.Name(), SQL: string(content)})
	}

	sort.Slice(migrations, func(i, j int) bool {
		if reverse {
			return migrations[i].Name > migrations[j].Name
		}
		return migrations[i].Name < migrations[j].Name
	})

	return migrations, nil
}
