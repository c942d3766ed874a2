package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/libsql/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded migrations for the store's dialect.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	dialect, dir, err := migrationTarget(s.driver)
	if err != nil {
		return err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := gooseUpContext(ctx, s.DB, dir); err != nil {
		return fmt.Errorf("store migration failed: %w", err)
	}
	return nil
}

func migrationTarget(driver string) (dialect string, dir string, err error) {
	switch driver {
	case driverLibsql:
		return "sqlite3", "migrations/libsql", nil
	case driverPostgres:
		return "pgx", "migrations/postgres", nil
	default:
		return "", "", fmt.Errorf("no migrations for driver %s", driver)
	}
}
