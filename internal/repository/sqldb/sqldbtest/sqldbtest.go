// Package sqldbtest opens throwaway SQLite databases for tests.
package sqldbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/andresuchdata/rxstock/backend-go/internal/config"
	"github.com/andresuchdata/rxstock/backend-go/internal/repository/sqldb"
)

// New returns a migrated SQLite database under t.TempDir, closed on cleanup.
func New(t testing.TB) *sqldb.DB {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "rxstock.db"),
	}
	db, err := sqldb.Open(cfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
