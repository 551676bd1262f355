package sqldb

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/andresuchdata/rxstock/backend-go/internal/config"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

func init() {
	sqlx.BindDriver(config.DriverSQLite, sqlx.QUESTION)
}

type DB struct {
	*sqlx.DB
	driver string
	sem    *semaphore.Weighted
}

var (
	dbInstance *DB
	once       sync.Once
)

// NewDB creates the process-wide connection pool
func NewDB(cfg *config.DatabaseConfig) (*DB, error) {
	var err error
	once.Do(func() {
		dbInstance, err = Open(cfg)
	})

	return dbInstance, err
}

// Open creates a new connection pool for the configured driver.
func Open(cfg *config.DatabaseConfig) (*DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = config.DriverPostgres
	}

	dsn := cfg.DSN()
	switch driver {
	case config.DriverPostgres, config.DriverPGX:
	case config.DriverSQLite:
		dsn = sqliteDSN(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	// Configure connection pool
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 25
	}
	if driver == config.DriverSQLite {
		// single writer
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(min(5, maxConns))
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Debug().Str("driver", driver).Int("max_conns", maxConns).Msg("database pool opened")

	// Initialize with a semaphore to limit concurrent transactions
	return &DB{
		DB:     db,
		driver: driver,
		sem:    semaphore.NewWeighted(10),
	}, nil
}

// Driver returns the database/sql driver name in use.
func (db *DB) Driver() string {
	return db.driver
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range statements(schema) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// WithTx executes a function within a transaction
func (db *DB) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	// Acquire semaphore
	if err := db.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("could not acquire semaphore: %w", err)
	}
	defer db.sem.Release(1)

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("could not rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "_pragma=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

func statements(script string) []string {
	var out []string
	var b strings.Builder
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			out = append(out, strings.TrimSpace(b.String()))
			b.Reset()
		}
	}
	if rest := strings.TrimSpace(b.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}
