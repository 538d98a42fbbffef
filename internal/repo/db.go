// Package repo implements the local persistence of the directory on GORM:
// the snapshot key/value table and the idempotency ledger. It also opens the
// Postgres handle used when the remote backend is a plain SQL database.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-merchant-directory/internal/domain"
)

type pool struct {
	maxOpen, maxIdle int
	idle, lifetime   time.Duration
}

var (
	// The snapshot is written after every commit and read once at start.
	sqlitePool   = pool{maxOpen: 10, maxIdle: 10, idle: 5 * time.Minute, lifetime: 30 * time.Minute}
	postgresPool = pool{maxOpen: 20, maxIdle: 5, idle: 5 * time.Minute, lifetime: 30 * time.Minute}
)

// sqlitePragmas run on every new SQLite handle. WAL lets the HTTP server read
// the idempotency ledger while a snapshot write is in flight.
var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL;",
	"PRAGMA synchronous=NORMAL;",
	"PRAGMA foreign_keys=ON;",
	"PRAGMA busy_timeout=5000;",
}

func open(d gorm.Dialector, p pool, init ...string) (*gorm.DB, error) {
	db, err := gorm.Open(d, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	for _, stmt := range init {
		if err := db.Exec(stmt).Error; err != nil {
			return nil, fmt.Errorf("%s: %w", stmt, err)
		}
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(p.maxOpen)
	sqlDB.SetMaxIdleConns(p.maxIdle)
	sqlDB.SetConnMaxIdleTime(p.idle)
	sqlDB.SetConnMaxLifetime(p.lifetime)
	return db, nil
}

// OpenSQLite opens or creates the SQLite file at path. The parent directory
// must exist; a missing one is reported as such rather than as the driver's
// "unable to open database file".
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}
	return open(sqlite.Open(path), sqlitePool, sqlitePragmas...)
}

// OpenPostgres connects through the pgx-backed GORM driver.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	return open(postgres.Open(dsn), postgresPool)
}

// EnableTracing registers the OpenTelemetry GORM plugin so that every query
// becomes a span under the caller's context.
func EnableTracing(db *gorm.DB) error {
	return db.Use(tracing.NewPlugin(tracing.WithoutMetrics()))
}

// AutoMigrate creates the local tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.Snapshot{}, &domain.Idempotency{})
}
