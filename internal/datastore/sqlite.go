package datastore

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/screamguard/internal/logger"
	"github.com/tphakala/screamguard/internal/observability/metrics"
)

// SQLiteStore implements Interface for SQLite.
type SQLiteStore struct {
	DataStore
	Path string
}

// Open creates the database directory if needed, opens the file and migrates
// the schema.
func (store *SQLiteStore) Open(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { observe(store.metrics, store.backend, metrics.OpDbOpen, start, err) }()

	if dir := filepath.Dir(store.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return dbError(err, store.backend, metrics.OpDbOpen)
		}
	}

	// WAL lets concurrent requests insert without "database is locked".
	dsn := store.Path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), store.gormConfig())
	if err != nil {
		return dbError(err, store.backend, metrics.OpDbOpen)
	}
	store.DB = db

	store.log.Info("SQLite database opened", logger.String("path", store.Path))
	return store.performAutoMigration(ctx)
}
