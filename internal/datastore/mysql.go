package datastore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/screamguard/internal/conf"
	"github.com/tphakala/screamguard/internal/logger"
	"github.com/tphakala/screamguard/internal/observability/metrics"
)

// MySQLStore implements Interface for MySQL.
type MySQLStore struct {
	DataStore
	Settings conf.MySQLSettings
}

// DSN returns the driver connection string.
func (store *MySQLStore) DSN() string {
	s := store.Settings
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		s.Username, s.Password, s.Host, s.Port, s.Database)
}

// Open connects to MySQL and migrates the schema.
func (store *MySQLStore) Open(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { observe(store.metrics, store.backend, metrics.OpDbOpen, start, err) }()

	db, err := gorm.Open(mysql.Open(store.DSN()), store.gormConfig())
	if err != nil {
		store.log.Error("failed to open MySQL database",
			logger.String("host", store.Settings.Host),
			logger.String("port", store.Settings.Port),
			logger.String("database", store.Settings.Database),
			logger.Error(err))
		return dbError(err, store.backend, metrics.OpDbOpen)
	}
	store.DB = db

	return store.performAutoMigration(ctx)
}
