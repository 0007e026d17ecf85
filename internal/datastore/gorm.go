package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/screamguard/internal/errors"
	"github.com/tphakala/screamguard/internal/logger"
	"github.com/tphakala/screamguard/internal/observability/metrics"
)

// slowQueryThreshold is passed to the gorm logger adapter.
const slowQueryThreshold = 200 * time.Millisecond

// DataStore is the gorm backed part shared by the SQL stores.
type DataStore struct {
	DB      *gorm.DB
	backend string
	log     logger.Logger
	metrics *metrics.DatastoreMetrics
	debug   bool
}

func (ds *DataStore) gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(ds.log.Module("gorm"), slowQueryThreshold),
	}
}

// Insert writes one record.
func (ds *DataStore) Insert(ctx context.Context, rec *Record) (err error) {
	start := time.Now()
	defer func() { observe(ds.metrics, ds.backend, metrics.OpDbInsert, start, err) }()

	if ds.DB == nil {
		return errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("backend", ds.backend).
			Build()
	}
	if err := ds.DB.WithContext(ctx).Create(rec).Error; err != nil {
		ds.log.Error("failed to insert detection",
			logger.String("detection_id", rec.DetectionID),
			logger.Error(err))
		return dbError(err, ds.backend, metrics.OpDbInsert)
	}
	return nil
}

// Close closes the underlying connection pool.
func (ds *DataStore) Close() (err error) {
	start := time.Now()
	defer func() { observe(ds.metrics, ds.backend, metrics.OpDbClose, start, err) }()

	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, ds.backend, metrics.OpDbClose)
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, ds.backend, metrics.OpDbClose)
	}
	ds.DB = nil
	if ds.debug {
		ds.log.Debug("database connection closed", logger.String("backend", ds.backend))
	}
	return nil
}

// performAutoMigration creates or updates the detections table.
func (ds *DataStore) performAutoMigration(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { observe(ds.metrics, ds.backend, metrics.OpDbMigrate, start, err) }()

	if err := ds.DB.WithContext(ctx).AutoMigrate(&Record{}); err != nil {
		return dbError(err, ds.backend, metrics.OpDbMigrate)
	}
	ds.log.Debug("database migration completed",
		logger.String("backend", ds.backend),
		logger.Duration("duration", time.Since(start)))
	return nil
}
