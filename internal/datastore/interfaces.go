// interfaces.go: this code defines the interface for the detection store
package datastore

import (
	"context"
	"time"

	"github.com/tphakala/screamguard/internal/conf"
	"github.com/tphakala/screamguard/internal/errors"
	"github.com/tphakala/screamguard/internal/logger"
	"github.com/tphakala/screamguard/internal/observability/metrics"
)

// Interface abstracts the underlying store. Detections are only ever
// inserted; there is no read-back path.
type Interface interface {
	Open(ctx context.Context) error
	Insert(ctx context.Context, rec *Record) error
	Close() error
}

// Backend names used in logs and metrics labels.
const (
	BackendSQLite  = "sqlite"
	BackendMySQL   = "mysql"
	BackendMongoDB = "mongodb"
)

// New creates the store selected in settings. Exactly one store must be
// enabled; configuration validation enforces this, New reports it again for
// callers that skip validation.
func New(settings *conf.Settings, log logger.Logger, m *metrics.DatastoreMetrics) (Interface, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.Module("datastore")
	out := &settings.Output

	switch {
	case out.SQLite.Enabled:
		return &SQLiteStore{
			DataStore: DataStore{backend: BackendSQLite, log: log, metrics: m, debug: settings.Debug},
			Path:      out.SQLite.Path,
		}, nil
	case out.MySQL.Enabled:
		return &MySQLStore{
			DataStore: DataStore{backend: BackendMySQL, log: log, metrics: m, debug: settings.Debug},
			Settings:  out.MySQL,
		}, nil
	case out.MongoDB.Enabled:
		return NewMongoStore(out.MongoDB, log, m), nil
	default:
		return nil, errors.Newf("no datastore enabled").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// observe records an operation's outcome and latency.
func observe(m *metrics.DatastoreMetrics, backend, op string, start time.Time, err error) {
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
	}
	m.RecordOperation(backend, op, status, time.Since(start).Seconds())
}

func dbError(err error, backend, op string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("backend", backend).
		Context("operation", op).
		Build()
}
