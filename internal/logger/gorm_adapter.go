package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLoggerAdapter adapts Logger to gorm's logger.Interface.
// SQL statements are logged at TRACE, slow statements and query errors at WARN.
//
//	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
//	    Logger: logger.NewGormLoggerAdapter(log.Module("gorm"), 200*time.Millisecond),
//	})
type GormLoggerAdapter struct {
	logger        Logger
	slowThreshold time.Duration
}

// NewGormLoggerAdapter creates a new gorm logger adapter. A zero slowThreshold
// disables slow query warnings.
func NewGormLoggerAdapter(log Logger, slowThreshold time.Duration) *GormLoggerAdapter {
	if log == nil {
		log = NewNopLogger()
	}
	return &GormLoggerAdapter{
		logger:        log,
		slowThreshold: slowThreshold,
	}
}

// LogMode returns the adapter itself; levels come from the central logger.
func (a *GormLoggerAdapter) LogMode(_ gormlogger.LogLevel) gormlogger.Interface {
	return a
}

// Info maps gorm's verbose info output to DEBUG.
func (a *GormLoggerAdapter) Info(_ context.Context, msg string, data ...any) {
	a.logger.Debug(fmt.Sprintf(msg, data...))
}

func (a *GormLoggerAdapter) Warn(_ context.Context, msg string, data ...any) {
	a.logger.Warn(fmt.Sprintf(msg, data...))
}

func (a *GormLoggerAdapter) Error(_ context.Context, msg string, data ...any) {
	a.logger.Error(fmt.Sprintf(msg, data...))
}

// Trace logs one executed statement.
func (a *GormLoggerAdapter) Trace(_ context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		a.logger.Warn("query error",
			String("sql", sql),
			Int64("rows_affected", rows),
			Duration("elapsed", elapsed),
			Error(err))
	case a.slowThreshold > 0 && elapsed > a.slowThreshold:
		a.logger.Warn("slow query",
			String("sql", sql),
			Int64("rows_affected", rows),
			Duration("elapsed", elapsed),
			Duration("threshold", a.slowThreshold))
	default:
		a.logger.Trace("sql query",
			String("sql", sql),
			Int64("rows_affected", rows),
			Duration("elapsed", elapsed))
	}
}
