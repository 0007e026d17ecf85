// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Status label values.
const (
	// StatusSuccess marks a completed operation.
	StatusSuccess = "success"
	// StatusError marks a failed operation.
	StatusError = "error"
	// StatusTimeout marks an operation that ran out of time.
	StatusTimeout = "timeout"
	// StatusSkipped marks an operation that was not attempted, such as a
	// rate limited lookup or a misconfigured channel.
	StatusSkipped = "skipped"
)

// Cache lookup label values.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Datastore operation label values.
const (
	// OpDbInsert represents database insert operations.
	OpDbInsert = "db_insert"
	// OpDbOpen represents opening a datastore connection.
	OpDbOpen = "db_open"
	// OpDbMigrate represents schema migration.
	OpDbMigrate = "db_migrate"
	// OpDbClose represents closing a datastore connection.
	OpDbClose = "db_close"
)

// Histogram bucket configuration constants.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~1s range).
	BucketStart1ms = 0.001
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketStart64B is the starting bucket for 64 byte histograms.
	BucketStart64B = 64.0

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2

	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
)

// ShutdownTimeout bounds the metrics handler during server shutdown.
const ShutdownTimeout = 5 * time.Second
