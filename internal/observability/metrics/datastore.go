package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains metrics for detection persistence.
type DatastoreMetrics struct {
	Operations        *prometheus.CounterVec   // by backend, operation, status
	OperationDuration *prometheus.HistogramVec // by backend, operation
	Errors            *prometheus.CounterVec   // by backend, operation
	registry          *prometheus.Registry
}

// NewDatastoreMetrics creates and registers the datastore metrics.
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register datastore metrics: %w", err)
	}
	return m, nil
}

func (m *DatastoreMetrics) initMetrics() {
	m.Operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screamguard_datastore_operations_total",
			Help: "Total number of datastore operations by backend, operation and status",
		},
		[]string{"backend", "operation", "status"},
	)

	m.OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "screamguard_datastore_operation_duration_seconds",
			Help:    "Datastore operation latency",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
		},
		[]string{"backend", "operation"},
	)

	m.Errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screamguard_datastore_errors_total",
			Help: "Total number of datastore errors by backend and operation",
		},
		[]string{"backend", "operation"},
	)
}

// RecordOperation counts an operation and its latency.
func (m *DatastoreMetrics) RecordOperation(backend, operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(backend, operation, status).Inc()
	m.OperationDuration.WithLabelValues(backend, operation).Observe(seconds)
	if status == StatusError {
		m.Errors.WithLabelValues(backend, operation).Inc()
	}
}

// Describe implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Operations.Describe(ch)
	m.OperationDuration.Describe(ch)
	m.Errors.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Operations.Collect(ch)
	m.OperationDuration.Collect(ch)
	m.Errors.Collect(ch)
}
