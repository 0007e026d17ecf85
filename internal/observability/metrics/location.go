package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// LocationMetrics contains metrics for the location resolver chain.
type LocationMetrics struct {
	Resolutions      *prometheus.CounterVec   // by final source
	ProviderRequests *prometheus.CounterVec   // by provider and status
	ProviderDuration *prometheus.HistogramVec // by provider
	CacheLookups     *prometheus.CounterVec   // by provider and result
	registry         *prometheus.Registry
}

// NewLocationMetrics creates and registers the location metrics.
func NewLocationMetrics(registry *prometheus.Registry) (*LocationMetrics, error) {
	m := &LocationMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register location metrics: %w", err)
	}
	return m, nil
}

func (m *LocationMetrics) initMetrics() {
	m.Resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screamguard_location_resolutions_total",
			Help: "Total number of location resolutions by resulting source",
		},
		[]string{"source"},
	)

	m.ProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screamguard_location_provider_requests_total",
			Help: "Total number of geocoding and IP lookup requests by provider and status",
		},
		[]string{"provider", "status"},
	)

	m.ProviderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "screamguard_location_provider_duration_seconds",
			Help:    "Latency of location provider requests",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount10),
		},
		[]string{"provider"},
	)

	m.CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screamguard_location_cache_lookups_total",
			Help: "Location cache lookups by provider and result",
		},
		[]string{"provider", "result"},
	)
}

// RecordResolution counts a finished resolution.
func (m *LocationMetrics) RecordResolution(source string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(source).Inc()
}

// RecordProviderRequest counts one provider call and its latency.
func (m *LocationMetrics) RecordProviderRequest(provider, status string, seconds float64) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(provider, status).Inc()
	if status != StatusSkipped {
		m.ProviderDuration.WithLabelValues(provider).Observe(seconds)
	}
}

// RecordCacheLookup counts a cache hit or miss.
func (m *LocationMetrics) RecordCacheLookup(provider string, hit bool) {
	if m == nil {
		return
	}
	result := CacheMiss
	if hit {
		result = CacheHit
	}
	m.CacheLookups.WithLabelValues(provider, result).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *LocationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Resolutions.Describe(ch)
	m.ProviderRequests.Describe(ch)
	m.ProviderDuration.Describe(ch)
	m.CacheLookups.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *LocationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Resolutions.Collect(ch)
	m.ProviderRequests.Collect(ch)
	m.ProviderDuration.Collect(ch)
	m.CacheLookups.Collect(ch)
}
