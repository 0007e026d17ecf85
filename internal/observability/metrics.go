// Package observability provides Prometheus metrics for ScreamGuard.
// Sentry error telemetry is handled by the errors package.
package observability

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/screamguard/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry     *prometheus.Registry
	Pipeline     *metrics.PipelineMetrics
	Location     *metrics.LocationMetrics
	Notification *metrics.NotificationMetrics
	Datastore    *metrics.DatastoreMetrics
	MQTT         *metrics.MQTTMetrics
}

// NewMetrics creates a private registry and registers every collector on it,
// together with the Go runtime and process collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	pipelineMetrics, err := metrics.NewPipelineMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	locationMetrics, err := metrics.NewLocationMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create location metrics: %w", err)
	}

	notificationMetrics, err := metrics.NewNotificationMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification metrics: %w", err)
	}

	datastoreMetrics, err := metrics.NewDatastoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore metrics: %w", err)
	}

	mqttMetrics, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}

	return &Metrics{
		registry:     registry,
		Pipeline:     pipelineMetrics,
		Location:     locationMetrics,
		Notification: notificationMetrics,
		Datastore:    datastoreMetrics,
		MQTT:         mqttMetrics,
	}, nil
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
