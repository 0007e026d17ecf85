package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTT error stage label values.
const (
	StageConnect        = "connect"
	StagePublish        = "publish"
	StageConnectionLost = "connection_lost"
)

// MQTTMetrics tracks the broker link used by the mqtt alert channel.
type MQTTMetrics struct {
	Connected      prometheus.Gauge
	ConnectedSince prometheus.Gauge
	Publishes      *prometheus.CounterVec // by status
	Errors         *prometheus.CounterVec // by stage
	PayloadBytes   prometheus.Histogram
	PublishLatency prometheus.Histogram
}

// NewMQTTMetrics creates and registers the MQTT metrics.
func NewMQTTMetrics(registry *prometheus.Registry) (*MQTTMetrics, error) {
	m := &MQTTMetrics{
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screamguard_mqtt_connected",
			Help: "1 while the MQTT broker connection is up",
		}),
		ConnectedSince: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screamguard_mqtt_connected_since_seconds",
			Help: "Unix time of the most recent successful broker connection",
		}),
		Publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screamguard_mqtt_publishes_total",
			Help: "Alert publishes by outcome",
		}, []string{"status"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screamguard_mqtt_errors_total",
			Help: "MQTT failures by stage",
		}, []string{"stage"}),
		PayloadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "screamguard_mqtt_payload_bytes",
			Help:    "Size of published alert payloads",
			Buckets: prometheus.ExponentialBuckets(BucketStart64B, BucketFactor2, BucketCount10),
		}),
		PublishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "screamguard_mqtt_publish_latency_seconds",
			Help:    "Time until the broker acknowledged a publish",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
	}
	return m, nil
}

// SetConnected flips the connection gauge.
func (m *MQTTMetrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	if !connected {
		m.Connected.Set(0)
		return
	}
	m.Connected.Set(1)
	m.ConnectedSince.SetToCurrentTime()
}

// RecordPublish records a publish attempt that reached the broker client.
func (m *MQTTMetrics) RecordPublish(size int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Publishes.WithLabelValues(StatusError).Inc()
		m.Errors.WithLabelValues(StagePublish).Inc()
		return
	}
	m.Publishes.WithLabelValues(StatusSuccess).Inc()
	m.PayloadBytes.Observe(float64(size))
	m.PublishLatency.Observe(elapsed.Seconds())
}

// RecordError counts a failure outside a publish round trip.
func (m *MQTTMetrics) RecordError(stage string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(stage).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.Connected.Desc()
	ch <- m.ConnectedSince.Desc()
	m.Publishes.Describe(ch)
	m.Errors.Describe(ch)
	ch <- m.PayloadBytes.Desc()
	ch <- m.PublishLatency.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.Connected
	ch <- m.ConnectedSince
	m.Publishes.Collect(ch)
	m.Errors.Collect(ch)
	ch <- m.PayloadBytes
	ch <- m.PublishLatency
}
