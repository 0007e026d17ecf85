package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// NotificationMetrics contains metrics for the notification dispatcher.
type NotificationMetrics struct {
	DeliveriesTotal  *prometheus.CounterVec   // by channel and status
	DeliveryDuration *prometheus.HistogramVec // by channel
	RecipientsTotal  *prometheus.CounterVec   // by channel and status
	DeliveryErrors   *prometheus.CounterVec   // by channel and error category
	DispatchTotal    prometheus.Counter
	DispatchActive   prometheus.Gauge
	registry         *prometheus.Registry
}

// NewNotificationMetrics creates and registers the notification metrics.
func NewNotificationMetrics(registry *prometheus.Registry) (*NotificationMetrics, error) {
	m := &NotificationMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register notification metrics: %w", err)
	}
	return m, nil
}

func (m *NotificationMetrics) initMetrics() {
	m.DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screamguard_notification_deliveries_total",
			Help: "Total number of channel deliveries by channel and status",
		},
		[]string{"channel", "status"},
	)

	m.DeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "screamguard_notification_delivery_duration_seconds",
			Help:    "Time taken by each channel delivery",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"channel"},
	)

	m.RecipientsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screamguard_notification_recipients_total",
			Help: "Per-recipient send attempts by channel and status",
		},
		[]string{"channel", "status"},
	)

	m.DeliveryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screamguard_notification_delivery_errors_total",
			Help: "Channel delivery errors by channel and error category",
		},
		[]string{"channel", "error_category"},
	)

	m.DispatchTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "screamguard_notification_dispatch_total",
		Help: "Total number of dispatches across all channels",
	})

	m.DispatchActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "screamguard_notification_dispatch_active",
		Help: "Dispatches currently in flight",
	})
}

// RecordDelivery counts a channel outcome.
func (m *NotificationMetrics) RecordDelivery(channel, status string, seconds float64) {
	if m == nil {
		return
	}
	m.DeliveriesTotal.WithLabelValues(channel, status).Inc()
	m.DeliveryDuration.WithLabelValues(channel).Observe(seconds)
}

// RecordRecipient counts one recipient send.
func (m *NotificationMetrics) RecordRecipient(channel, status string) {
	if m == nil {
		return
	}
	m.RecipientsTotal.WithLabelValues(channel, status).Inc()
}

// RecordError counts a channel error by category.
func (m *NotificationMetrics) RecordError(channel, category string) {
	if m == nil {
		return
	}
	m.DeliveryErrors.WithLabelValues(channel, category).Inc()
}

// DispatchStarted marks a dispatch as in flight.
func (m *NotificationMetrics) DispatchStarted() {
	if m == nil {
		return
	}
	m.DispatchTotal.Inc()
	m.DispatchActive.Inc()
}

// DispatchFinished marks a dispatch as done.
func (m *NotificationMetrics) DispatchFinished() {
	if m == nil {
		return
	}
	m.DispatchActive.Dec()
}

// Describe implements the prometheus.Collector interface.
func (m *NotificationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.DeliveriesTotal.Describe(ch)
	m.DeliveryDuration.Describe(ch)
	m.RecipientsTotal.Describe(ch)
	m.DeliveryErrors.Describe(ch)
	ch <- m.DispatchTotal.Desc()
	ch <- m.DispatchActive.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *NotificationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.DeliveriesTotal.Collect(ch)
	m.DeliveryDuration.Collect(ch)
	m.RecipientsTotal.Collect(ch)
	m.DeliveryErrors.Collect(ch)
	ch <- m.DispatchTotal
	ch <- m.DispatchActive
}
