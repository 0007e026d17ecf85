package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gather returns the metric family with the given name.
func gather(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric family %s not found", name)
	return nil
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	for _, lp := range m.GetLabel() {
		if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
			return false
		}
	}
	return true
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	for _, m := range gather(t, reg, name).GetMetric() {
		if labelsMatch(m, labels) {
			return m.GetCounter().GetValue()
		}
	}
	t.Fatalf("no %s sample with labels %v", name, labels)
	return 0
}

func TestPipelineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPipelineMetrics(reg)
	require.NoError(t, err)

	m.RecordClip("positive")
	m.RecordClip("positive")
	m.RecordFailure("decode")
	m.ObserveProbability(0.92)
	m.ObserveStage("classify", 0.004)
	m.RecordCandidate()
	m.SetWindowSize(2)
	m.SetPendingCandidates(1)

	assert.InDelta(t, 2.0, counterValue(t, reg, "screamguard_clips_processed_total", map[string]string{"outcome": "positive"}), 0)
	assert.InDelta(t, 1.0, counterValue(t, reg, "screamguard_clips_processed_total", map[string]string{"outcome": "failed"}), 0)
	assert.InDelta(t, 1.0, counterValue(t, reg, "screamguard_pipeline_failures_total", map[string]string{"category": "decode"}), 0)
	assert.InDelta(t, 1.0, counterValue(t, reg, "screamguard_escalation_candidates_total", nil), 0)

	window := gather(t, reg, "screamguard_escalation_window_size")
	assert.InDelta(t, 2.0, window.GetMetric()[0].GetGauge().GetValue(), 0)

	prob := gather(t, reg, "screamguard_classifier_probability")
	assert.Equal(t, uint64(1), prob.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestLocationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewLocationMetrics(reg)
	require.NoError(t, err)

	m.RecordResolution("ip_geolocation")
	m.RecordProviderRequest("google", StatusError, 0.2)
	m.RecordProviderRequest("ipinfo", StatusSkipped, 0)
	m.RecordCacheLookup("nominatim", true)
	m.RecordCacheLookup("nominatim", false)

	assert.InDelta(t, 1.0, counterValue(t, reg, "screamguard_location_resolutions_total", map[string]string{"source": "ip_geolocation"}), 0)
	assert.InDelta(t, 1.0, counterValue(t, reg, "screamguard_location_provider_requests_total", map[string]string{"provider": "google", "status": StatusError}), 0)
	assert.InDelta(t, 1.0, counterValue(t, reg, "screamguard_location_cache_lookups_total", map[string]string{"provider": "nominatim", "result": CacheHit}), 0)

	// skipped lookups are not timed
	durations := gather(t, reg, "screamguard_location_provider_duration_seconds")
	require.Len(t, durations.GetMetric(), 1)
}

func TestNotificationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewNotificationMetrics(reg)
	require.NoError(t, err)

	m.DispatchStarted()
	m.RecordRecipient("sms", StatusSuccess)
	m.RecordRecipient("sms", StatusError)
	m.RecordDelivery("sms", StatusSuccess, 0.3)
	m.RecordError("email", "channel-misconfigured")
	m.DispatchFinished()

	assert.InDelta(t, 1.0, counterValue(t, reg, "screamguard_notification_recipients_total", map[string]string{"channel": "sms", "status": StatusError}), 0)
	assert.InDelta(t, 1.0, counterValue(t, reg, "screamguard_notification_deliveries_total", map[string]string{"channel": "sms"}), 0)
	assert.InDelta(t, 1.0, counterValue(t, reg, "screamguard_notification_dispatch_total", nil), 0)

	active := gather(t, reg, "screamguard_notification_dispatch_active")
	assert.Zero(t, active.GetMetric()[0].GetGauge().GetValue())
}

func TestDatastoreMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewDatastoreMetrics(reg)
	require.NoError(t, err)

	m.RecordOperation("sqlite", OpDbInsert, StatusSuccess, 0.002)
	m.RecordOperation("sqlite", OpDbInsert, StatusError, 0.002)

	assert.InDelta(t, 1.0, counterValue(t, reg, "screamguard_datastore_errors_total", map[string]string{"backend": "sqlite"}), 0)
	assert.InDelta(t, 1.0, counterValue(t, reg, "screamguard_datastore_operations_total",
		map[string]string{"backend": "sqlite", "operation": OpDbInsert, "status": StatusSuccess}), 0)
}

func TestMQTTMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMQTTMetrics(reg)
	require.NoError(t, err)

	m.SetConnected(true)
	m.RecordPublish(256, 5*time.Millisecond, nil)
	m.RecordPublish(256, 0, errors.New("not connected"))
	m.RecordError(StageConnectionLost)

	assert.InDelta(t, 1.0, counterValue(t, reg, "screamguard_mqtt_publishes_total", map[string]string{"status": StatusSuccess}), 0)
	assert.InDelta(t, 1.0, counterValue(t, reg, "screamguard_mqtt_errors_total", map[string]string{"stage": StagePublish}), 0)
	assert.InDelta(t, 1.0, counterValue(t, reg, "screamguard_mqtt_errors_total", map[string]string{"stage": StageConnectionLost}), 0)
	status := gather(t, reg, "screamguard_mqtt_connected")
	assert.InDelta(t, 1.0, status.GetMetric()[0].GetGauge().GetValue(), 0)
}

func TestNilReceiversAreNoops(t *testing.T) {
	var p *PipelineMetrics
	var l *LocationMetrics
	var n *NotificationMetrics
	var d *DatastoreMetrics
	var q *MQTTMetrics

	assert.NotPanics(t, func() {
		p.RecordClip("positive")
		p.RecordFailure("decode")
		p.SetWindowSize(3)
		l.RecordResolution("none")
		l.RecordCacheLookup("google", true)
		n.DispatchStarted()
		n.RecordDelivery("sms", StatusSuccess, 1)
		d.RecordOperation("sqlite", OpDbInsert, StatusSuccess, 0)
		q.SetConnected(false)
		q.RecordPublish(1, 0, nil)
	})
}

func TestDuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPipelineMetrics(reg)
	require.NoError(t, err)
	_, err = NewPipelineMetrics(reg)
	assert.Error(t, err)
}
