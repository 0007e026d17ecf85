package mqtt

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/screamguard/internal/conf"
	"github.com/tphakala/screamguard/internal/errors"
	"github.com/tphakala/screamguard/internal/logger"
	"github.com/tphakala/screamguard/internal/observability/metrics"
)

func isMosquittoTestServerAvailable() bool {
	conn, err := net.DialTimeout("tcp", "test.mosquitto.org:1883", 5*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// createTestClient builds a client with a short cooldown and fresh metrics.
func createTestClient(t *testing.T, broker string) (Client, *metrics.MQTTMetrics) {
	t.Helper()
	m, err := metrics.NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Broker = broker
	cfg.ClientID = "screamguard-test"
	cfg.ReconnectCooldown = 0
	cfg.ConnectTimeout = 5 * time.Second

	c, err := NewClient(cfg, logger.NewNopLogger(), m)
	require.NoError(t, err)
	return c, m
}

func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	require.NoError(t, counter.Write(&metric))
	return metric.GetCounter().GetValue()
}

func getGaugeValue(t *testing.T, gauge prometheus.Gauge) float64 {
	t.Helper()
	var metric dto.Metric
	require.NoError(t, gauge.Write(&metric))
	return metric.GetGauge().GetValue()
}

func TestNewClient_InvalidBroker(t *testing.T) {
	for _, broker := range []string{"", "localhost:1883", "tcp://", "::not a url"} {
		_, err := NewClient(Config{Broker: broker}, nil, nil)
		require.Error(t, err, broker)
		assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration), broker)
	}
}

func TestPublishWhileDisconnected(t *testing.T) {
	c, m := createTestClient(t, "tcp://127.0.0.1:1883")

	err := c.Publish(t.Context(), "screamguard/test", []byte(`{}`))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTPublish))
	assert.InDelta(t, 1, getCounterValue(t, m.Errors.WithLabelValues(metrics.StagePublish)), 0)
	assert.InDelta(t, 0, getCounterValue(t, m.Publishes.WithLabelValues(metrics.StatusSuccess)), 0)
	assert.False(t, c.IsConnected())
}

func TestConnect_UnresolvableHostname(t *testing.T) {
	c, _ := createTestClient(t, "tcp://unresolvable.invalid:1883")

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	err := c.Connect(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTConnection))

	var dnsErr *net.DNSError
	assert.True(t, errors.As(err, &dnsErr), "expected DNS error, got %v", err)
	assert.False(t, c.IsConnected())
}

func TestConnect_RefusedPort(t *testing.T) {
	// Reserve a port and close it so nothing listens there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c, m := createTestClient(t, "tcp://"+addr)
	err = c.Connect(t.Context())
	require.Error(t, err)
	assert.False(t, c.IsConnected())
	assert.GreaterOrEqual(t, getCounterValue(t, m.Errors.WithLabelValues(metrics.StageConnect)), 1.0)

	// Disconnect on a never-connected client is a no-op.
	c.Disconnect()
}

func TestConnect_Cooldown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Broker = "tcp://unresolvable.invalid:1883"
	cfg.ReconnectCooldown = time.Hour
	c, err := NewClient(cfg, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	require.Error(t, c.Connect(ctx))
	err = c.Connect(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too recent")
}

func TestConfigFromSettings(t *testing.T) {
	cfg := ConfigFromSettings(&conf.MQTTSettings{
		Broker: "tcp://broker:1883",
		QoS:    1,
		Retain: true,
	})
	assert.Equal(t, "tcp://broker:1883", cfg.Broker)
	assert.Equal(t, conf.AppName, cfg.ClientID)
	assert.Equal(t, conf.DefaultMQTTTopic, cfg.Topic)
	assert.Equal(t, byte(1), cfg.QoS)
	assert.True(t, cfg.Retain)
	assert.Equal(t, 10*time.Second, cfg.PublishTimeout)

	cfg = ConfigFromSettings(&conf.MQTTSettings{Broker: "tcp://b:1883", ClientID: "node-7", Topic: "alerts/x"})
	assert.Equal(t, "node-7", cfg.ClientID)
	assert.Equal(t, "alerts/x", cfg.Topic)
}

// TestPublicBroker runs against test.mosquitto.org when it is reachable.
func TestPublicBroker(t *testing.T) {
	if testing.Short() || !isMosquittoTestServerAvailable() {
		t.Skip("Skipping MQTT broker test: test.mosquitto.org is not available")
	}

	c, m := createTestClient(t, "tcp://test.mosquitto.org:1883")

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()

	require.NoError(t, c.Connect(ctx))
	require.True(t, c.IsConnected())
	assert.InDelta(t, 1, getGaugeValue(t, m.Connected), 0)

	require.NoError(t, c.Publish(ctx, "screamguard/test", []byte(`{"test":true}`)))
	assert.InDelta(t, 1, getCounterValue(t, m.Publishes.WithLabelValues(metrics.StatusSuccess)), 0)

	c.Disconnect()
	assert.False(t, c.IsConnected())
	assert.InDelta(t, 0, getGaugeValue(t, m.Connected), 0)
}
