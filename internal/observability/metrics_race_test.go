package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewMetricsConcurrency verifies that NewMetrics can be called concurrently
// since every instance owns its registry.
func TestNewMetricsConcurrency(t *testing.T) {
	const numGoroutines = 50

	var wg sync.WaitGroup
	for range numGoroutines {
		wg.Go(func() {
			m, err := NewMetrics()
			if err != nil {
				t.Errorf("NewMetrics failed: %v", err)
				return
			}
			if m.registry == nil || m.Pipeline == nil || m.Location == nil ||
				m.Notification == nil || m.Datastore == nil || m.MQTT == nil {
				t.Error("NewMetrics returned a partially initialised instance")
			}
		})
	}
	wg.Wait()
}

func TestHandlerExposesCollectors(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	m.Pipeline.RecordClip("positive")
	m.Location.RecordResolution("browser_geolocation")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `screamguard_clips_processed_total{outcome="positive"} 1`)
	assert.Contains(t, string(body), `screamguard_location_resolutions_total{source="browser_geolocation"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
