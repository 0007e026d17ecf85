package detection

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/screamguard/internal/classifier"
	"github.com/tphakala/screamguard/internal/features"
	"github.com/tphakala/screamguard/internal/location"
)

var testTime = time.Date(2026, 3, 1, 14, 0, 0, 0, time.FixedZone("EET", 2*3600))

func positiveResult() classifier.Result {
	return classifier.Result{
		Label:         classifier.Positive,
		Probability:   0.92,
		Probabilities: [2]float64{0.08, 0.92},
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	var vec features.Vector
	vec[0] = -212.5

	d := New("node-1", testTime, positiveResult(), vec, NewAudioSource("", "clip.wav", "/tmp/x.wav"))

	_, err := uuid.Parse(d.ID)
	require.NoError(t, err)
	assert.True(t, d.Positive())
	assert.Equal(t, SourceUpload, d.Source.Type)
	assert.Equal(t, location.SourceUnresolved, d.Location.Source)
	assert.Equal(t, positiveResult(), d.Result())

	other := New("node-1", testTime, positiveResult(), vec, AudioSource{})
	assert.NotEqual(t, d.ID, other.ID)
}

func TestMapper_ToDatastore(t *testing.T) {
	t.Parallel()

	var vec features.Vector
	for i := range vec {
		vec[i] = float64(i) / 10
	}
	d := New("node-1", testTime, positiveResult(), vec, NewAudioSource(SourceRealtime, "recording.wav", "/tmp/rec.wav"))
	d.Location = location.Location{
		Latitude:  60.16985123,
		Longitude: 24.93838,
		Accuracy:  25,
		Address:   "Mannerheimintie 1, Helsinki",
		Source:    location.SourceBrowser,
	}

	rec, err := NewMapper().ToDatastore(d)
	require.NoError(t, err)

	assert.Equal(t, d.ID, rec.DetectionID)
	assert.Equal(t, "node-1", rec.SourceNode)
	assert.Equal(t, time.UTC, rec.Timestamp.Location())
	assert.True(t, rec.Timestamp.Equal(testTime))
	assert.True(t, rec.Positive)
	assert.Equal(t, "Screaming Detected", rec.Prediction)
	assert.InDelta(t, 0.92, rec.Probability, 1e-9)
	assert.InDelta(t, 60.16985123, rec.Latitude, 1e-12)
	assert.InDelta(t, 24.93838, rec.Longitude, 1e-12)
	assert.InDelta(t, 25.0, rec.Accuracy, 0)
	assert.Equal(t, "browser_geolocation", rec.LocationSource)
	assert.Equal(t, "recording.wav", rec.AudioPath)

	var stored []float64
	require.NoError(t, json.Unmarshal([]byte(rec.Features), &stored))
	assert.Equal(t, vec[:], stored)
}

func TestMapper_UnresolvedStoresZeros(t *testing.T) {
	t.Parallel()

	d := New("", testTime, classifier.Result{Label: classifier.Negative, Probability: 0.1}, features.Vector{}, AudioSource{})
	// coordinates of an unresolved placeholder are never stored
	d.Location.Latitude = 12
	d.Location.Longitude = 34

	rec, err := NewMapper().ToDatastore(d)
	require.NoError(t, err)

	assert.False(t, rec.Positive)
	assert.Equal(t, "No Screaming Detected", rec.Prediction)
	assert.Equal(t, "none", rec.LocationSource)
	assert.Equal(t, location.AddressUnresolved, rec.Address)
	assert.Zero(t, rec.Latitude)
	assert.Zero(t, rec.Longitude)
	assert.Zero(t, rec.Accuracy)
}
