package escalation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/screamguard/internal/location"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var t0 = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func at(seconds int) time.Time {
	return t0.Add(time.Duration(seconds) * time.Second)
}

func staticLocation(loc location.Location) LocateFunc {
	return func(context.Context) location.Location { return loc }
}

func TestCheckThreshold_PrunesAgedEntries(t *testing.T) {
	a := New(Config{Window: 30 * time.Second, MinDetections: 2})
	a.Record(at(0))
	a.Record(at(10))
	a.Record(at(40))

	c, crossed := a.CheckThreshold(t.Context(), at(41), nil)

	assert.False(t, crossed)
	assert.Nil(t, c)
	// t (age 41s) and t+10 (age 31s) are gone; only t+40 survives
	assert.Equal(t, 1, a.Len(at(41)))
}

func TestCheckThreshold_TwoDetectionsInsideWindow(t *testing.T) {
	want := location.Location{Latitude: 1, Longitude: 2, Source: location.SourceIP}
	a := New(Config{EmergencyNumber: "112"})
	a.Record(at(0))
	a.Record(at(5))

	c, crossed := a.CheckThreshold(t.Context(), at(6), staticLocation(want))

	require.True(t, crossed)
	require.NotNil(t, c)
	assert.Equal(t, 2, c.Count)
	assert.Equal(t, "112", c.EmergencyNumber)
	assert.Equal(t, at(6), c.TriggeredAt)
	assert.Equal(t, want, c.Location)
	assert.NotEmpty(t, c.ID)
}

func TestCheckThreshold_AgeEqualToWindowIsPruned(t *testing.T) {
	a := New(Config{Window: 30 * time.Second, MinDetections: 2})
	a.Record(at(0))
	a.Record(at(1))

	_, crossed := a.CheckThreshold(t.Context(), at(30), nil)
	assert.False(t, crossed, "entry at exactly 30s of age must not count")

	_, crossed = a.CheckThreshold(t.Context(), at(29), nil)
	assert.False(t, crossed, "pruned entries do not come back")
}

func TestCheckThreshold_BelowMinimumDoesNotLocate(t *testing.T) {
	var calls atomic.Int32
	locate := func(context.Context) location.Location {
		calls.Add(1)
		return location.Location{}
	}

	a := New(Config{MinDetections: 3})
	a.Record(at(0))
	a.Record(at(1))

	_, crossed := a.CheckThreshold(t.Context(), at(2), locate)
	assert.False(t, crossed)
	assert.Zero(t, calls.Load())

	a.Record(at(2))
	_, crossed = a.CheckThreshold(t.Context(), at(2), locate)
	assert.True(t, crossed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCheckThreshold_NilLocateIsUnresolved(t *testing.T) {
	a := New(Config{})
	a.Record(at(0))
	a.Record(at(1))

	c, crossed := a.CheckThreshold(t.Context(), at(1), nil)
	require.True(t, crossed)
	assert.Equal(t, location.SourceUnresolved, c.Location.Source)
}

func TestRecord_PrunesBeforeAppending(t *testing.T) {
	a := New(Config{Window: 10 * time.Second})
	for i := range 100 {
		a.Record(at(i * 20))
	}
	assert.Equal(t, 1, a.Len(at(99*20)))
	assert.LessOrEqual(t, len(a.entries), 1, "window must not grow unbounded")
}

func TestRecord_OutOfOrderTimestamps(t *testing.T) {
	a := New(Config{Window: 30 * time.Second})
	a.Record(at(10))
	a.Record(at(5))
	a.Record(at(12))

	assert.Equal(t, []time.Time{at(5), at(10), at(12)}, a.entries)
	assert.Equal(t, 2, a.Len(at(35)), "at(5) has aged out")
}

func TestLen_IgnoresFutureEntries(t *testing.T) {
	a := New(Config{})
	a.Record(at(10))
	assert.Equal(t, 0, a.Len(at(9)))
	assert.Equal(t, 1, a.Len(at(10)))
}

func TestCheckThreshold_CandidateKeepsWindow(t *testing.T) {
	a := New(Config{Window: 40 * time.Second, MinDetections: 2})
	a.Record(at(0))
	a.Record(at(5))

	first, crossed := a.CheckThreshold(t.Context(), at(5), nil)
	require.True(t, crossed)
	assert.Equal(t, 2, first.Count)

	// detections that raised a candidate still count towards the next one
	a.Record(at(10))
	second, crossed := a.CheckThreshold(t.Context(), at(10), nil)
	require.True(t, crossed)
	assert.Equal(t, 3, second.Count)
	assert.NotEqual(t, first.ID, second.ID)

	// only age removes entries
	a.Record(at(41))
	assert.Equal(t, 3, a.Len(at(41)), "at(0) has aged out")
}

func TestDefaults(t *testing.T) {
	a := New(Config{})
	assert.Equal(t, DefaultWindow, a.Window())
	assert.Equal(t, DefaultMinDetections, a.MinDetections())
}

func TestConcurrentRecordsAreNotUndercounted(t *testing.T) {
	const workers = 64
	a := New(Config{Window: time.Minute, MinDetections: workers})
	now := at(0)

	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() { a.Record(now) })
	}
	wg.Wait()

	c, crossed := a.CheckThreshold(t.Context(), now, nil)
	require.True(t, crossed)
	assert.Equal(t, workers, c.Count)
}

func TestCheckThreshold_LocateRunsOutsideLock(t *testing.T) {
	a := New(Config{})
	a.Record(at(0))
	a.Record(at(1))

	entered := make(chan struct{})
	release := make(chan struct{})
	locate := func(context.Context) location.Location {
		close(entered)
		<-release
		return location.Location{}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.CheckThreshold(t.Context(), at(2), locate)
	}()

	<-entered
	recorded := make(chan struct{})
	go func() {
		a.Record(at(2))
		close(recorded)
	}()

	select {
	case <-recorded:
	case <-time.After(time.Second):
		t.Fatal("Record blocked while a candidate location was being resolved")
	}
	close(release)
	<-done
}
