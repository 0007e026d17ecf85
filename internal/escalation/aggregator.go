// Package escalation decides when repeated positive detections warrant
// escalating to responders.
//
// The Aggregator keeps the timestamps of recent positive detections in a
// sliding window. Entries whose age reaches the window length are pruned on
// every call, and pruning plus counting happen under one lock so concurrent
// detections are never under-counted.
package escalation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/screamguard/internal/location"
)

const (
	// DefaultWindow is the retention horizon for positive detections.
	DefaultWindow = 30 * time.Second
	// DefaultMinDetections is how many detections inside the window trigger
	// an escalation candidate.
	DefaultMinDetections = 2
)

// LocateFunc resolves the location attached to a candidate.
type LocateFunc func(ctx context.Context) location.Location

// Candidate is returned when the threshold is crossed. It carries everything
// a responder needs to confirm the escalation.
type Candidate struct {
	ID              string            `json:"candidate_id"`
	Count           int               `json:"count"`
	TriggeredAt     time.Time         `json:"triggered_at"`
	Location        location.Location `json:"location"`
	EmergencyNumber string            `json:"emergency_number"`
}

// Config configures an Aggregator.
type Config struct {
	Window          time.Duration
	MinDetections   int
	EmergencyNumber string
}

// Aggregator is the shared sliding-window counter. Safe for concurrent use.
type Aggregator struct {
	mu      sync.Mutex
	entries []time.Time // ascending
	window  time.Duration
	min     int
	number  string
}

// New creates an Aggregator. Zero values take the defaults.
func New(cfg Config) *Aggregator {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MinDetections <= 0 {
		cfg.MinDetections = DefaultMinDetections
	}
	return &Aggregator{
		window: cfg.Window,
		min:    cfg.MinDetections,
		number: cfg.EmergencyNumber,
	}
}

// Record adds a positive detection at ts.
func (a *Aggregator) Record(ts time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pruneLocked(ts)

	// Keep the slice ordered even when concurrent callers stamp their
	// detections slightly out of order.
	i := len(a.entries)
	for i > 0 && a.entries[i-1].After(ts) {
		i--
	}
	a.entries = append(a.entries, time.Time{})
	copy(a.entries[i+1:], a.entries[i:])
	a.entries[i] = ts
}

// CheckThreshold prunes the window relative to now and, if enough detections
// remain, returns a candidate whose location comes from locate. locate runs
// after the lock is released so a slow provider never blocks Record.
func (a *Aggregator) CheckThreshold(ctx context.Context, now time.Time, locate LocateFunc) (*Candidate, bool) {
	a.mu.Lock()
	a.pruneLocked(now)
	count := a.countLocked(now)
	a.mu.Unlock()

	if count < a.min {
		return nil, false
	}

	c := &Candidate{
		ID:              uuid.NewString(),
		Count:           count,
		TriggeredAt:     now,
		EmergencyNumber: a.number,
	}
	if locate != nil {
		c.Location = locate(ctx)
	} else {
		c.Location = location.Unresolved(now)
	}
	return c, true
}

// Len prunes relative to now and returns the window size.
func (a *Aggregator) Len(now time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pruneLocked(now)
	return a.countLocked(now)
}

// Window returns the retention horizon.
func (a *Aggregator) Window() time.Duration { return a.window }

// MinDetections returns the threshold.
func (a *Aggregator) MinDetections() int { return a.min }

// pruneLocked drops every entry whose age is at least the window.
func (a *Aggregator) pruneLocked(now time.Time) {
	n := 0
	for n < len(a.entries) && now.Sub(a.entries[n]) >= a.window {
		n++
	}
	if n == 0 {
		return
	}
	remaining := copy(a.entries, a.entries[n:])
	clear(a.entries[remaining:])
	a.entries = a.entries[:remaining]
}

// countLocked counts entries inside the window. Entries stamped after now
// (a caller checking with an older clock reading) are not counted.
func (a *Aggregator) countLocked(now time.Time) int {
	count := 0
	for _, ts := range a.entries {
		if !ts.After(now) {
			count++
		}
	}
	return count
}
