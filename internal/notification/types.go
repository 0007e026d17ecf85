// Package notification fans an escalation alert out to independent
// channels (SMS, email, emergency call and MQTT) and reports the outcome of
// each channel separately. A failing channel never affects its siblings.
package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tphakala/screamguard/internal/location"
)

// Channel names used as Report keys and in metrics labels.
const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
	ChannelCall  = "call"
	ChannelMQTT  = "mqtt"
)

// Alert is the escalation sent to responders.
type Alert struct {
	CandidateID     string            `json:"candidate_id,omitempty"`
	Location        location.Location `json:"location"`
	EmergencyNumber string            `json:"emergency_number,omitempty"`
	TriggeredAt     time.Time         `json:"triggered_at"`
	Count           int               `json:"count,omitempty"`
}

// Channel delivers an alert through one medium. Implementations must be safe
// for concurrent use.
type Channel interface {
	Name() string
	// Validate reports missing configuration without touching the network.
	Validate() error
	Send(ctx context.Context, alert *Alert) error
}

// Result is the outcome of one channel.
type Result struct {
	Success  bool          `json:"success"`
	Reason   string        `json:"reason,omitempty"`
	Duration time.Duration `json:"-"`
}

// MarshalJSON reports the duration in milliseconds.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		plain
		DurationMS int64 `json:"duration_ms"`
	}{plain(r), r.Duration.Milliseconds()})
}

// Report maps channel names to their results.
type Report map[string]Result

// Succeeded returns the names of the channels that delivered.
func (r Report) Succeeded() []string {
	var names []string
	for name, res := range r {
		if res.Success {
			names = append(names, name)
		}
	}
	return names
}

// AllSucceeded reports whether every channel delivered. An empty report
// did not deliver anything.
func (r Report) AllSucceeded() bool {
	if len(r) == 0 {
		return false
	}
	for _, res := range r {
		if !res.Success {
			return false
		}
	}
	return true
}
