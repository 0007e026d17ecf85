// Package detection provides the runtime model for one classified clip.
// It is independent of the storage schema; Mapper converts it to the
// datastore record.
package detection

import (
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/screamguard/internal/classifier"
	"github.com/tphakala/screamguard/internal/features"
	"github.com/tphakala/screamguard/internal/location"
)

// Detection is the outcome of processing one clip. It is created once per
// clip and never mutated after persistence.
type Detection struct {
	// Identity
	ID         string // uuid, assigned at creation
	SourceNode string // node name from settings

	Timestamp time.Time

	// Classification
	Label         classifier.Label
	Probability   float64    // positive class
	Probabilities [2]float64 // negative, positive
	Features      features.Vector

	// Location is only resolved for positive detections; negatives carry an
	// unresolved placeholder.
	Location location.Location

	Source         AudioSource
	ProcessingTime time.Duration
}

// New creates a Detection from a classification result.
func New(sourceNode string, ts time.Time, result classifier.Result, vec features.Vector, source AudioSource) *Detection {
	return &Detection{
		ID:            uuid.NewString(),
		SourceNode:    sourceNode,
		Timestamp:     ts,
		Label:         result.Label,
		Probability:   result.Probability,
		Probabilities: result.Probabilities,
		Features:      vec,
		Location:      location.Unresolved(ts),
		Source:        source,
	}
}

// Positive reports whether the clip was classified as a scream.
func (d *Detection) Positive() bool {
	return d.Label == classifier.Positive
}

// Result returns the classification part of the detection.
func (d *Detection) Result() classifier.Result {
	return classifier.Result{
		Label:         d.Label,
		Probability:   d.Probability,
		Probabilities: d.Probabilities,
	}
}
