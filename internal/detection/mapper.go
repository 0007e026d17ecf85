package detection

import (
	"encoding/json"

	"github.com/tphakala/screamguard/internal/datastore"
	"github.com/tphakala/screamguard/internal/location"
)

// Mapper converts Detection domain models to datastore records.
// Runtime-only fields (ClipPath, ProcessingTime, Probabilities) are not persisted.
type Mapper struct{}

// NewMapper creates a new mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// ToDatastore converts a Detection to a record for persistence.
func (m *Mapper) ToDatastore(d *Detection) (datastore.Record, error) {
	vec, err := json.Marshal(d.Features[:])
	if err != nil {
		return datastore.Record{}, err
	}

	rec := datastore.Record{
		DetectionID:    d.ID,
		SourceNode:     d.SourceNode,
		Timestamp:      d.Timestamp.UTC(),
		Positive:       d.Positive(),
		Prediction:     d.Label.String(),
		Probability:    d.Probability,
		Features:       string(vec),
		Address:        d.Location.Address,
		LocationSource: d.Location.Source.String(),
		AudioPath:      d.Source.ClipName,
	}
	// An unresolved location stores zeros rather than a position.
	if d.Location.Source != location.SourceUnresolved {
		rec.Latitude = d.Location.Latitude
		rec.Longitude = d.Location.Longitude
		rec.Accuracy = d.Location.Accuracy
	}
	return rec, nil
}
