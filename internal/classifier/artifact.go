package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/tphakala/screamguard/internal/features"
)

// DefaultThreshold is used when an artifact does not carry one.
const DefaultThreshold = 0.5

// Label rules.
const (
	// RuleProbability labels positive when the probability reaches the threshold.
	RuleProbability = "probability"
	// RuleDecision labels positive when the raw decision value is positive,
	// as SVMs do when probabilities come from a separate Platt fit.
	RuleDecision = "decision"
)

// Scaler is a fitted standardisation: (x - mean) / scale per feature.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Validate checks the scaler dimensions.
func (s *Scaler) Validate() error {
	if len(s.Mean) != features.VectorLength || len(s.Scale) != features.VectorLength {
		return fmt.Errorf("scaler must have %d means and scales, got %d and %d",
			features.VectorLength, len(s.Mean), len(s.Scale))
	}
	for i := range s.Mean {
		if !finite(s.Mean[i]) || !finite(s.Scale[i]) {
			return fmt.Errorf("scaler entry %d is not finite", i)
		}
	}
	return nil
}

// Transform standardises v. Zero scales are treated as 1, matching how
// zero-variance features are fitted.
func (s *Scaler) Transform(v features.Vector) []float64 {
	out := make([]float64, features.VectorLength)
	for i, x := range v {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (x - s.Mean[i]) / scale
	}
	return out
}

// Sidecar is the part of an artifact shared by all backends.
type Sidecar struct {
	Version   int     `json:"version"`
	Scaler    Scaler  `json:"scaler"`
	Threshold float64 `json:"threshold"`
}

// LoadSidecar reads and validates the scaler and threshold from path.
func LoadSidecar(path string) (*Sidecar, error) {
	var s Sidecar
	if err := readJSON(path, &s); err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Sidecar) validate() error {
	if err := s.Scaler.Validate(); err != nil {
		return err
	}
	if s.Threshold == 0 {
		s.Threshold = DefaultThreshold
	}
	if s.Threshold <= 0 || s.Threshold >= 1 {
		return fmt.Errorf("threshold must be in (0, 1), got %v", s.Threshold)
	}
	return nil
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read model artifact: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse model artifact %s: %w", path, err)
	}
	return nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
