package classifier

import (
	"fmt"
	"math"

	"github.com/tphakala/screamguard/internal/features"
)

// BackendLinear is the JSON linear model backend.
const BackendLinear = "linear"

// Probability links for the linear decision value f = w·x + b.
const (
	LinkLogistic = "logistic" // p = 1 / (1 + exp(-f))
	LinkPlatt    = "platt"    // p = 1 / (1 + exp(A·f + B))
)

// LinearArtifact is the JSON document exported from a fitted scaler and a
// linear classifier.
type LinearArtifact struct {
	Sidecar
	Model struct {
		Link         string    `json:"link"`
		Coefficients []float64 `json:"coefficients"`
		Intercept    float64   `json:"intercept"`
		PlattA       float64   `json:"platt_a"`
		PlattB       float64   `json:"platt_b"`
	} `json:"model"`
	LabelRule string `json:"label_rule"`
}

// LinearModel evaluates a LinearArtifact. It is stateless and safe for
// concurrent use.
type LinearModel struct {
	artifact LinearArtifact
	path     string
}

func init() {
	RegisterBackend(BackendLinear, func(opts Options) (Model, error) {
		return LoadLinear(opts.Path)
	})
}

// LoadLinear reads a linear artifact from path.
func LoadLinear(path string) (*LinearModel, error) {
	var a LinearArtifact
	if err := readJSON(path, &a); err != nil {
		return nil, err
	}
	m, err := NewLinearModel(a)
	if err != nil {
		return nil, fmt.Errorf("invalid model artifact %s: %w", path, err)
	}
	m.path = path
	return m, nil
}

// NewLinearModel validates a and returns its model.
func NewLinearModel(a LinearArtifact) (*LinearModel, error) {
	if err := a.Sidecar.validate(); err != nil {
		return nil, err
	}
	if len(a.Model.Coefficients) != features.VectorLength {
		return nil, fmt.Errorf("model must have %d coefficients, got %d", features.VectorLength, len(a.Model.Coefficients))
	}
	for i, w := range a.Model.Coefficients {
		if !finite(w) {
			return nil, fmt.Errorf("coefficient %d is not finite", i)
		}
	}

	switch a.Model.Link {
	case "":
		a.Model.Link = LinkLogistic
	case LinkLogistic:
	case LinkPlatt:
		if a.Model.PlattA == 0 {
			return nil, fmt.Errorf("platt link requires a non-zero platt_a")
		}
	default:
		return nil, fmt.Errorf("unknown probability link %q", a.Model.Link)
	}

	switch a.LabelRule {
	case "":
		a.LabelRule = RuleProbability
	case RuleProbability, RuleDecision:
	default:
		return nil, fmt.Errorf("unknown label rule %q", a.LabelRule)
	}

	return &LinearModel{artifact: a}, nil
}

// Transform applies the fitted scaler.
func (m *LinearModel) Transform(v features.Vector) ([]float64, error) {
	return m.artifact.Scaler.Transform(v), nil
}

// Decision returns the raw linear decision value.
func (m *LinearModel) Decision(scaled []float64) (float64, error) {
	if len(scaled) != len(m.artifact.Model.Coefficients) {
		return 0, fmt.Errorf("expected %d scaled features, got %d", len(m.artifact.Model.Coefficients), len(scaled))
	}
	f := m.artifact.Model.Intercept
	for i, w := range m.artifact.Model.Coefficients {
		f += w * scaled[i]
	}
	return f, nil
}

// Predict returns the label and positive-class probability.
func (m *LinearModel) Predict(scaled []float64) (Label, float64, error) {
	f, err := m.Decision(scaled)
	if err != nil {
		return Negative, 0, err
	}

	var p float64
	switch m.artifact.Model.Link {
	case LinkPlatt:
		p = 1 / (1 + math.Exp(m.artifact.Model.PlattA*f+m.artifact.Model.PlattB))
	default:
		p = sigmoid(f)
	}

	positive := p >= m.artifact.Threshold
	if m.artifact.LabelRule == RuleDecision {
		positive = f > 0
	}
	if positive {
		return Positive, p, nil
	}
	return Negative, p, nil
}

// Info describes the artifact.
func (m *LinearModel) Info() ModelInfo {
	return ModelInfo{Backend: BackendLinear, Path: m.path, Threshold: m.artifact.Threshold}
}

// Close is a no-op.
func (m *LinearModel) Close() error { return nil }
