// Package classifier wraps a pretrained scream model behind a small contract:
// a feature vector goes in, a label and the positive-class probability come out.
//
// Model artifacts are loaded once at process start. Backends register
// themselves by name; the JSON linear backend is built in and the TensorFlow
// Lite backend lives in the tflite subpackage.
package classifier

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/tphakala/screamguard/internal/errors"
	"github.com/tphakala/screamguard/internal/features"
	"github.com/tphakala/screamguard/internal/logger"
)

// Label is the binary classification outcome.
type Label int

const (
	Negative Label = iota
	Positive
)

// String returns the wording used in API responses and stored documents.
func (l Label) String() string {
	if l == Positive {
		return "Screaming Detected"
	}
	return "No Screaming Detected"
}

// MarshalText renders the label as its display string.
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Result is the outcome of classifying one feature vector.
type Result struct {
	Label         Label      `json:"prediction"`
	Probability   float64    `json:"probability"`   // positive class
	Probabilities [2]float64 `json:"probabilities"` // negative, positive
}

// ModelInfo describes a loaded artifact.
type ModelInfo struct {
	Backend   string  `json:"backend"`
	Path      string  `json:"path"`
	Threshold float64 `json:"threshold"`
}

// Model is a loaded artifact: a feature scaler followed by a binary model.
type Model interface {
	Transform(v features.Vector) ([]float64, error)
	Predict(scaled []float64) (Label, float64, error)
	Info() ModelInfo
	Close() error
}

// Options are passed to backend loaders.
type Options struct {
	Path       string
	ScalerPath string
	Threads    int
}

// LoaderFunc loads a model for a backend.
type LoaderFunc func(opts Options) (Model, error)

var (
	backendsMu sync.RWMutex
	backends   = map[string]LoaderFunc{}
)

// RegisterBackend makes a backend available to Load. It panics on duplicates.
func RegisterBackend(name string, loader LoaderFunc) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if _, dup := backends[name]; dup {
		panic("classifier: backend registered twice: " + name)
	}
	backends[name] = loader
}

// Backends lists the registered backend names.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Classifier runs feature vectors through a Model.
type Classifier struct {
	model Model
	log   logger.Logger
}

// New wraps an already loaded model.
func New(model Model, log logger.Logger) *Classifier {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Classifier{model: model, log: log.Module("classifier")}
}

// Load loads the artifact for backend. Any failure is a ModelUnavailable error;
// the service must not start without a model.
func Load(backend string, opts Options, log logger.Logger) (*Classifier, error) {
	backendsMu.RLock()
	loader, ok := backends[backend]
	backendsMu.RUnlock()

	if !ok {
		return nil, errors.ModelUnavailable(
			fmt.Errorf("unknown model backend %q, available: %v", backend, Backends()),
			opts.Path, backend)
	}

	start := time.Now()
	model, err := loader(opts)
	if err != nil {
		if errors.IsCategory(err, errors.CategoryModelUnavailable) {
			return nil, err
		}
		return nil, errors.ModelUnavailable(err, opts.Path, backend)
	}

	c := New(model, log)
	info := model.Info()
	c.log.Info("model loaded",
		logger.String("backend", info.Backend),
		logger.String("path", info.Path),
		logger.Float64("threshold", info.Threshold),
		logger.Duration("load_time", time.Since(start)))
	return c, nil
}

// Info describes the loaded model.
func (c *Classifier) Info() ModelInfo {
	return c.model.Info()
}

// Classify scales v and runs the model.
func (c *Classifier) Classify(v features.Vector) (Result, error) {
	scaled, err := c.model.Transform(v)
	if err != nil {
		return Result{}, err
	}

	label, p, err := c.model.Predict(scaled)
	if err != nil {
		return Result{}, err
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return Result{}, errors.Newf("model returned invalid probability %v", p).
			Component("classifier").
			Category(errors.CategoryValidation).
			Build()
	}

	return Result{
		Label:         label,
		Probability:   p,
		Probabilities: [2]float64{1 - p, p},
	}, nil
}

// Close releases model resources.
func (c *Classifier) Close() error {
	return c.model.Close()
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
