// Package tflite provides the TensorFlow Lite classifier backend. Importing it
// registers the "tflite" backend with the classifier package.
//
// The model takes a [1,41] float32 input of scaled features and produces either
// [1,1] (positive probability) or [1,2] (negative and positive probabilities).
// The scaler and threshold come from a JSON sidecar.
package tflite

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	tflite "github.com/tphakala/go-tflite"

	"github.com/tphakala/screamguard/internal/classifier"
	"github.com/tphakala/screamguard/internal/features"
)

// Backend is the registered backend name.
const Backend = "tflite"

func init() {
	classifier.RegisterBackend(Backend, func(opts classifier.Options) (classifier.Model, error) {
		return Load(opts.Path, opts.ScalerPath, opts.Threads)
	})
}

// Model runs a TensorFlow Lite interpreter. The interpreter is not reentrant,
// so Predict calls are serialised.
type Model struct {
	mu          sync.Mutex
	interpreter *tflite.Interpreter
	model       *tflite.Model
	sidecar     *classifier.Sidecar
	path        string
	outputs     int
}

// Load reads the model at path and the sidecar at scalerPath. threads <= 0
// uses all available CPUs.
func Load(path, scalerPath string, threads int) (*Model, error) {
	sidecar, err := classifier.LoadSidecar(scalerPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read TensorFlow Lite model: %w", err)
	}

	model := tflite.NewModel(data)
	if model == nil {
		return nil, fmt.Errorf("cannot load TensorFlow Lite model %s", path)
	}

	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)
	defer options.Delete()

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		model.Delete()
		return nil, fmt.Errorf("cannot create interpreter")
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		model.Delete()
		return nil, fmt.Errorf("tensor allocation failed: %v", status)
	}

	m := &Model{interpreter: interpreter, model: model, sidecar: sidecar, path: path}
	if err := m.checkShapes(); err != nil {
		_ = m.Close()
		return nil, err
	}
	return m, nil
}

func (m *Model) checkShapes() error {
	input := m.interpreter.GetInputTensor(0)
	if input == nil {
		return fmt.Errorf("cannot get input tensor")
	}
	if n := input.Dim(input.NumDims() - 1); n != features.VectorLength {
		return fmt.Errorf("model input has %d features, expected %d", n, features.VectorLength)
	}

	output := m.interpreter.GetOutputTensor(0)
	if output == nil {
		return fmt.Errorf("cannot get output tensor")
	}
	m.outputs = output.Dim(output.NumDims() - 1)
	if m.outputs != 1 && m.outputs != 2 {
		return fmt.Errorf("model output must have 1 or 2 values, got %d", m.outputs)
	}
	return nil
}

// Transform applies the sidecar scaler.
func (m *Model) Transform(v features.Vector) ([]float64, error) {
	return m.sidecar.Scaler.Transform(v), nil
}

// Predict invokes the interpreter on scaled features.
func (m *Model) Predict(scaled []float64) (classifier.Label, float64, error) {
	if len(scaled) != features.VectorLength {
		return classifier.Negative, 0, fmt.Errorf("expected %d scaled features, got %d", features.VectorLength, len(scaled))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	input := m.interpreter.GetInputTensor(0)
	in := input.Float32s()
	for i, x := range scaled {
		in[i] = float32(x)
	}

	if status := m.interpreter.Invoke(); status != tflite.OK {
		return classifier.Negative, 0, fmt.Errorf("tensor invoke failed: %v", status)
	}

	out := m.interpreter.GetOutputTensor(0).Float32s()
	p := float64(out[m.outputs-1])

	if p >= m.sidecar.Threshold {
		return classifier.Positive, p, nil
	}
	return classifier.Negative, p, nil
}

// Info describes the model.
func (m *Model) Info() classifier.ModelInfo {
	return classifier.ModelInfo{Backend: Backend, Path: m.path, Threshold: m.sidecar.Threshold}
}

// Close releases the interpreter.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.interpreter != nil {
		m.interpreter.Delete()
		m.interpreter = nil
	}
	if m.model != nil {
		m.model.Delete()
		m.model = nil
	}
	return nil
}
