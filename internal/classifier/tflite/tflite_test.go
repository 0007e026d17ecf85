package tflite

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/screamguard/internal/classifier"
	"github.com/tphakala/screamguard/internal/errors"
	"github.com/tphakala/screamguard/internal/features"
)

func writeSidecar(t *testing.T, dir string) string {
	t.Helper()
	s := classifier.Sidecar{
		Version:   1,
		Scaler:    classifier.Scaler{Mean: make([]float64, features.VectorLength), Scale: make([]float64, features.VectorLength)},
		Threshold: 0.6,
	}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	path := filepath.Join(dir, "scaler.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestBackendIsRegistered(t *testing.T) {
	assert.Contains(t, classifier.Backends(), Backend)
}

func TestLoad_MissingSidecar(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "model.tflite"), filepath.Join(dir, "absent.json"), 1)
	require.Error(t, err)
}

func TestLoad_MissingModelIsModelUnavailable(t *testing.T) {
	dir := t.TempDir()
	scaler := writeSidecar(t, dir)

	_, err := classifier.Load(Backend, classifier.Options{
		Path:       filepath.Join(dir, "absent.tflite"),
		ScalerPath: scaler,
	}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelUnavailable))
}
