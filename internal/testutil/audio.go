package testutil

import (
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"
)

// SineWave returns seconds of a sine tone at freq Hz with the given amplitude.
func SineWave(freq, amplitude float64, sampleRate int, seconds float64) []float64 {
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

// Noise returns deterministic uniform noise in [-amplitude, amplitude].
func Noise(amplitude float64, n int, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * (2*rng.Float64() - 1)
	}
	return out
}

// WriteWAV writes samples in [-1, 1] as a 16-bit WAV file with the given
// number of identical channels and returns its path.
func WriteWAV(t *testing.T, dir, name string, samples []float64, sampleRate, channels int) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)

	data := make([]int, 0, len(samples)*channels)
	for _, s := range samples {
		v := int(math.Round(max(-1, min(1, s)) * 32767))
		for range channels {
			data = append(data, v)
		}
	}

	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: channels},
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	return path
}

// ReadFile returns the content of path or fails the test.
func ReadFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}
