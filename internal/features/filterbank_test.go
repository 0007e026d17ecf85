package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHannWindowIsPeriodic(t *testing.T) {
	w := hannWindow(FrameLength)
	assert.Zero(t, w[0])
	assert.InDelta(t, 1.0, w[FrameLength/2], 1e-12)
	assert.InDelta(t, w[1], w[FrameLength-1], 1e-12)
}

func TestNumFrames(t *testing.T) {
	assert.Equal(t, 1, numFrames(1))
	assert.Equal(t, 1, numFrames(511))
	assert.Equal(t, 2, numFrames(512))
	assert.Equal(t, 44, numFrames(22050))
}

func TestMelScale(t *testing.T) {
	assert.InDelta(t, 15.0, hzToMel(1000), 1e-12)
	assert.InDelta(t, 3.0, hzToMel(200), 1e-12)
	for _, hz := range []float64{0, 100, 999, 1000, 4000, 11025} {
		assert.InDelta(t, hz, melToHz(hzToMel(hz)), 1e-6)
	}
}

func TestMelFilterbankShape(t *testing.T) {
	bank := melFilterbank(22050, FrameLength, NumMels)
	require.Len(t, bank, NumMels)

	for m, row := range bank {
		require.Len(t, row, numBins)
		nonZero := 0
		for _, w := range row {
			assert.GreaterOrEqual(t, w, 0.0)
			if w > 0 {
				nonZero++
			}
		}
		assert.Positive(t, nonZero, "filter %d is empty", m)
	}
}

func TestChromaFilterbankShape(t *testing.T) {
	bank := chromaFilterbank(22050, FrameLength, 0)
	require.Len(t, bank, NumChroma)
	for _, row := range bank {
		require.Len(t, row, numBins)
		for _, w := range row {
			assert.GreaterOrEqual(t, w, 0.0)
		}
	}
}

func TestDCTOrtho(t *testing.T) {
	x := make([]float64, 16)
	for i := range x {
		x[i] = 3
	}
	out := dctOrtho(x, 5)
	assert.InDelta(t, 3*math.Sqrt(16), out[0], 1e-9)
	for _, c := range out[1:] {
		assert.InDelta(t, 0, c, 1e-9)
	}

	// orthonormal transform preserves energy
	y := []float64{1, -2, 0.5, 4}
	full := dctOrtho(y, len(y))
	var ex, ey float64
	for i := range y {
		ex += y[i] * y[i]
		ey += full[i] * full[i]
	}
	assert.InDelta(t, ex, ey, 1e-9)
}

func TestFloorMod(t *testing.T) {
	assert.InDelta(t, 2.0, floorMod(-10, 12), 1e-12)
	assert.InDelta(t, 5.5, floorMod(17.5, 12), 1e-12)
	assert.InDelta(t, 0.0, floorMod(24, 12), 1e-12)
}
