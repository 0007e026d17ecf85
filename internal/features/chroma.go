package features

import (
	"math"
)

// Chroma filterbank shape: Gaussian bumps per pitch class, weighted towards
// octave ctrOct with a spread of octWidth octaves. The A440 reference is
// shifted by the estimated tuning of each clip.
const (
	chromaCtrOct   = 5.0
	chromaOctWidth = 2.0
	chromaA440     = 440.0

	// smallest normal float32, below which a frame is left unnormalised
	normThreshold = 1.1754944e-38
)

// hzToOcts maps frequency to fractional octaves above A0/16 (C-1 region),
// with A moved by tuning fractions of a chroma bin.
func hzToOcts(f, tuning float64) float64 {
	a440 := chromaA440 * math.Pow(2, tuning/NumChroma)
	return math.Log2(f / (a440 / 16))
}

// floorMod is the modulo whose result takes the sign of the divisor.
func floorMod(a, b float64) float64 {
	r := math.Mod(a, b)
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}
	return r
}

// chromaFilterbank builds the NumChroma x (nFFT/2+1) chroma projection with
// columns L2-normalised and rows rolled so that row 0 is C. tuning is in
// fractions of a chroma bin, see pitchTracker.
func chromaFilterbank(sampleRate, nFFT int, tuning float64) [][]float64 {
	const n = NumChroma

	// fractional chroma bin of every FFT bin; bin 0 gets a placeholder 1.5 octaves below bin 1
	frqBins := make([]float64, nFFT)
	for k := 1; k < nFFT; k++ {
		f := float64(k) * float64(sampleRate) / float64(nFFT)
		frqBins[k] = n * hzToOcts(f, tuning)
	}
	frqBins[0] = frqBins[1] - 1.5*n

	binWidth := make([]float64, nFFT)
	for k := 0; k < nFFT-1; k++ {
		binWidth[k] = math.Max(frqBins[k+1]-frqBins[k], 1.0)
	}
	binWidth[nFFT-1] = 1

	half := math.Round(float64(n) / 2)
	wts := make([][]float64, n)
	for c := range n {
		wts[c] = make([]float64, nFFT)
	}

	for k := range nFFT {
		// distance from each chroma centre, wrapped to [-half, half)
		var norm float64
		for c := range n {
			d := floorMod(frqBins[k]-float64(c)+half+10*n, n) - half
			w := math.Exp(-0.5 * math.Pow(2*d/binWidth[k], 2))
			wts[c][k] = w
			norm += w * w
		}
		norm = math.Sqrt(norm)
		if norm < normThreshold {
			norm = 1
		}

		octWeight := math.Exp(-0.5 * math.Pow((frqBins[k]/n-chromaCtrOct)/chromaOctWidth, 2))
		for c := range n {
			wts[c][k] = wts[c][k] / norm * octWeight
		}
	}

	// roll by -3 so the first row is C instead of A, and keep non-negative bins
	bins := nFFT/2 + 1
	out := make([][]float64, n)
	for c := range n {
		out[c] = wts[(c+3)%n][:bins]
	}
	return out
}

// chromaAccumulator projects each frame onto the chroma bank, normalises it
// by its maximum and sums it.
type chromaAccumulator struct {
	bank   [][]float64
	sum    []float64
	frame  []float64
	frames int
}

func newChromaAccumulator(bank [][]float64) *chromaAccumulator {
	return &chromaAccumulator{
		bank:  bank,
		sum:   make([]float64, len(bank)),
		frame: make([]float64, len(bank)),
	}
}

func (a *chromaAccumulator) add(row []float64) {
	peak := 0.0
	for c, filter := range a.bank {
		var energy float64
		for k, w := range filter {
			energy += w * row[k]
		}
		a.frame[c] = energy
		peak = math.Max(peak, math.Abs(energy))
	}
	if peak < normThreshold {
		peak = 1
	}
	for c, energy := range a.frame {
		a.sum[c] += energy / peak
	}
	a.frames++
}

func (a *chromaAccumulator) result() []float64 {
	mean := make([]float64, len(a.sum))
	for c, s := range a.sum {
		mean[c] = s / float64(a.frames)
	}
	return mean
}
