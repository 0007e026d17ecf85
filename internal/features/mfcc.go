package features

import (
	"math"
)

// Slaney mel scale constants.
const (
	melFSP       = 200.0 / 3
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSP
)

var melLogStep = math.Log(6.4) / 27.0

// Log power constants for converting mel energies to decibels.
const (
	amin  = 1e-10
	topDB = 80.0
)

func hzToMel(f float64) float64 {
	if f >= melMinLogHz {
		return melMinLogMel + math.Log(f/melMinLogHz)/melLogStep
	}
	return f / melFSP
}

func melToHz(m float64) float64 {
	if m >= melMinLogMel {
		return melMinLogHz * math.Exp(melLogStep*(m-melMinLogMel))
	}
	return melFSP * m
}

// melFilterbank builds nMels triangular filters between 0 Hz and Nyquist with
// Slaney area normalisation, as nMels x (nFFT/2+1).
func melFilterbank(sampleRate, nFFT, nMels int) [][]float64 {
	bins := nFFT/2 + 1
	fftFreqs := make([]float64, bins)
	for k := range fftFreqs {
		fftFreqs[k] = float64(k) * float64(sampleRate) / float64(nFFT)
	}

	// nMels+2 points equally spaced in mel between 0 and Nyquist
	minMel, maxMel := hzToMel(0), hzToMel(float64(sampleRate)/2)
	melF := make([]float64, nMels+2)
	for i := range melF {
		melF[i] = melToHz(minMel + (maxMel-minMel)*float64(i)/float64(nMels+1))
	}

	weights := make([][]float64, nMels)
	for m := range nMels {
		row := make([]float64, bins)
		lowerWidth := melF[m+1] - melF[m]
		upperWidth := melF[m+2] - melF[m+1]
		enorm := 2.0 / (melF[m+2] - melF[m])

		for k, f := range fftFreqs {
			lower := (f - melF[m]) / lowerWidth
			upper := (melF[m+2] - f) / upperWidth
			if w := math.Min(lower, upper); w > 0 {
				row[k] = w * enorm
			}
		}
		weights[m] = row
	}
	return weights
}

// mfccAccumulator collects per-frame log mel energies. Converting to the
// frame-mean of the first NumMFCC cepstral coefficients needs the global peak,
// so the dB values are kept until result.
type mfccAccumulator struct {
	bank   [][]float64
	logMel [][]float64
	peak   float64
}

func newMFCCAccumulator(bank [][]float64) *mfccAccumulator {
	return &mfccAccumulator{bank: bank, peak: math.Inf(-1)}
}

func (a *mfccAccumulator) add(row []float64) {
	bands := make([]float64, len(a.bank))
	for m, filter := range a.bank {
		var energy float64
		for k, w := range filter {
			if w != 0 {
				energy += w * row[k]
			}
		}
		db := 10 * math.Log10(math.Max(amin, energy))
		bands[m] = db
		a.peak = math.Max(a.peak, db)
	}
	a.logMel = append(a.logMel, bands)
}

// result applies the 80 dB floor below the peak and returns the mean MFCCs.
func (a *mfccAccumulator) result() []float64 {
	floor := a.peak - topDB
	meanBands := make([]float64, len(a.bank))
	for _, bands := range a.logMel {
		for m, db := range bands {
			meanBands[m] += math.Max(db, floor)
		}
	}
	for m := range meanBands {
		meanBands[m] /= float64(len(a.logMel))
	}

	// the DCT is linear, so the mean of the cepstra is the cepstrum of the mean
	return dctOrtho(meanBands, NumMFCC)
}

// dctOrtho returns the first n coefficients of the orthonormal DCT-II of x.
func dctOrtho(x []float64, n int) []float64 {
	size := float64(len(x))
	out := make([]float64, n)
	for k := range n {
		var sum float64
		for i, v := range x {
			sum += v * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*size))
		}
		scale := math.Sqrt(2 / size)
		if k == 0 {
			scale = math.Sqrt(1 / size)
		}
		out[k] = sum * scale
	}
	return out
}
