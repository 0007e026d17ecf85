package features

import (
	"math"
	"slices"
)

// Tuning estimation: parabolic-interpolated spectral peaks in
// [tuningFMin, tuningFMax) above tuningPeakRatio of the frame maximum,
// histogrammed over the deviation from the equal-tempered A440 grid.
const (
	tuningFMin      = 150.0
	tuningFMax      = 4000.0
	tuningPeakRatio = 0.1

	// histogram bins across one chroma bin, a resolution of 0.01
	tuningBins = 100
)

// smallest normal float64
const tinyFloat64 = 0x1p-1022

// pitchTracker collects interpolated peak pitches and magnitudes from power
// frames and turns them into a tuning offset in fractions of a chroma bin.
type pitchTracker struct {
	sampleRate float64
	lo, hi     int // bin range [lo, hi)

	pitches []float64
	mags    []float64
}

func newPitchTracker(sampleRate int) *pitchTracker {
	p := &pitchTracker{sampleRate: float64(sampleRate)}

	fmax := math.Min(tuningFMax, p.sampleRate/2)
	p.lo, p.hi = numBins, 0
	for k := range numBins {
		f := float64(k) * p.sampleRate / FrameLength
		if f >= tuningFMin && f < fmax {
			p.lo = min(p.lo, k)
			p.hi = k + 1
		}
	}
	// peaks need both neighbours
	p.lo = max(p.lo, 1)
	p.hi = min(p.hi, numBins-1)
	return p
}

func (p *pitchTracker) add(row []float64) {
	peak := 0.0
	for _, s := range row {
		peak = math.Max(peak, s)
	}
	ref := tuningPeakRatio * peak
	gated := func(k int) float64 {
		if row[k] > ref {
			return row[k]
		}
		return 0
	}

	for k := p.lo; k < p.hi; k++ {
		x := gated(k)
		if x <= gated(k-1) || x < gated(k+1) {
			continue
		}

		avg := 0.5 * (row[k+1] - row[k-1])
		curv := 2*row[k] - row[k+1] - row[k-1]
		if math.Abs(curv) < tinyFloat64 {
			curv++
		}
		shift := avg / curv

		pitch := (float64(k) + shift) * p.sampleRate / FrameLength
		if pitch <= 0 {
			continue
		}
		p.pitches = append(p.pitches, pitch)
		p.mags = append(p.mags, row[k]+0.5*avg*shift)
	}
}

// tuning returns the most common deviation, in [-0.5, 0.5), of peaks at or
// above the median magnitude. It is 0 when no peak was found.
func (p *pitchTracker) tuning() float64 {
	if len(p.pitches) == 0 {
		return 0
	}
	threshold := median(p.mags)

	var counts [tuningBins]int
	for i, f := range p.pitches {
		if p.mags[i] < threshold {
			continue
		}
		r := floorMod(NumChroma*hzToOcts(f, 0), 1)
		if r >= 0.5 {
			r--
		}
		idx := int(math.Floor((r + 0.5) * tuningBins))
		counts[min(max(idx, 0), tuningBins-1)]++
	}

	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return float64(best-tuningBins/2) / tuningBins
}

func median(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return 0.5 * (sorted[mid-1] + sorted[mid])
	}
	return sorted[mid]
}
