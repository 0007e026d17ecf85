package features

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// numBins is the number of non-negative frequency bins of a real FFT.
const numBins = FrameLength/2 + 1

// numFrames is the frame count of a centred analysis of n samples.
func numFrames(n int) int {
	return 1 + n/HopLength
}

// hannWindow returns a periodic Hann window of length n.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

var window = hannWindow(FrameLength)

// forEachPowerFrame calls fn with |STFT|² of every frame. The signal is
// centred by padding FrameLength/2 zeros on both sides. row is reused between
// calls.
func forEachPowerFrame(samples []float64, fn func(row []float64)) {
	frames := numFrames(len(samples))
	fft := fourier.NewFFT(FrameLength)

	buf := make([]float64, FrameLength)
	coeffs := make([]complex128, numBins)
	row := make([]float64, numBins)

	for t := range frames {
		start := t*HopLength - FrameLength/2
		for i := range buf {
			idx := start + i
			if idx < 0 || idx >= len(samples) {
				buf[i] = 0
				continue
			}
			buf[i] = samples[idx] * window[i]
		}

		coeffs = fft.Coefficients(coeffs, buf)

		for k, c := range coeffs {
			re, im := real(c), imag(c)
			row[k] = re*re + im*im
		}
		fn(row)
	}
}

// frameSignal calls fn with each centred frame of samples, padded with pad.
func frameSignal(samples []float64, pad func(idx int) float64, fn func(frame []float64)) {
	frames := numFrames(len(samples))
	buf := make([]float64, FrameLength)
	for t := range frames {
		start := t*HopLength - FrameLength/2
		for i := range buf {
			idx := start + i
			if idx < 0 || idx >= len(samples) {
				buf[i] = pad(idx)
				continue
			}
			buf[i] = samples[idx]
		}
		fn(buf)
	}
}
