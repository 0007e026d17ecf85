package features

import (
	"math"
)

// zeroThreshold treats samples this close to zero as positive zero.
const zeroThreshold = 1e-10

// meanZeroCrossingRate averages, over centred frames padded with the edge
// samples, the fraction of adjacent sample pairs whose sign differs.
func meanZeroCrossingRate(samples []float64) float64 {
	first, last := samples[0], samples[len(samples)-1]
	edge := func(idx int) float64 {
		if idx < 0 {
			return first
		}
		return last
	}

	var total float64
	frames := 0
	frameSignal(samples, edge, func(frame []float64) {
		crossings := 0
		prev := negative(frame[0])
		for _, s := range frame[1:] {
			cur := negative(s)
			if cur != prev {
				crossings++
			}
			prev = cur
		}
		total += float64(crossings) / FrameLength
		frames++
	})
	return total / float64(frames)
}

func negative(s float64) bool {
	if math.Abs(s) <= zeroThreshold {
		return false
	}
	return math.Signbit(s)
}

// meanRMS averages the root mean square energy of zero-padded centred frames.
func meanRMS(samples []float64) float64 {
	zero := func(int) float64 { return 0 }

	var total float64
	frames := 0
	frameSignal(samples, zero, func(frame []float64) {
		var power float64
		for _, s := range frame {
			power += s * s
		}
		total += math.Sqrt(power / FrameLength)
		frames++
	})
	return total / float64(frames)
}
