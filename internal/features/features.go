// Package features turns a decoded clip into the fixed 41-value acoustic
// feature vector the scream classifier was trained on.
//
// The layout is 27 mean MFCCs, 12 mean chroma bins, the mean zero crossing
// rate and the mean RMS energy, in that order. All statistics are frame means
// over a centred STFT with a 2048-sample periodic Hann window and a hop of 512.
package features

import (
	"fmt"
	"math"
	"sync"

	"github.com/tphakala/screamguard/internal/errors"
	"github.com/tphakala/screamguard/internal/myaudio"
)

// Vector layout.
const (
	NumMFCC      = 27
	NumChroma    = 12
	VectorLength = NumMFCC + NumChroma + 2

	offsetChroma = NumMFCC
	offsetZCR    = NumMFCC + NumChroma
	offsetRMS    = offsetZCR + 1
)

// Analysis parameters.
const (
	FrameLength = 2048
	HopLength   = 512
	NumMels     = 128
)

// Vector is the ordered feature vector. Its length is part of the model contract.
type Vector [VectorLength]float64

// MFCC returns the 27 mean MFCCs.
func (v *Vector) MFCC() []float64 { return v[:NumMFCC] }

// Chroma returns the 12 mean chroma bins, starting at C.
func (v *Vector) Chroma() []float64 { return v[offsetChroma:offsetZCR] }

// ZCR returns the mean zero crossing rate.
func (v *Vector) ZCR() float64 { return v[offsetZCR] }

// RMS returns the mean RMS energy.
func (v *Vector) RMS() float64 { return v[offsetRMS] }

// Float32 converts the vector for float32 model inputs.
func (v *Vector) Float32() []float32 {
	out := make([]float32, VectorLength)
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// FromSlice builds a Vector from exactly VectorLength values.
func FromSlice(values []float64) (Vector, error) {
	var v Vector
	if len(values) != VectorLength {
		return v, errors.Newf("feature vector must have %d values, got %d", VectorLength, len(values)).
			Component("features").
			Category(errors.CategoryValidation).
			Build()
	}
	copy(v[:], values)
	return v, nil
}

// Extractor computes feature vectors. Filterbanks are built once per sample
// rate, and per tuning for chroma, and shared; Extract is safe for concurrent use.
type Extractor struct {
	mu     sync.Mutex
	mel    map[int][][]float64 // NumMels x bins
	chroma map[chromaKey][][]float64
}

// chromaKey identifies a chroma bank; tuning is in hundredths of a chroma bin.
type chromaKey struct {
	sampleRate int
	tuning     int
}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{
		mel:    make(map[int][][]float64),
		chroma: make(map[chromaKey][][]float64),
	}
}

// Extract computes the feature vector of clip. An empty clip, a non-positive
// sample rate or non-finite samples are decode errors.
func (e *Extractor) Extract(clip *myaudio.Clip) (Vector, error) {
	var v Vector

	if err := validateClip(clip); err != nil {
		return v, err
	}

	// the chroma bank depends on the tuning, which needs the whole clip
	mfcc := newMFCCAccumulator(e.melBank(clip.SampleRate))
	pitch := newPitchTracker(clip.SampleRate)
	forEachPowerFrame(clip.Samples, func(row []float64) {
		mfcc.add(row)
		pitch.add(row)
	})
	chroma := newChromaAccumulator(e.chromaBank(clip.SampleRate, pitch.tuning()))
	forEachPowerFrame(clip.Samples, chroma.add)

	copy(v[:NumMFCC], mfcc.result())
	copy(v[offsetChroma:offsetZCR], chroma.result())
	v[offsetZCR] = meanZeroCrossingRate(clip.Samples)
	v[offsetRMS] = meanRMS(clip.Samples)

	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return v, errors.Newf("feature %d is not finite", i).
				Component("features").
				Category(errors.CategoryDecode).
				Build()
		}
	}
	return v, nil
}

func validateClip(clip *myaudio.Clip) error {
	if clip.Empty() {
		return errors.New(myaudio.ErrEmptyClip).
			Component("features").
			Category(errors.CategoryDecode).
			Build()
	}
	if clip.SampleRate <= 0 {
		return errors.Newf("invalid sample rate %d", clip.SampleRate).
			Component("features").
			Category(errors.CategoryDecode).
			Build()
	}
	for i, s := range clip.Samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return errors.New(fmt.Errorf("audio buffer is not finite at sample %d", i)).
				Component("features").
				Category(errors.CategoryDecode).
				Build()
		}
	}
	return nil
}

func (e *Extractor) melBank(sampleRate int) [][]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if bank, ok := e.mel[sampleRate]; ok {
		return bank
	}
	bank := melFilterbank(sampleRate, FrameLength, NumMels)
	e.mel[sampleRate] = bank
	return bank
}

func (e *Extractor) chromaBank(sampleRate int, tuning float64) [][]float64 {
	key := chromaKey{sampleRate: sampleRate, tuning: int(math.Round(tuning * tuningBins))}

	e.mu.Lock()
	defer e.mu.Unlock()

	if bank, ok := e.chroma[key]; ok {
		return bank
	}
	bank := chromaFilterbank(sampleRate, FrameLength, float64(key.tuning)/tuningBins)
	e.chroma[key] = bank
	return bank
}
