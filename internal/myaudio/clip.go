// Package myaudio decodes uploaded audio clips into mono waveforms and manages
// the temporary files that back them.
//
// A clip is a discrete unit of work: it is saved by a ClipStore, decoded once,
// and released when the request that produced it completes.
package myaudio

import (
	"time"
)

// Clip is a decoded mono waveform at its native sample rate.
type Clip struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the length of the clip.
func (c *Clip) Duration() time.Duration {
	if c == nil || c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(c.Samples)) / float64(c.SampleRate) * float64(time.Second))
}

// Empty reports whether the clip holds no samples.
func (c *Clip) Empty() bool {
	return c == nil || len(c.Samples) == 0
}

// Info describes an audio file without decoding its samples.
type Info struct {
	Format       Format
	SampleRate   int
	NumChannels  int
	BitDepth     int
	TotalSamples int // per channel, 0 when the container does not say
}

// Duration returns the length implied by the header.
func (i Info) Duration() time.Duration {
	if i.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(i.TotalSamples) / float64(i.SampleRate) * float64(time.Second))
}
