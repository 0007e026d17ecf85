package myaudio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tphakala/flac"
)

func probeFLAC(r io.Reader) (Info, error) {
	decoder, err := flac.NewDecoder(r)
	if err != nil {
		return Info{}, err
	}

	return Info{
		SampleRate:   decoder.SampleRate,
		TotalSamples: int(decoder.TotalSamples),
		NumChannels:  decoder.NChannels,
		BitDepth:     decoder.BitsPerSample,
	}, nil
}

func decodeFLAC(r io.Reader, maxDuration time.Duration) (*Clip, error) {
	decoder, err := flac.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	if decoder.NChannels <= 0 {
		return nil, errors.New("FLAC stream declares zero channels")
	}

	divisor, err := sampleDivisor(decoder.BitsPerSample)
	if err != nil {
		return nil, err
	}

	mix := &downmixer{
		channels: decoder.NChannels,
		divisor:  divisor,
		limit:    maxFrames(decoder.SampleRate, maxDuration),
	}
	if decoder.TotalSamples > 0 {
		mix.out = make([]float64, 0, int(decoder.TotalSamples))
	}

	bytesPerSample := decoder.BitsPerSample / 8

	// frames arrive as interleaved little-endian PCM bytes
	for !mix.full() {
		frame, err := decoder.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error decoding FLAC frame: %w", err)
		}

		for i := 0; i+bytesPerSample <= len(frame); i += bytesPerSample {
			mix.add(flacSample(frame[i:], decoder.BitsPerSample))
		}
	}

	return &Clip{Samples: mix.out, SampleRate: decoder.SampleRate}, nil
}

func flacSample(b []byte, bitDepth int) int {
	switch bitDepth {
	case 8:
		return int(int8(b[0]))
	case 16:
		return int(int16(binary.LittleEndian.Uint16(b)))
	case 24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		// sign extend from 24 bits
		return int(v<<8) >> 8
	default:
		return int(int32(binary.LittleEndian.Uint32(b)))
	}
}
