package myaudio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE

	// wavReadBuffer is the number of interleaved samples read per PCMBuffer call.
	wavReadBuffer = 32768
)

// ksDataFormatTail is the constant part of a WAVE_FORMAT_EXTENSIBLE subformat
// GUID; the first two bytes carry the plain format code.
var ksDataFormatTail = []byte{0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71}

// wavHeader is the fmt chunk with the extensible subformat already resolved,
// plus the location of the data chunk.
type wavHeader struct {
	format     uint16
	channels   int
	sampleRate int
	bitDepth   int
	dataOffset int64
	dataSize   int64
}

func (h wavHeader) frameSize() int { return h.channels * h.bitDepth / 8 }

// readWAVHeader walks the RIFF chunks of r and rewinds it. Only integer PCM
// and IEEE float encodings are accepted.
func readWAVHeader(r io.ReadSeeker) (wavHeader, error) {
	var h wavHeader
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return h, err
	}

	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil || string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return h, errors.New("input is not a valid WAV audio file")
	}

	var haveFmt, haveData bool
	for !haveFmt || !haveData {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			break
		}
		id := string(chunk[0:4])
		size := int64(binary.LittleEndian.Uint32(chunk[4:8]))

		switch id {
		case "fmt ":
			if size < 16 || size > 1024 {
				return h, fmt.Errorf("invalid WAV fmt chunk size %d", size)
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return h, fmt.Errorf("truncated WAV fmt chunk: %w", err)
			}
			if err := h.parseFmt(body); err != nil {
				return h, err
			}
			haveFmt = true
			if size%2 == 1 {
				if _, err := r.Seek(1, io.SeekCurrent); err != nil {
					return h, err
				}
			}
		case "data":
			offset, err := r.Seek(0, io.SeekCurrent)
			if err != nil {
				return h, err
			}
			end, err := r.Seek(0, io.SeekEnd)
			if err != nil {
				return h, err
			}
			// streaming recorders leave the size unset; trust the file length
			h.dataOffset = offset
			h.dataSize = min(size, end-offset)
			haveData = true
			if _, err := r.Seek(offset+size+size%2, io.SeekStart); err != nil {
				return h, err
			}
		default:
			if _, err := r.Seek(size+size%2, io.SeekCurrent); err != nil {
				return h, err
			}
		}
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return h, err
	}
	switch {
	case !haveFmt:
		return h, errors.New("WAV file has no fmt chunk")
	case !haveData:
		return h, errors.New("WAV file has no data chunk")
	}
	return h, nil
}

func (h *wavHeader) parseFmt(body []byte) error {
	le := binary.LittleEndian
	format := le.Uint16(body[0:2])
	h.channels = int(le.Uint16(body[2:4]))
	h.sampleRate = int(le.Uint32(body[4:8]))
	h.bitDepth = int(le.Uint16(body[14:16]))

	if format == wavFormatExtensible {
		if len(body) < 40 {
			return errors.New("truncated WAVE_FORMAT_EXTENSIBLE header")
		}
		guid := body[24:40]
		if !bytes.Equal(guid[2:], ksDataFormatTail) {
			return fmt.Errorf("unsupported WAV extensible subformat %x", guid)
		}
		format = le.Uint16(guid[0:2])
	}

	switch {
	case h.channels == 0:
		return errors.New("WAV header declares zero channels")
	case h.sampleRate == 0:
		return errors.New("WAV header declares zero sample rate")
	case format == wavFormatPCM:
	case format == wavFormatFloat:
		if h.bitDepth != 32 && h.bitDepth != 64 {
			return fmt.Errorf("unsupported float WAV bit depth: %d", h.bitDepth)
		}
	default:
		return fmt.Errorf("unsupported WAV encoding %d, only integer PCM and IEEE float are supported", format)
	}
	h.format = format
	return nil
}

func probeWAV(r io.ReadSeeker) (Info, error) {
	h, err := readWAVHeader(r)
	if err != nil {
		return Info{}, err
	}

	info := Info{
		SampleRate:  h.sampleRate,
		NumChannels: h.channels,
		BitDepth:    h.bitDepth,
	}
	if fs := h.frameSize(); fs > 0 {
		info.TotalSamples = int(h.dataSize / int64(fs))
	}
	return info, nil
}

func decodeWAV(r io.ReadSeeker, maxDuration time.Duration) (*Clip, error) {
	h, err := readWAVHeader(r)
	if err != nil {
		return nil, err
	}
	if h.format == wavFormatFloat {
		return decodeFloatWAV(r, h, maxDuration)
	}
	return decodePCMWAV(r, h, maxDuration)
}

func decodePCMWAV(r io.ReadSeeker, h wavHeader, maxDuration time.Duration) (*Clip, error) {
	decoder := wav.NewDecoder(r)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.New("input is not a valid WAV audio file")
	}

	divisor, err := sampleDivisor(h.bitDepth)
	if err != nil {
		return nil, err
	}

	mix := &downmixer{
		channels: h.channels,
		divisor:  divisor,
		limit:    maxFrames(h.sampleRate, maxDuration),
	}

	// keep whole frames per read so channels stay aligned across buffers
	bufLen := wavReadBuffer - wavReadBuffer%h.channels
	buf := &audio.IntBuffer{
		Data:   make([]int, bufLen),
		Format: &audio.Format{SampleRate: h.sampleRate, NumChannels: h.channels},
	}

	for !mix.full() {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, fmt.Errorf("error reading WAV samples: %w", err)
		}
		if n == 0 {
			break
		}
		for _, sample := range buf.Data[:n] {
			// 8-bit WAV is unsigned
			if h.bitDepth == 8 {
				sample -= 128
			}
			mix.add(sample)
		}
	}

	return &Clip{Samples: mix.out, SampleRate: h.sampleRate}, nil
}

// decodeFloatWAV reads little-endian IEEE float samples straight from the
// data chunk; go-audio only decodes integer PCM.
func decodeFloatWAV(r io.ReadSeeker, h wavHeader, maxDuration time.Duration) (*Clip, error) {
	if _, err := r.Seek(h.dataOffset, io.SeekStart); err != nil {
		return nil, err
	}

	width := h.bitDepth / 8
	mix := &downmixer{
		channels: h.channels,
		limit:    maxFrames(h.sampleRate, maxDuration),
	}

	data := io.LimitReader(r, h.dataSize)
	buf := make([]byte, (wavReadBuffer/h.channels)*h.frameSize())
	for !mix.full() {
		n, err := io.ReadFull(data, buf)
		n -= n % width
		for i := 0; i < n; i += width {
			var v float64
			if width == 4 {
				v = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[i:])))
			} else {
				v = math.Float64frombits(binary.LittleEndian.Uint64(buf[i:]))
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.New("WAV contains a non-finite float sample")
			}
			mix.push(v)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading WAV samples: %w", err)
		}
	}

	return &Clip{Samples: mix.out, SampleRate: h.sampleRate}, nil
}
