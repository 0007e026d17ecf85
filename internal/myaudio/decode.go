package myaudio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tphakala/screamguard/internal/errors"
)

// Format identifies a supported audio container.
type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatFLAC    Format = "flac"
)

var (
	// ErrEmptyClip is returned when a file decodes to zero samples.
	ErrEmptyClip = errors.NewStd("audio clip contains no samples")

	// ErrUnsupportedFormat is returned for containers other than WAV and FLAC.
	ErrUnsupportedFormat = errors.NewStd("unsupported audio format")
)

// DetectFormat sniffs the container from the first bytes of r and rewinds it.
// The file extension is used only when the header is inconclusive.
func DetectFormat(r io.ReadSeeker, name string) (Format, error) {
	header := make([]byte, 12)
	n, err := io.ReadFull(r, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FormatUnknown, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return FormatUnknown, err
	}
	header = header[:n]

	switch {
	case len(header) >= 12 && bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE")):
		return FormatWAV, nil
	case len(header) >= 4 && bytes.Equal(header[0:4], []byte("fLaC")):
		return FormatFLAC, nil
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav", ".wave":
		return FormatWAV, nil
	case ".flac":
		return FormatFLAC, nil
	}
	return FormatUnknown, ErrUnsupportedFormat
}

// DecodeFile decodes the file at path into a mono clip. maxDuration caps the
// decoded length, 0 decodes everything. Any failure, including a file with no
// samples, is a decode error.
func DecodeFile(path string, maxDuration time.Duration) (*Clip, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.DecodeError(fmt.Errorf("failed to open audio file: %w", err), path)
	}
	defer func() { _ = file.Close() }()

	clip, err := Decode(file, filepath.Base(path), maxDuration)
	if err != nil {
		if errors.IsCategory(err, errors.CategoryDecode) {
			return nil, err
		}
		return nil, errors.DecodeError(err, path)
	}
	return clip, nil
}

// Decode decodes a WAV or FLAC stream into a mono clip. Multichannel audio is
// averaged across channels; the native sample rate is kept.
func Decode(r io.ReadSeeker, name string, maxDuration time.Duration) (*Clip, error) {
	format, err := DetectFormat(r, name)
	if err != nil {
		return nil, errors.DecodeError(err, name)
	}

	var clip *Clip
	switch format {
	case FormatWAV:
		clip, err = decodeWAV(r, maxDuration)
	case FormatFLAC:
		clip, err = decodeFLAC(r, maxDuration)
	default:
		err = ErrUnsupportedFormat
	}
	if err != nil {
		return nil, errors.DecodeError(err, name)
	}
	if clip.Empty() {
		return nil, errors.DecodeError(ErrEmptyClip, name)
	}
	return clip, nil
}

// Probe reads the header of the file at path.
func Probe(path string) (Info, error) {
	file, err := os.Open(path)
	if err != nil {
		return Info{}, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryFileIO).
			Context("operation", "probe_audio").
			Build()
	}
	defer func() { _ = file.Close() }()

	format, err := DetectFormat(file, path)
	if err != nil {
		return Info{}, errors.DecodeError(err, path)
	}

	var info Info
	switch format {
	case FormatWAV:
		info, err = probeWAV(file)
	case FormatFLAC:
		info, err = probeFLAC(file)
	}
	if err != nil {
		return Info{}, errors.DecodeError(err, path)
	}
	info.Format = format
	return info, nil
}

// sampleDivisor returns the scale that maps signed integer PCM to [-1, 1).
func sampleDivisor(bitDepth int) (float64, error) {
	switch bitDepth {
	case 8:
		return 128.0, nil
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}
}

// maxFrames converts a duration cap to a per-channel sample count, 0 = unlimited.
func maxFrames(sampleRate int, maxDuration time.Duration) int {
	if maxDuration <= 0 || sampleRate <= 0 {
		return 0
	}
	return int(maxDuration.Seconds() * float64(sampleRate))
}

// downmixer accumulates interleaved samples into a mono float64 slice.
type downmixer struct {
	channels int
	divisor  float64 // integer input scale, unused by push
	limit    int     // frames, 0 = unlimited
	out      []float64

	acc     float64
	pending int
}

func (d *downmixer) full() bool {
	return d.limit > 0 && len(d.out) >= d.limit
}

// add takes a signed integer sample.
func (d *downmixer) add(sample int) {
	d.push(float64(sample) / d.divisor)
}

// push takes a sample already scaled to [-1, 1].
func (d *downmixer) push(v float64) {
	if d.full() {
		return
	}
	d.acc += v
	d.pending++
	if d.pending == d.channels {
		d.out = append(d.out, d.acc/float64(d.channels))
		d.acc = 0
		d.pending = 0
	}
}
