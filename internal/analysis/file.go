package analysis

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tphakala/screamguard/internal/classifier"
	"github.com/tphakala/screamguard/internal/features"
	"github.com/tphakala/screamguard/internal/myaudio"
	"github.com/tphakala/screamguard/internal/runtime"
)

// FileResult is the output of classifying a local clip.
type FileResult struct {
	File       string  `json:"file"`
	Duration   float64 `json:"duration_seconds"`
	SampleRate int     `json:"sample_rate"`
	classifier.Result
	Features       []float64 `json:"features,omitempty"`
	ProcessingTime string    `json:"processing_time"`
}

// Classifier is the part of the classifier ClassifyFile needs.
type Classifier interface {
	Classify(v features.Vector) (classifier.Result, error)
}

// FileAnalysis classifies a single audio file with the configured model and
// writes the result as JSON to w.
func FileAnalysis(rt *runtime.Context, path string, withFeatures bool, w io.Writer) error {
	c, err := LoadClassifier(rt)
	if err != nil {
		return err
	}
	defer c.Close()

	maxDuration := time.Duration(rt.Settings.Audio.MaxDuration) * time.Second
	res, err := ClassifyFile(c, path, maxDuration, withFeatures)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// ClassifyFile decodes, extracts and classifies the clip at path.
func ClassifyFile(c Classifier, path string, maxDuration time.Duration, withFeatures bool) (*FileResult, error) {
	if err := validateAudioFile(path); err != nil {
		return nil, err
	}

	start := time.Now()
	clip, err := myaudio.DecodeFile(path, maxDuration)
	if err != nil {
		return nil, err
	}

	vec, err := features.NewExtractor().Extract(clip)
	if err != nil {
		return nil, err
	}

	res, err := c.Classify(vec)
	if err != nil {
		return nil, err
	}

	out := &FileResult{
		File:           filepath.Base(path),
		Duration:       clip.Duration().Seconds(),
		SampleRate:     clip.SampleRate,
		Result:         res,
		ProcessingTime: time.Since(start).Round(time.Millisecond).String(),
	}
	if withFeatures {
		out.Features = vec[:]
	}
	return out, nil
}

// validateAudioFile checks that path is a non-empty regular file.
func validateAudioFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error accessing file %s: %w", filepath.Base(path), err)
	}
	if info.IsDir() {
		return fmt.Errorf("the path %s is a directory, not a file", filepath.Base(path))
	}
	if info.Size() == 0 {
		return fmt.Errorf("file %s is empty (0 bytes)", filepath.Base(path))
	}
	return nil
}
