package errors

import (
	"fmt"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingReporter captures reported errors for assertions
type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) IsEnabled() bool { return true }

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.reported = append(r.reported, ee)
	ee.MarkReported()
}

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
}

func TestBuilderKeepsCategoryAndContext(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(NewStd("no samples")).
		Component("features").
		Category(CategoryDecode).
		Context("sample_rate", 16000).
		Build()

	assert.Equal(t, "features", ee.GetComponent())
	assert.True(t, IsCategory(ee, CategoryDecode))
	assert.False(t, IsCategory(ee, CategoryGeocoding))
	assert.Equal(t, 16000, ee.GetContext()["sample_rate"])
}

func TestIsCategoryThroughWrapping(t *testing.T) {
	SetTelemetryReporter(nil)

	inner := New(NewStd("sid missing")).Category(CategoryChannelMisconfigured).Build()
	outer := New(fmt.Errorf("sms channel: %w", inner)).Category(CategoryChannelSend).Build()
	wrapped := fmt.Errorf("dispatch: %w", outer)

	assert.True(t, IsCategory(wrapped, CategoryChannelSend))
	assert.True(t, IsCategory(wrapped, CategoryChannelMisconfigured))
	assert.Equal(t, CategoryChannelSend, CategoryOf(wrapped))
}

func TestCategoryInheritedFromWrappedError(t *testing.T) {
	SetTelemetryReporter(nil)

	inner := New(NewStd("bad header")).Category(CategoryDecode).Build()
	outer := New(fmt.Errorf("process clip: %w", inner)).Build()

	assert.Equal(t, CategoryDecode, outer.Category)
}

func TestUnknownSeverityIgnored(t *testing.T) {
	ee := New(NewStd("x")).Severity("urgent").Build()
	assert.Equal(t, SeverityDefault, ee.Severity)
	assert.Equal(t, sentry.LevelError, sentryLevel(ee))

	ee = New(NewStd("x")).Severity(SeverityCritical).Build()
	assert.Equal(t, sentry.LevelFatal, sentryLevel(ee))
}

func TestDecodeErrorKeepsOnlyExtension(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := DecodeError(NewStd("bad header"), "/var/lib/screamguard/uploads/clip.WAV")

	assert.Equal(t, "wav", ee.GetContext()["clip_format"])
	assert.Equal(t, "myaudio", ee.GetComponent())
	assert.NotContains(t, fmt.Sprint(ee.GetContext()), "uploads")
}

func TestReporterReceivesErrors(t *testing.T) {
	reporter := &recordingReporter{}
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := New(NewStd("connection refused")).Component("location").Build()

	require.Len(t, reporter.reported, 1)
	assert.True(t, ee.IsReported())
	assert.Equal(t, CategoryNetwork, ee.Category)
}

func TestModelUnavailableHelper(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := ModelUnavailable(NewStd("open model.json: no such file"), "/models/scream.json", "linear")

	assert.True(t, IsCategory(ee, CategoryModelUnavailable))
	assert.Equal(t, SeverityCritical, ee.Severity)
	assert.Equal(t, "json", ee.GetContext()["model_file_type"])
	assert.Equal(t, "linear", ee.GetContext()["model_backend"])
}

func TestScrubMessageForPrivacy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		message  string
		contains string
		absent   []string
	}{
		{
			name:     "url query removed",
			message:  "Error at https://ipinfo.io/1.2.3.4?token=secret123",
			contains: "https://ipinfo.io/1.2.3.4?[REDACTED]",
			absent:   []string{"secret123"},
		},
		{
			name:     "standalone api key",
			message:  "config error: api_key=secret123 is invalid",
			contains: "[API_KEY_REDACTED]",
			absent:   []string{"secret123"},
		},
		{
			name:     "phone number",
			message:  "failed to send SMS to +358401234567",
			contains: "[PHONE_REDACTED]",
			absent:   []string{"+358401234567"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			scrubbed := scrubMessageForPrivacy(tt.message)
			assert.Contains(t, scrubbed, tt.contains)
			for _, s := range tt.absent {
				assert.NotContains(t, scrubbed, s)
			}
		})
	}
}

func TestGenerateErrorTitle(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(NewStd("timeout")).
		Component("location").
		Category(CategoryGeocoding).
		Context("operation", "reverse_geocode").
		Build()

	assert.Equal(t, "Location Geocoding Failure Reverse Geocode", errorTitle(ee))
}
