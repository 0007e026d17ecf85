package errors

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter receives every EnhancedError built while it is installed.
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

var (
	reporterMu sync.RWMutex
	reporter   TelemetryReporter
)

// SetTelemetryReporter installs r as the process-wide reporter. Nil disables
// reporting.
func SetTelemetryReporter(r TelemetryReporter) {
	reporterMu.Lock()
	defer reporterMu.Unlock()
	reporter = r
	reporting.Store(r != nil && r.IsEnabled())
}

// GetTelemetryReporter returns the installed reporter, if any.
func GetTelemetryReporter() TelemetryReporter {
	reporterMu.RLock()
	defer reporterMu.RUnlock()
	return reporter
}

func reportToTelemetry(ee *EnhancedError) {
	if r := GetTelemetryReporter(); r != nil && r.IsEnabled() {
		r.ReportError(ee)
	}
}

// SentryReporter forwards errors to Sentry after scrubbing them.
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter returns a reporter that is a no-op unless enabled.
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

// InitSentry configures the Sentry SDK and installs a SentryReporter. An empty
// DSN leaves telemetry off. The returned func flushes pending events.
func InitSentry(dsn, environment, release string) (flush func(), err error) {
	if dsn == "" {
		return func() {}, nil
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init: %w", err)
	}

	SetTelemetryReporter(NewSentryReporter(true))
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// IsEnabled implements TelemetryReporter.
func (sr *SentryReporter) IsEnabled() bool { return sr.enabled }

// ReportError implements TelemetryReporter. Each error is sent at most once.
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}

	msg := scrubMessageForPrivacy(fmt.Sprintf("[%s] %s", ee.Category, ee.Err.Error()))
	title := errorTitle(ee)
	level := sentryLevel(ee)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(map[string]string{
			"error_title": title,
			"component":   ee.GetComponent(),
			"category":    string(ee.Category),
			"error_type":  fmt.Sprintf("%T", ee.Err),
		})
		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = scrubMessageForPrivacy(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}
		scope.SetLevel(level)
		scope.SetFingerprint([]string{title, ee.GetComponent(), string(ee.Category)})

		event := sentry.NewEvent()
		event.Level = level
		event.Message = msg
		event.Exception = []sentry.Exception{{Type: title, Value: msg}}
		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

var categoryTitles = map[ErrorCategory]string{
	CategoryDecode:               "Decode Error",
	CategoryModelUnavailable:     "Model Unavailable",
	CategoryInvalidCoordinates:   "Invalid Coordinates",
	CategoryGeocoding:            "Geocoding Failure",
	CategoryChannelMisconfigured: "Channel Misconfigured",
	CategoryChannelSend:          "Channel Send Failure",
	CategoryNetwork:              "Network Error",
	CategoryDatabase:             "Database Error",
	CategoryFileIO:               "File I/O Error",
	CategoryConfiguration:        "Configuration Error",
	CategoryValidation:           "Validation Error",
}

// errorTitle builds "<Component> <Category> <Operation>" for grouping in Sentry.
func errorTitle(ee *EnhancedError) string {
	var parts []string
	if c := ee.GetComponent(); c != ComponentUnknown {
		parts = append(parts, upperFirst(c))
	}
	if t, ok := categoryTitles[ee.Category]; ok {
		parts = append(parts, t)
	} else if ee.Category != "" {
		parts = append(parts, string(ee.Category))
	}
	if op, ok := ee.GetContext()["operation"].(string); ok && op != "" {
		for w := range strings.FieldsSeq(strings.ReplaceAll(op, "_", " ")) {
			parts = append(parts, upperFirst(w))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%T", ee.Err)
	}
	return strings.Join(parts, " ")
}

func upperFirst(s string) string {
	r := []rune(s)
	if len(r) > 0 {
		r[0] = unicode.ToUpper(r[0])
	}
	return string(r)
}

// sentryLevel maps the error to a Sentry level. Channel failures are errors
// because a responder may not have been reached.
func sentryLevel(ee *EnhancedError) sentry.Level {
	switch ee.Severity {
	case SeverityCritical:
		return sentry.LevelFatal
	case SeverityWarning:
		return sentry.LevelWarning
	}

	switch ee.Category {
	case CategoryGeocoding, CategoryNetwork, CategoryTimeout:
		return sentry.LevelWarning
	case CategoryDecode, CategoryInvalidCoordinates, CategoryValidation:
		return sentry.LevelInfo
	default:
		return sentry.LevelError
	}
}

var (
	urlQueryRegex = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	secretRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(api[_-]?key|token|auth)[=:]\S+`),
		regexp.MustCompile(`(?i)key[=:][0-9a-zA-Z_-]{8,}`),
		regexp.MustCompile(`AC[0-9a-fA-F]{32}`), // Twilio account SID
		regexp.MustCompile(`[0-9a-fA-F]{32,}`),
	}
	phoneRegex = regexp.MustCompile(`\+[1-9]\d{7,14}`)
)

// scrubMessageForPrivacy strips query strings, credentials and phone numbers.
func scrubMessageForPrivacy(message string) string {
	s := urlQueryRegex.ReplaceAllString(message, "$1?[REDACTED]")
	for _, re := range secretRegexes {
		s = re.ReplaceAllString(s, "[API_KEY_REDACTED]")
	}
	return phoneRegex.ReplaceAllString(s, "[PHONE_REDACTED]")
}
