// Package errors wraps standard errors with a category, the component that
// raised them and a little context, and forwards them to an optional
// telemetry reporter.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// ErrorCategory groups errors for handling decisions and reporting.
type ErrorCategory string

// CategorizedError lets foreign error types declare their own category.
type CategorizedError interface {
	error
	ErrorCategory() ErrorCategory
}

// Detection pipeline taxonomy. Every per-clip, per-provider and per-channel
// failure maps to exactly one of these.
const (
	CategoryDecode               ErrorCategory = "decode"                // unusable audio
	CategoryModelUnavailable     ErrorCategory = "model-unavailable"     // fatal, startup only
	CategoryInvalidCoordinates   ErrorCategory = "invalid-coordinates"   // falls through the resolver chain
	CategoryGeocoding            ErrorCategory = "geocoding"             // degrades address/accuracy
	CategoryChannelMisconfigured ErrorCategory = "channel-misconfigured" // per channel, siblings unaffected
	CategoryChannelSend          ErrorCategory = "channel-send"          // per recipient or per channel
)

// Infrastructure categories.
const (
	CategoryValidation     ErrorCategory = "validation"
	CategoryFileIO         ErrorCategory = "file-io"
	CategoryNetwork        ErrorCategory = "network"
	CategoryDatabase       ErrorCategory = "database"
	CategoryHTTP           ErrorCategory = "http-request"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryMQTTConnection ErrorCategory = "mqtt-connection"
	CategoryMQTTPublish    ErrorCategory = "mqtt-publish"
	CategoryNotFound       ErrorCategory = "not-found"
	CategoryLimit          ErrorCategory = "limit"
	CategoryTimeout        ErrorCategory = "timeout"
	CategoryGeneric        ErrorCategory = "generic"
)

// Severity overrides the reporting level derived from the category.
type Severity string

const (
	SeverityDefault  Severity = ""
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ComponentUnknown is used when no component was attached.
const ComponentUnknown = "unknown"

// reporting is true while an enabled telemetry reporter is installed. Build
// skips category guessing and reporting entirely when it is false.
var reporting atomic.Bool

// EnhancedError is an error annotated with a category, component and context.
type EnhancedError struct {
	Err       error
	Category  ErrorCategory
	Severity  Severity
	Timestamp time.Time

	component string
	context   map[string]any
	reported  atomic.Bool
}

func (ee *EnhancedError) Error() string { return ee.Err.Error() }
func (ee *EnhancedError) Unwrap() error { return ee.Err }

// Is matches another EnhancedError of the same category, otherwise the
// wrapped chain.
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category
	}
	return stderrors.Is(ee.Err, target)
}

// ErrorCategory implements CategorizedError.
func (ee *EnhancedError) ErrorCategory() ErrorCategory { return ee.Category }

// GetComponent returns the component that raised the error.
func (ee *EnhancedError) GetComponent() string {
	if ee.component == "" {
		return ComponentUnknown
	}
	return ee.component
}

// GetContext returns a copy of the attached context.
func (ee *EnhancedError) GetContext() map[string]any {
	if ee.context == nil {
		return nil
	}
	return maps.Clone(ee.context)
}

// MarkReported flags the error as sent to telemetry.
func (ee *EnhancedError) MarkReported() { ee.reported.Store(true) }

// IsReported reports whether the error was already sent to telemetry.
func (ee *EnhancedError) IsReported() bool { return ee.reported.Load() }

// ErrorBuilder assembles an EnhancedError.
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	severity  Severity
	context   map[string]any
}

// New starts a builder around err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf starts a builder around a formatted error.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component names the package or subsystem that raised the error.
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category.
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Severity overrides the reporting level. Unknown values are ignored.
func (eb *ErrorBuilder) Severity(severity Severity) *ErrorBuilder {
	switch severity {
	case SeverityWarning, SeverityCritical:
		eb.severity = severity
	}
	return eb
}

// Context attaches a key/value pair.
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any, 4)
	}
	eb.context[key] = value
	return eb
}

// ClipContext records the format of the clip being processed. Only the file
// extension is kept, never the path.
func (eb *ErrorBuilder) ClipContext(path string) *ErrorBuilder {
	if path != "" {
		eb.Context("clip_format", fileFormat(path))
	}
	return eb
}

// ArtifactContext records which model artifact and backend failed.
func (eb *ErrorBuilder) ArtifactContext(path, backend string) *ErrorBuilder {
	if path != "" {
		eb.Context("model_file_type", fileFormat(path))
	}
	if backend != "" {
		eb.Context("model_backend", backend)
	}
	return eb
}

// Build returns the EnhancedError and reports it when telemetry is enabled.
func (eb *ErrorBuilder) Build() *EnhancedError {
	ee := &EnhancedError{
		Err:       eb.err,
		Category:  eb.category,
		Severity:  eb.severity,
		Timestamp: time.Now(),
		component: eb.component,
		context:   eb.context,
	}

	if !reporting.Load() {
		if ee.Category == "" {
			ee.Category = inheritedCategory(eb.err)
		}
		return ee
	}

	if ee.Category == "" {
		ee.Category = detectCategory(eb.err, eb.component)
	}
	reportToTelemetry(ee)
	return ee
}

// inheritedCategory returns the category of a wrapped categorized error, or generic.
func inheritedCategory(err error) ErrorCategory {
	var catErr CategorizedError
	if err != nil && stderrors.As(err, &catErr) && catErr.ErrorCategory() != "" {
		return catErr.ErrorCategory()
	}
	return CategoryGeneric
}

// detectCategory guesses a category from the error chain, then the message,
// then the component.
func detectCategory(err error, component string) ErrorCategory {
	if cat := inheritedCategory(err); cat != CategoryGeneric || err == nil {
		return cat
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return CategoryTimeout
	case strings.Contains(msg, "connection"), strings.Contains(msg, "no such host"):
		return CategoryNetwork
	case strings.Contains(msg, "invalid"):
		return CategoryValidation
	}

	switch component {
	case "myaudio", "features":
		return CategoryDecode
	case "datastore":
		return CategoryDatabase
	case "location":
		return CategoryGeocoding
	case "notification":
		return CategoryChannelSend
	case "api":
		return CategoryHTTP
	}
	return CategoryGeneric
}

func fileFormat(path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "none"
	}
	return strings.ToLower(ext)
}

// DecodeError reports audio that could not be turned into samples.
func DecodeError(err error, path string) *EnhancedError {
	return New(err).
		Component("myaudio").
		Category(CategoryDecode).
		ClipContext(path).
		Build()
}

// ModelUnavailable reports a classifier artifact that failed to load.
func ModelUnavailable(err error, path, backend string) *EnhancedError {
	return New(err).
		Component("classifier").
		Category(CategoryModelUnavailable).
		Severity(SeverityCritical).
		ArtifactContext(path, backend).
		Build()
}

// ValidationError reports rejected input.
func ValidationError(message string) *EnhancedError {
	return New(NewStd(message)).
		Category(CategoryValidation).
		Build()
}

// NewStd is errors.New from the standard library.
func NewStd(text string) error { return stderrors.New(text) }

// Is is errors.Is from the standard library.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As is errors.As from the standard library.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Unwrap is errors.Unwrap from the standard library.
func Unwrap(err error) error { return stderrors.Unwrap(err) }

// Join is errors.Join from the standard library.
func Join(errs ...error) error { return stderrors.Join(errs...) }

// IsCategory reports whether any EnhancedError in the chain has category.
func IsCategory(err error, category ErrorCategory) bool {
	for err != nil {
		var ee *EnhancedError
		if !stderrors.As(err, &ee) {
			return false
		}
		if ee.Category == category {
			return true
		}
		err = ee.Err
	}
	return false
}

// IsNotFound is IsCategory with CategoryNotFound.
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}

// CategoryOf returns the category of the outermost EnhancedError, or generic.
func CategoryOf(err error) ErrorCategory {
	var ee *EnhancedError
	if stderrors.As(err, &ee) {
		return ee.Category
	}
	return CategoryGeneric
}

