package logger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	_ "time/tzdata"
)

const (
	// traceLevelValue is slog.Level for TRACE level (below Debug which is -4)
	traceLevelValue = slog.Level(-8)

	floatPrecisionRatio = 1000.0

	fileBufferSize = 32 * 1024
)

// CentralLogger manages module-aware logging with a console and an optional file sink
type CentralLogger struct {
	config       *LoggingConfig
	timezone     *time.Location
	baseHandler  slog.Handler
	file         *lockedFile
	moduleLevels map[string]slog.Level
	mu           sync.RWMutex
}

// NewCentralLogger creates a centralized logger with module routing
func NewCentralLogger(cfg *LoggingConfig) (*CentralLogger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logging config cannot be nil")
	}

	applyConfigDefaults(cfg)

	tz, err := loadTimezone(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	cl := &CentralLogger{
		config:       cfg,
		timezone:     tz,
		moduleLevels: make(map[string]slog.Level, len(cfg.ModuleLevels)),
	}

	for module, levelStr := range cfg.ModuleLevels {
		cl.moduleLevels[module] = parseLogLevel(levelStr)
	}

	if err := cl.createBaseHandler(); err != nil {
		return nil, fmt.Errorf("failed to create base handler: %w", err)
	}

	return cl, nil
}

// NewSlogLogger returns a Logger writing text records to w. A nil writer logs
// to stdout, a nil timezone means local time.
func NewSlogLogger(w io.Writer, level LogLevel, tz *time.Location) Logger {
	if w == nil {
		w = os.Stdout
	}
	if tz == nil {
		tz = time.Local
	}
	slogLevel := parseSlogLevel(level)
	return &moduleLogger{
		logger:   slog.New(newTextHandler(w, slogLevel, tz)),
		level:    slogLevel,
		timezone: tz,
	}
}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() Logger {
	return NewSlogLogger(io.Discard, LogLevelError, time.UTC)
}

func loadTimezone(name string) (*time.Location, error) {
	switch name {
	case "", "Local":
		return time.Local, nil
	default:
		tz, err := time.LoadLocation(name)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %s: %w", name, err)
		}
		return tz, nil
	}
}

func (cl *CentralLogger) createBaseHandler() error {
	var handlers []slog.Handler

	if cl.config.Console != nil && cl.config.Console.Enabled {
		handlers = append(handlers, newTextHandler(os.Stdout, parseLogLevel(cl.config.Console.Level), cl.timezone))
	}

	if cl.config.FileOutput != nil && cl.config.FileOutput.Enabled {
		f, err := openLockedFile(cl.config.FileOutput.Path)
		if err != nil {
			return err
		}
		cl.file = f

		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{
			Level: parseLogLevel(cl.config.FileOutput.Level),
		}))
	}

	switch len(handlers) {
	case 0:
		cl.baseHandler = newTextHandler(os.Stdout, parseLogLevel(cl.config.DefaultLevel), cl.timezone)
	case 1:
		cl.baseHandler = handlers[0]
	default:
		cl.baseHandler = &multiHandler{handlers: handlers}
	}

	return nil
}

// Module returns a logger scoped to a specific module
func (cl *CentralLogger) Module(name string) Logger {
	if cl == nil {
		return NewNopLogger()
	}

	cl.mu.RLock()
	defer cl.mu.RUnlock()

	level, ok := cl.moduleLevels[name]
	if !ok {
		level = parseLogLevel(cl.config.DefaultLevel)
	}

	return &moduleLogger{
		module:   name,
		logger:   slog.New(cl.baseHandler),
		level:    level,
		timezone: cl.timezone,
	}
}

// Flush writes buffered file output to the OS.
func (cl *CentralLogger) Flush() error {
	if cl == nil || cl.file == nil {
		return nil
	}
	return cl.file.Flush()
}

// Close flushes and closes the log file, if any.
func (cl *CentralLogger) Close() error {
	if cl == nil {
		return nil
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.file == nil {
		return nil
	}
	err := cl.file.Close()
	cl.file = nil
	return err
}

// lockedFile is a buffered, mutex-guarded log file
type lockedFile struct {
	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer
}

func openLockedFile(path string) (*lockedFile, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	return &lockedFile{f: f, w: bufio.NewWriterSize(f, fileBufferSize)}, nil
}

func (lf *lockedFile) Write(p []byte) (int, error) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	return lf.w.Write(p)
}

func (lf *lockedFile) Flush() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	return lf.w.Flush()
}

func (lf *lockedFile) Close() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	return errors.Join(lf.w.Flush(), lf.f.Sync(), lf.f.Close())
}

// parseLogLevel converts string level to slog.Level
func parseLogLevel(level string) slog.Level {
	return parseSlogLevel(LogLevel(level))
}

func parseSlogLevel(level LogLevel) slog.Level {
	switch level {
	case LogLevelTrace:
		return traceLevelValue
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// moduleLogger implements Logger interface for a specific module
type moduleLogger struct {
	module   string
	logger   *slog.Logger
	level    slog.Level
	timezone *time.Location
	fields   []Field
}

// Module creates a sub-module logger, e.g. "notification.sms".
func (m *moduleLogger) Module(name string) Logger {
	module := name
	if m.module != "" {
		module = m.module + "." + name
	}
	return &moduleLogger{
		module:   module,
		logger:   m.logger,
		level:    m.level,
		timezone: m.timezone,
		fields:   slices.Clone(m.fields),
	}
}

func (m *moduleLogger) Trace(msg string, fields ...Field) {
	if m.level > traceLevelValue {
		return
	}
	m.log(traceLevelValue, msg, fields...)
}

func (m *moduleLogger) Debug(msg string, fields ...Field) {
	if m.level > slog.LevelDebug {
		return
	}
	m.log(slog.LevelDebug, msg, fields...)
}

func (m *moduleLogger) Info(msg string, fields ...Field) {
	if m.level > slog.LevelInfo {
		return
	}
	m.log(slog.LevelInfo, msg, fields...)
}

func (m *moduleLogger) Warn(msg string, fields ...Field) {
	if m.level > slog.LevelWarn {
		return
	}
	m.log(slog.LevelWarn, msg, fields...)
}

func (m *moduleLogger) Error(msg string, fields ...Field) {
	m.log(slog.LevelError, msg, fields...)
}

func (m *moduleLogger) Log(level LogLevel, msg string, fields ...Field) {
	l := parseSlogLevel(level)
	if m.level > l {
		return
	}
	m.log(l, msg, fields...)
}

// With returns a new logger with accumulated fields
func (m *moduleLogger) With(fields ...Field) Logger {
	return &moduleLogger{
		module:   m.module,
		logger:   m.logger,
		level:    m.level,
		timezone: m.timezone,
		fields:   slices.Concat(m.fields, fields),
	}
}

// WithContext attaches the trace ID stored in ctx, if any
func (m *moduleLogger) WithContext(ctx context.Context) Logger {
	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		return m
	}
	return m.With(String(traceIDKey, traceID))
}

// Flush is a no-op; module loggers do not own file handles.
func (m *moduleLogger) Flush() error {
	return nil
}

func (m *moduleLogger) log(level slog.Level, msg string, fields ...Field) {
	attrs := make([]slog.Attr, 0, 1+len(m.fields)+len(fields))

	if m.module != "" {
		attrs = append(attrs, slog.String(moduleKey, m.module))
	}
	for i := range m.fields {
		attrs = append(attrs, fieldToAttr(m.fields[i]))
	}
	for i := range fields {
		attrs = append(attrs, fieldToAttr(fields[i]))
	}

	m.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

func roundFloat(val float64) float64 {
	return math.Round(val*floatPrecisionRatio) / floatPrecisionRatio
}

// fieldToAttr converts Field to slog.Attr, redacting sensitive values
func fieldToAttr(f Field) slog.Attr {
	switch v := f.Value.(type) {
	case string:
		if isSensitiveKey(f.Key) && v != "" {
			return slog.String(f.Key, redactedValue)
		}
		return slog.String(f.Key, RedactSensitiveData(v))
	case int:
		return slog.Int(f.Key, v)
	case int64:
		return slog.Int64(f.Key, v)
	case float32:
		return slog.Float64(f.Key, roundFloat(float64(v)))
	case float64:
		return slog.Float64(f.Key, roundFloat(v))
	case bool:
		return slog.Bool(f.Key, v)
	case time.Time:
		return slog.Time(f.Key, v)
	case time.Duration:
		return slog.String(f.Key, v.Round(time.Millisecond).String())
	default:
		return slog.Any(f.Key, v)
	}
}

type traceIDContextKey struct{}

// WithTraceID returns a new context with the trace ID set
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDContextKey{}, traceID)
}

// TraceIDFromContext returns the trace ID stored by WithTraceID, or "".
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if traceID, ok := ctx.Value(traceIDContextKey{}).(string); ok {
		return traceID
	}
	return ""
}

// newTextHandler returns a text handler without the time attribute and with
// timezone-adjusted time values.
func newTextHandler(w io.Writer, level slog.Level, tz *time.Location) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch {
			case len(groups) == 0 && a.Key == slog.TimeKey:
				return slog.Attr{}
			case len(groups) == 0 && a.Key == slog.LevelKey:
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == traceLevelValue {
					return slog.String(slog.LevelKey, "TRACE")
				}
			case a.Value.Kind() == slog.KindTime:
				return slog.Time(a.Key, a.Value.Time().In(tz))
			}
			return a
		},
	})
}

// multiHandler fans records out to several handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

//nolint:gocritic // slog.Handler interface requires record by value
func (h *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}
