// Package log provides the small leveled logger that a pebliss Image holds
// a Helper for: a Logger interface, a level-filtering decorator, and a
// Helper that adds printf-style convenience methods on top.
package log

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Level is the severity of a log record.
type Level int8

// Severities, ascending.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the level's short name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Logger writes a leveled record made of alternating key/value pairs.
type Logger interface {
	Log(level Level, keyvals ...interface{}) error
}

// stdLogger writes records as plain lines to an io.Writer.
type stdLogger struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdLogger returns a Logger that writes to w.
func NewStdLogger(w io.Writer) Logger {
	return &stdLogger{w: w}
}

func (l *stdLogger) Log(level Level, keyvals ...interface{}) error {
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, "MISSING_VALUE")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s level=%s", time.Now().Format(time.RFC3339), level)
	for i := 0; i < len(keyvals); i += 2 {
		fmt.Fprintf(l.w, " %v=%v", keyvals[i], keyvals[i+1])
	}
	fmt.Fprintln(l.w)
	return nil
}

// Filter wraps a Logger and drops records below a minimum level.
type Filter struct {
	logger Logger
	level  Level
}

// FilterOption configures a Filter.
type FilterOption func(*Filter)

// FilterLevel sets the minimum level a record must meet to pass through.
func FilterLevel(level Level) FilterOption {
	return func(f *Filter) { f.level = level }
}

// NewFilter returns a Logger that forwards to logger, dropping anything
// below the configured level.
func NewFilter(logger Logger, opts ...FilterOption) Logger {
	f := &Filter{logger: logger, level: LevelDebug}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Filter) Log(level Level, keyvals ...interface{}) error {
	if level < f.level {
		return nil
	}
	return f.logger.Log(level, keyvals...)
}

// Helper adds printf-style convenience methods on top of a Logger.
type Helper struct {
	logger Logger
}

// NewHelper wraps logger in a Helper. A nil logger yields a Helper whose
// methods are all no-ops, so callers may construct an Image without
// supplying Options.Logger.
func NewHelper(logger Logger) *Helper {
	return &Helper{logger: logger}
}

func (h *Helper) log(level Level, msg string) {
	if h == nil || h.logger == nil {
		return
	}
	_ = h.logger.Log(level, "msg", msg)
}

// Debugf logs a formatted message at debug level.
func (h *Helper) Debugf(format string, a ...interface{}) { h.log(LevelDebug, fmt.Sprintf(format, a...)) }

// Infof logs a formatted message at info level.
func (h *Helper) Infof(format string, a ...interface{}) { h.log(LevelInfo, fmt.Sprintf(format, a...)) }

// Warnf logs a formatted message at warn level.
func (h *Helper) Warnf(format string, a ...interface{}) { h.log(LevelWarn, fmt.Sprintf(format, a...)) }

// Errorf logs a formatted message at error level.
func (h *Helper) Errorf(format string, a ...interface{}) { h.log(LevelError, fmt.Sprintf(format, a...)) }

// Debug logs its arguments, space-joined, at debug level.
func (h *Helper) Debug(a ...interface{}) { h.log(LevelDebug, fmt.Sprint(a...)) }

// Warn logs its arguments, space-joined, at warn level.
func (h *Helper) Warn(a ...interface{}) { h.log(LevelWarn, fmt.Sprint(a...)) }

// Error logs its arguments, space-joined, at error level.
func (h *Helper) Error(a ...interface{}) { h.log(LevelError, fmt.Sprint(a...)) }
