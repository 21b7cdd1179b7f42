package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level represents the severity level of a log message.
type Level int

// Log levels
const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name ("debug", "info", "warn", "error") to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("log: unknown level %q", s)
	}
}

// Format selects the output encoding.
type Format int

// Output formats
const (
	FormatText Format = iota
	FormatJSON
)

// ParseFormat converts a format name ("text", "json") to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("log: unknown format %q", s)
	}
}

// Logger defines the leveled, field-based logging interface used across Tide.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a logger that adds the fields to every entry.
	With(fields ...Field) Logger
}

// Option configures a logger at construction time.
type Option func(*options)

type options struct {
	level  Level
	format Format
	out    io.Writer
}

// WithLevel sets the minimum log level.
func WithLevel(level Level) Option { return func(o *options) { o.level = level } }

// WithFormat sets the output encoding.
func WithFormat(format Format) Option { return func(o *options) { o.format = format } }

// WithOutput sets the output destination. Defaults to stderr.
func WithOutput(w io.Writer) Option { return func(o *options) { o.out = w } }

type baseLogger struct {
	sl *slog.Logger
}

// NewLogger creates a logger with the given options.
func NewLogger(opts ...Option) Logger {
	o := options{level: InfoLevel, format: FormatText, out: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}
	hopts := &slog.HandlerOptions{Level: toSlogLevel(o.level)}
	var h slog.Handler
	if o.format == FormatJSON {
		h = slog.NewJSONHandler(o.out, hopts)
	} else {
		h = slog.NewTextHandler(o.out, hopts)
	}
	return &baseLogger{sl: slog.New(h)}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return &baseLogger{sl: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (l *baseLogger) Debug(msg string, fields ...Field) { l.sl.Debug(msg, attrs(fields)...) }
func (l *baseLogger) Info(msg string, fields ...Field)  { l.sl.Info(msg, attrs(fields)...) }
func (l *baseLogger) Warn(msg string, fields ...Field)  { l.sl.Warn(msg, attrs(fields)...) }
func (l *baseLogger) Error(msg string, fields ...Field) { l.sl.Error(msg, attrs(fields)...) }

func (l *baseLogger) With(fields ...Field) Logger {
	return &baseLogger{sl: l.sl.With(attrs(fields)...)}
}

func toSlogLevel(level Level) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func attrs(fields []Field) []any {
	if len(fields) == 0 {
		return nil
	}
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}
