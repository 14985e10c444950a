package observe

import (
	"context"
	"io"
	"os"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

const redacted = "[REDACTED]"

// Logger is a minimal structured logging interface.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: the context is used for correlation (trace and span ids) only.
// - Errors: logging must be best-effort and must not panic.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)

	// With returns a logger that adds fields to every entry.
	With(fields ...Field) Logger
}

// Field represents a structured log field.
type Field struct {
	Key   string
	Value any
}

// F is shorthand for constructing a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// ParseLogLevel parses a level name. Unknown names map to info.
func ParseLogLevel(s string) zerolog.Level {
	switch s {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type zerologLogger struct {
	zl zerolog.Logger
}

// NewLogger creates a logger from cfg. JSON output is the default; the
// console format writes human readable lines.
func NewLogger(cfg LoggingConfig) Logger {
	w := cfg.Output
	if w == nil {
		w = os.Stderr
	}
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return NewZerologLogger(zerolog.New(w).Level(ParseLogLevel(cfg.Level)).With().Timestamp().Logger())
}

// NewLoggerWithWriter creates a JSON logger at level writing to w.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	return NewLogger(LoggingConfig{Enabled: true, Level: level, Output: w})
}

// NewZerologLogger adapts an existing zerolog logger.
func NewZerologLogger(zl zerolog.Logger) Logger {
	return &zerologLogger{zl: zl}
}

func (l *zerologLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.write(ctx, l.zl.Debug(), msg, fields)
}

func (l *zerologLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.write(ctx, l.zl.Info(), msg, fields)
}

func (l *zerologLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.write(ctx, l.zl.Warn(), msg, fields)
}

func (l *zerologLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.write(ctx, l.zl.Error(), msg, fields)
}

func (l *zerologLogger) With(fields ...Field) Logger {
	zctx := l.zl.With()
	for _, f := range fields {
		if isRedactedField(f.Key) {
			zctx = zctx.Str(f.Key, redacted)
			continue
		}
		zctx = zctx.Interface(f.Key, f.Value)
	}
	return &zerologLogger{zl: zctx.Logger()}
}

func (l *zerologLogger) write(ctx context.Context, ev *zerolog.Event, msg string, fields []Field) {
	// zerolog returns a nil event below the configured level.
	if ev == nil {
		return
	}
	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			ev = ev.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
		}
	}
	for _, f := range fields {
		if isRedactedField(f.Key) {
			ev = ev.Str(f.Key, redacted)
			continue
		}
		if err, ok := f.Value.(error); ok {
			ev = ev.AnErr(f.Key, err)
			continue
		}
		ev = ev.Interface(f.Key, f.Value)
	}
	ev.Msg(msg)
}

// isRedactedField returns true if the field should be redacted.
func isRedactedField(key string) bool {
	return slices.Contains(RedactedFields, key)
}

// NopLogger returns a logger that discards everything.
func NopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...Field) {}
func (nopLogger) Info(context.Context, string, ...Field)  {}
func (nopLogger) Warn(context.Context, string, ...Field)  {}
func (nopLogger) Error(context.Context, string, ...Field) {}
func (l nopLogger) With(...Field) Logger                  { return l }

// Ensure zerologLogger implements Logger
var _ Logger = (*zerologLogger)(nil)
