// Package logger provides structured logging for the finance engine.
// It wraps log/slog with typed field constructors and context propagation.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Level represents the severity of a log message.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// ParseLevel parses a string into a Level. Unknown values map to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Field represents a key-value pair for structured logging.
type Field = slog.Attr

// F creates a new Field with the given key and value.
func F(key string, value any) Field { return slog.Any(key, value) }

// Common field constructors for convenience.
func String(key, value string) Field          { return slog.String(key, value) }
func Int(key string, value int) Field         { return slog.Int(key, value) }
func Int64(key string, value int64) Field     { return slog.Int64(key, value) }
func Float64(key string, value float64) Field { return slog.Float64(key, value) }
func Bool(key string, value bool) Field       { return slog.Bool(key, value) }
func Duration(key string, value time.Duration) Field {
	return slog.String(key, value.String())
}
func Time(key string, value time.Time) Field { return slog.Time(key, value) }
func Any(key string, value any) Field        { return slog.Any(key, value) }

// Money logs a decimal amount as its exact string form.
func Money(key string, value decimal.Decimal) Field { return slog.String(key, value.String()) }

// Err creates an error field.
func Err(err error) Field {
	if err == nil {
		return slog.Any("error", nil)
	}
	return slog.String("error", err.Error())
}

// Logger is the main logger struct.
type Logger struct {
	sl *slog.Logger
}

// Options configures the logger.
type Options struct {
	Output    io.Writer
	Level     Level
	AddSource bool
	// Format is "json" or "text".
	Format string
}

// DefaultOptions returns sensible defaults for the logger.
func DefaultOptions() Options {
	return Options{
		Output: os.Stdout,
		Level:  LevelInfo,
		Format: "json",
	}
}

// New creates a new Logger with the given options.
func New(opts Options) *Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	hopts := &slog.HandlerOptions{Level: opts.Level, AddSource: opts.AddSource}

	var h slog.Handler
	if opts.Format == "text" {
		h = slog.NewTextHandler(opts.Output, hopts)
	} else {
		h = slog.NewJSONHandler(opts.Output, hopts)
	}
	return &Logger{sl: slog.New(h)}
}

// Default creates a logger with default options.
func Default() *Logger {
	return New(DefaultOptions())
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return New(Options{Output: io.Discard, Level: LevelError})
}

// Slog exposes the underlying slog logger for infrastructure that takes one.
func (l *Logger) Slog() *slog.Logger {
	return l.sl
}

// With returns a new Logger with the given fields added.
func (l *Logger) With(fields ...Field) *Logger {
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	return &Logger{sl: l.sl.With(args...)}
}

func (l *Logger) log(level Level, msg string, fields ...Field) {
	l.sl.LogAttrs(context.Background(), level, msg, fields...)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields...) }

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...Field) { l.log(LevelInfo, msg, fields...) }

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...Field) { l.log(LevelWarn, msg, fields...) }

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields...) }

// Fatal logs an error message and exits the program.
func (l *Logger) Fatal(msg string, fields ...Field) {
	l.log(LevelError, msg, fields...)
	os.Exit(1)
}

// Infof logs a formatted info message.
func (l *Logger) Infof(format string, args ...any) { l.log(LevelInfo, fmt.Sprintf(format, args...)) }

// Errorf logs a formatted error message.
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, fmt.Sprintf(format, args...)) }

// Context key for logger.
type ctxKey struct{}

// WithContext returns a new context with the logger attached.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger from context, or returns a default logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return Default()
}

// RequestIDKey is a common field key for request tracing.
const RequestIDKey = "request_id"

// WithRequestID returns a logger with request ID field added.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.With(String(RequestIDKey, requestID))
}

// Finance logging helpers.
func PartnerID(id string) Field     { return String("partner_id", id) }
func ExpenseID(id string) Field     { return String("expense_id", id) }
func TeacherID(id string) Field     { return String("teacher_id", id) }
func SettlementID(id string) Field  { return String("settlement_id", id) }
func UserID(id string) Field        { return String("user_id", id) }
func Component(name string) Field   { return String("component", name) }
func Operation(name string) Field   { return String("operation", name) }
func Latency(d time.Duration) Field { return Duration("latency", d) }
