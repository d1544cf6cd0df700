// Package observability provides structured logging and metrics for the
// wellcoach service and its engine.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const (
	requestIDKey contextKey = "requestID"
	componentKey contextKey = "component"
)

// Logger is the structured logger handed to every service. It wraps slog so
// callers never depend on a concrete handler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// The Context variants add request_id and component from ctx.
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)

	With(args ...any) Logger
	WithComponent(name string) Logger

	// Slog returns the underlying *slog.Logger.
	Slog() *slog.Logger
}

// Config holds configuration for the logger.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level"`
	// Format is the output format (json, text).
	Format string `yaml:"format"`
	// AddSource adds source file and line to log entries.
	AddSource bool `yaml:"add_source"`
	// Output defaults to os.Stdout.
	Output io.Writer `yaml:"-"`
}

// DefaultConfig returns JSON output at info level.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Output: os.Stdout}
}

type slogLogger struct {
	l *slog.Logger
}

// NewLogger creates a Logger with the given configuration.
func NewLogger(cfg Config) Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level), AddSource: cfg.AddSource}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(out, opts)
	} else {
		h = slog.NewJSONHandler(out, opts)
	}
	return &slogLogger{l: slog.New(h)}
}

// NewLoggerFromSlog wraps an existing *slog.Logger. A nil logger means slog.Default().
func NewLoggerFromSlog(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{l: l}
}

// Discard returns a Logger that drops everything. Used in tests and when a
// service is built without a logger.
func Discard() Logger {
	return &slogLogger{l: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// ParseLevel converts a level name to slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (s *slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s *slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

func (s *slogLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	s.l.DebugContext(ctx, msg, contextFields(ctx, args)...)
}

func (s *slogLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	s.l.InfoContext(ctx, msg, contextFields(ctx, args)...)
}

func (s *slogLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	s.l.WarnContext(ctx, msg, contextFields(ctx, args)...)
}

func (s *slogLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	s.l.ErrorContext(ctx, msg, contextFields(ctx, args)...)
}

func (s *slogLogger) With(args ...any) Logger {
	return &slogLogger{l: s.l.With(args...)}
}

func (s *slogLogger) WithComponent(name string) Logger {
	return s.With("component", name)
}

func (s *slogLogger) Slog() *slog.Logger { return s.l }

func contextFields(ctx context.Context, args []any) []any {
	if ctx == nil {
		return args
	}
	if id := RequestIDFromContext(ctx); id != "" {
		args = append(args, "request_id", id)
	}
	if c := ComponentFromContext(ctx); c != "" {
		args = append(args, "component", c)
	}
	return args
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request ID stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// WithComponent stores the component name in the context.
func WithComponent(ctx context.Context, component string) context.Context {
	if component == "" {
		return ctx
	}
	return context.WithValue(ctx, componentKey, component)
}

// ComponentFromContext returns the component name stored in ctx, if any.
func ComponentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(componentKey).(string)
	return v
}
