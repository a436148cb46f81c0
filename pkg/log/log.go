// Package log configures [log/slog] for stitch and hands out loggers bound
// to a context.
package log

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/muesli/termenv"
	"go.opentelemetry.io/otel/trace"

	charmlog "github.com/charmbracelet/log"
)

type (
	Format string

	contextKey struct{}
)

const (
	FormatJSON   Format = "json"
	FormatLogfmt Format = "logfmt"
	FormatText   Format = "text"

	// traceIDLen is how much of a trace ID is attached to log records.
	traceIDLen = 8
)

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrUnknownLogLevel  = errors.New("unknown log level")
	ErrUnknownLogFormat = errors.New("unknown log format")

	AllFormats = []string{string(FormatJSON), string(FormatLogfmt), string(FormatText)}
	AllLevels  = []string{"error", "warn", "info", "debug"}

	levels = map[string]slog.Level{
		"error":   slog.LevelError,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"info":    slog.LevelInfo,
		"debug":   slog.LevelDebug,
	}
)

// CreateHandlerWithStrings creates a [slog.Handler] from flag values.
func CreateHandlerWithStrings(w io.Writer, logLevel, logFormat string) (slog.Handler, error) {
	lvl, err := GetLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	format, err := GetFormat(logFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	return CreateHandler(w, lvl, format), nil
}

// CreateHandler creates a [slog.Handler] writing to w. The text format is
// colored when w is a terminal.
func CreateHandler(w io.Writer, lvl slog.Level, format Format) slog.Handler {
	opts := &slog.HandlerOptions{AddSource: true, Level: lvl}

	switch format {
	case FormatJSON:
		return slog.NewJSONHandler(w, opts)
	case FormatLogfmt:
		return slog.NewTextHandler(w, opts)
	case FormatText:
	}

	logger := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           charmlog.Level(lvl), //nolint:gosec // G115: slog levels fit in int32.
		Formatter:       charmlog.TextFormatter,
		ReportTimestamp: true,
		TimeFormat:      time.StampMilli,
		ReportCaller:    lvl <= slog.LevelDebug,
	})
	logger.SetColorProfile(termenv.NewOutput(w).EnvColorProfile())

	return logger
}

// GetLevel parses a level name, case-insensitively.
func GetLevel(level string) (slog.Level, error) {
	lvl, ok := levels[strings.ToLower(level)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLogLevel, level)
	}

	return lvl, nil
}

// GetFormat parses a format name, case-insensitively.
func GetFormat(format string) (Format, error) {
	f := Format(strings.ToLower(format))
	switch f {
	case FormatJSON, FormatLogfmt, FormatText:
		return f, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownLogFormat, format)
}

// WithLogger returns a copy of ctx that carries logger. Loggers stored this
// way take precedence over the trace-aware default in [WithContext].
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// WithContext returns the logger for ctx: the one stored by [WithLogger],
// else the default logger with the active span's shortened trace ID.
func WithContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return logger
	}

	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return slog.Default()
	}

	traceID := sc.TraceID().String()
	if len(traceID) > traceIDLen {
		traceID = traceID[:traceIDLen]
	}

	return slog.With(slog.String("trace_id", traceID))
}
