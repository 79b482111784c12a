package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/goerr/v2"
)

type contextKey struct{}

var (
	loggerKey       = contextKey{}
	defaultLogger   *slog.Logger
	defaultLoggerMu sync.RWMutex
)

// Format selects the log output encoding
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

func init() {
	defaultLogger = New("info", FormatConsole, os.Stderr)
}

// ParseLevel converts a string level to slog.Level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, goerr.New("invalid log level", goerr.V("level", level))
	}
}

// ParseFormat validates a format string
func ParseFormat(format string) (Format, error) {
	switch Format(strings.ToLower(format)) {
	case FormatConsole, "":
		return FormatConsole, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return FormatConsole, goerr.New("invalid log format", goerr.V("format", format))
	}
}

// New creates a new slog.Logger. Invalid level falls back to info.
func New(level string, format Format, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	lv, err := ParseLevel(level)
	if err != nil && defaultLogger != nil {
		defaultLogger.Warn("invalid log level", "level", level)
	}

	if format == FormatJSON {
		// goerr.Error implements slog.LogValuer, so values are kept in JSON output
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lv}))
	}

	handler := clog.New(
		clog.WithWriter(w),
		clog.WithLevel(lv),
		clog.WithTimeFmt("15:04:05"),
		clog.WithSource(false),
		clog.WithAttrHook(clog.GoerrHook),
	)

	return slog.New(handler)
}

// Default returns the default logger
func Default() *slog.Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// SetDefault sets the default logger
func SetDefault(logger *slog.Logger) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = logger
}

// With returns a new context with the logger attached
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// From retrieves the logger from the context
// If no logger is found, it returns the default logger
func From(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return Default()
}

// Component returns ctx carrying the current logger tagged with a component name
func Component(ctx context.Context, name string) context.Context {
	return With(ctx, From(ctx).With("component", name))
}
