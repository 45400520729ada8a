// Package observability provides logging helpers for dlnaprobe.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/m-mizutani/masq"
	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/dlnaprobe/internal/config"
)

// contextKey is a type for context keys to avoid collisions.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"
	// ExchangeIDKey is the context key for HEAD exchange IDs.
	ExchangeIDKey contextKey = "exchange_id"
)

// LevelTrace is more verbose than debug. Raw wire traffic is logged here.
const LevelTrace = slog.Level(-8)

// sourceKey replaces slog's source group with a single file:line string.
const sourceKey = "logpos"

const redacted = "[REDACTED]"

// sensitiveFields are attribute keys whose values are always redacted.
var sensitiveFields = []string{
	"password", "Password",
	"secret", "Secret",
	"token", "Token",
	"apikey", "ApiKey",
	"api_key",
	"credential", "Credential",
	"authorization", "Authorization",
}

var (
	sensitiveQueryParam = regexp.MustCompile(`(?i)([?&](?:password|passwd|token|apikey|api_key|secret|credential)=)[^&\s"]*`)
	userinfoPassword    = regexp.MustCompile(`(://[^/@:\s]+:)[^/@\s]+@`)
)

var requestLogging atomic.Bool

// moduleRoot is stripped from source paths so logpos stays repo-relative.
var moduleRoot = func() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	return filepath.Dir(filepath.Dir(filepath.Dir(file))) + string(filepath.Separator)
}()

// NewLogger creates a new slog.Logger based on the provided configuration.
// The logger supports JSON and text formats with configurable log levels.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	return NewLoggerWithWriter(cfg, os.Stdout)
}

// NewLoggerWithWriter creates a new slog.Logger that writes to the provided writer.
// This is useful for testing or custom output destinations.
func NewLoggerWithWriter(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	level := parseLevel(cfg.Level)
	redact := masq.New(fieldNameOptions()...)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				if len(groups) == 0 && cfg.TimeFormat != "" {
					if t, ok := a.Value.Any().(time.Time); ok {
						return slog.String(slog.TimeKey, t.Format(cfg.TimeFormat))
					}
				}
				return a
			case slog.LevelKey:
				if len(groups) == 0 {
					if l, ok := a.Value.Any().(slog.Level); ok && l == LevelTrace {
						return slog.String(slog.LevelKey, "TRACE")
					}
				}
				return a
			case slog.SourceKey:
				if src, ok := a.Value.Any().(*slog.Source); ok {
					return slog.String(sourceKey, relativeSource(src))
				}
				return a
			}

			switch a.Value.Kind() {
			case slog.KindString:
				a.Value = slog.StringValue(RedactURL(a.Value.String()))
				return redact(groups, a)
			case slog.KindAny:
				return redact(groups, a)
			default:
				return a
			}
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		// Default to JSON if format is unknown
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

func fieldNameOptions() []masq.Option {
	opts := make([]masq.Option, 0, len(sensitiveFields))
	for _, name := range sensitiveFields {
		opts = append(opts, masq.WithFieldName(name))
	}
	return opts
}

// RedactURL masks credential query parameters and userinfo passwords in s.
func RedactURL(s string) string {
	if !strings.Contains(s, "=") && !strings.Contains(s, "@") {
		return s
	}
	s = sensitiveQueryParam.ReplaceAllString(s, "${1}"+redacted)
	return userinfoPassword.ReplaceAllString(s, "${1}"+redacted+"@")
}

func relativeSource(src *slog.Source) string {
	file := src.File
	if moduleRoot != "" {
		file = strings.TrimPrefix(file, moduleRoot)
	}
	return filepath.ToSlash(file) + ":" + strconv.Itoa(src.Line)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch level {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetRequestLogging toggles logging of successful HTTP requests.
func SetRequestLogging(enabled bool) {
	requestLogging.Store(enabled)
}

// IsRequestLoggingEnabled reports whether successful HTTP requests are logged.
// Failed requests are always logged.
func IsRequestLoggingEnabled() bool {
	return requestLogging.Load()
}

// NewExchangeID returns a new sortable identifier for one HEAD exchange.
func NewExchangeID() string {
	return ulid.Make().String()
}

// WithRequestID adds a request ID to the logger.
func WithRequestID(logger *slog.Logger, requestID string) *slog.Logger {
	return logger.With(slog.String("request_id", requestID))
}

// WithExchangeID adds a HEAD exchange ID to the logger.
func WithExchangeID(logger *slog.Logger, exchangeID string) *slog.Logger {
	return logger.With(slog.String("exchange_id", exchangeID))
}

// WithComponent adds a component name to the logger for identifying the source.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// WithOperation adds an operation name to the logger for tracking specific operations.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String("operation", operation))
}

// WithError adds an error to the logger attributes.
func WithError(logger *slog.Logger, err error) *slog.Logger {
	if err == nil {
		return logger
	}
	return logger.With(slog.String("error", err.Error()))
}

// loggerKey is the context key for the logger.
const loggerKey contextKey = "logger"

// LoggerFromContext extracts a logger from the context.
// If no logger is found, returns the default logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// ContextWithLogger adds a logger to the context.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// RequestIDFromContext extracts a request ID from the context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRequestID adds a request ID to the context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// ExchangeIDFromContext extracts a HEAD exchange ID from the context.
func ExchangeIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ExchangeIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithExchangeID adds a HEAD exchange ID to the context.
func ContextWithExchangeID(ctx context.Context, exchangeID string) context.Context {
	return context.WithValue(ctx, ExchangeIDKey, exchangeID)
}

// SetDefault sets the provided logger as the default slog logger.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}

// TimedOperationWithError logs the start and end of an operation with its
// duration. The error pointer is read when the returned function runs, so
// errors assigned after this call are reported.
//
// Usage:
//
//	var err error
//	done := observability.TimedOperationWithError(ctx, logger, "exchange", &err)
//	defer done()
//	err = doSomething()
//
//nolint:gocritic // errPtr must be a pointer to capture errors set after this call
func TimedOperationWithError(ctx context.Context, logger *slog.Logger, operation string, errPtr *error) func() {
	start := time.Now()
	logger.DebugContext(ctx, "operation started", slog.String("operation", operation))

	return func() {
		duration := time.Since(start)
		if errPtr != nil && *errPtr != nil {
			logger.ErrorContext(ctx, "operation failed",
				slog.String("operation", operation),
				slog.Duration("duration", duration),
				slog.String("error", (*errPtr).Error()),
			)
		} else {
			logger.InfoContext(ctx, "operation completed",
				slog.String("operation", operation),
				slog.Duration("duration", duration),
			)
		}
	}
}
