// Package logging configures structured logging with log/slog.
//
// Loggers returned by FromContext carry the invocation's request id, taken
// from the Lambda context when present, so every entry of one load can be
// correlated in CloudWatch.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
)

// Setup configures the global slog logger based on level and format and
// returns it.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string) *slog.Logger {
	return SetupWriter(os.Stderr, level, format)
}

// SetupWriter is Setup writing to w.
func SetupWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

type requestIDKey struct{}

// WithRequestID returns a context carrying a request id. Outside Lambda
// there is no runtime-assigned id, so callers generate one here.
func WithRequestID(ctx context.Context) context.Context {
	if RequestID(ctx) != "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, uuid.NewString())
}

// RequestID returns the Lambda request id or the id set by WithRequestID.
func RequestID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// FromContext returns the default logger enriched with the request id.
func FromContext(ctx context.Context) *slog.Logger {
	return ForRequest(ctx, slog.Default())
}

// ForRequest returns logger with the request id of ctx attached, or logger
// itself when ctx carries none.
func ForRequest(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id := RequestID(ctx); id != "" {
		return logger.With("request_id", id)
	}
	return logger
}

// WithFields returns a logger with additional structured fields.
//
// Usage:
//
//	logger := logging.WithFields(ctx, "bucket", ref.Bucket, "key", ref.Key)
//	logger.Info("load started")
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}

// BadgerLogger adapts a slog.Logger to badger's logger interface.
type BadgerLogger struct {
	Logger *slog.Logger
}

func (b BadgerLogger) Errorf(format string, args ...any) {
	b.Logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (b BadgerLogger) Warningf(format string, args ...any) {
	b.Logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (b BadgerLogger) Infof(format string, args ...any) {
	b.Logger.Info(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (b BadgerLogger) Debugf(format string, args ...any) {
	b.Logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}
