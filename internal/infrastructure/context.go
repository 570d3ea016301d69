package infrastructure

import (
	"context"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// GenerateRunID creates a new unique run ID using UUID v4
func GenerateRunID() string {
	return uuid.New().String()
}

// EnsureRunID ensures the context has a run ID, generating one if needed
func EnsureRunID(ctx context.Context) context.Context {
	if GetRunID(ctx) == "" {
		return WithRunID(ctx, GenerateRunID())
	}
	return ctx
}

// LoggerWithContext returns the global logger tagged with the context's run ID
func LoggerWithContext(ctx context.Context) *slog.Logger {
	logger := GetLogger()
	if runID := GetRunID(ctx); runID != "" {
		logger = logger.With("run_id", runID)
	}
	return logger
}

// WithComponent creates a logger with a component field
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

// WithError creates a logger with an error field
func WithError(logger *slog.Logger, err error) *slog.Logger {
	if err == nil {
		return logger
	}
	return logger.With("error", err.Error())
}

// Count renders a row or record count with thousands separators
func Count(key string, n int64) slog.Attr {
	return slog.String(key, humanize.Comma(n))
}

// Bytes renders a byte size in human form (e.g. "1.2 GB")
func Bytes(key string, n int64) slog.Attr {
	if n < 0 {
		n = 0
	}
	return slog.String(key, humanize.Bytes(uint64(n)))
}

// Rate renders a per-second throughput for n items over d
func Rate(key string, n int64, d time.Duration) slog.Attr {
	if d <= 0 {
		return slog.String(key, "n/a")
	}
	perSec := float64(n) / d.Seconds()
	return slog.String(key, humanize.CommafWithDigits(perSec, 0)+"/s")
}
