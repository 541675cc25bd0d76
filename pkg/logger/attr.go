// Package logger holds slog attribute helpers shared by the limiter packages.
//
// Helpers return an empty slog.Attr for empty input, which slog drops, so
// callers can pass possibly-nil values without checking:
//
//	log.Warn("store unavailable", logger.Limiter(id), logger.Error(err))
package logger

import (
	"io"
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// Returns empty Attr for nil errors.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Limiter identifies the rate limiter a record is about.
func Limiter(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("limiter", id)
}

// Key is the subject key a limiter was evaluated for.
func Key(key string) slog.Attr {
	if key == "" {
		return slog.Attr{}
	}
	return slog.String("key", key)
}

// Amount is the cost of the evaluated request.
func Amount(n int64) slog.Attr {
	return slog.Int64("amount", n)
}

// RetryAfter is the wait a rejected caller was given.
func RetryAfter(d time.Duration) slog.Attr {
	return slog.Duration("retry_after", d)
}

// Duration creates an attribute for a duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// RequestID creates an attribute for HTTP request IDs.
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
