package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/LazyCorpz/Signal-Server/pkg/limits"
	"github.com/LazyCorpz/Signal-Server/pkg/logger"
)

// AmountFunc returns how much of the bucket a request uses.
// Requests with a non-positive amount are not limited.
type AmountFunc func(*http.Request) int64

// CheckRecorder receives the decision for every limited request
type CheckRecorder interface {
	RecordCheck(limiterID string, allowed bool)
}

// Config for creating a rate limiting middleware
type Config struct {
	KeyFunc KeyFunc       // Optional: defaults to IPWithProxy
	Amount  AmountFunc    // Optional: defaults to one per request
	Metrics CheckRecorder // Optional
	Logger  *slog.Logger  // Optional
}

// RateLimiter provides HTTP middleware for one limiter
type RateLimiter struct {
	limiter limits.Limiter
	keyFunc KeyFunc
	amount  AmountFunc
	metrics CheckRecorder
	logger  *slog.Logger
}

// NewRateLimiter creates a new rate limiting middleware
func NewRateLimiter(limiter limits.Limiter, config Config) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = IPWithProxy()
	}
	if config.Amount == nil {
		config.Amount = OnePerRequest
	}
	if config.Logger == nil {
		config.Logger = logger.Discard()
	}

	return &RateLimiter{
		limiter: limiter,
		keyFunc: config.KeyFunc,
		amount:  config.Amount,
		metrics: config.Metrics,
		logger:  config.Logger,
	}
}

// OnePerRequest counts every request as one unit
func OnePerRequest(*http.Request) int64 { return 1 }

// ContentLength counts request body bytes, at least one per request
func ContentLength(r *http.Request) int64 {
	return max(1, r.ContentLength)
}

// Middleware wraps an http.Handler with rate limiting.
//
// Responses carry X-RateLimit-Limit with the bucket capacity. Rejected
// requests get 429 with Retry-After in whole seconds, rounded up. When the
// bucket store is down on a fail-closed limiter the request gets 503.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := rl.keyFunc(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing_key", "Could not identify the client")
			return
		}

		amount := rl.amount(r)
		if amount <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(rl.limiter.Config().Capacity, 10))

		err = rl.limiter.Validate(r.Context(), key, amount)
		var exceeded *limits.RateLimitExceededError
		switch {
		case err == nil:
			rl.record(true)
			next.ServeHTTP(w, r)

		case errors.As(err, &exceeded):
			rl.record(false)
			WriteRateLimited(w, exceeded.RetryAfter)

		case errors.Is(err, limits.ErrStoreUnavailable):
			rl.logger.Error("rate limiter store unavailable",
				logger.Limiter(rl.limiter.ID()), logger.Key(key), logger.Error(err))
			writeError(w, http.StatusServiceUnavailable, "store_unavailable", "Rate limiting is temporarily unavailable")

		default:
			rl.logger.Error("rate limit check failed",
				logger.Limiter(rl.limiter.ID()), logger.Key(key), logger.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error", "Internal Server Error")
		}
	})
}

func (rl *RateLimiter) record(allowed bool) {
	if rl.metrics != nil {
		rl.metrics.RecordCheck(rl.limiter.ID(), allowed)
	}
}

// RetryAfterSeconds converts a retry hint to a Retry-After header value
func RetryAfterSeconds(d time.Duration) int64 {
	return max(1, int64(math.Ceil(d.Seconds())))
}

// WriteRateLimited writes a 429 response for a rejected request
func WriteRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	w.Header().Set("Retry-After", strconv.FormatInt(RetryAfterSeconds(retryAfter), 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(retryAfter).Unix(), 10))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(map[string]any{
		"error":          "rate_limit_exceeded",
		"message":        "Too many requests. Please try again later.",
		"retry_after_ms": retryAfter.Milliseconds(),
	})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
