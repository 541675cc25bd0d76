package limits

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidConfig is returned when limiter configuration is invalid.
	// Every configuration problem wraps it; it is fatal at startup.
	ErrInvalidConfig = errors.New("invalid rate limiter configuration")

	// ErrNonPositiveCapacity is returned when bucket capacity is not positive
	ErrNonPositiveCapacity = fmt.Errorf("%w: bucket capacity must be positive", ErrInvalidConfig)

	// ErrNonPositiveRefillPeriod is returned when the refill period (and so the leak rate) is not positive
	ErrNonPositiveRefillPeriod = fmt.Errorf("%w: refill period must be positive", ErrInvalidConfig)

	// ErrEmptyLimiterID is returned for a descriptor without an id
	ErrEmptyLimiterID = fmt.Errorf("%w: limiter id cannot be empty", ErrInvalidConfig)

	// ErrDuplicateLimiter is returned when two descriptors share an id
	ErrDuplicateLimiter = fmt.Errorf("%w: duplicate limiter id", ErrInvalidConfig)

	// ErrUnknownLimiter is returned for an id that no descriptor declares
	ErrUnknownLimiter = errors.New("unknown rate limiter")

	// ErrRateLimitExceeded matches every *RateLimitExceededError
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrStoreUnavailable is returned when the bucket store could not be reached.
	// It wraps the store's own error and carries no retry hint.
	ErrStoreUnavailable = errors.New("rate limiter store unavailable")

	// ErrInvalidKey is returned when the subject key is empty
	ErrInvalidKey = errors.New("rate limit key cannot be empty")

	// ErrInvalidAmount is returned when the requested amount is not positive
	ErrInvalidAmount = errors.New("rate limit amount must be positive")
)

// RateLimitExceededError is returned when a request does not fit in its bucket.
type RateLimitExceededError struct {
	LimiterID  string
	RetryAfter time.Duration // Time until the request would fit
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.LimiterID, e.RetryAfter)
}

// Is makes errors.Is(err, ErrRateLimitExceeded) match.
func (e *RateLimitExceededError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}

// RetryAfter extracts the retry hint from err.
// ok is false when err is not a rate limit rejection.
func RetryAfter(err error) (time.Duration, bool) {
	var exceeded *RateLimitExceededError
	if errors.As(err, &exceeded) {
		return exceeded.RetryAfter, true
	}
	return 0, false
}
