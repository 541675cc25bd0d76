package limits

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LazyCorpz/Signal-Server/core"
	"github.com/LazyCorpz/Signal-Server/pkg/async"
	"github.com/LazyCorpz/Signal-Server/pkg/logger"
	"github.com/LazyCorpz/Signal-Server/store"
)

// Limiter guards one action with a leaky bucket per key.
// All methods are safe for concurrent use.
type Limiter interface {
	// ID returns the descriptor id of the limiter
	ID() string

	// Validate consumes amount from the bucket of key. It returns a
	// *RateLimitExceededError when the amount does not fit; nothing is
	// consumed in that case. Fail-open limiters never reject.
	Validate(ctx context.Context, key string, amount int64) error

	// ValidateAsync is Validate on its own goroutine
	ValidateAsync(ctx context.Context, key string, amount int64) *async.ExecFuture

	// HasAvailableCapacity reports whether amount would fit right now.
	// The bucket is not modified.
	HasAvailableCapacity(ctx context.Context, key string, amount int64) (bool, error)

	// HasAvailableCapacityAsync is HasAvailableCapacity on its own goroutine
	HasAvailableCapacityAsync(ctx context.Context, key string, amount int64) *async.Future[bool]

	// Reset empties the bucket of key. Store errors are always returned,
	// whatever the failure policy.
	Reset(ctx context.Context, key string) error

	// ResetAsync is Reset on its own goroutine
	ResetAsync(ctx context.Context, key string) *async.ExecFuture

	// Config returns the configuration in effect
	Config() BucketConfig
}

// deps are shared by every limiter of a registry.
type deps struct {
	store   store.Store
	clock   Clock
	metrics MetricsRecorder
	logger  *slog.Logger
}

// staticLimiter applies one fixed config.
type staticLimiter struct {
	id     string
	config BucketConfig
	deps   *deps
}

var _ Limiter = (*staticLimiter)(nil)

func newStaticLimiter(id string, config BucketConfig, d *deps) *staticLimiter {
	return &staticLimiter{id: id, config: config, deps: d}
}

func (l *staticLimiter) ID() string           { return l.id }
func (l *staticLimiter) Config() BucketConfig { return l.config }

func (l *staticLimiter) Validate(ctx context.Context, key string, amount int64) error {
	if err := checkRequest(key, amount); err != nil {
		return err
	}

	deficit, err := l.execute(ctx, key, amount, true)
	if err != nil {
		return l.storeFailure(key, err)
	}
	if deficit == 0 {
		return nil
	}

	l.deps.metrics.RecordExceeded(l.id)
	retryAfter := l.config.RetryAfter(deficit)
	if l.config.FailOpen {
		l.deps.logger.Debug("rate limit exceeded on fail-open limiter",
			logger.Limiter(l.id), logger.Key(key), logger.Amount(amount), logger.RetryAfter(retryAfter))
		return nil
	}
	return &RateLimitExceededError{LimiterID: l.id, RetryAfter: retryAfter}
}

func (l *staticLimiter) ValidateAsync(ctx context.Context, key string, amount int64) *async.ExecFuture {
	return async.Exec(ctx, key, func(ctx context.Context, key string) error {
		return l.Validate(ctx, key, amount)
	})
}

func (l *staticLimiter) HasAvailableCapacity(ctx context.Context, key string, amount int64) (bool, error) {
	if err := checkRequest(key, amount); err != nil {
		return false, err
	}

	deficit, err := l.execute(ctx, key, amount, false)
	if err != nil {
		if err := l.storeFailure(key, err); err != nil {
			return false, err
		}
		return true, nil
	}
	return deficit == 0, nil
}

func (l *staticLimiter) HasAvailableCapacityAsync(ctx context.Context, key string, amount int64) *async.Future[bool] {
	return async.Async(ctx, key, func(ctx context.Context, key string) (bool, error) {
		return l.HasAvailableCapacity(ctx, key, amount)
	})
}

func (l *staticLimiter) Reset(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if err := l.deps.store.Delete(ctx, bucketName(l.id, key)); err != nil {
		l.deps.metrics.RecordStoreError(l.id)
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

func (l *staticLimiter) ResetAsync(ctx context.Context, key string) *async.ExecFuture {
	return async.Exec(ctx, key, l.Reset)
}

func (l *staticLimiter) execute(ctx context.Context, key string, amount int64, commit bool) (int64, error) {
	return l.deps.store.CheckAndUpdate(ctx, bucketName(l.id, key), core.Params{
		Capacity:          l.config.Capacity,
		LeakRatePerMillis: l.config.LeakRatePerMillis(),
		NowMillis:         l.deps.clock.NowMillis(),
		Amount:            amount,
		Commit:            commit,
	})
}

// storeFailure applies the failure policy to a store error. A nil result
// means the caller proceeds as if the request fit.
func (l *staticLimiter) storeFailure(key string, err error) error {
	l.deps.metrics.RecordStoreError(l.id)
	if l.config.swallowsStoreErrors() {
		l.deps.logger.Warn("rate limiter store unavailable, failing open",
			logger.Limiter(l.id), logger.Key(key), logger.Error(err))
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

func checkRequest(key string, amount int64) error {
	if key == "" {
		return ErrInvalidKey
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// bucketName is the store key of one subject's bucket
func bucketName(limiterID, key string) string {
	return "leaky_bucket::" + limiterID + "::" + key
}
