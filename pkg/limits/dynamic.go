package limits

import (
	"context"
	"sync/atomic"

	"github.com/LazyCorpz/Signal-Server/pkg/async"
)

// dynamicLimiter resolves its config from the registry on every call and
// rebuilds its delegate when the config changes. Buckets live under the
// same store key, so usage carries over across config changes.
type dynamicLimiter struct {
	id       string
	registry *Registry
	current  atomic.Pointer[staticLimiter]
}

var _ Limiter = (*dynamicLimiter)(nil)

func newDynamicLimiter(id string, registry *Registry) *dynamicLimiter {
	return &dynamicLimiter{id: id, registry: registry}
}

func (d *dynamicLimiter) delegate() *staticLimiter {
	cfg := d.registry.resolve(d.id)
	if cur := d.current.Load(); cur != nil && cur.config == cfg {
		return cur
	}
	next := newStaticLimiter(d.id, cfg, d.registry.deps)
	d.current.Store(next)
	return next
}

func (d *dynamicLimiter) ID() string           { return d.id }
func (d *dynamicLimiter) Config() BucketConfig { return d.delegate().Config() }

func (d *dynamicLimiter) Validate(ctx context.Context, key string, amount int64) error {
	return d.delegate().Validate(ctx, key, amount)
}

func (d *dynamicLimiter) ValidateAsync(ctx context.Context, key string, amount int64) *async.ExecFuture {
	return d.delegate().ValidateAsync(ctx, key, amount)
}

func (d *dynamicLimiter) HasAvailableCapacity(ctx context.Context, key string, amount int64) (bool, error) {
	return d.delegate().HasAvailableCapacity(ctx, key, amount)
}

func (d *dynamicLimiter) HasAvailableCapacityAsync(ctx context.Context, key string, amount int64) *async.Future[bool] {
	return d.delegate().HasAvailableCapacityAsync(ctx, key, amount)
}

func (d *dynamicLimiter) Reset(ctx context.Context, key string) error {
	return d.delegate().Reset(ctx, key)
}

func (d *dynamicLimiter) ResetAsync(ctx context.Context, key string) *async.ExecFuture {
	return d.delegate().ResetAsync(ctx, key)
}
