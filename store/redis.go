package store

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LazyCorpz/Signal-Server/core"
)

//go:embed leaky_bucket.lua
var leakyBucketSource string

// leakyBucketScript runs core.Check server side. Redis executes scripts
// one at a time, which is what makes the step atomic across the fleet.
var leakyBucketScript = redis.NewScript(leakyBucketSource)

// RedisStore provides Redis-backed storage for bucket states.
// It works against a single node or a cluster: every script touches exactly one key.
type RedisStore struct {
	client     redis.UniversalClient
	ttlPadding time.Duration // Added to the drain time when setting key expiry
}

// Ensure RedisStore implements Store interface
var _ Store = (*RedisStore)(nil)

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithTTLPadding extends the expiry of bucket keys past their drain time.
func WithTTLPadding(padding time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		if padding >= 0 {
			s.ttlPadding = padding
		}
	}
}

// NewRedisStore creates a store on top of an existing client
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client:     client,
		ttlPadding: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load preloads the bucket script so the first check can use EVALSHA
func (s *RedisStore) Load(ctx context.Context) error {
	if err := leakyBucketScript.Load(ctx, s.client).Err(); err != nil {
		return fmt.Errorf("load leaky bucket script: %w", err)
	}
	return nil
}

// CheckAndUpdate runs the bucket script for key
func (s *RedisStore) CheckAndUpdate(ctx context.Context, key string, p core.Params) (int64, error) {
	ttl := int64(0)
	if p.Commit {
		ttl = p.DrainMillis() + s.ttlPadding.Milliseconds()
	}

	commit := "0"
	if p.Commit {
		commit = "1"
	}

	deficit, err := leakyBucketScript.Run(ctx, s.client, []string{key},
		p.Capacity,          // ARGV[1]
		p.LeakRatePerMillis, // ARGV[2]
		p.NowMillis,         // ARGV[3]
		p.Amount,            // ARGV[4]
		commit,              // ARGV[5]
		ttl,                 // ARGV[6]
	).Int64()
	if err != nil {
		return 0, err
	}
	return deficit, nil
}

// Delete removes the bucket state for a given key
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Get reads the stored state for key, or nil if there is none
func (s *RedisStore) Get(ctx context.Context, key string) (*core.BucketState, error) {
	res := s.client.HMGet(ctx, key, "used", "last_update")
	if err := res.Err(); err != nil {
		return nil, err
	}
	if vals := res.Val(); len(vals) == 0 || vals[0] == nil {
		return nil, nil
	}

	var raw struct {
		Used       float64 `redis:"used"`
		LastUpdate int64   `redis:"last_update"`
	}
	if err := res.Scan(&raw); err != nil {
		return nil, err
	}
	return &core.BucketState{
		UsedAmount:       raw.Used,
		LastUpdateMillis: raw.LastUpdate,
	}, nil
}

// Ping checks if Redis connection is alive
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
