package store

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/LazyCorpz/Signal-Server/core"
)

func newMiniRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, WithTTLPadding(time.Second)), mr
}

func TestRedisStore_CheckAndUpdate(t *testing.T) {
	store, _ := newMiniRedisStore(t)
	ctx := context.Background()

	if err := store.Load(ctx); err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	for i := 0; i < 10; i++ {
		deficit, err := store.CheckAndUpdate(ctx, "k", step(0, 1, true))
		if err != nil {
			t.Fatalf("CheckAndUpdate() unexpected error: %v", err)
		}
		if deficit != 0 {
			t.Errorf("request %d deficit = %d, want 0", i+1, deficit)
		}
	}

	deficit, err := store.CheckAndUpdate(ctx, "k", step(0, 3, true))
	if err != nil {
		t.Fatalf("CheckAndUpdate() unexpected error: %v", err)
	}
	if deficit != 3 {
		t.Errorf("deficit = %d, want 3", deficit)
	}

	state, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if state == nil || state.UsedAmount != 10 || state.LastUpdateMillis != 0 {
		t.Errorf("Get() = %+v, want used 10 at 0", state)
	}
}

func TestRedisStore_DryRunDoesNotWrite(t *testing.T) {
	store, mr := newMiniRedisStore(t)
	ctx := context.Background()

	deficit, err := store.CheckAndUpdate(ctx, "k", step(0, 11, false))
	if err != nil {
		t.Fatalf("CheckAndUpdate() unexpected error: %v", err)
	}
	if deficit != 1 {
		t.Errorf("deficit = %d, want 1", deficit)
	}
	if mr.Exists("k") {
		t.Error("dry run must not create the key")
	}
}

func TestRedisStore_KeyExpiry(t *testing.T) {
	store, mr := newMiniRedisStore(t)
	ctx := context.Background()

	store.CheckAndUpdate(ctx, "k", step(0, 1, true))

	// One second of drain time plus one second of padding
	if ttl := mr.TTL("k"); ttl != 2*time.Second {
		t.Errorf("TTL = %v, want 2s", ttl)
	}

	mr.FastForward(2 * time.Second)
	if mr.Exists("k") {
		t.Error("key should expire after drain time and padding")
	}
}

func TestRedisStore_Delete(t *testing.T) {
	store, mr := newMiniRedisStore(t)
	ctx := context.Background()

	store.CheckAndUpdate(ctx, "k", step(0, 10, true))
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() unexpected error: %v", err)
	}
	if mr.Exists("k") {
		t.Error("key should be deleted")
	}
	if err := store.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete(missing) unexpected error: %v", err)
	}

	state, err := store.Get(ctx, "k")
	if err != nil || state != nil {
		t.Errorf("Get() after delete = (%v, %v), want (nil, nil)", state, err)
	}
}

// The script must agree with core.Check step for step
func TestRedisStore_MatchesCoreCheck(t *testing.T) {
	store, _ := newMiniRedisStore(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	var local *core.BucketState
	now := int64(1_700_000_000_000)
	for i := 0; i < 500; i++ {
		now += rng.Int63n(40)
		p := core.Params{
			Capacity:          25,
			LeakRatePerMillis: 25.0 / 700,
			NowMillis:         now,
			Amount:            1 + rng.Int63n(6),
			Commit:            rng.Intn(4) != 0,
		}

		var want int64
		local, want = core.Check(local, p)

		got, err := store.CheckAndUpdate(ctx, "parity", p)
		if err != nil {
			t.Fatalf("step %d: CheckAndUpdate() unexpected error: %v", i, err)
		}
		if got != want {
			t.Fatalf("step %d: deficit = %d, core.Check = %d (params %+v)", i, got, want, p)
		}
	}
}

func TestRedisStore_DeficitSaturates(t *testing.T) {
	store, _ := newMiniRedisStore(t)
	ctx := context.Background()

	for _, amount := range []int64{core.MaxDeficit + 100, math.MaxInt64} {
		p := step(0, amount, true)
		_, want := core.Check(nil, p)

		got, err := store.CheckAndUpdate(ctx, "huge", p)
		if err != nil {
			t.Fatalf("CheckAndUpdate() unexpected error: %v", err)
		}
		if got != want || got != core.MaxDeficit {
			t.Errorf("amount %d: deficit = %d, core.Check = %d, want %d", amount, got, want, int64(core.MaxDeficit))
		}
	}
}

func TestRedisStore_ConcurrentSameKey(t *testing.T) {
	store, _ := newMiniRedisStore(t)
	ctx := context.Background()

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			deficit, err := store.CheckAndUpdate(ctx, "shared", step(0, 1, true))
			if err != nil {
				t.Errorf("CheckAndUpdate() unexpected error: %v", err)
				return
			}
			if deficit == 0 {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if allowed.Load() != 10 {
		t.Errorf("allowed = %d, want exactly 10", allowed.Load())
	}
}

func TestRedisStore_ServerDown(t *testing.T) {
	store, mr := newMiniRedisStore(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := store.CheckAndUpdate(ctx, "k", step(0, 1, true)); err == nil {
		t.Error("CheckAndUpdate() expected error with server down")
	}
	if err := Healthcheck(store.client)(ctx); err == nil {
		t.Error("Healthcheck() expected error with server down")
	}
}

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := ConnectRedis(context.Background(), RedisConfig{
		Addrs:         []string{mr.Addr()},
		RetryAttempts: 2,
		RetryInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("ConnectRedis() unexpected error: %v", err)
	}
	defer client.Close()

	if err := Healthcheck(client)(context.Background()); err != nil {
		t.Errorf("Healthcheck() unexpected error: %v", err)
	}

	if _, err := ConnectRedis(context.Background(), RedisConfig{}); err != ErrNoRedisAddrs {
		t.Errorf("ConnectRedis(no addrs) error = %v, want ErrNoRedisAddrs", err)
	}
}

// TestRedisStore_Integration runs against a real Redis instance on localhost:6379
// Skip with: go test -short
func TestRedisStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test")
	}

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use separate DB for tests
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available:", err)
	}

	store := NewRedisStore(client)
	key := "leaky_bucket::integration::" + uuid.NewString()
	defer store.Delete(ctx, key)

	now := time.Now().UnixMilli()
	for i := 0; i < 10; i++ {
		deficit, err := store.CheckAndUpdate(ctx, key, step(now, 1, true))
		if err != nil {
			t.Fatalf("CheckAndUpdate() unexpected error: %v", err)
		}
		if deficit != 0 {
			t.Errorf("request %d deficit = %d, want 0", i+1, deficit)
		}
	}

	// A second store instance sees the same bucket
	other := NewRedisStore(client)
	deficit, err := other.CheckAndUpdate(ctx, key, step(now, 1, true))
	if err != nil {
		t.Fatalf("CheckAndUpdate() unexpected error: %v", err)
	}
	if deficit != 1 {
		t.Errorf("deficit from second instance = %d, want 1", deficit)
	}

	if ttl := client.PTTL(ctx, key).Val(); ttl <= 0 {
		t.Errorf("PTTL = %v, want a positive expiry", ttl)
	}
}
