package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LazyCorpz/Signal-Server/core"
	"github.com/LazyCorpz/Signal-Server/pkg/limits"
)

func newLimiter(t *testing.T, cfg limits.BucketConfig, opts ...limits.Option) limits.Limiter {
	t.Helper()
	registry, err := limits.CreateAndValidate([]limits.Descriptor{{ID: "test", Default: cfg}}, opts...)
	if err != nil {
		t.Fatalf("CreateAndValidate() failed: %v", err)
	}
	l, err := registry.Limiter("test")
	if err != nil {
		t.Fatalf("Limiter() failed: %v", err)
	}
	return l
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("success"))
})

type checkCounter struct {
	mu       sync.Mutex
	allowed  int
	rejected int
}

func (c *checkCounter) RecordCheck(_ string, allowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if allowed {
		c.allowed++
	} else {
		c.rejected++
	}
}

type downStore struct{}

func (downStore) CheckAndUpdate(context.Context, string, core.Params) (int64, error) {
	return 0, errors.New("connection refused")
}

func (downStore) Delete(context.Context, string) error {
	return errors.New("connection refused")
}

func TestMiddleware_AllowedRequest(t *testing.T) {
	rl := NewRateLimiter(newLimiter(t, limits.BucketConfig{Capacity: 5, RefillPeriod: time.Second}), Config{})
	handler := rl.Middleware(okHandler)

	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", rr.Code, http.StatusOK)
	}
	if rr.Header().Get("X-RateLimit-Limit") != "5" {
		t.Errorf("X-RateLimit-Limit = %s, want 5", rr.Header().Get("X-RateLimit-Limit"))
	}
	if rr.Body.String() != "success" {
		t.Errorf("body = %s, want success", rr.Body.String())
	}
}

func TestMiddleware_RateLimited(t *testing.T) {
	counter := &checkCounter{}
	rl := NewRateLimiter(newLimiter(t, limits.BucketConfig{Capacity: 3, RefillPeriod: 3 * time.Minute}), Config{Metrics: counter})
	handler := rl.Middleware(okHandler)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("request %d: status code = %d, want %d", i+1, rr.Code, http.StatusOK)
		}
	}

	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusTooManyRequests)
	}

	// One unit leaks per minute, so the wait is about a minute
	retryAfter, err := strconv.ParseInt(rr.Header().Get("Retry-After"), 10, 64)
	if err != nil || retryAfter < 59 || retryAfter > 61 {
		t.Errorf("Retry-After = %q, want about 60", rr.Header().Get("Retry-After"))
	}

	resetTime, err := strconv.ParseInt(rr.Header().Get("X-RateLimit-Reset"), 10, 64)
	if err != nil {
		t.Errorf("X-RateLimit-Reset parsing failed: %v", err)
	}
	if resetTime <= time.Now().Unix() {
		t.Error("X-RateLimit-Reset should be in the future")
	}

	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "rate_limit_exceeded" {
		t.Errorf("error = %v, want rate_limit_exceeded", body["error"])
	}

	if counter.allowed != 3 || counter.rejected != 1 {
		t.Errorf("recorded %d allowed, %d rejected, want 3 and 1", counter.allowed, counter.rejected)
	}
}

func TestMiddleware_DifferentIPs(t *testing.T) {
	rl := NewRateLimiter(newLimiter(t, limits.BucketConfig{Capacity: 2, RefillPeriod: time.Minute}), Config{KeyFunc: IP()})
	handler := rl.Middleware(okHandler)

	for _, ip := range []string{"10.0.0.1:1", "10.0.0.2:1", "10.0.0.3:1"} {
		for i := 0; i < 2; i++ {
			req := httptest.NewRequest("GET", "/test", nil)
			req.RemoteAddr = ip
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Errorf("%s request %d: status code = %d, want %d", ip, i+1, rr.Code, http.StatusOK)
			}
		}
	}
}

func TestMiddleware_MissingKey(t *testing.T) {
	rl := NewRateLimiter(newLimiter(t, limits.BucketConfig{Capacity: 5, RefillPeriod: time.Second}),
		Config{KeyFunc: Header("X-API-Key")})
	handler := rl.Middleware(okHandler)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status code = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestMiddleware_ContentLengthAmount(t *testing.T) {
	rl := NewRateLimiter(newLimiter(t, limits.BucketConfig{Capacity: 10, RefillPeriod: time.Hour}),
		Config{KeyFunc: Static("global"), Amount: ContentLength})
	handler := rl.Middleware(okHandler)

	send := func(body string) int {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("POST", "/upload", strings.NewReader(body)))
		return rr.Code
	}

	if code := send("12345678"); code != http.StatusOK {
		t.Errorf("8 bytes: status code = %d, want %d", code, http.StatusOK)
	}
	if code := send("123"); code != http.StatusTooManyRequests {
		t.Errorf("3 more bytes: status code = %d, want %d", code, http.StatusTooManyRequests)
	}
	if code := send("12"); code != http.StatusOK {
		t.Errorf("2 more bytes: status code = %d, want %d", code, http.StatusOK)
	}
}

func TestMiddleware_NonPositiveAmountPassesThrough(t *testing.T) {
	rl := NewRateLimiter(newLimiter(t, limits.BucketConfig{Capacity: 1, RefillPeriod: time.Hour}),
		Config{KeyFunc: Static("global"), Amount: func(*http.Request) int64 { return 0 }})
	handler := rl.Middleware(okHandler)

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))
		if rr.Code != http.StatusOK {
			t.Errorf("request %d: status code = %d, want %d", i+1, rr.Code, http.StatusOK)
		}
	}
}

func TestMiddleware_StoreUnavailable(t *testing.T) {
	tests := []struct {
		name     string
		failOpen bool
		want     int
	}{
		{"fail closed", false, http.StatusServiceUnavailable},
		{"fail open", true, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := limits.BucketConfig{Capacity: 5, RefillPeriod: time.Second, FailOpen: tt.failOpen}
			rl := NewRateLimiter(newLimiter(t, cfg, limits.WithStore(downStore{})), Config{KeyFunc: Static("global")})

			rr := httptest.NewRecorder()
			rl.Middleware(okHandler).ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

			if rr.Code != tt.want {
				t.Errorf("status code = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestMiddleware_Concurrent(t *testing.T) {
	rl := NewRateLimiter(newLimiter(t, limits.BucketConfig{Capacity: 20, RefillPeriod: time.Hour}),
		Config{KeyFunc: Static("global")})
	handler := rl.Middleware(okHandler)

	var mu sync.Mutex
	codes := map[int]int{}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))
			mu.Lock()
			codes[rr.Code]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if codes[http.StatusOK] != 20 || codes[http.StatusTooManyRequests] != 30 {
		t.Errorf("status codes = %v, want 20 OK and 30 rate limited", codes)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int64
	}{
		{time.Millisecond, 1},
		{time.Second, 1},
		{1001 * time.Millisecond, 2},
		{time.Minute, 60},
	}
	for _, tt := range tests {
		if got := RetryAfterSeconds(tt.in); got != tt.want {
			t.Errorf("RetryAfterSeconds(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
