package store

import (
	"context"
	"sync"
	"time"

	"github.com/LazyCorpz/Signal-Server/core"
)

// MemoryStore keeps bucket state in process memory.
// It is atomic only within one process, so it suits tests and single-instance deployments.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	state     *core.BucketState
	expiresAt time.Time
}

// Ensure MemoryStore implements Store interface
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// CheckAndUpdate applies one bucket step under the store lock
func (s *MemoryStore) CheckAndUpdate(ctx context.Context, key string, p core.Params) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var state *core.BucketState
	if entry, ok := s.buckets[key]; ok {
		state = entry.state
	}

	next, deficit := core.Check(state, p)
	if p.Commit {
		s.buckets[key] = &memoryEntry{
			state:     next,
			expiresAt: s.now().Add(time.Duration(p.DrainMillis()) * time.Millisecond),
		}
	}
	return deficit, nil
}

// Delete removes the bucket state for a given key
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.buckets, key)
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the stored state for key, or nil
func (s *MemoryStore) Get(key string) *core.BucketState {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.buckets[key]
	if !ok {
		return nil
	}
	state := *entry.state
	return &state
}

// Count returns the number of stored buckets
func (s *MemoryStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// Cleanup removes buckets that have fully drained since their last update.
// Returns the number of buckets removed.
func (s *MemoryStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, entry := range s.buckets {
		if !entry.expiresAt.After(now) {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed
}

// StartBackgroundCleanup starts a goroutine that periodically calls Cleanup.
// Call the returned function to stop it.
func (s *MemoryStore) StartBackgroundCleanup(interval time.Duration) func() {
	if interval <= 0 {
		return func() {}
	}

	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				s.Cleanup()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}
