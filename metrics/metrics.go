package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LazyCorpz/Signal-Server/pkg/limits"
)

// Metrics tracks rate limiting statistics per limiter
type Metrics struct {
	totalChecks atomic.Int64
	allowed     atomic.Int64
	rejected    atomic.Int64
	exceeded    atomic.Int64
	storeErrors atomic.Int64

	// Per-limiter stats
	mu        sync.RWMutex
	limiters  map[string]*LimiterStats
	startTime time.Time
	now       func() time.Time
}

// Ensure Metrics can be handed to a limits.Registry
var _ limits.MetricsRecorder = (*Metrics)(nil)

// LimiterStats tracks statistics for a specific limiter
type LimiterStats struct {
	LimiterID      string    `json:"limiter_id"`
	Checks         int64     `json:"checks"`
	Allowed        int64     `json:"allowed"`
	Rejected       int64     `json:"rejected"`
	Exceeded       int64     `json:"exceeded"`
	StoreErrors    int64     `json:"store_errors"`
	LastExceededAt time.Time `json:"last_exceeded_at"`
}

// NewMetrics creates a new metrics tracker
func NewMetrics() *Metrics {
	return &Metrics{
		limiters:  make(map[string]*LimiterStats),
		startTime: time.Now(),
		now:       time.Now,
	}
}

// RecordCheck records the outcome of a validate call as seen by the caller.
// A fail-open limiter reports allowed even when its bucket overflowed.
func (m *Metrics) RecordCheck(limiterID string, allowed bool) {
	m.totalChecks.Add(1)
	if allowed {
		m.allowed.Add(1)
	} else {
		m.rejected.Add(1)
	}

	m.update(limiterID, func(s *LimiterStats) {
		s.Checks++
		if allowed {
			s.Allowed++
		} else {
			s.Rejected++
		}
	})
}

// RecordExceeded records a request that did not fit in its bucket
func (m *Metrics) RecordExceeded(limiterID string) {
	m.exceeded.Add(1)
	now := m.now()
	m.update(limiterID, func(s *LimiterStats) {
		s.Exceeded++
		s.LastExceededAt = now
	})
}

// RecordStoreError records a failed store call
func (m *Metrics) RecordStoreError(limiterID string) {
	m.storeErrors.Add(1)
	m.update(limiterID, func(s *LimiterStats) {
		s.StoreErrors++
	})
}

func (m *Metrics) update(limiterID string, fn func(*LimiterStats)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats, exists := m.limiters[limiterID]
	if !exists {
		stats = &LimiterStats{LimiterID: limiterID}
		m.limiters[limiterID] = stats
	}
	fn(stats)
}

// GetSnapshot returns a snapshot of current metrics
func (m *Metrics) GetSnapshot() *Snapshot {
	m.mu.RLock()
	limiters := make([]LimiterStats, 0, len(m.limiters))
	for _, stats := range m.limiters {
		limiters = append(limiters, *stats)
	}
	m.mu.RUnlock()

	// Most exceeded first
	sort.Slice(limiters, func(i, j int) bool {
		if limiters[i].Exceeded != limiters[j].Exceeded {
			return limiters[i].Exceeded > limiters[j].Exceeded
		}
		return limiters[i].LimiterID < limiters[j].LimiterID
	})

	return &Snapshot{
		TotalChecks:   m.totalChecks.Load(),
		Allowed:       m.allowed.Load(),
		Rejected:      m.rejected.Load(),
		Exceeded:      m.exceeded.Load(),
		StoreErrors:   m.storeErrors.Load(),
		Limiters:      limiters,
		UptimeSeconds: int64(m.now().Sub(m.startTime).Seconds()),
		StartTime:     m.startTime,
	}
}

// Snapshot represents a point-in-time view of metrics
type Snapshot struct {
	TotalChecks   int64          `json:"total_checks"`
	Allowed       int64          `json:"allowed"`
	Rejected      int64          `json:"rejected"`
	Exceeded      int64          `json:"exceeded"`
	StoreErrors   int64          `json:"store_errors"`
	Limiters      []LimiterStats `json:"limiters"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     time.Time      `json:"start_time"`
}
