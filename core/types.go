package core

import "math"

// MaxDeficit caps the deficit a step reports. Past 2^53 float64 usage
// no longer counts single units, and the cap is exact in both Go and Lua.
const MaxDeficit = 1 << 53

// Params describes one atomic bucket step
type Params struct {
	Capacity          int64   // Maximum accumulated usage before rejecting
	LeakRatePerMillis float64 // Usage drained per millisecond
	NowMillis         int64   // Caller clock, unix milliseconds
	Amount            int64   // Usage this request adds
	Commit            bool    // Persist the result (false for a dry run)
}

// DrainMillis is how long a full bucket takes to drain completely.
// Stores use it as the expiry for bucket state: after that long an
// untouched bucket is indistinguishable from an absent one.
func (p Params) DrainMillis() int64 {
	if p.LeakRatePerMillis <= 0 {
		return 0
	}
	return int64(math.Ceil(float64(p.Capacity) / p.LeakRatePerMillis))
}

// BucketState is the persisted state of one leaky bucket
type BucketState struct {
	UsedAmount       float64 `json:"used"`        // Accumulated, not yet leaked usage
	LastUpdateMillis int64   `json:"last_update"` // Last time the bucket was touched
}
