package core

import "math"

// Check runs one leaky bucket step against state and returns the state to
// persist together with the deficit: the amount by which the request would
// overflow the bucket, rounded up and capped at MaxDeficit. A nil state is
// an empty bucket.
//
// When p.Commit is false the returned state is the input state. When the
// request does not fit, only the leak is committed, never the amount.
func Check(state *BucketState, p Params) (*BucketState, int64) {
	used := 0.0
	last := p.NowMillis
	if state != nil {
		used = state.UsedAmount
		last = state.LastUpdateMillis
	}

	// Clock skew between servers can put last in the future
	elapsed := max(0, p.NowMillis-last)
	// The conversion rounds the product, so no fused multiply-add: the
	// Redis script computes the same value
	leaked := float64(float64(elapsed) * p.LeakRatePerMillis)
	drained := math.Max(0, used-leaked)
	projected := drained + float64(p.Amount)
	deficit := int64(math.Min(math.Ceil(math.Max(0, projected-float64(p.Capacity))), MaxDeficit))

	if !p.Commit {
		return state, deficit
	}

	next := &BucketState{
		UsedAmount:       drained,
		LastUpdateMillis: p.NowMillis,
	}
	if deficit == 0 {
		next.UsedAmount = projected
	}
	return next, deficit
}
