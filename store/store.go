package store

import (
	"context"

	"github.com/LazyCorpz/Signal-Server/core"
)

// Store is the shared state backend for leaky buckets.
//
// CheckAndUpdate must run core.Check for key as one indivisible step: no
// other caller, in this process or any other, may interleave a read-modify-write
// on the same key. It returns the deficit of the request.
type Store interface {
	CheckAndUpdate(ctx context.Context, key string, p core.Params) (int64, error)
	Delete(ctx context.Context, key string) error
}
