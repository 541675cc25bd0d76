// Package async runs blocking calls on their own goroutine and hands the
// caller a future to collect the result later.
//
// Future[U] carries a value and an error; ExecFuture carries only an error.
// Both are completed exactly once. A future cannot be cancelled: the work it
// represents is governed by the context passed when it was started.
//
//	future := async.Async(ctx, key, func(ctx context.Context, key string) (bool, error) {
//		return limiter.HasAvailableCapacity(ctx, key, 1)
//	})
//
//	// Do other work...
//
//	ok, err := future.Await()
//
// A context that is already done when the future is started short-circuits
// the call: fn is never invoked and the future completes with ctx.Err().
package async
