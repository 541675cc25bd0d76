// Package limits provides distributed leaky bucket rate limiting.
//
// Every limiter is identified by a descriptor id and keeps one bucket per
// subject key (an account, a phone number, an IP address). A bucket holds
// an amount of accumulated usage that drains continuously at
// capacity / refill period. A request fits when the drained usage plus the
// requested amount does not exceed the capacity; a request that does not fit
// consumes nothing and reports how long until it would.
//
// Bucket state lives in a store.Store. With store.RedisStore the whole
// check-and-update step runs as one Lua script, so concurrent servers sharing
// a Redis deployment never admit more than capacity between them.
//
// # Quick Start
//
//	registry, err := limits.CreateAndValidate(limits.DefaultDescriptors(),
//	    limits.WithStore(store.NewRedisStore(client)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	limiter, _ := registry.Limiter(limits.Messages)
//	if err := limiter.Validate(ctx, accountID, 1); err != nil {
//	    if retryAfter, ok := limits.RetryAfter(err); ok {
//	        fmt.Printf("Rate limited. Retry after %v\n", retryAfter)
//	    }
//	}
//
// # Failure Policy
//
// A fail-open limiter never rejects. Usage beyond capacity is still counted
// as exceeded in metrics, and a store error is treated as if the request fit
// unless PropagateStoreErrors is set. A fail-closed limiter returns
// ErrStoreUnavailable on store errors. Reset always reports store errors.
//
// # Configuration
//
// Static configs replace descriptor defaults and are usually loaded from YAML:
//
//	limiters:
//	  - id: uploads
//	    default: {capacity: 20, refill_period: 1m}
//	configs:
//	  messages:
//	    capacity: 120
//	    refill_period: 1s
//	    fail_open: true
//
// Dynamic limiters additionally consult a ConfigSource on every call, such as
// an OverrideTable reloaded from a file. An OverrideTable rejects invalid
// configs; invalid overrides from other sources are logged once and ignored.
package limits
