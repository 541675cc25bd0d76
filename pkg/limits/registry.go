package limits

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/LazyCorpz/Signal-Server/pkg/logger"
	"github.com/LazyCorpz/Signal-Server/store"
)

// Registry builds and caches the limiters of a descriptor table.
//
// The config of a limiter resolves in this order: a valid runtime override
// (dynamic limiters only), the static config given at construction, the
// descriptor default.
type Registry struct {
	descriptors []Descriptor
	byID        map[string]Descriptor
	static      map[string]BucketConfig
	overrides   ConfigSource
	deps        *deps

	mu       sync.Mutex
	limiters map[string]Limiter

	rejected sync.Map // Limiter id to the last invalid override warned about
}

// NewRegistry creates a registry over descriptors. Without options it uses
// an in-memory store, the system clock, no metrics and a discarding logger.
//
// NewRegistry does not validate the table; call ValidateValuesAndConfigs
// or use CreateAndValidate.
func NewRegistry(descriptors []Descriptor, opts ...Option) (*Registry, error) {
	r := &Registry{
		descriptors: slices.Clone(descriptors),
		static:      make(map[string]BucketConfig),
		deps: &deps{
			clock:   SystemClock{},
			metrics: NoopMetrics{},
			logger:  logger.Discard(),
		},
		limiters: make(map[string]Limiter),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if r.deps.store == nil {
		r.deps.store = store.NewMemoryStore()
	}

	// First declaration wins; duplicates are reported by validation
	r.byID = make(map[string]Descriptor, len(r.descriptors))
	for _, d := range r.descriptors {
		if _, ok := r.byID[d.ID]; !ok {
			r.byID[d.ID] = d
		}
	}
	return r, nil
}

// CreateAndValidate is NewRegistry followed by ValidateValuesAndConfigs.
func CreateAndValidate(descriptors []Descriptor, opts ...Option) (*Registry, error) {
	r, err := NewRegistry(descriptors, opts...)
	if err != nil {
		return nil, err
	}
	if err := r.ValidateValuesAndConfigs(); err != nil {
		return nil, err
	}
	return r, nil
}

// ForDescriptor returns the limiter of d, creating it on first use.
// Repeated calls return the same limiter.
func (r *Registry) ForDescriptor(d Descriptor) (Limiter, error) {
	return r.Limiter(d.ID)
}

// Limiter returns the limiter with the given id.
func (r *Registry) Limiter(id string) (Limiter, error) {
	d, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLimiter, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[id]; ok {
		return l, nil
	}

	var l Limiter
	if d.Dynamic {
		l = newDynamicLimiter(id, r)
	} else {
		l = newStaticLimiter(id, r.resolve(id), r.deps)
	}
	r.limiters[id] = l
	return l, nil
}

// CurrentConfig returns the config a limiter would use right now.
func (r *Registry) CurrentConfig(id string) (BucketConfig, error) {
	if _, ok := r.byID[id]; !ok {
		return BucketConfig{}, fmt.Errorf("%w: %q", ErrUnknownLimiter, id)
	}
	return r.resolve(id), nil
}

// Descriptors returns the table sorted by id.
func (r *Registry) Descriptors() []Descriptor {
	out := slices.Collect(maps.Values(r.byID))
	slices.SortFunc(out, func(a, b Descriptor) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// ValidateValuesAndConfigs checks the whole table: ids are non-empty and
// unique, static configs name known limiters, and every config in use is
// valid. All problems are reported together, each wrapping ErrInvalidConfig.
func (r *Registry) ValidateValuesAndConfigs() error {
	errs := validateDescriptors(r.descriptors)

	for _, id := range slices.Sorted(maps.Keys(r.static)) {
		if _, ok := r.byID[id]; !ok {
			errs = append(errs, fmt.Errorf("%w: static config for %w %q", ErrInvalidConfig, ErrUnknownLimiter, id))
			continue
		}
		if err := r.static[id].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("limiter %q config: %w", id, err))
		}
	}

	for _, d := range r.descriptors {
		if d.ID == "" {
			continue
		}
		if _, ok := r.static[d.ID]; ok {
			continue
		}
		if err := d.Default.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("limiter %q default: %w", d.ID, err))
		}
	}

	return errors.Join(errs...)
}

func (r *Registry) resolve(id string) BucketConfig {
	d := r.byID[id]
	if d.Dynamic && r.overrides != nil {
		if cfg, ok := r.overrides.CurrentOverride(id); ok {
			err := cfg.Validate()
			if err == nil {
				return cfg
			}
			if prev, seen := r.rejected.Swap(id, cfg); !seen || prev != cfg {
				r.deps.logger.Warn("ignoring invalid rate limiter override",
					logger.Limiter(id), logger.Error(err))
			}
		}
	}
	if cfg, ok := r.static[id]; ok {
		return cfg
	}
	return d.Default
}
