package limits

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"sync"
	"sync/atomic"
)

// ConfigSource supplies runtime overrides for dynamic limiters.
// Implementations must be safe for concurrent use; CurrentOverride is called
// on every limiter operation.
type ConfigSource interface {
	CurrentOverride(limiterID string) (BucketConfig, bool)
}

// OverrideTable is an in-memory ConfigSource. Readers never block: every
// write publishes a new snapshot. The zero value is an empty table.
type OverrideTable struct {
	mu       sync.Mutex // Serializes writers
	snapshot atomic.Pointer[map[string]BucketConfig]
}

var _ ConfigSource = (*OverrideTable)(nil)

// NewOverrideTable creates a table holding a copy of initial.
func NewOverrideTable(initial map[string]BucketConfig) (*OverrideTable, error) {
	t := &OverrideTable{}
	if err := t.Replace(initial); err != nil {
		return nil, err
	}
	return t, nil
}

// CurrentOverride returns the override for limiterID, if any.
func (t *OverrideTable) CurrentOverride(limiterID string) (BucketConfig, bool) {
	m := t.snapshot.Load()
	if m == nil {
		return BucketConfig{}, false
	}
	cfg, ok := (*m)[limiterID]
	return cfg, ok
}

// Replace swaps in a copy of overrides as the whole table.
// If any override is invalid the current table is kept.
func (t *OverrideTable) Replace(overrides map[string]BucketConfig) error {
	if err := validateOverrides(overrides); err != nil {
		return err
	}

	next := maps.Clone(overrides)
	if next == nil {
		next = make(map[string]BucketConfig)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.Store(&next)
	return nil
}

// Set adds or replaces one override. An invalid cfg is rejected.
func (t *OverrideTable) Set(limiterID string, cfg BucketConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("override %q: %w", limiterID, err)
	}
	t.update(func(m map[string]BucketConfig) { m[limiterID] = cfg })
	return nil
}

// Delete removes one override.
func (t *OverrideTable) Delete(limiterID string) {
	t.update(func(m map[string]BucketConfig) { delete(m, limiterID) })
}

// Snapshot returns a copy of the current table.
func (t *OverrideTable) Snapshot() map[string]BucketConfig {
	m := t.snapshot.Load()
	if m == nil {
		return map[string]BucketConfig{}
	}
	return maps.Clone(*m)
}

// ReloadFile replaces the table with the overrides in a YAML file.
// On error the current table is kept.
func (t *OverrideTable) ReloadFile(path string) error {
	overrides, err := LoadOverridesFile(path)
	if err != nil {
		return err
	}
	return t.Replace(overrides)
}

func (t *OverrideTable) update(fn func(map[string]BucketConfig)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := make(map[string]BucketConfig)
	if cur := t.snapshot.Load(); cur != nil {
		next = maps.Clone(*cur)
	}
	fn(next)
	t.snapshot.Store(&next)
}

type overridesFile struct {
	Overrides map[string]BucketConfig `yaml:"overrides"`
}

// LoadOverridesFile reads dynamic overrides from a YAML file:
//
//	overrides:
//	  rateLimitReset: {capacity: 4, refill_period: 12h}
//
// Every override must be a valid config.
func LoadOverridesFile(path string) (map[string]BucketConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read overrides file: %v", ErrInvalidConfig, err)
	}

	var file overridesFile
	if err := decodeStrict(data, &file); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %v", ErrInvalidConfig, err)
	}

	if err := validateOverrides(file.Overrides); err != nil {
		return nil, err
	}

	if file.Overrides == nil {
		file.Overrides = make(map[string]BucketConfig)
	}
	return file.Overrides, nil
}

func validateOverrides(overrides map[string]BucketConfig) error {
	var errs []error
	for id, cfg := range overrides {
		if err := cfg.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("override %q: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
