package limits

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BucketConfig describes one limiter's bucket and failure policy.
type BucketConfig struct {
	// Capacity is the maximum accumulated usage the bucket tolerates
	Capacity int64 `yaml:"capacity"`

	// RefillPeriod is how long the bucket takes to drain one full capacity.
	// Example: capacity 60 with refill period 1m leaks one unit per second.
	RefillPeriod time.Duration `yaml:"refill_period"`

	// FailOpen limiters never reject: excess usage is still counted, and
	// store errors are treated as allowed.
	FailOpen bool `yaml:"fail_open"`

	// PropagateStoreErrors makes a fail-open limiter report store errors
	// while still never rejecting on the limit itself.
	PropagateStoreErrors bool `yaml:"propagate_store_errors,omitempty"`
}

// Validate checks the bucket invariants.
func (c BucketConfig) Validate() error {
	if c.Capacity <= 0 {
		return ErrNonPositiveCapacity
	}
	if c.RefillPeriod <= 0 {
		return ErrNonPositiveRefillPeriod
	}
	return nil
}

// LeakRatePerMillis is the usage drained per millisecond.
func (c BucketConfig) LeakRatePerMillis() float64 {
	return float64(c.Capacity) / (float64(c.RefillPeriod) / float64(time.Millisecond))
}

// RetryAfter is how long a bucket needs to leak deficit units, rounded up
// to the next millisecond. Waits too long for a time.Duration saturate at
// math.MaxInt64.
func (c BucketConfig) RetryAfter(deficit int64) time.Duration {
	if deficit <= 0 {
		return 0
	}
	ms := math.Ceil(float64(deficit) / c.LeakRatePerMillis())
	if ms >= float64(math.MaxInt64/int64(time.Millisecond)) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ms) * time.Millisecond
}

func (c BucketConfig) swallowsStoreErrors() bool {
	return c.FailOpen && !c.PropagateStoreErrors
}

// Config is the file form of a limiter table.
//
//	limiters:
//	  - id: messages
//	    default: {capacity: 60, refill_period: 1s, fail_open: true}
//	configs:
//	  messages: {capacity: 120, refill_period: 1s}
type Config struct {
	// Limiters declares descriptors in addition to the ones given in code
	Limiters []Descriptor `yaml:"limiters,omitempty"`

	// Configs are static per-limiter configs that replace descriptor defaults
	Configs map[string]BucketConfig `yaml:"configs,omitempty"`
}

// LoadConfigFromFile loads and validates a limiter table from a YAML file.
// Unknown fields are rejected so typos do not silently fall back to defaults.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", ErrInvalidConfig, err)
	}

	var config Config
	if err := decodeStrict(data, &config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %v", ErrInvalidConfig, err)
	}
	if config.Configs == nil {
		config.Configs = make(map[string]BucketConfig)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks descriptors and static configs of the file on their own.
// Static configs may name limiters declared in code, so unknown ids are
// left to Registry.ValidateValuesAndConfigs.
func (c *Config) Validate() error {
	errs := validateDescriptors(c.Limiters)
	for _, d := range c.Limiters {
		if err := d.Default.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("limiter %q default: %w", d.ID, err))
		}
	}
	for id, cfg := range c.Configs {
		if err := cfg.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("limiter %q config: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
