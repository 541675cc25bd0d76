package limits

import (
	"fmt"
	"log/slog"
	"maps"

	"github.com/LazyCorpz/Signal-Server/store"
)

// Option is a functional option for configuring a Registry.
type Option func(*Registry) error

// WithStore sets the bucket store shared by all limiters.
// If not provided, an in-memory store is used.
func WithStore(s store.Store) Option {
	return func(r *Registry) error {
		if s == nil {
			return fmt.Errorf("%w: store cannot be nil", ErrInvalidConfig)
		}
		r.deps.store = s
		return nil
	}
}

// WithClock sets the time source.
func WithClock(clock Clock) Option {
	return func(r *Registry) error {
		if clock == nil {
			return fmt.Errorf("%w: clock cannot be nil", ErrInvalidConfig)
		}
		r.deps.clock = clock
		return nil
	}
}

// WithMetrics sets the recorder for exceeded and store error events.
func WithMetrics(metrics MetricsRecorder) Option {
	return func(r *Registry) error {
		if metrics == nil {
			return fmt.Errorf("%w: metrics recorder cannot be nil", ErrInvalidConfig)
		}
		r.deps.metrics = metrics
		return nil
	}
}

// WithLogger sets the logger for swallowed failures and ignored overrides.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) error {
		if l == nil {
			return fmt.Errorf("%w: logger cannot be nil", ErrInvalidConfig)
		}
		r.deps.logger = l
		return nil
	}
}

// WithStaticConfigs sets per-limiter configs that replace descriptor defaults.
// Later calls add to earlier ones.
func WithStaticConfigs(configs map[string]BucketConfig) Option {
	return func(r *Registry) error {
		maps.Copy(r.static, configs)
		return nil
	}
}

// WithOverrides sets the runtime source for dynamic limiter configs.
func WithOverrides(source ConfigSource) Option {
	return func(r *Registry) error {
		if source == nil {
			return fmt.Errorf("%w: config source cannot be nil", ErrInvalidConfig)
		}
		r.overrides = source
		return nil
	}
}

// WithConfig adds the descriptors and static configs of config.
func WithConfig(config *Config) Option {
	return func(r *Registry) error {
		if config == nil {
			return fmt.Errorf("%w: config cannot be nil", ErrInvalidConfig)
		}
		if err := config.Validate(); err != nil {
			return err
		}
		r.descriptors = append(r.descriptors, config.Limiters...)
		maps.Copy(r.static, config.Configs)
		return nil
	}
}

// WithConfigFile loads configuration from a YAML file.
func WithConfigFile(path string) Option {
	return func(r *Registry) error {
		config, err := LoadConfigFromFile(path)
		if err != nil {
			return err
		}
		return WithConfig(config)(r)
	}
}
