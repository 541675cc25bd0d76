package limits

import "fmt"

// Descriptor names a limiter and carries its built-in config.
// Dynamic limiters re-read their config from the registry's ConfigSource on
// every call; static ones resolve it once.
type Descriptor struct {
	ID      string       `yaml:"id"`
	Dynamic bool         `yaml:"dynamic,omitempty"`
	Default BucketConfig `yaml:"default"`
}

// validateDescriptors reports empty and duplicate ids.
func validateDescriptors(descriptors []Descriptor) []error {
	var errs []error
	seen := make(map[string]struct{}, len(descriptors))
	for i, d := range descriptors {
		if d.ID == "" {
			errs = append(errs, fmt.Errorf("descriptor %d: %w", i, ErrEmptyLimiterID))
			continue
		}
		if _, ok := seen[d.ID]; ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrDuplicateLimiter, d.ID))
			continue
		}
		seen[d.ID] = struct{}{}
	}
	return errs
}
