package limits

// MetricsRecorder receives limiter events.
type MetricsRecorder interface {
	// RecordExceeded is called whenever a committed request does not fit,
	// including on fail-open limiters where the request is still allowed
	RecordExceeded(limiterID string)

	// RecordStoreError is called for every failed store call
	RecordStoreError(limiterID string)
}

// NoopMetrics discards all events.
type NoopMetrics struct{}

func (NoopMetrics) RecordExceeded(string)   {}
func (NoopMetrics) RecordStoreError(string) {}
