package crypto

import "time"

// TimeProvider abstracts time operations for deterministic testing.
// Implementations must be safe for concurrent use.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider uses the standard library time functions.
type DefaultTimeProvider struct{}

// Now returns the current time.
func (DefaultTimeProvider) Now() time.Time { return time.Now() }

// NowMillis returns the provider's current wall clock in Unix milliseconds,
// the unit carried in envelope timestamps.
func NowMillis(tp TimeProvider) int64 {
	if tp == nil {
		tp = DefaultTimeProvider{}
	}
	return tp.Now().UnixMilli()
}
