package circuitbreaker

import "time"

// Config holds the settings of one breaker. A disabled config yields a nil
// breaker, which Execute treats as a pass-through.
type Config struct {
	Name    string
	Enabled bool

	// MaxRequests is the number of probes let through while half-open.
	MaxRequests uint

	// Interval resets the failure counts while closed. Zero never resets.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration

	// FailureThreshold is the number of consecutive failures that opens the
	// breaker.
	FailureThreshold uint

	// IsExpected reports errors that are answers rather than faults, such as
	// a cache miss. They are returned to the caller but never count as
	// failures.
	IsExpected func(err error) bool

	// OnStateChange is called on every transition, e.g. to log it.
	OnStateChange func(name string, from, to State)
}
