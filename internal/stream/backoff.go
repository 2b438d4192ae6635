package stream

import "time"

// Reconnection policy defaults. The delay ramps linearly with the attempt
// count and is clamped at the ceiling.
const (
	DefaultReconnectDelay       = 5 * time.Second
	DefaultMaxReconnectWait     = 30 * time.Second
	DefaultMaxReconnectAttempts = 10
)

// reconnectPolicy computes waits between reconnection attempts after an
// unclean closure. It is pure arithmetic; the client owns the counter.
type reconnectPolicy struct {
	base        time.Duration
	max         time.Duration
	maxAttempts int
}

func newReconnectPolicy(base, max time.Duration, maxAttempts int) reconnectPolicy {
	if base <= 0 {
		base = DefaultReconnectDelay
	}
	if max <= 0 {
		max = DefaultMaxReconnectWait
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxReconnectAttempts
	}
	return reconnectPolicy{base: base, max: max, maxAttempts: maxAttempts}
}

// Delay returns the wait before attempt number n (1-based).
func (p reconnectPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(attempt) * p.base
	if d > p.max {
		d = p.max
	}
	return d
}

// Exhausted reports whether the count of attempts already made has reached
// the ceiling, meaning no further attempt may be scheduled.
func (p reconnectPolicy) Exhausted(attempts int) bool {
	return attempts >= p.maxAttempts
}
