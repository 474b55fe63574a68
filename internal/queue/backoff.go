package queue

// BackoffPolicy computes the retry delay after a failed attempt. It is a pure
// function of the attempt count: base * 2^(attempts-1), capped at CapMs, so
// retry timing is testable with nothing but a fixed now.
type BackoffPolicy struct {
	BaseMs int64
	CapMs  int64
}

// DefaultBackoff is the policy used when none is configured: 30s doubling up
// to a one-hour cap.
var DefaultBackoff = BackoffPolicy{BaseMs: 30_000, CapMs: 3_600_000}

// DelayMs returns the delay before attempt number attempts may retry.
func (p BackoffPolicy) DelayMs(attempts int) int64 {
	base := p.BaseMs
	if base <= 0 {
		base = DefaultBackoff.BaseMs
	}
	cap := p.CapMs
	if cap <= 0 {
		cap = DefaultBackoff.CapMs
	}
	if attempts < 1 {
		attempts = 1
	}
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= cap || d < 0 {
			return cap
		}
	}
	if d > cap {
		return cap
	}
	return d
}
