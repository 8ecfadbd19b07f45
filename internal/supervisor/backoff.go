package supervisor

import "time"

// Backoff counts consecutive start failures and, once MaxAttempts is
// reached, holds off further attempts until Window has passed.
type Backoff struct {
	MaxAttempts int
	Window      time.Duration

	failures    int
	windowStart time.Time
}

// Failure records one failed start attempt. The recovery window opens
// on the attempt that exhausts the budget, not on later ones.
func (b *Backoff) Failure(now time.Time) {
	b.failures++
	if b.failures == b.MaxAttempts {
		b.windowStart = now
	}
}

// Exhausted reports whether the attempt budget is used up.
func (b *Backoff) Exhausted() bool {
	return b.failures >= b.MaxAttempts
}

// Ready reports whether the recovery window has passed and another
// attempt may be made.
func (b *Backoff) Ready(now time.Time) bool {
	return now.Sub(b.windowStart) >= b.Window
}

// OpenWindow starts the recovery window at now without consuming an
// attempt, for faults that are not start failures.
func (b *Backoff) OpenWindow(now time.Time) {
	b.windowStart = now
}

// Reset clears the failure count after a success or a recovered SOC.
func (b *Backoff) Reset() {
	b.failures = 0
	b.windowStart = time.Time{}
}

func (b *Backoff) Failures() int {
	return b.failures
}
