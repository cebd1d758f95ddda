// Package breaker implements a circuit breaker for the WhatsApp gateway.
// After a run of consecutive failures the breaker opens and rejects calls
// until a cooldown elapses; the first caller after the cooldown gets a single
// trial permit (half-open) and its outcome decides whether the breaker
// closes again or restarts the cooldown.
package breaker

import (
	"sync"
	"time"

	"github.com/nibog-labs/notifyd/internal/clock"
)

const (
	// DefaultThreshold is the number of consecutive failures that opens the breaker.
	DefaultThreshold = 5
	// DefaultCooldown is how long the breaker stays open before a trial call is allowed.
	DefaultCooldown = time.Minute
)

// Status is a read-only snapshot of the breaker state.
type Status struct {
	Open     bool
	Failures int
	ResetIn  time.Duration
}

// Breaker tracks consecutive gateway failures. All methods are safe for
// concurrent use. The mutex is only held for state transitions, never across
// a network call: Allow hands out a permit and the caller reports the outcome
// via RecordSuccess or RecordFailure.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	clk       clock.Clock

	mu       sync.Mutex
	failures int
	open     bool
	openedAt time.Time
	probing  bool // a half-open trial call is outstanding
}

// New returns a closed Breaker with the given failure threshold and cooldown.
// Non-positive arguments fall back to the defaults.
func New(threshold int, cooldown time.Duration, clk clock.Clock) *Breaker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, clk: clk}
}

// Allow reports whether a call attempt may proceed. While the breaker is open
// it returns false until the cooldown has elapsed; at that point exactly one
// caller receives true (the half-open trial) and concurrent callers keep
// getting false until the trial's outcome is recorded.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}
	if b.probing {
		return false
	}
	if b.clk.Now().Sub(b.openedAt) < b.cooldown {
		return false
	}
	b.probing = true
	return true
}

// CancelTrial releases an outstanding half-open trial permit without
// recording an outcome. Callers use it when the trial call never reached the
// gateway (for example a missing-configuration failure), so a later caller
// can attempt the trial instead of the permit staying claimed forever.
func (b *Breaker) CancelTrial() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

// RecordSuccess closes the breaker and clears the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.open = false
	b.probing = false
	b.openedAt = time.Time{}
}

// RecordFailure increments the failure count, opening the breaker once the
// threshold is reached. A failed half-open trial re-opens the breaker and
// restarts the cooldown window.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.probing = false
	if b.failures >= b.threshold || b.open {
		b.open = true
		b.openedAt = b.clk.Now()
	}
}

// Status returns a snapshot of the breaker. ResetIn is the remaining cooldown,
// clamped to zero when the breaker is closed or the cooldown has elapsed.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Status{Open: b.open, Failures: b.failures}
	if b.open {
		if remaining := b.cooldown - b.clk.Now().Sub(b.openedAt); remaining > 0 {
			s.ResetIn = remaining
		}
	}
	return s
}
