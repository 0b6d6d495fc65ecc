package pipeline

import "sync"

// defaultFailureThreshold opens the breaker after this many consecutive
// failed runs when the config leaves it unset.
const defaultFailureThreshold = 5

// Breaker counts consecutive run failures and opens at a threshold. Once
// open it stays open for the rest of the process; a success resets the
// counter only while the breaker is still closed.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	failures  int
	open      bool
}

// NewBreaker creates a closed breaker.
func NewBreaker(threshold int) *Breaker {
	if threshold < 1 {
		threshold = defaultFailureThreshold
	}
	return &Breaker{threshold: threshold}
}

// RecordFailure counts one failed run and reports whether this failure
// opened the breaker.
func (b *Breaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open {
		return false
	}
	b.failures++
	if b.failures >= b.threshold {
		b.open = true
		return true
	}
	return false
}

// RecordSuccess resets the consecutive failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		b.failures = 0
	}
}

// Open reports whether the breaker has tripped.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Threshold returns the configured trip threshold.
func (b *Breaker) Threshold() int {
	return b.threshold
}
