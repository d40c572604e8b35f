package gateway

import (
	"sync"
	"time"
)

// circuitState tracks consecutive failures for one operation key.
type circuitState struct {
	failures  int
	openUntil time.Time
}

// circuitBreaker isolates repeatedly-failing provider operations. Keys are
// per provider and capability, e.g. "openai_embedding".
type circuitBreaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	states    map[string]*circuitState
	now       func() time.Time // swappable for tests
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	return &circuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		states:    make(map[string]*circuitState),
		now:       time.Now,
	}
}

// allow reports whether a call for key may proceed. A call attempted while
// the circuit is open must fail fast without invoking the provider.
func (cb *circuitBreaker) allow(key string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	st, ok := cb.states[key]
	if !ok {
		return true
	}
	return !cb.now().Before(st.openUntil)
}

// recordFailure increments the failure counter and opens the circuit for
// the cooldown window once the threshold is reached. Reports whether this
// failure opened the circuit.
func (cb *circuitBreaker) recordFailure(key string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	st, ok := cb.states[key]
	if !ok {
		st = &circuitState{}
		cb.states[key] = st
	}

	st.failures++
	if st.failures >= cb.threshold {
		st.openUntil = cb.now().Add(cb.cooldown)
		return true
	}
	return false
}

// recordSuccess resets the failure counter and closes the circuit
// immediately.
func (cb *circuitBreaker) recordSuccess(key string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if st, ok := cb.states[key]; ok {
		st.failures = 0
		st.openUntil = time.Time{}
	}
}
