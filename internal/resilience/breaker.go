package resilience

import (
	"context"
	"sync"
	"time"
)

// BreakerState is the current position of a circuit breaker.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// CircuitBreaker guards one downstream integration target. It opens
// after threshold consecutive failures, rejects calls while open, and
// after resetDuration admits exactly one half-open trial whose outcome
// decides between closing and re-opening. All state transitions happen
// under an internal mutex; instances are shared by concurrent callers.
type CircuitBreaker struct {
	target        string
	threshold     int
	openDuration  time.Duration
	resetDuration time.Duration

	mu                  sync.Mutex
	state               BreakerState
	generation          uint64
	consecutiveFailures int
	openedAt            time.Time
	lastFailure         time.Time
	probeInFlight       bool
}

// NewCircuitBreaker creates a breaker for the named target.
// openDuration bounds how long a run of failures stays relevant while
// closed; resetDuration is the cooldown before a half-open trial.
func NewCircuitBreaker(target string, threshold int, openDuration, resetDuration time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		target:        target,
		threshold:     threshold,
		openDuration:  openDuration,
		resetDuration: resetDuration,
		state:         StateClosed,
	}
}

// Target returns the integration target this breaker guards.
func (cb *CircuitBreaker) Target() string {
	return cb.target
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute runs op through the breaker. While open it fails immediately
// with CircuitOpenError without invoking op.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	gen, allowErr := cb.allow()
	if allowErr != nil {
		return allowErr
	}

	err := op(ctx)
	cb.record(gen, err == nil)
	return err
}

// allow admits or rejects a call and returns the generation it was
// admitted under. The generation advances on every state transition, so
// a call that outlives the state it was admitted in cannot be mistaken
// for a half-open probe when it finally reports.
func (cb *CircuitBreaker) allow() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		// A stale failure streak no longer counts toward the threshold.
		if cb.consecutiveFailures > 0 && cb.openDuration > 0 &&
			time.Since(cb.lastFailure) > cb.openDuration {
			cb.consecutiveFailures = 0
		}
		return cb.generation, nil

	case StateOpen:
		if time.Since(cb.openedAt) >= cb.resetDuration {
			cb.transition(StateHalfOpen)
			cb.probeInFlight = true
			return cb.generation, nil
		}
		return 0, &CircuitOpenError{Target: cb.target}

	case StateHalfOpen:
		if cb.probeInFlight {
			return 0, &CircuitOpenError{Target: cb.target}
		}
		cb.probeInFlight = true
		return cb.generation, nil
	}

	return cb.generation, nil
}

func (cb *CircuitBreaker) record(gen uint64, success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	// The breaker changed state while this call was running; its result
	// belongs to a previous generation and must not move the state or
	// release the probe slot.
	if gen != cb.generation {
		return
	}

	switch cb.state {
	case StateHalfOpen:
		cb.probeInFlight = false
		if success {
			cb.transition(StateClosed)
			cb.consecutiveFailures = 0
		} else {
			cb.transition(StateOpen)
			cb.openedAt = time.Now()
		}

	case StateClosed:
		if success {
			cb.consecutiveFailures = 0
			return
		}
		cb.consecutiveFailures++
		cb.lastFailure = time.Now()
		if cb.consecutiveFailures >= cb.threshold {
			cb.transition(StateOpen)
			cb.openedAt = time.Now()
		}
	}
}

// transition must be called with the mutex held.
func (cb *CircuitBreaker) transition(to BreakerState) {
	cb.state = to
	cb.generation++
}

// BreakerRegistry owns one breaker per integration target. It is
// constructed once at process start and passed by reference; targets
// are registered lazily on first use.
type BreakerRegistry struct {
	threshold     int
	openDuration  time.Duration
	resetDuration time.Duration

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewBreakerRegistry creates a registry applying the same policy to
// every target.
func NewBreakerRegistry(threshold int, openDuration, resetDuration time.Duration) *BreakerRegistry {
	return &BreakerRegistry{
		threshold:     threshold,
		openDuration:  openDuration,
		resetDuration: resetDuration,
		breakers:      make(map[string]*CircuitBreaker),
	}
}

// For returns the breaker for target, creating it on first use.
func (r *BreakerRegistry) For(target string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.breakers[target]
	if !ok {
		cb = NewCircuitBreaker(target, r.threshold, r.openDuration, r.resetDuration)
		r.breakers[target] = cb
	}
	return cb
}

// States snapshots the current state of every registered breaker.
func (r *BreakerRegistry) States() map[string]BreakerState {
	r.mu.Lock()
	defer r.mu.Unlock()

	states := make(map[string]BreakerState, len(r.breakers))
	for target, cb := range r.breakers {
		states[target] = cb.State()
	}
	return states
}
