package health

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker short-circuits calls
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState is the position of a CircuitBreaker
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
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in health reports
func (s BreakerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText
func (s *BreakerState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "closed":
		*s = StateClosed
	case "open":
		*s = StateOpen
	case "half-open":
		*s = StateHalfOpen
	default:
		return fmt.Errorf("unknown breaker state %q", text)
	}
	return nil
}

// halfOpenSuccesses is the number of consecutive successes that close a half-open breaker
const halfOpenSuccesses = 3

// CircuitBreaker stops calling a failing dependency until resetTimeout has passed
type CircuitBreaker struct {
	mu              sync.Mutex
	state           BreakerState
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	maxFailures     int
	resetTimeout    time.Duration
}

// NewCircuitBreaker opens after maxFailures consecutive failures and probes
// again once resetTimeout has elapsed
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 1
	}

	return &CircuitBreaker{
		state:        StateClosed,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
	}
}

// Execute runs fn unless the breaker is open. The lock is not held while fn runs.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}

	err := fn()
	cb.record(err)

	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.lastFailureTime) > cb.resetTimeout {
		cb.state = StateHalfOpen
		cb.successCount = 0
	}

	return cb.state != StateOpen
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failureCount++
		cb.lastFailureTime = time.Now()
		if cb.state == StateHalfOpen || cb.failureCount >= cb.maxFailures {
			cb.state = StateOpen
		}
		return
	}

	cb.failureCount = 0
	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= halfOpenSuccesses {
			cb.state = StateClosed
		}
	}
}

// State returns the current breaker state
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// BreakerStats is a point-in-time view of a CircuitBreaker
type BreakerStats struct {
	State           BreakerState `json:"state"`
	FailureCount    int          `json:"failure_count"`
	SuccessCount    int          `json:"success_count"`
	LastFailureTime *time.Time   `json:"last_failure_time,omitempty"`
}

// Stats returns the breaker counters
func (cb *CircuitBreaker) Stats() BreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	stats := BreakerStats{
		State:        cb.state,
		FailureCount: cb.failureCount,
		SuccessCount: cb.successCount,
	}
	if !cb.lastFailureTime.IsZero() {
		last := cb.lastFailureTime
		stats.LastFailureTime = &last
	}

	return stats
}

// Reset closes the breaker and clears its counters
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0
	cb.lastFailureTime = time.Time{}
}
