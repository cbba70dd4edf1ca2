package circuitbreaker

import (
	"sync"
	"time"
)

// State represents the state of the circuit breaker
type State int

const (
	StateClosed   State = iota // normal operation, requests allowed
	StateHalfOpen              // probing whether the dependency recovered
	StateOpen                  // requests rejected until the reset timeout elapses
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	mu               sync.Mutex
	state            State
	failureThreshold int
	resetTimeout     time.Duration
	halfOpenMaxCalls int
	failureCount     int
	halfOpenCalls    int
	lastStateChange  time.Time
}

// Config configures a CircuitBreaker
type Config struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	HalfOpenMaxCalls int
}

// New creates a circuit breaker in the closed state
func New(cfg Config) *CircuitBreaker {
	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		resetTimeout:     cfg.ResetTimeout,
		halfOpenMaxCalls: cfg.HalfOpenMaxCalls,
		lastStateChange:  time.Now(),
	}
}

// Allow reports whether a request may proceed
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.lastStateChange) >= cb.resetTimeout {
			cb.transition(StateHalfOpen)
			cb.halfOpenCalls = 1
			return true
		}
		return false
	case StateHalfOpen:
		if cb.halfOpenCalls < cb.halfOpenMaxCalls {
			cb.halfOpenCalls++
			return true
		}
		return false
	default:
		return false
	}
}

// Success reports a successful call
func (cb *CircuitBreaker) Success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.transition(StateClosed)
		cb.failureCount = 0
	case StateClosed:
		cb.failureCount = 0
	}
}

// Failure reports a failed call
func (cb *CircuitBreaker) Failure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		// one failed probe re-opens the circuit
		cb.transition(StateOpen)
	}
}

// GetState returns the current state
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Metrics is a snapshot of the breaker's internal counters
type Metrics struct {
	State           string    `json:"state"`
	FailureCount    int       `json:"failure_count"`
	LastStateChange time.Time `json:"last_state_change"`
}

// GetMetrics returns a snapshot of the breaker state for monitoring
func (cb *CircuitBreaker) GetMetrics() Metrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Metrics{
		State:           cb.state.String(),
		FailureCount:    cb.failureCount,
		LastStateChange: cb.lastStateChange,
	}
}

// Reset forces the breaker back to the closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.transition(StateClosed)
	cb.failureCount = 0
	cb.halfOpenCalls = 0
}

func (cb *CircuitBreaker) transition(to State) {
	cb.state = to
	cb.lastStateChange = time.Now()
}
