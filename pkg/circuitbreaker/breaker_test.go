package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestBreaker() *CircuitBreaker {
	return New(Config{
		FailureThreshold: 3,
		ResetTimeout:     50 * time.Millisecond,
		HalfOpenMaxCalls: 2,
	})
}

func TestBreakerStartsClosed(t *testing.T) {
	cb := newTestBreaker()

	assert.Equal(t, StateClosed, cb.GetState())
	assert.True(t, cb.Allow())
}

func TestBreakerOpensAtFailureThreshold(t *testing.T) {
	cb := newTestBreaker()

	cb.Failure()
	cb.Failure()
	assert.Equal(t, StateClosed, cb.GetState())

	cb.Failure()
	assert.Equal(t, StateOpen, cb.GetState())
	assert.False(t, cb.Allow())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := newTestBreaker()

	cb.Failure()
	cb.Failure()
	cb.Success()

	cb.Failure()
	cb.Failure()
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestBreakerHalfOpenAfterResetTimeout(t *testing.T) {
	cb := newTestBreaker()

	cb.Failure()
	cb.Failure()
	cb.Failure()
	assert.False(t, cb.Allow())

	time.Sleep(60 * time.Millisecond)

	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.GetState())

	// one more probe is allowed, then the budget is spent
	assert.True(t, cb.Allow())
	assert.False(t, cb.Allow())
}

func TestBreakerClosesOnHalfOpenSuccess(t *testing.T) {
	cb := newTestBreaker()

	cb.Failure()
	cb.Failure()
	cb.Failure()
	time.Sleep(60 * time.Millisecond)
	assert.True(t, cb.Allow())

	cb.Success()

	assert.Equal(t, StateClosed, cb.GetState())
	assert.True(t, cb.Allow())
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	cb := newTestBreaker()

	cb.Failure()
	cb.Failure()
	cb.Failure()
	time.Sleep(60 * time.Millisecond)
	assert.True(t, cb.Allow())

	cb.Failure()

	assert.Equal(t, StateOpen, cb.GetState())
	assert.False(t, cb.Allow())
}

func TestBreakerReset(t *testing.T) {
	cb := newTestBreaker()

	cb.Failure()
	cb.Failure()
	cb.Failure()
	assert.Equal(t, StateOpen, cb.GetState())

	cb.Reset()

	assert.Equal(t, StateClosed, cb.GetState())
	assert.True(t, cb.Allow())

	metrics := cb.GetMetrics()
	assert.Equal(t, "closed", metrics.State)
	assert.Equal(t, 0, metrics.FailureCount)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}
