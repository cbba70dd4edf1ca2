package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketStartsFull(t *testing.T) {
	tb := NewTokenBucket(5, 1)

	assert.InDelta(t, 5.0, tb.Available(), 0.01)
}

func TestTokenBucketConsumesTokens(t *testing.T) {
	tb := NewTokenBucket(3, 0.0001)

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())
}

func TestTokenBucketAllowN(t *testing.T) {
	tb := NewTokenBucket(10, 0.0001)

	assert.True(t, tb.AllowN(7))
	assert.False(t, tb.AllowN(5))
	assert.True(t, tb.AllowN(3))
}

func TestTokenBucketRefills(t *testing.T) {
	tb := NewTokenBucket(1, 100)

	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	time.Sleep(20 * time.Millisecond)

	assert.True(t, tb.Allow())
}

func TestTokenBucketCapsAtMax(t *testing.T) {
	tb := NewTokenBucket(2, 1000)

	time.Sleep(10 * time.Millisecond)

	assert.InDelta(t, 2.0, tb.Available(), 0.01)
}

func TestTokenBucketReset(t *testing.T) {
	tb := NewTokenBucket(4, 0.0001)

	tb.AllowN(4)
	assert.False(t, tb.Allow())

	tb.Reset()

	assert.True(t, tb.AllowN(4))
}

func TestIPRateLimiterIsolatesClients(t *testing.T) {
	ipl := NewIPRateLimiter(1, 0.0001)
	defer ipl.Stop()

	assert.True(t, ipl.Allow("10.0.0.1"))
	assert.False(t, ipl.Allow("10.0.0.1"))

	// a different client gets its own bucket
	assert.True(t, ipl.Allow("10.0.0.2"))

	assert.Equal(t, 2, ipl.TrackedIPs())
}
