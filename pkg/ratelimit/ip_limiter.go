package ratelimit

import (
	"sync"
	"time"
)

// IPRateLimiter keeps a token bucket per client IP
type IPRateLimiter struct {
	limiters   map[string]*ipLimiterEntry
	mu         sync.Mutex
	maxTokens  float64
	refillRate float64
	cleanup    *time.Ticker
	maxIdle    time.Duration
	stopChan   chan struct{}
}

type ipLimiterEntry struct {
	bucket   *TokenBucket
	lastSeen time.Time
}

// NewIPRateLimiter creates a new IPRateLimiter
func NewIPRateLimiter(maxTokens, refillRate float64) *IPRateLimiter {
	limiter := &IPRateLimiter{
		limiters:   make(map[string]*ipLimiterEntry),
		maxTokens:  maxTokens,
		refillRate: refillRate,
		cleanup:    time.NewTicker(10 * time.Minute),
		maxIdle:    30 * time.Minute,
		stopChan:   make(chan struct{}),
	}

	go limiter.cleanupLoop()

	return limiter
}

// Allow checks if a request from the given IP can proceed
func (ipl *IPRateLimiter) Allow(ip string) bool {
	ipl.mu.Lock()

	entry, exists := ipl.limiters[ip]
	if !exists {
		entry = &ipLimiterEntry{bucket: NewTokenBucket(ipl.maxTokens, ipl.refillRate)}
		ipl.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()

	ipl.mu.Unlock()

	return entry.bucket.Allow()
}

// TrackedIPs returns how many client IPs currently hold a bucket
func (ipl *IPRateLimiter) TrackedIPs() int {
	ipl.mu.Lock()
	defer ipl.mu.Unlock()
	return len(ipl.limiters)
}

// cleanupLoop drops buckets for IPs not seen within maxIdle
func (ipl *IPRateLimiter) cleanupLoop() {
	for {
		select {
		case <-ipl.cleanup.C:
			cutoff := time.Now().Add(-ipl.maxIdle)
			ipl.mu.Lock()
			for ip, entry := range ipl.limiters {
				if entry.lastSeen.Before(cutoff) {
					delete(ipl.limiters, ip)
				}
			}
			ipl.mu.Unlock()
		case <-ipl.stopChan:
			ipl.cleanup.Stop()
			return
		}
	}
}

// Stop stops the background cleanup
func (ipl *IPRateLimiter) Stop() {
	close(ipl.stopChan)
}
