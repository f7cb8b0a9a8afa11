// Package ratelimit throttles outbound bid requests per bidder.
//
// Each bidder gets a token bucket: bursts up to the bucket capacity are let
// through, after which requests are admitted at the refill rate. A throttled
// bidder is simply left out of that auction.
package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket is a thread-safe token bucket.
//
//	bucket := NewTokenBucket(100, 10) // burst of 100, 10 requests/second
//	if bucket.Allow() {
//	    // send the bid request
//	}
type TokenBucket struct {
	capacity   int
	tokens     int
	refillRate int // tokens per second
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
	throttled  int64
	total      int64
}

// NewTokenBucket creates a full bucket holding capacity tokens and refilling
// refillRate tokens per second.
func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	return newTokenBucket(capacity, refillRate, time.Now)
}

func newTokenBucket(capacity, refillRate int, now func() time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: now(),
		now:        now,
	}
}

// Allow consumes one token, refilling first for the time elapsed since the
// last refill. It returns false when the bucket is empty.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.total++

	now := tb.now()
	add := int(now.Sub(tb.lastRefill).Seconds() * float64(tb.refillRate))
	if add > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+add)
		tb.lastRefill = now
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	tb.throttled++
	return false
}

// Stats returns how many requests were throttled out of the total seen.
func (tb *TokenBucket) Stats() (throttled, total int64) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.throttled, tb.total
}
