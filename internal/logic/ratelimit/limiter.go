package ratelimit

import (
	"fmt"
	"sync"

	"github.com/patrickwarner/adbroker/internal/observability"
)

// BidderLimiter keeps one token bucket per bidder, created lazily on first
// use. Throttled requests are reported through the metrics registry.
//
//	limiter := NewBidderLimiter(Config{Capacity: 100, RefillRate: 10, Enabled: true}, metrics)
//	if !limiter.Allow("appnexus") {
//	    // skip appnexus for this auction
//	}
type BidderLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*TokenBucket
	config  Config
	metrics observability.MetricsRegistry
}

// Config holds the limiter settings.
type Config struct {
	Capacity   int  // burst allowance
	RefillRate int  // sustained requests per second
	Enabled    bool // when false Allow always returns true
}

// NewBidderLimiter creates a limiter. A nil metrics registry is replaced by a no-op one.
func NewBidderLimiter(config Config, metrics observability.MetricsRegistry) *BidderLimiter {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &BidderLimiter{
		buckets: make(map[string]*TokenBucket),
		config:  config,
		metrics: metrics,
	}
}

// Allow reports whether a request to bidder may be sent now.
func (l *BidderLimiter) Allow(bidder string) bool {
	if l == nil || !l.config.Enabled {
		return true
	}

	l.mu.RLock()
	bucket, ok := l.buckets[bidder]
	l.mu.RUnlock()

	if !ok {
		l.mu.Lock()
		bucket, ok = l.buckets[bidder]
		if !ok {
			bucket = NewTokenBucket(l.config.Capacity, l.config.RefillRate)
			l.buckets[bidder] = bucket
		}
		l.mu.Unlock()
	}

	if bucket.Allow() {
		return true
	}
	l.metrics.IncrementBidderThrottled(bidder)
	return false
}

// BidderStats returns throttling statistics for bidder. A bidder that has
// never been checked reports zeros.
func (l *BidderLimiter) BidderStats(bidder string) Stats {
	s := Stats{Bidder: bidder}
	if l == nil {
		return s
	}
	l.mu.RLock()
	bucket, ok := l.buckets[bidder]
	l.mu.RUnlock()
	if !ok {
		return s
	}
	s.Throttled, s.Total = bucket.Stats()
	if s.Total > 0 {
		s.Rate = float64(s.Throttled) / float64(s.Total)
	}
	return s
}

// Stats describes throttling for a single bidder.
type Stats struct {
	Bidder    string  `json:"bidder"`
	Throttled int64   `json:"throttled"`
	Total     int64   `json:"total"`
	Rate      float64 `json:"rate"` // 0.0-1.0
}

func (s Stats) String() string {
	return fmt.Sprintf("bidder %s: %d/%d throttled (%.2f%%)", s.Bidder, s.Throttled, s.Total, s.Rate*100)
}
