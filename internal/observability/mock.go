package observability

import (
	"strings"
	"sync"
	"time"
)

var _ MetricsRegistry = (*MockMetricsRegistry)(nil)

// MockMetricsRegistry records counter increments in memory so tests can
// assert on them. The zero value is ready to use.
type MockMetricsRegistry struct {
	mu       sync.Mutex
	counters map[string]int
	units    int
}

func (m *MockMetricsRegistry) inc(parts ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]int)
	}
	m.counters[strings.Join(parts, "|")]++
}

// Count returns how many times the counter identified by name and labels was
// incremented, e.g. Count("auctions", "won").
func (m *MockMetricsRegistry) Count(name string, labels ...string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[strings.Join(append([]string{name}, labels...), "|")]
}

// RegisteredAdUnits returns the last value passed to SetRegisteredAdUnits.
func (m *MockMetricsRegistry) RegisteredAdUnits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.units
}

func (m *MockMetricsRegistry) IncrementRequests(endpoint, method, status string) {
	m.inc("requests", endpoint, method, status)
}
func (m *MockMetricsRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (m *MockMetricsRegistry) IncrementAuctions(outcome string)                                     { m.inc("auctions", outcome) }
func (m *MockMetricsRegistry) IncrementBidsReceived(bidder string)                                  { m.inc("bids_received", bidder) }
func (m *MockMetricsRegistry) IncrementBidRejections(reason string)                                 { m.inc("bid_rejections", reason) }
func (m *MockMetricsRegistry) RecordBidSourceLatency(outcome string, duration time.Duration) {
	m.inc("bid_source", outcome)
}
func (m *MockMetricsRegistry) IncrementBidderThrottled(bidder string) {
	m.inc("bidder_throttled", bidder)
}
func (m *MockMetricsRegistry) IncrementAnalyticsEvents(kind, status string) {
	m.inc("analytics", kind, status)
}
func (m *MockMetricsRegistry) IncrementMacroExpansions(macro, result string) {
	m.inc("macros", macro, result)
}
func (m *MockMetricsRegistry) SetRegisteredAdUnits(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units = n
}
