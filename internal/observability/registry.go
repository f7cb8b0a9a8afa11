package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics.
// Components receive it by injection instead of touching the Prometheus
// collectors directly, so tests can swap in NoOpRegistry or MockMetricsRegistry.
type MetricsRegistry interface {
	// HTTP Request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Auction metrics
	IncrementAuctions(outcome string)
	IncrementBidsReceived(bidder string)
	IncrementBidRejections(reason string)
	RecordBidSourceLatency(outcome string, duration time.Duration)
	IncrementBidderThrottled(bidder string)

	// Analytics delivery metrics
	IncrementAnalyticsEvents(kind, status string)

	// Creative macro metrics
	IncrementMacroExpansions(macro, result string)

	// Registry metrics
	SetRegisteredAdUnits(n int)
}

// PrometheusRegistry implements MetricsRegistry using the global Prometheus collectors.
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

// HTTP Request metrics
func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

// Auction metrics
func (r *PrometheusRegistry) IncrementAuctions(outcome string) {
	AuctionCount.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRegistry) IncrementBidsReceived(bidder string) {
	BidsReceived.WithLabelValues(bidder).Inc()
}

func (r *PrometheusRegistry) IncrementBidRejections(reason string) {
	BidRejections.WithLabelValues(reason).Inc()
}

func (r *PrometheusRegistry) RecordBidSourceLatency(outcome string, duration time.Duration) {
	BidSourceLatency.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementBidderThrottled(bidder string) {
	BidderThrottled.WithLabelValues(bidder).Inc()
}

// Analytics delivery metrics
func (r *PrometheusRegistry) IncrementAnalyticsEvents(kind, status string) {
	AnalyticsEvents.WithLabelValues(kind, status).Inc()
}

// Registry metrics
func (r *PrometheusRegistry) IncrementMacroExpansions(macro, result string) {
	MacroExpansions.WithLabelValues(macro, result).Inc()
}

func (r *PrometheusRegistry) SetRegisteredAdUnits(n int) {
	RegisteredAdUnits.Set(float64(n))
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementAuctions(outcome string)                                     {}
func (r *NoOpRegistry) IncrementBidsReceived(bidder string)                                  {}
func (r *NoOpRegistry) IncrementBidRejections(reason string)                                 {}
func (r *NoOpRegistry) RecordBidSourceLatency(outcome string, duration time.Duration)        {}
func (r *NoOpRegistry) IncrementBidderThrottled(bidder string)                               {}
func (r *NoOpRegistry) IncrementAnalyticsEvents(kind, status string)                         {}
func (r *NoOpRegistry) IncrementMacroExpansions(macro, result string)                        {}
func (r *NoOpRegistry) SetRegisteredAdUnits(n int)                                           {}
