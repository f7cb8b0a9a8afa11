package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adbroker_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adbroker_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// auctions by outcome: won, no_winner, degraded
	AuctionCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adbroker_auctions_total",
			Help: "Total auctions run, by outcome",
		},
		[]string{"outcome"},
	)

	// candidate bids received per bidder
	BidsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adbroker_bids_received_total",
			Help: "Total candidate bids received from the bid source",
		},
		[]string{"bidder"},
	)

	// bids excluded from an auction, by reason
	BidRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adbroker_bid_rejections_total",
			Help: "Total bids rejected by the auction engine",
		},
		[]string{"reason"},
	)

	// bid source call latency, labelled by outcome
	BidSourceLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adbroker_bid_source_duration_seconds",
			Help:    "Duration of bid source calls",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
		},
		[]string{"outcome"},
	)

	// bidder requests skipped by the per-bidder rate limiter
	BidderThrottled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adbroker_bidder_throttled_total",
			Help: "Total bidder requests skipped by rate limiting",
		},
		[]string{"bidder"},
	)

	// analytics events by kind and delivery status (queued, dropped, failed)
	AnalyticsEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adbroker_analytics_events_total",
			Help: "Analytics events by kind and delivery status",
		},
		[]string{"kind", "status"},
	)

	// creative macro substitutions by macro and result (expanded, failed)
	MacroExpansions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adbroker_macro_expansions_total",
			Help: "Auction macros substituted into winning creatives",
		},
		[]string{"macro", "result"},
	)

	// number of registered ad units
	RegisteredAdUnits = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "adbroker_registered_ad_units",
			Help: "Number of ad units in the registry",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		AuctionCount,
		BidsReceived,
		BidRejections,
		BidSourceLatency,
		BidderThrottled,
		AnalyticsEvents,
		MacroExpansions,
		RegisteredAdUnits,
	)
}
