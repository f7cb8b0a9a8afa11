package bidsource

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/patrickwarner/adbroker/internal/config"
	"github.com/patrickwarner/adbroker/internal/logic/auction"
	"github.com/patrickwarner/adbroker/internal/logic/ratelimit"
	"github.com/patrickwarner/adbroker/internal/observability"
)

// FromConfig builds the source selected by BID_SOURCE, wrapped with BID_TIMEOUT.
func FromConfig(cfg config.Config, floors auction.FloorPolicy, logger *zap.Logger, metrics observability.MetricsRegistry) (Source, error) {
	var src Source
	switch cfg.BidSource {
	case "", "simulated":
		bidders, err := ParseSimulatedBidders(cfg.SimBidders)
		if err != nil {
			return nil, err
		}
		src = NewSimulated(bidders, cfg.SimLatency, logger)
	case "openrtb":
		endpoints, err := ParseEndpoints(cfg.BidderEndpoints)
		if err != nil {
			return nil, err
		}
		if len(endpoints) == 0 {
			return nil, fmt.Errorf("BID_SOURCE=openrtb requires BIDDER_ENDPOINTS")
		}
		limiter := ratelimit.NewBidderLimiter(ratelimit.Config{
			Capacity:   cfg.BidderRateLimitCapacity,
			RefillRate: cfg.BidderRateLimitRefillRate,
			Enabled:    cfg.BidderRateLimitEnabled,
		}, metrics)
		src = NewOpenRTB(OpenRTBConfig{
			Endpoints: endpoints,
			Timeout:   cfg.BidderTimeout,
			Limiter:   limiter,
			Floors:    floors,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown BID_SOURCE %q", cfg.BidSource)
	}
	return WithTimeout(src, cfg.BidTimeout), nil
}
