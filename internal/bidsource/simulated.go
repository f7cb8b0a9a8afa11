package bidsource

import (
	"context"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/adbroker/internal/models"
)

// SimulatedDomain is the advertiser domain on every simulated bid.
const SimulatedDomain = "example.com"

// SimulatedBidder is a bidder that always bids a fixed CPM.
type SimulatedBidder struct {
	Name  string
	Price float64
}

// DefaultSimulatedBidders returns appnexus at 1.50 and rubicon at 0.80.
func DefaultSimulatedBidders() []SimulatedBidder {
	return []SimulatedBidder{
		{Name: "appnexus", Price: 1.50},
		{Name: "rubicon", Price: 0.80},
	}
}

// ParseSimulatedBidders parses "name:price,name:price".
func ParseSimulatedBidders(s string) ([]SimulatedBidder, error) {
	var out []SimulatedBidder
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, priceStr, ok := strings.Cut(part, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("simulated bidder %q: want name:price", part)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(priceStr), 64)
		if err != nil || price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
			return nil, fmt.Errorf("simulated bidder %q: bad price", part)
		}
		out = append(out, SimulatedBidder{Name: strings.TrimSpace(name), Price: price})
	}
	return out, nil
}

// Simulated is a deterministic Source: every bidder bids its fixed price on
// every unit, in bidder order within unit order.
type Simulated struct {
	bidders []SimulatedBidder
	latency time.Duration
	logger  *zap.Logger
}

// NewSimulated returns a simulated source. Nil bidders selects the defaults.
// A positive latency delays every response, honouring cancellation.
func NewSimulated(bidders []SimulatedBidder, latency time.Duration, logger *zap.Logger) *Simulated {
	if bidders == nil {
		bidders = DefaultSimulatedBidders()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulated{bidders: bidders, latency: latency, logger: logger}
}

func (s *Simulated) Name() string { return "simulated" }

func (s *Simulated) RequestBids(ctx context.Context, units []models.AdUnit) ([]models.Bid, error) {
	if len(units) == 0 || len(s.bidders) == 0 {
		return nil, &SourceError{Reason: ReasonNoBids}
	}

	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, &SourceError{Reason: ReasonTimeout, Err: ctx.Err()}
		}
	}

	bids := make([]models.Bid, 0, len(units)*len(s.bidders))
	for _, u := range units {
		for _, b := range s.bidders {
			bids = append(bids, models.Bid{
				Bidder:           b.Name,
				Price:            b.Price,
				AdID:             u.ID,
				Creative:         simulatedCreative(b.Name, u),
				AdvertiserDomain: SimulatedDomain,
			})
		}
	}
	s.logger.Debug("simulated bids", zap.Int("units", len(units)), zap.Int("bids", len(bids)))
	return bids, nil
}

func simulatedCreative(bidder string, u models.AdUnit) string {
	size := ""
	if len(u.Sizes) > 0 {
		size = u.Sizes[0].String()
	}
	bidder = html.EscapeString(bidder)
	return fmt.Sprintf(`<div class="ad" data-bidder="%s" data-size="%s">%s ad for %s</div>`, bidder, size, bidder, html.EscapeString(u.ID))
}
