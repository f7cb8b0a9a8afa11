// Package broker runs one auction end to end: snapshot the registry, ask the
// bid source for bids, pick a winner and render it, reporting analytics on
// the way.
package broker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/patrickwarner/adbroker/internal/analytics"
	"github.com/patrickwarner/adbroker/internal/bidsource"
	"github.com/patrickwarner/adbroker/internal/logic"
	"github.com/patrickwarner/adbroker/internal/logic/auction"
	"github.com/patrickwarner/adbroker/internal/logic/render"
	"github.com/patrickwarner/adbroker/internal/macros"
	"github.com/patrickwarner/adbroker/internal/models"
	"github.com/patrickwarner/adbroker/internal/observability"
)

// Auction outcomes as reported to metrics.
const (
	OutcomeWon      = "won"
	OutcomeNoWinner = "no_winner"
	OutcomeNoUnits  = "no_units"
	OutcomeDegraded = "degraded"
)

// UnitLister provides the snapshot of ad units an auction runs against.
type UnitLister interface {
	List() []models.AdUnit
}

// Outcome is the result of Broker.Run. AdHTML is always set. Err is set
// when the auction was degraded by a bid source failure or unusable bids;
// AdHTML then holds the fallback markup.
type Outcome struct {
	AuctionID string
	AdHTML    string
	Winner    *models.Bid
	Result    auction.Result
	Err       error
}

// Degraded reports whether the auction could not run normally.
func (o Outcome) Degraded() bool { return o.Err != nil }

// Trace returns the engine trace for debug output.
func (o Outcome) Trace() logic.AuctionTrace { return o.Result.Trace }

// Broker wires the registry, bid source, engine, renderer and analytics sink.
type Broker struct {
	units    UnitLister
	source   bidsource.Source
	engine   *auction.Engine
	renderer *render.Renderer
	macros   *macros.Expander
	sink     analytics.Sink
	logger   *zap.Logger
	metrics  observability.MetricsRegistry
}

// New constructs a Broker. source should already be wrapped with
// bidsource.WithTimeout. Nil sink, logger and metrics are replaced with no-ops.
func New(units UnitLister, source bidsource.Source, engine *auction.Engine, renderer *render.Renderer,
	sink analytics.Sink, logger *zap.Logger, metrics observability.MetricsRegistry) *Broker {
	if engine == nil {
		engine = auction.NewEngine(nil)
	}
	if renderer == nil {
		renderer = render.NewRenderer(render.PolicyPassthrough, "")
	}
	if sink == nil {
		sink = analytics.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Broker{
		units:    units,
		source:   source,
		engine:   engine,
		renderer: renderer,
		sink:     sink,
		logger:   logger,
		metrics:  metrics,
	}
}

// SetMacroExpander sets the expander applied to winning creatives. Without
// one (the default, or nil) creatives are served verbatim.
func (b *Broker) SetMacroExpander(e *macros.Expander) { b.macros = e }

// Run executes one auction for the client described by rc. It never fails:
// problems are reported through Outcome.Err with fallback markup.
func (b *Broker) Run(ctx context.Context, rc models.RequestContext) Outcome {
	out := Outcome{AuctionID: uuid.NewString()}

	ctx, span := otel.Tracer("adbroker/broker").Start(ctx, "broker.run")
	defer span.End()
	span.SetAttributes(attribute.String("auction.id", out.AuctionID))

	logger := b.logger.With(zap.String("auction_id", out.AuctionID))

	units := b.units.List()
	span.SetAttributes(attribute.Int("auction.units", len(units)))
	if len(units) == 0 {
		out.AdHTML = b.renderer.Fallback()
		b.metrics.IncrementAuctions(OutcomeNoUnits)
		logger.Debug("no ad units registered, serving fallback")
		return out
	}

	start := time.Now()
	bids, err := b.source.RequestBids(bidsource.WithAuctionID(ctx, out.AuctionID), units)
	if err != nil {
		se := bidsource.AsSourceError(err)
		b.metrics.RecordBidSourceLatency(string(se.Reason), time.Since(start))
		logger.Warn("bid source failed",
			zap.String("source", b.source.Name()),
			zap.String("reason", string(se.Reason)),
			zap.Int("partial_bids", len(se.Partial)),
			zap.Error(se.Err))
		b.sink.Record(ctx, analytics.ErrorEvent(out.AuctionID, se, rc))
		out.Err = se
		span.RecordError(se)
		bids = nil
	} else {
		b.metrics.RecordBidSourceLatency("ok", time.Since(start))
	}

	for _, bid := range bids {
		b.metrics.IncrementBidsReceived(bid.Bidder)
		b.sink.Record(ctx, analytics.BidEvent(analytics.KindBidReceived, out.AuctionID, bid, rc))
	}

	res, err := b.engine.Run(units, bids)
	out.Result = res
	for _, r := range res.Rejected {
		b.metrics.IncrementBidRejections(string(r.Reason))
	}
	if err != nil {
		logger.Warn("auction input rejected", zap.Int("bids", len(bids)), zap.Error(err))
		b.sink.Record(ctx, analytics.ErrorEvent(out.AuctionID, err, rc))
		out.Err = errors.Join(out.Err, err)
		span.RecordError(err)
	}

	if res.Winner != nil {
		w := *res.Winner
		out.Winner = &w
		b.sink.Record(ctx, analytics.BidEvent(analytics.KindBidWon, out.AuctionID, w, rc))
		span.SetAttributes(
			attribute.String("auction.winner", w.Bidder),
			attribute.Float64("auction.price", w.Price),
		)
	}
	out.AdHTML = b.render(logger, out.AuctionID, res.Winner)

	outcome := OutcomeNoWinner
	switch {
	case out.Err != nil:
		outcome = OutcomeDegraded
		span.SetStatus(codes.Error, "auction degraded")
	case out.Winner != nil:
		outcome = OutcomeWon
	}
	b.metrics.IncrementAuctions(outcome)

	if observability.ShouldSample(observability.GetSamplingRate()) {
		fields := []zap.Field{
			zap.String("outcome", outcome),
			zap.Int("units", len(units)),
			zap.Int("bids", len(bids)),
			zap.Int("eligible", len(res.Eligible)),
			zap.Duration("elapsed", time.Since(start)),
		}
		if out.Winner != nil {
			fields = append(fields, zap.String("winner", out.Winner.Bidder), zap.Float64("price", out.Winner.Price))
		}
		logger.Info("auction complete", fields...)
	}
	return out
}

// render substitutes auction macros into the winning creative, then renders
// it. The bid reported to analytics keeps the markup as the bidder sent it.
func (b *Broker) render(logger *zap.Logger, auctionID string, winner *models.Bid) string {
	if winner == nil || b.macros == nil {
		return b.renderer.RenderBid(winner)
	}
	served := *winner
	markup, err := b.macros.Expand(served.Creative, &macros.ExpansionContext{
		AuctionID: auctionID,
		AdUnitID:  served.AdID,
		Bidder:    served.Bidder,
		Price:     served.Price,
		Timestamp: time.Now(),
	})
	if err != nil {
		logger.Warn("creative macro expansion failed", zap.Error(err))
		return b.renderer.RenderBid(winner)
	}
	served.Creative = markup
	return b.renderer.RenderBid(&served)
}
