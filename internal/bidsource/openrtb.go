package bidsource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/patrickwarner/adbroker/internal/logic/auction"
	"github.com/patrickwarner/adbroker/internal/logic/ratelimit"
	"github.com/patrickwarner/adbroker/internal/models"
)

const defaultBidderTimeout = 800 * time.Millisecond

// maxResponseBytes caps how much of a bidder response is read.
const maxResponseBytes = 1 << 20

var errThrottled = errors.New("bidder throttled")

// Endpoint is a named OpenRTB bidder.
type Endpoint struct {
	Name string
	URL  string
}

// ParseEndpoints parses "name=url,name=url".
func ParseEndpoints(s string) ([]Endpoint, error) {
	var out []Endpoint
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, url, ok := strings.Cut(part, "=")
		name, url = strings.TrimSpace(name), strings.TrimSpace(url)
		if !ok || name == "" || url == "" {
			return nil, fmt.Errorf("bidder endpoint %q: want name=url", part)
		}
		if seen[name] {
			return nil, fmt.Errorf("bidder endpoint %q: duplicate name", name)
		}
		seen[name] = true
		out = append(out, Endpoint{Name: name, URL: url})
	}
	return out, nil
}

// OpenRTBConfig configures an OpenRTB source.
type OpenRTBConfig struct {
	Endpoints []Endpoint
	// Timeout bounds each bidder call. Zero selects 800ms.
	Timeout time.Duration
	// Limiter throttles requests per bidder. Optional.
	Limiter *ratelimit.BidderLimiter
	// Floors are advertised to bidders as imp.bidfloor. Optional.
	Floors auction.FloorPolicy
	// Client defaults to an otelhttp-instrumented client.
	Client *http.Client
}

// OpenRTB fans one OpenRTB 2.5 request out to every configured bidder and
// merges the bids. A failing bidder is logged and skipped.
type OpenRTB struct {
	cfg    OpenRTBConfig
	client *http.Client
	logger *zap.Logger
}

// NewOpenRTB constructs the source.
func NewOpenRTB(cfg OpenRTBConfig, logger *zap.Logger) *OpenRTB {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultBidderTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenRTB{cfg: cfg, client: client, logger: logger}
}

func (o *OpenRTB) Name() string { return "openrtb" }

// RequestBids sends the request to all bidders concurrently. It fails with
// ReasonNoBids when no bidder bid, and with ReasonProtocolFailure (or
// ReasonTimeout once ctx is done) when every bidder failed.
func (o *OpenRTB) RequestBids(ctx context.Context, units []models.AdUnit) ([]models.Bid, error) {
	if len(units) == 0 || len(o.cfg.Endpoints) == 0 {
		return nil, &SourceError{Reason: ReasonNoBids}
	}

	ctx, span := otel.Tracer("adbroker/bidsource").Start(ctx, "bidsource.openrtb")
	defer span.End()
	span.SetAttributes(
		attribute.Int("bidsource.units", len(units)),
		attribute.Int("bidsource.bidders", len(o.cfg.Endpoints)),
	)

	req, unitByImp := o.buildRequest(ctx, units)
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &SourceError{Reason: ReasonProtocolFailure, Err: err}
	}

	results := make([][]models.Bid, len(o.cfg.Endpoints))
	errs := make([]error, len(o.cfg.Endpoints))

	var g errgroup.Group
	for i, ep := range o.cfg.Endpoints {
		g.Go(func() error {
			if !o.cfg.Limiter.Allow(ep.Name) {
				o.logger.Debug("bidder throttled", zap.Stringer("stats", o.cfg.Limiter.BidderStats(ep.Name)))
				errs[i] = errThrottled
				return nil
			}
			bids, err := o.callBidder(ctx, ep, body, unitByImp)
			if err != nil {
				o.logger.Warn("bidder request failed",
					zap.String("bidder", ep.Name),
					zap.String("url", ep.URL),
					zap.Error(err))
			}
			results[i], errs[i] = bids, err
			return nil
		})
	}
	_ = g.Wait()

	var bids []models.Bid
	failed, throttled := 0, 0
	for i := range o.cfg.Endpoints {
		switch {
		case errors.Is(errs[i], errThrottled):
			throttled++
		case errs[i] != nil:
			failed++
		}
		bids = append(bids, results[i]...)
	}
	span.SetAttributes(
		attribute.Int("bidsource.bids", len(bids)),
		attribute.Int("bidsource.failed", failed),
		attribute.Int("bidsource.throttled", throttled),
	)

	if len(bids) > 0 {
		return bids, nil
	}
	if failed > 0 && failed+throttled == len(o.cfg.Endpoints) {
		err := errors.Join(errs...)
		span.RecordError(err)
		span.SetStatus(codes.Error, "all bidders failed")
		if ctx.Err() != nil {
			return nil, &SourceError{Reason: ReasonTimeout, Err: ctx.Err()}
		}
		return nil, &SourceError{Reason: ReasonProtocolFailure, Err: err}
	}
	return nil, &SourceError{Reason: ReasonNoBids}
}

// buildRequest emits one imp per unit. Imp ids are positional; the returned
// map resolves them back to ad unit ids.
func (o *OpenRTB) buildRequest(ctx context.Context, units []models.AdUnit) (models.OpenRTBRequest, map[string]string) {
	id := AuctionIDFromContext(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	req := models.OpenRTBRequest{
		ID:   id,
		Imp:  make([]models.Impression, 0, len(units)),
		TMax: int(o.cfg.Timeout / time.Millisecond),
	}
	unitByImp := make(map[string]string, len(units))
	for i, u := range units {
		impID := strconv.Itoa(i + 1)
		unitByImp[impID] = u.ID
		formats := make([]models.Format, 0, len(u.Sizes))
		for _, s := range u.Sizes {
			formats = append(formats, models.Format{W: s.Width, H: s.Height})
		}
		imp := models.Impression{ID: impID, TagID: u.ID, Banner: &models.Banner{Format: formats}}
		if floor, ok := o.cfg.Floors.Floor(u); ok {
			imp.BidFloor = floor
		}
		req.Imp = append(req.Imp, imp)
	}
	return req, unitByImp
}

func (o *OpenRTB) callBidder(ctx context.Context, ep Endpoint, body []byte, unitByImp map[string]string) ([]models.Bid, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Openrtb-Version", "2.5")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// 204 is the OpenRTB no-bid response
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out models.OpenRTBResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode bid response: %w", err)
	}

	var bids []models.Bid
	for _, sb := range out.SeatBid {
		for _, b := range sb.Bid {
			adID, ok := unitByImp[b.ImpID]
			if !ok {
				// unknown impid; the engine rejects it as an unknown unit
				adID = b.ImpID
			}
			bid := models.Bid{
				Bidder:   ep.Name,
				Price:    b.Price,
				AdID:     adID,
				Creative: b.Adm,
			}
			if len(b.ADomain) > 0 {
				bid.AdvertiserDomain = b.ADomain[0]
			}
			bids = append(bids, bid)
		}
	}
	return bids, nil
}
