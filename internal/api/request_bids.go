package api

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/adbroker/internal/logic"
	"github.com/patrickwarner/adbroker/internal/middleware"
)

const msgBidRequestFailed = "Failed to request bids"

type bidsResponse struct {
	Error     string              `json:"error,omitempty"`
	AdHTML    string              `json:"adHtml"`
	AuctionID string              `json:"auctionId"`
	Debug     *logic.AuctionTrace `json:"debug,omitempty"`
}

// RequestBidsHandler handles POST /request-bids. It runs one auction across
// every registered ad unit and returns the winning creative, or the
// fallback markup when nothing won.
func (s *Server) RequestBidsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "request_bids"
	const method = "POST"
	logger := middleware.LoggerFromRequest(r, s.Logger)

	ctx, span := tracer.Start(r.Context(), "RequestBidsHandler",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.url", r.URL.String()),
		))
	defer span.End()

	rc := logic.ResolveRequestContextFromRequest(r, s.GeoIP)
	out := s.Broker.Run(ctx, rc)

	resp := bidsResponse{AdHTML: out.AdHTML, AuctionID: out.AuctionID}
	if s.DebugTrace || r.URL.Query().Get("debug") == "1" {
		tr := out.Trace()
		resp.Debug = &tr
	}

	status := http.StatusOK
	if out.Degraded() {
		status = s.DegradedStatus
		resp.Error = msgBidRequestFailed
		logger.Warn("auction degraded",
			zap.String("auction_id", out.AuctionID),
			zap.Error(out.Err))
	}
	span.SetAttributes(
		attribute.Int("http.status_code", status),
		attribute.Bool("auction.degraded", out.Degraded()),
		attribute.Bool("auction.won", out.Winner != nil),
	)

	writeJSON(w, logger, status, resp)
	s.Metrics.IncrementRequests(endpoint, method, strconv.Itoa(status))
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}
