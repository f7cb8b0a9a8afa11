package api

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/patrickwarner/adbroker/internal/middleware"
	"github.com/patrickwarner/adbroker/internal/models"
)

const (
	testBidPrice   = 1.75
	testBidDomain  = "test-bidder.example"
	maxTestBidBody = 64 << 10
)

// TestBidHandler is a stand-in OpenRTB bidder. It bids a fixed price on
// every impression of the request and can be listed in BIDDER_ENDPOINTS to
// exercise the OpenRTB bid source without a real exchange. A price query
// parameter overrides the bid price.
func (s *Server) TestBidHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "test_bid"
	const method = "POST"
	logger := middleware.LoggerFromRequest(r, s.Logger)

	var req models.OpenRTBRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxTestBidBody)).Decode(&req); err != nil {
		http.Error(w, "invalid OpenRTB request", http.StatusBadRequest)
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		return
	}

	price := testBidPrice
	if v := r.URL.Query().Get("price"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil || p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			http.Error(w, "invalid price", http.StatusBadRequest)
			s.Metrics.IncrementRequests(endpoint, method, "400")
			s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
			return
		}
		price = p
	}

	if len(req.Imp) == 0 {
		w.WriteHeader(http.StatusNoContent)
		s.Metrics.IncrementRequests(endpoint, method, "204")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		return
	}

	bids := make([]models.OpenRTBBid, 0, len(req.Imp))
	for _, imp := range req.Imp {
		bids = append(bids, models.OpenRTBBid{
			ID:      uuid.NewString(),
			ImpID:   imp.ID,
			Price:   price,
			Adm:     fmt.Sprintf("<div>Programmatic Test Creative %s</div>", html.EscapeString(imp.TagID)),
			ADomain: []string{testBidDomain},
		})
	}
	resp := models.OpenRTBResponse{
		ID:      req.ID,
		SeatBid: []models.SeatBid{{Seat: "test", Bid: bids}},
	}
	writeJSON(w, logger, http.StatusOK, resp)
	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}
