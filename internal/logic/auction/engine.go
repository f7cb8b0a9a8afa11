// Package auction turns candidate bids into a single winner.
//
// The engine is pure: it takes the ad units snapshot and the candidate bids
// of one auction and returns the result synchronously. Each bid is checked
// against the floor of the unit it targets (looked up by Bid.AdID); bids for
// unknown units, invalid bids and bids under their unit's floor are rejected
// with a reason. Among the survivors the highest price wins and ties go to
// the bid seen first.
package auction

import (
	"fmt"
	"strconv"

	"github.com/patrickwarner/adbroker/internal/logic"
	"github.com/patrickwarner/adbroker/internal/models"
)

// RejectReason explains why a bid took no part in winner selection.
type RejectReason string

const (
	RejectUnknownAdUnit RejectReason = "unknown_ad_unit"
	RejectInvalid       RejectReason = "invalid"
	RejectBelowFloor    RejectReason = "below_floor"
)

// RejectedBid is a candidate bid excluded from winner selection.
type RejectedBid struct {
	Bid    models.Bid   `json:"bid"`
	Reason RejectReason `json:"reason"`
	// Floor is the floor that applied, set for RejectBelowFloor.
	Floor float64 `json:"floor,omitempty"`
}

// Result is the outcome of one auction. A nil Winner means "no winner", which
// is a normal outcome and not an error.
type Result struct {
	Winner   *models.Bid        `json:"winner,omitempty"`
	Eligible []models.Bid       `json:"eligible"`
	Rejected []RejectedBid      `json:"rejected"`
	Trace    logic.AuctionTrace `json:"trace"`
}

// HasWinner reports whether a bid won the auction.
func (r Result) HasWinner() bool {
	return r.Winner != nil
}

// Engine runs auctions under a floor policy.
type Engine struct {
	floors FloorPolicy
}

// NewEngine returns an Engine using policy. A nil policy selects DefaultFloorPolicy.
func NewEngine(policy FloorPolicy) *Engine {
	if policy == nil {
		policy = DefaultFloorPolicy()
	}
	return &Engine{floors: policy}
}

// Run selects the winning bid among candidates for the given units.
//
// It returns models.ErrInvalidInput only when there is at least one
// candidate and none of them targets a known unit. No candidates, or no
// candidate surviving the filters, yields a Result without a winner.
func (e *Engine) Run(units []models.AdUnit, candidates []models.Bid) (Result, error) {
	res := Result{
		Eligible: make([]models.Bid, 0, len(candidates)),
		Rejected: make([]RejectedBid, 0),
	}
	res.Trace.AddStep("candidates", candidates)

	if len(candidates) == 0 {
		res.Trace.AddStepWithDetails("winner", nil, map[string]string{"reason": "no_bids"})
		return res, nil
	}

	owners := make(map[string]models.AdUnit, len(units))
	for _, u := range units {
		owners[u.ID] = u
	}

	known := make([]models.Bid, 0, len(candidates))
	valid := make([]models.Bid, 0, len(candidates))
	for _, b := range candidates {
		unit, ok := owners[b.AdID]
		if !ok {
			res.Rejected = append(res.Rejected, RejectedBid{Bid: b, Reason: RejectUnknownAdUnit})
			continue
		}
		known = append(known, b)

		if !b.IsValid() {
			res.Rejected = append(res.Rejected, RejectedBid{Bid: b, Reason: RejectInvalid})
			continue
		}
		valid = append(valid, b)

		floor, _ := e.floors.Floor(unit)
		if !MeetsFloor(b.Price, floor) {
			res.Rejected = append(res.Rejected, RejectedBid{Bid: b, Reason: RejectBelowFloor, Floor: floor})
			continue
		}
		res.Eligible = append(res.Eligible, b)
	}
	res.Trace.AddStep("known_unit", known)
	res.Trace.AddStep("valid", valid)
	res.Trace.AddStep("floor", res.Eligible)

	if len(known) == 0 {
		return res, fmt.Errorf("%w: %w: none of %d candidate bids targets a registered ad unit", models.ErrInvalidInput, models.ErrUnknownAdUnit, len(candidates))
	}

	if len(res.Eligible) == 0 {
		res.Trace.AddStepWithDetails("winner", nil, map[string]string{"reason": "no_eligible_bids"})
		return res, nil
	}

	// strict comparison keeps the first-seen bid on ties
	best := 0
	for i := 1; i < len(res.Eligible); i++ {
		if outbids(res.Eligible[i].Price, res.Eligible[best].Price) {
			best = i
		}
	}
	winner := res.Eligible[best]
	res.Winner = &winner
	res.Trace.AddStepWithDetails("winner", []models.Bid{winner}, map[string]string{
		"price": strconv.FormatFloat(winner.Price, 'f', -1, 64),
	})
	return res, nil
}
