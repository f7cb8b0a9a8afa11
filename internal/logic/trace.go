package logic

import "github.com/patrickwarner/adbroker/internal/models"

// TraceStep records the bids still in contention after an auction stage.
type TraceStep struct {
	Stage     string            `json:"stage"`
	Bidders   []string          `json:"bidders"`
	AdUnitIDs []string          `json:"ad_unit_ids"`
	Details   map[string]string `json:"details,omitempty"`
}

// AuctionTrace captures the ordered list of steps performed by the engine.
// It is returned to callers that ask for debug output.
type AuctionTrace struct {
	Steps []TraceStep `json:"steps"`
}

// AddStep appends a trace entry for the given stage using the supplied bids.
// Duplicate ad unit IDs are removed.
func (t *AuctionTrace) AddStep(stage string, bids []models.Bid) {
	t.AddStepWithDetails(stage, bids, nil)
}

// AddStepWithDetails appends a trace entry with additional details about filtering.
func (t *AuctionTrace) AddStepWithDetails(stage string, bids []models.Bid, details map[string]string) {
	if t == nil {
		return
	}
	step := TraceStep{
		Stage:     stage,
		Bidders:   make([]string, 0, len(bids)),
		AdUnitIDs: make([]string, 0, len(bids)),
		Details:   details,
	}
	seen := make(map[string]struct{})
	for _, b := range bids {
		step.Bidders = append(step.Bidders, b.Bidder)
		if _, ok := seen[b.AdID]; !ok {
			seen[b.AdID] = struct{}{}
			step.AdUnitIDs = append(step.AdUnitIDs, b.AdID)
		}
	}
	t.Steps = append(t.Steps, step)
}
