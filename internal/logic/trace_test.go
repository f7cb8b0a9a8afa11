package logic

import (
	"testing"

	"github.com/patrickwarner/adbroker/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestAuctionTrace_AddStep(t *testing.T) {
	var tr AuctionTrace
	tr.AddStep("candidates", []models.Bid{
		{Bidder: "a", AdID: "u1"},
		{Bidder: "b", AdID: "u1"},
		{Bidder: "a", AdID: "u2"},
	})
	tr.AddStepWithDetails("winner", nil, map[string]string{"reason": "no_bids"})

	assert.Len(t, tr.Steps, 2)
	assert.Equal(t, []string{"a", "b", "a"}, tr.Steps[0].Bidders)
	assert.Equal(t, []string{"u1", "u2"}, tr.Steps[0].AdUnitIDs)
	assert.Equal(t, "no_bids", tr.Steps[1].Details["reason"])
	assert.Empty(t, tr.Steps[1].Bidders)
}

func TestAuctionTrace_NilSafe(t *testing.T) {
	var tr *AuctionTrace
	assert.NotPanics(t, func() { tr.AddStep("x", nil) })
}
