package bidsource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/adbroker/internal/models"
)

func TestSimulatedBidsPerBidderPerUnit(t *testing.T) {
	src := NewSimulated(nil, 0, nil)
	bids, err := src.RequestBids(context.Background(), testUnits)
	require.NoError(t, err)
	require.Len(t, bids, 4)

	assert.Equal(t, "appnexus", bids[0].Bidder)
	assert.Equal(t, 1.50, bids[0].Price)
	assert.Equal(t, "d1", bids[0].AdID)
	assert.Equal(t, "rubicon", bids[1].Bidder)
	assert.Equal(t, 0.80, bids[1].Price)
	assert.Equal(t, "m1", bids[2].AdID)
	for _, b := range bids {
		assert.True(t, b.IsValid())
		assert.Equal(t, SimulatedDomain, b.AdvertiserDomain)
	}

	again, err := src.RequestBids(context.Background(), testUnits)
	require.NoError(t, err)
	assert.Equal(t, bids, again)
}

func TestSimulatedNoUnits(t *testing.T) {
	_, err := NewSimulated(nil, 0, nil).RequestBids(context.Background(), nil)
	se := AsSourceError(err)
	require.NotNil(t, se)
	assert.Equal(t, ReasonNoBids, se.Reason)
}

func TestSimulatedLatencyHonoursContext(t *testing.T) {
	src := NewSimulated(nil, time.Minute, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := src.RequestBids(ctx, testUnits)
	assert.Equal(t, ReasonTimeout, AsSourceError(err).Reason)
}

func TestSimulatedCreativeEscapesUnitID(t *testing.T) {
	units := []models.AdUnit{{ID: `<b>"x"`, Sizes: []models.Size{{Width: 1, Height: 1}}, DeviceType: models.DeviceMobile}}
	bids, err := NewSimulated([]SimulatedBidder{{Name: "a", Price: 1}}, 0, nil).RequestBids(context.Background(), units)
	require.NoError(t, err)
	assert.NotContains(t, bids[0].Creative, "<b>")
}

func TestParseSimulatedBidders(t *testing.T) {
	got, err := ParseSimulatedBidders("appnexus:1.50, rubicon:0.80,")
	require.NoError(t, err)
	assert.Equal(t, DefaultSimulatedBidders(), got)

	for _, bad := range []string{"appnexus", ":1", "a:x", "a:-1", "a:Inf", "a:+Inf", "a:NaN"} {
		_, err := ParseSimulatedBidders(bad)
		assert.Error(t, err, bad)
	}
}
