package auction

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/patrickwarner/adbroker/internal/models"
)

func desktopUnit(id string) models.AdUnit {
	return models.AdUnit{ID: id, Sizes: []models.Size{{Width: 728, Height: 90}}, DeviceType: models.DeviceDesktop}
}

func mobileUnit(id string) models.AdUnit {
	return models.AdUnit{ID: id, Sizes: []models.Size{{Width: 320, Height: 50}}, DeviceType: models.DeviceMobile}
}

func bid(bidder, adID string, price float64) models.Bid {
	return models.Bid{Bidder: bidder, Price: price, AdID: adID, Creative: "<" + bidder + ">", AdvertiserDomain: "example.com"}
}

func TestRunPicksHighestBidAboveFloor(t *testing.T) {
	e := NewEngine(nil)
	units := []models.AdUnit{desktopUnit("d1"), mobileUnit("m1")}
	bids := []models.Bid{
		{Bidder: "a", Price: 1.20, AdID: "d1", Creative: "<x>", AdvertiserDomain: "a.com"},
		{Bidder: "b", Price: 0.90, AdID: "d1", Creative: "<y>", AdvertiserDomain: "b.com"},
		{Bidder: "c", Price: 0.60, AdID: "m1", Creative: "<z>", AdvertiserDomain: "c.com"},
	}

	res, err := e.Run(units, bids)
	require.NoError(t, err)
	require.True(t, res.HasWinner())
	assert.Equal(t, "a", res.Winner.Bidder)
	assert.Equal(t, "<x>", res.Winner.Creative)

	// b is under the desktop floor, c clears the mobile floor
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, "b", res.Rejected[0].Bid.Bidder)
	assert.Equal(t, RejectBelowFloor, res.Rejected[0].Reason)
	assert.Equal(t, 1.00, res.Rejected[0].Floor)
	assert.Len(t, res.Eligible, 2)
}

func TestRunFloorPerUnitExample(t *testing.T) {
	e := NewEngine(nil)
	units := []models.AdUnit{desktopUnit("d1"), mobileUnit("m1")}
	bids := []models.Bid{
		{Bidder: "a", Price: 0.6, AdID: "m1", Creative: "<x>", AdvertiserDomain: "e.com"},
		{Bidder: "b", Price: 0.9, AdID: "d1", Creative: "<y>", AdvertiserDomain: "e.com"},
	}

	res, err := e.Run(units, bids)
	require.NoError(t, err)
	require.True(t, res.HasWinner())
	assert.Equal(t, "a", res.Winner.Bidder)
	assert.Equal(t, "<x>", res.Winner.Creative)
	require.Len(t, res.Eligible, 1)
	assert.Equal(t, "a", res.Eligible[0].Bidder)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, "b", res.Rejected[0].Bid.Bidder)
	assert.Equal(t, RejectBelowFloor, res.Rejected[0].Reason)
	assert.Equal(t, 1.00, res.Rejected[0].Floor)
}

func TestRunAppliesFloorOfTargetedUnit(t *testing.T) {
	e := NewEngine(nil)
	// first unit is desktop; a 0.60 bid on the mobile unit still clears its own floor
	units := []models.AdUnit{desktopUnit("d1"), mobileUnit("m1")}
	res, err := e.Run(units, []models.Bid{bid("c", "m1", 0.60)})
	require.NoError(t, err)
	require.True(t, res.HasWinner())
	assert.Equal(t, "c", res.Winner.Bidder)
}

func TestRunNoBids(t *testing.T) {
	e := NewEngine(nil)
	res, err := e.Run([]models.AdUnit{desktopUnit("d1")}, nil)
	require.NoError(t, err)
	assert.False(t, res.HasWinner())
	assert.Empty(t, res.Rejected)
}

func TestRunNoEligibleBids(t *testing.T) {
	e := NewEngine(nil)
	res, err := e.Run([]models.AdUnit{desktopUnit("d1")}, []models.Bid{bid("a", "d1", 0.99)})
	require.NoError(t, err)
	assert.False(t, res.HasWinner())
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, RejectBelowFloor, res.Rejected[0].Reason)
}

func TestRunFloorBoundaryIsInclusive(t *testing.T) {
	e := NewEngine(nil)
	res, err := e.Run([]models.AdUnit{mobileUnit("m1")}, []models.Bid{bid("a", "m1", 0.5)})
	require.NoError(t, err)
	require.True(t, res.HasWinner())

	for _, price := range []float64{0.499999, 0.49995} {
		res, err := e.Run([]models.AdUnit{mobileUnit("m1")}, []models.Bid{bid("a", "m1", price)})
		require.NoError(t, err)
		assert.False(t, res.HasWinner(), "price %v", price)
		require.Len(t, res.Rejected, 1)
		assert.Equal(t, RejectBelowFloor, res.Rejected[0].Reason)
	}
}

func TestRunSubCentDifferenceDecidesWinner(t *testing.T) {
	e := NewEngine(nil)
	units := []models.AdUnit{desktopUnit("d1")}

	res, err := e.Run(units, []models.Bid{bid("low", "d1", 2.00001), bid("high", "d1", 2.00004)})
	require.NoError(t, err)
	assert.Equal(t, "high", res.Winner.Bidder)

	res, err = e.Run(units, []models.Bid{bid("high", "d1", 2.00004), bid("low", "d1", 2.00001)})
	require.NoError(t, err)
	assert.Equal(t, "high", res.Winner.Bidder)
}

func TestRunTieKeepsFirstSeen(t *testing.T) {
	e := NewEngine(nil)
	units := []models.AdUnit{desktopUnit("d1")}

	res, err := e.Run(units, []models.Bid{bid("p", "d1", 2.0), bid("q", "d1", 2.0)})
	require.NoError(t, err)
	assert.Equal(t, "p", res.Winner.Bidder)

	res, err = e.Run(units, []models.Bid{bid("q", "d1", 2.0), bid("p", "d1", 2.0)})
	require.NoError(t, err)
	assert.Equal(t, "q", res.Winner.Bidder)
}

func TestRunExcludesInvalidBids(t *testing.T) {
	e := NewEngine(nil)
	units := []models.AdUnit{desktopUnit("d1")}
	bids := []models.Bid{
		{Bidder: "nodomain", Price: 10, AdID: "d1", Creative: "<a>"},
		{Bidder: "nocreative", Price: 9, AdID: "d1", AdvertiserDomain: "x.com"},
		{Bidder: "zero", Price: 0, AdID: "d1", Creative: "<c>", AdvertiserDomain: "x.com"},
		{Bidder: "inf", Price: math.Inf(1), AdID: "d1", Creative: "<d>", AdvertiserDomain: "x.com"},
		{Bidder: "nan", Price: math.NaN(), AdID: "d1", Creative: "<e>", AdvertiserDomain: "x.com"},
		bid("ok", "d1", 1.5),
	}
	res, err := e.Run(units, bids)
	require.NoError(t, err)
	require.True(t, res.HasWinner())
	assert.Equal(t, "ok", res.Winner.Bidder)

	reasons := map[string]RejectReason{}
	for _, r := range res.Rejected {
		reasons[r.Bid.Bidder] = r.Reason
	}
	assert.Equal(t, map[string]RejectReason{
		"nodomain":   RejectInvalid,
		"nocreative": RejectInvalid,
		"zero":       RejectInvalid,
		"inf":        RejectInvalid,
		"nan":        RejectInvalid,
	}, reasons)
}

func TestRunUnknownAdUnit(t *testing.T) {
	e := NewEngine(nil)
	units := []models.AdUnit{desktopUnit("d1")}

	res, err := e.Run(units, []models.Bid{bid("a", "d1", 2), bid("b", "ghost", 5)})
	require.NoError(t, err)
	assert.Equal(t, "a", res.Winner.Bidder)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, RejectUnknownAdUnit, res.Rejected[0].Reason)

	_, err = e.Run(units, []models.Bid{bid("b", "ghost", 5)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidInput))

	_, err = e.Run(nil, []models.Bid{bid("b", "d1", 5)})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestRunCustomFloorPolicy(t *testing.T) {
	policy := FloorPolicy{models.DeviceMobile: 2}
	e := NewEngine(policy)
	units := []models.AdUnit{mobileUnit("m1"), desktopUnit("d1")}

	res, err := e.Run(units, []models.Bid{bid("a", "m1", 1.5), bid("b", "d1", 0.01)})
	require.NoError(t, err)
	require.True(t, res.HasWinner())
	// desktop has no entry in this policy, so any valid price clears it
	assert.Equal(t, "b", res.Winner.Bidder)

	_, ok := policy.Floor(desktopUnit("x"))
	assert.False(t, ok)
}

func TestRunTraceStages(t *testing.T) {
	e := NewEngine(nil)
	res, err := e.Run([]models.AdUnit{desktopUnit("d1")}, []models.Bid{bid("a", "d1", 1.2), bid("b", "zz", 3)})
	require.NoError(t, err)

	stages := make([]string, 0, len(res.Trace.Steps))
	for _, s := range res.Trace.Steps {
		stages = append(stages, s.Stage)
	}
	assert.Equal(t, []string{"candidates", "known_unit", "valid", "floor", "winner"}, stages)
	assert.Equal(t, []string{"a", "b"}, res.Trace.Steps[0].Bidders)
	assert.Equal(t, []string{"a"}, res.Trace.Steps[1].Bidders)
	assert.Equal(t, "1.2", res.Trace.Steps[4].Details["price"])
}

func TestMeetsFloor(t *testing.T) {
	assert.True(t, MeetsFloor(1.0, 1.0))
	assert.True(t, MeetsFloor(1.00001, 1.0))
	assert.True(t, MeetsFloor(1.000, 1.0))
	assert.False(t, MeetsFloor(0.99999, 1.0))
	assert.False(t, MeetsFloor(0.9999, 1.0))
	assert.True(t, MeetsFloor(0.01, 0))
}

func genBid(units []models.AdUnit) *rapid.Generator[models.Bid] {
	return rapid.Custom(func(t *rapid.T) models.Bid {
		b := models.Bid{
			Bidder: rapid.StringMatching(`[a-z]{1,6}`).Draw(t, "bidder"),
			Price:  float64(rapid.IntRange(0, 500).Draw(t, "cents")) / 100,
		}
		if rapid.Bool().Draw(t, "known") && len(units) > 0 {
			b.AdID = rapid.SampledFrom(units).Draw(t, "unit").ID
		} else {
			b.AdID = "unknown"
		}
		if rapid.IntRange(0, 9).Draw(t, "creative") > 0 {
			b.Creative = "<div>" + b.Bidder + "</div>"
		}
		if rapid.IntRange(0, 9).Draw(t, "domain") > 0 {
			b.AdvertiserDomain = b.Bidder + ".com"
		}
		return b
	})
}

func TestRunProperties(t *testing.T) {
	units := []models.AdUnit{desktopUnit("d1"), mobileUnit("m1"), desktopUnit("d2")}
	byID := map[string]models.AdUnit{}
	for _, u := range units {
		byID[u.ID] = u
	}
	floors := DefaultFloorPolicy()

	rapid.Check(t, func(t *rapid.T) {
		bids := rapid.SliceOfN(genBid(units), 0, 12).Draw(t, "bids")
		res, err := NewEngine(nil).Run(units, bids)

		known := 0
		for _, b := range bids {
			if _, ok := byID[b.AdID]; ok {
				known++
			}
		}
		if len(bids) > 0 && known == 0 {
			if !errors.Is(err, models.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			return
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Eligible)+len(res.Rejected) != len(bids) {
			t.Fatalf("eligible %d + rejected %d != %d candidates", len(res.Eligible), len(res.Rejected), len(bids))
		}
		if len(res.Eligible) == 0 {
			if res.Winner != nil {
				t.Fatalf("winner without eligible bids")
			}
			return
		}
		w := res.Winner
		if w == nil {
			t.Fatalf("eligible bids but no winner")
		}
		floor, _ := floors.Floor(byID[w.AdID])
		if !w.IsValid() || w.Price < floor {
			t.Fatalf("winner %+v is invalid or below floor %v", *w, floor)
		}
		// winner is the first eligible bid with the maximum price
		for _, b := range res.Eligible {
			if b.Price > w.Price {
				t.Fatalf("winner %v outbid by %v", w.Price, b.Price)
			}
			if b.Price == w.Price {
				if b != *w {
					t.Fatalf("tie not resolved to first seen: %+v vs %+v", b, *w)
				}
				break
			}
		}
	})
}
