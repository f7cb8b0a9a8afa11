package models

import "math"

// Bid is an offer from a bidder to fill an ad unit. Bids live for a single
// auction and are discarded once the result has been rendered.
type Bid struct {
	Bidder string `json:"bidder"`
	// Price is the CPM offered. Negative prices are never valid.
	Price float64 `json:"price"`
	// AdID is the id of the AdUnit the bid targets.
	AdID             string `json:"adId"`
	Creative         string `json:"creative"`
	AdvertiserDomain string `json:"advertiserDomain"`
}

// IsValid reports whether the bid may take part in an auction: it must have a
// positive finite price, an advertiser domain and non-empty creative markup.
func (b Bid) IsValid() bool {
	return b.Price > 0 && !math.IsInf(b.Price, 1) && b.AdvertiserDomain != "" && b.Creative != ""
}
