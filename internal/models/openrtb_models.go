package models

// OpenRTBRequest is a trimmed IAB OpenRTB 2.5 bid request, the subset the
// broker sends to bidder endpoints. One Impression is emitted per ad unit.
type OpenRTBRequest struct {
	ID     string       `json:"id"`               // Auction ID. Bidders echo it back in the response.
	Imp    []Impression `json:"imp"`              // One impression per registered ad unit.
	Device *Device      `json:"device,omitempty"` // Client device as seen by the broker.
	TMax   int          `json:"tmax,omitempty"`   // Maximum time in milliseconds the bidder has to respond.
}

// Impression describes one ad unit offered for bidding.
type Impression struct {
	ID string `json:"id"`
	// TagID carries the AdUnit.ID so bids can be matched back to their unit
	// even when a bidder renumbers impressions.
	TagID  string  `json:"tagid"`
	Banner *Banner `json:"banner,omitempty"`
	// BidFloor is the floor for the unit's device type. Bidders may use it to
	// avoid sending bids the broker would reject anyway.
	BidFloor float64 `json:"bidfloor,omitempty"`
}

// Banner lists the sizes accepted by the impression.
type Banner struct {
	Format []Format `json:"format"`
}

// Format is a single banner size.
type Format struct {
	W int `json:"w"`
	H int `json:"h"`
}

// Device object provides information about the client device.
type Device struct {
	UA string `json:"ua,omitempty"`
	IP string `json:"ip,omitempty"`
}

// OpenRTBResponse is a trimmed OpenRTB 2.5 bid response.
type OpenRTBResponse struct {
	ID      string    `json:"id"`
	SeatBid []SeatBid `json:"seatbid"`
	// Nbr (No-Bid Reason) code, set when the bidder declines every impression.
	Nbr int `json:"nbr,omitempty"`
}

// SeatBid groups the bids of one buyer seat.
type SeatBid struct {
	Seat string       `json:"seat,omitempty"`
	Bid  []OpenRTBBid `json:"bid"`
}

// OpenRTBBid is a single bid on an impression.
type OpenRTBBid struct {
	ID    string  `json:"id"`
	ImpID string  `json:"impid"` // Mirrors Impression.ID.
	Price float64 `json:"price"` // CPM.
	// Adm is the creative markup served if the bid wins.
	Adm string `json:"adm"`
	// ADomain lists advertiser domains; the first one is used for validity
	// checks and reporting.
	ADomain []string `json:"adomain,omitempty"`
	CrID    string   `json:"crid,omitempty"`
}
