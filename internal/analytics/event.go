// Package analytics reports auction events to pluggable backends.
//
// Reporting is best effort: Sink.Record never blocks the auction and never
// returns an error. Events are queued and written by a background worker.
package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/patrickwarner/adbroker/internal/models"
)

// Kind is the type of an analytics event.
type Kind string

const (
	KindBidReceived Kind = "bid_received"
	KindBidWon      Kind = "bid_won"
	KindError       Kind = "error"
)

// Event is a single analytics record.
type Event struct {
	Kind      Kind      `json:"kind"`
	AuctionID string    `json:"auction_id"`
	Bidder    string    `json:"bidder,omitempty"`
	Price     float64   `json:"price,omitempty"`
	AdUnitID  string    `json:"ad_unit_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	Device    string    `json:"device_type,omitempty"`
	Country   string    `json:"country,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// BidEvent builds a bid_received or bid_won event.
func BidEvent(kind Kind, auctionID string, b models.Bid, rc models.RequestContext) Event {
	return Event{
		Kind:      kind,
		AuctionID: auctionID,
		Bidder:    b.Bidder,
		Price:     b.Price,
		AdUnitID:  b.AdID,
		Device:    rc.DeviceType,
		Country:   rc.Country,
		Timestamp: time.Now().UTC(),
	}
}

// ErrorEvent builds an error event for err.
func ErrorEvent(auctionID string, err error, rc models.RequestContext) Event {
	ev := Event{
		Kind:      KindError,
		AuctionID: auctionID,
		Device:    rc.DeviceType,
		Country:   rc.Country,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// Sink accepts events. Record must not block and must not fail the caller.
type Sink interface {
	Record(ctx context.Context, ev Event)
}

// Recorder writes events to one backend. Write may block and fail; the
// Dispatcher isolates callers from both.
type Recorder interface {
	Name() string
	Write(ctx context.Context, ev Event) error
	Close() error
}

// ErrUnavailable is returned by recorders whose backend is not configured.
var ErrUnavailable = errors.New("analytics unavailable")

// Nop discards every event.
type Nop struct{}

func (Nop) Record(context.Context, Event) {}
