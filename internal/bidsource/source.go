// Package bidsource obtains candidate bids for a set of ad units.
//
// A Source is called exactly once per auction. Implementations report
// failures as *SourceError so the broker can tell a timeout from a protocol
// failure or an auction nobody bid on.
package bidsource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickwarner/adbroker/internal/models"
)

// Source produces candidate bids for units.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string
	RequestBids(ctx context.Context, units []models.AdUnit) ([]models.Bid, error)
}

// Reason classifies a bid source failure.
type Reason string

const (
	ReasonTimeout         Reason = "timeout"
	ReasonProtocolFailure Reason = "protocol_failure"
	ReasonNoBids          Reason = "no_bids"
)

// SourceError is returned by every Source on failure. Partial carries bids
// gathered before the failure; the broker logs them but does not auction them.
type SourceError struct {
	Reason  Reason
	Partial []models.Bid
	Err     error
}

func (e *SourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("bid source: %s", e.Reason)
	}
	return fmt.Sprintf("bid source: %s: %v", e.Reason, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// AsSourceError classifies err. Errors that are not already a SourceError are
// reported as timeouts when caused by a context and as protocol failures otherwise.
func AsSourceError(err error) *SourceError {
	if err == nil {
		return nil
	}
	var se *SourceError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &SourceError{Reason: ReasonTimeout, Err: err}
	}
	return &SourceError{Reason: ReasonProtocolFailure, Err: err}
}

// WithTimeout bounds every RequestBids call on src by d. The call returns as
// soon as the deadline passes or the caller's context is cancelled, even if
// src ignores its context. A non-positive d leaves src unbounded.
func WithTimeout(src Source, d time.Duration) Source {
	return &timeoutSource{src: src, timeout: d}
}

type timeoutSource struct {
	src     Source
	timeout time.Duration
}

func (t *timeoutSource) Name() string { return t.src.Name() }

type bidsResult struct {
	bids []models.Bid
	err  error
}

func (t *timeoutSource) RequestBids(ctx context.Context, units []models.AdUnit) ([]models.Bid, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	done := make(chan bidsResult, 1)
	go func() {
		bids, err := t.src.RequestBids(ctx, units)
		done <- bidsResult{bids: bids, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, AsSourceError(res.err)
		}
		return res.bids, nil
	case <-ctx.Done():
		return nil, &SourceError{Reason: ReasonTimeout, Err: fmt.Errorf("%s: %w", t.src.Name(), ctx.Err())}
	}
}

type auctionIDKey struct{}

// WithAuctionID attaches the auction id to ctx so sources can forward it to bidders.
func WithAuctionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, auctionIDKey{}, id)
}

// AuctionIDFromContext returns the id set by WithAuctionID, or "".
func AuctionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(auctionIDKey{}).(string)
	return id
}
