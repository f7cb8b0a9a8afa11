package analytics

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/adbroker/internal/observability"
)

const (
	defaultQueueSize = 1024
	writeTimeout     = 5 * time.Second
)

var _ Sink = (*Dispatcher)(nil)

// Dispatcher is the Sink used in production. Events go onto a bounded queue
// drained by a single worker that writes each event to every recorder in
// turn. A full queue drops the event.
type Dispatcher struct {
	recorders []Recorder
	logger    *zap.Logger
	metrics   observability.MetricsRegistry

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

// NewDispatcher starts the worker. queueSize <= 0 selects a default.
func NewDispatcher(recorders []Recorder, queueSize int, logger *zap.Logger, metrics observability.MetricsRegistry) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	d := &Dispatcher{
		recorders: recorders,
		logger:    logger,
		metrics:   metrics,
		queue:     make(chan Event, queueSize),
		done:      make(chan struct{}),
	}
	go d.run()
	return d
}

// Record enqueues ev without blocking.
func (d *Dispatcher) Record(_ context.Context, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.metrics.IncrementAnalyticsEvents(string(ev.Kind), "dropped")
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.metrics.IncrementAnalyticsEvents(string(ev.Kind), "dropped")
		d.logger.Warn("analytics queue full, dropping event",
			zap.String("kind", string(ev.Kind)),
			zap.String("auction_id", ev.AuctionID))
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.queue {
		d.write(ev)
	}
}

func (d *Dispatcher) write(ev Event) {
	for _, r := range d.recorders {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := r.Write(ctx, ev)
		cancel()
		if err != nil {
			d.metrics.IncrementAnalyticsEvents(string(ev.Kind), "failed")
			if !errors.Is(err, ErrUnavailable) {
				d.logger.Error("analytics write failed",
					zap.String("recorder", r.Name()),
					zap.String("kind", string(ev.Kind)),
					zap.String("auction_id", ev.AuctionID),
					zap.Error(err))
			}
			continue
		}
		d.metrics.IncrementAnalyticsEvents(string(ev.Kind), "recorded")
	}
}

// Close stops accepting events, waits for the queue to drain (or ctx to
// expire) and closes every recorder.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	var errs []error
	select {
	case <-d.done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}
	for _, r := range d.recorders {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
