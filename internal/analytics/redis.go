package analytics

import (
	"context"

	"github.com/patrickwarner/adbroker/internal/db"
)

// RedisRecorder keeps daily per-kind, per-bidder counters in Redis.
type RedisRecorder struct {
	store *db.RedisStore
}

// NewRedisRecorder returns a recorder backed by store.
func NewRedisRecorder(store *db.RedisStore) *RedisRecorder {
	return &RedisRecorder{store: store}
}

func (r *RedisRecorder) Name() string { return "redis" }

func (r *RedisRecorder) Write(ctx context.Context, ev Event) error {
	if r.store == nil || r.store.Client == nil {
		return ErrUnavailable
	}
	return r.store.IncrementAuctionEvent(ctx, string(ev.Kind), ev.Bidder, ev.Timestamp)
}

// Close is a no-op; the Redis client is shared and closed by its owner.
func (r *RedisRecorder) Close() error { return nil }
