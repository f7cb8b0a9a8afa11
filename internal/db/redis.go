package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/patrickwarner/adbroker/internal/models"
)

// RegistrySnapshotKey holds the registry snapshot JSON.
const RegistrySnapshotKey = "adbroker:registry:snapshot"

// RedisStore wraps a redis client.
type RedisStore struct {
	Client *redis.Client
}

// InitRedis initializes a Redis client and returns a RedisStore.
func InitRedis(ctx context.Context, addr string) (*RedisStore, error) {
	rs := &RedisStore{Client: redis.NewClient(&redis.Options{Addr: addr})}

	if err := redisotel.InstrumentTracing(rs.Client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := rs.Client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr))
	return rs, nil
}

// AuctionEventKey is the daily counter key for an analytics event kind and bidder.
func AuctionEventKey(kind, bidder string, day time.Time) string {
	if bidder == "" {
		bidder = "none"
	}
	return fmt.Sprintf("analytics:%s:%s:%s", kind, bidder, day.UTC().Format("2006-01-02"))
}

// IncrementAuctionEvent increments the daily counter for (kind, bidder).
// A 24h TTL is applied on first set.
func (r *RedisStore) IncrementAuctionEvent(ctx context.Context, kind, bidder string, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	key := AuctionEventKey(kind, bidder, at)
	val, err := r.Client.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if val == 1 {
		r.Client.Expire(ctx, key, 24*time.Hour)
	}
	return nil
}

// AuctionEventCount returns the counter for (kind, bidder) on day.
func (r *RedisStore) AuctionEventCount(ctx context.Context, kind, bidder string, day time.Time) (int64, error) {
	n, err := r.Client.Get(ctx, AuctionEventKey(kind, bidder, day)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// RedisRegistryStore persists the ad unit registry as one snapshot value.
type RedisRegistryStore struct {
	store *RedisStore
	key   string
}

// NewRedisRegistryStore returns a registry store writing to RegistrySnapshotKey.
func NewRedisRegistryStore(store *RedisStore) *RedisRegistryStore {
	return &RedisRegistryStore{store: store, key: RegistrySnapshotKey}
}

// Save replaces the stored snapshot with units.
func (s *RedisRegistryStore) Save(ctx context.Context, units []models.AdUnit) error {
	data, err := models.MarshalSnapshot(units)
	if err != nil {
		return err
	}
	if err := s.store.Client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("save registry snapshot: %w", err)
	}
	return nil
}

// Load returns the stored units; a missing key yields none.
func (s *RedisRegistryStore) Load(ctx context.Context) ([]models.AdUnit, error) {
	data, err := s.store.Client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load registry snapshot: %w", err)
	}
	snap, err := models.UnmarshalSnapshot(data)
	if err != nil {
		return nil, err
	}
	return snap.AdUnits, nil
}

// Close shuts down the Redis client.
func (r *RedisStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}
