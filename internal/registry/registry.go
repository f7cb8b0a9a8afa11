// Package registry owns the set of ad units available for auction.
//
// The registry keeps units in insertion order with unique ids. It is safe for
// concurrent use: registrations are serialized, and readers take copies so
// auctions run against a stable snapshot without holding any lock.
package registry

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/patrickwarner/adbroker/internal/models"
	"github.com/patrickwarner/adbroker/internal/observability"
)

// Store persists the full list of units.
type Store interface {
	Save(ctx context.Context, units []models.AdUnit) error
	Load(ctx context.Context) ([]models.AdUnit, error)
}

// Registry is the in-memory ad unit registry.
type Registry struct {
	// writeMu serializes Register and Load so store I/O runs outside mu.
	writeMu sync.Mutex

	mu    sync.RWMutex
	units []models.AdUnit
	index map[string]int

	store   Store
	logger  *zap.Logger
	metrics observability.MetricsRegistry
}

// New returns an empty registry persisting to store. A nil store keeps
// units in memory only.
func New(store Store, logger *zap.Logger, metrics observability.MetricsRegistry) *Registry {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Registry{
		index:   make(map[string]int),
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// Register validates and adds unit, then persists the new list. On any
// failure the registry is left unchanged.
func (r *Registry) Register(ctx context.Context, unit models.AdUnit) error {
	if err := unit.Validate(); err != nil {
		return err
	}
	unit.DeviceType, _ = models.ParseDeviceType(string(unit.DeviceType))
	unit = unit.Clone()

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.RLock()
	_, exists := r.index[unit.ID]
	next := make([]models.AdUnit, len(r.units), len(r.units)+1)
	copy(next, r.units)
	r.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: %s", models.ErrAlreadyExists, unit.ID)
	}

	next = append(next, unit)
	if err := r.store.Save(ctx, next); err != nil {
		return fmt.Errorf("persist ad units: %w", err)
	}

	r.mu.Lock()
	r.units = next
	r.index[unit.ID] = len(next) - 1
	r.mu.Unlock()
	r.metrics.SetRegisteredAdUnits(len(next))
	r.logger.Info("ad unit registered",
		zap.String("ad_unit_id", unit.ID),
		zap.String("device_type", string(unit.DeviceType)),
		zap.Int("total", len(next)))
	return nil
}

// List returns a copy of all units in insertion order.
func (r *Registry) List() []models.AdUnit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.AdUnit, len(r.units))
	for i, u := range r.units {
		out[i] = u.Clone()
	}
	return out
}

// Get returns the unit with id.
func (r *Registry) Get(id string) (models.AdUnit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[id]
	if !ok {
		return models.AdUnit{}, false
	}
	return r.units[i].Clone(), true
}

// Len returns the number of registered units.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.units)
}

// Load replaces the registry contents with what the store holds. Invalid
// units and duplicate ids (after the first) are skipped with a warning.
func (r *Registry) Load(ctx context.Context) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	stored, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ad units: %w", err)
	}

	units := make([]models.AdUnit, 0, len(stored))
	index := make(map[string]int, len(stored))
	for _, u := range stored {
		if err := u.Validate(); err != nil {
			r.logger.Warn("skipping invalid stored ad unit", zap.String("ad_unit_id", u.ID), zap.Error(err))
			continue
		}
		if _, dup := index[u.ID]; dup {
			r.logger.Warn("skipping duplicate stored ad unit", zap.String("ad_unit_id", u.ID))
			continue
		}
		u.DeviceType, _ = models.ParseDeviceType(string(u.DeviceType))
		index[u.ID] = len(units)
		units = append(units, u.Clone())
	}

	r.mu.Lock()
	r.units = units
	r.index = index
	r.mu.Unlock()

	r.metrics.SetRegisteredAdUnits(len(units))
	r.logger.Info("ad units loaded", zap.Int("count", len(units)))
	return nil
}
