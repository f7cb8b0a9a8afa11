// Package app assembles the broker from configuration. Both binaries share
// it so the HTTP server and the MCP server run identical auctions.
package app

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/patrickwarner/adbroker/internal/analytics"
	"github.com/patrickwarner/adbroker/internal/bidsource"
	"github.com/patrickwarner/adbroker/internal/broker"
	"github.com/patrickwarner/adbroker/internal/config"
	"github.com/patrickwarner/adbroker/internal/db"
	"github.com/patrickwarner/adbroker/internal/geoip"
	"github.com/patrickwarner/adbroker/internal/logic/auction"
	"github.com/patrickwarner/adbroker/internal/logic/render"
	"github.com/patrickwarner/adbroker/internal/macros"
	"github.com/patrickwarner/adbroker/internal/models"
	"github.com/patrickwarner/adbroker/internal/observability"
	"github.com/patrickwarner/adbroker/internal/registry"
)

// App holds the assembled components and the connections they own.
type App struct {
	Registry   *registry.Registry
	Broker     *broker.Broker
	Dispatcher *analytics.Dispatcher
	GeoIP      *geoip.GeoIP

	redis  *db.RedisStore
	pg     *db.Postgres
	logger *zap.Logger
}

// Build connects the configured stores, loads the registry snapshot and
// wires the broker. On error everything opened so far is closed.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, metrics observability.MetricsRegistry) (_ *App, err error) {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	a := &App{logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	if cfg.RegistryStore == "redis" || slices.Contains(cfg.AnalyticsBackends, "redis") {
		if a.redis, err = db.InitRedis(ctx, cfg.RedisAddr); err != nil {
			return nil, fmt.Errorf("failed to connect redis: %w", err)
		}
	}
	if cfg.RegistryStore == "postgres" {
		a.pg, err = db.InitPostgres(ctx, cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns,
			cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
		if err != nil {
			return nil, fmt.Errorf("failed to connect postgres: %w", err)
		}
	}

	store, err := registry.NewStore(cfg.RegistryStore, cfg.RegistryPath, a.redis, a.pg)
	if err != nil {
		return nil, err
	}
	a.Registry = registry.New(store, logger, metrics)
	if err := a.Registry.Load(ctx); err != nil {
		return nil, fmt.Errorf("load ad units: %w", err)
	}

	if cfg.GeoIPDB != "" {
		if a.GeoIP, err = geoip.Init(cfg.GeoIPDB); err != nil {
			return nil, fmt.Errorf("failed to load geoip db: %w", err)
		}
	}

	recorders, err := analytics.BuildRecorders(ctx, cfg.AnalyticsBackends,
		analytics.Backends{Redis: a.redis, ClickHouseDSN: cfg.ClickHouseDSN}, logger)
	if err != nil {
		return nil, err
	}
	a.Dispatcher = analytics.NewDispatcher(recorders, cfg.AnalyticsQueueSize, logger, metrics)

	floors := auction.FloorPolicy{
		models.DeviceMobile:  cfg.FloorMobile,
		models.DeviceDesktop: cfg.FloorDesktop,
	}
	source, err := bidsource.FromConfig(cfg, floors, logger, metrics)
	if err != nil {
		return nil, err
	}

	policy, ok := render.ParsePolicy(cfg.CreativePolicy)
	if !ok {
		return nil, fmt.Errorf("unknown CREATIVE_POLICY %q", cfg.CreativePolicy)
	}
	renderer := render.NewRenderer(policy, cfg.FallbackHTML)

	a.Broker = broker.New(a.Registry, source, auction.NewEngine(floors), renderer, a.Dispatcher, logger, metrics)
	if cfg.CreativeMacros {
		a.Broker.SetMacroExpander(macros.NewExpander(logger, metrics))
	}

	logger.Info("broker assembled",
		zap.String("registry_store", cfg.RegistryStore),
		zap.Int("ad_units", a.Registry.Len()),
		zap.String("bid_source", source.Name()),
		zap.Strings("analytics", cfg.AnalyticsBackends),
		zap.String("creative_policy", string(policy)))
	return a, nil
}

// Close drains pending analytics events, then closes the stores.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Dispatcher != nil {
		if err := a.Dispatcher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain analytics: %w", err))
		}
	}
	if a.GeoIP != nil {
		if err := a.GeoIP.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.redis.Close()
	a.pg.Close()
	return errors.Join(errs...)
}
