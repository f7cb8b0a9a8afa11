package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/adbroker/internal/config"
	"github.com/patrickwarner/adbroker/internal/db"
	"github.com/patrickwarner/adbroker/internal/models"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Load()
	cfg.RegistryStore = "file"
	cfg.RegistryPath = filepath.Join(t.TempDir(), "ad_units.json")
	cfg.BidSource = "simulated"
	cfg.SimBidders = "appnexus:1.50,rubicon:0.80"
	cfg.BidTimeout = time.Second
	cfg.AnalyticsBackends = []string{"log"}
	cfg.CreativePolicy = "passthrough"
	cfg.FallbackHTML = "<div>Fallback Ad</div>"
	cfg.GeoIPDB = ""
	return cfg
}

var d1 = models.AdUnit{ID: "d1", Sizes: []models.Size{{Width: 728, Height: 90}}, DeviceType: models.DeviceDesktop}

func TestBuildRunsAuctionAndPersists(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := Build(ctx, cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	require.NoError(t, a.Registry.Register(ctx, d1))

	out := a.Broker.Run(ctx, models.RequestContext{})
	require.NoError(t, out.Err)
	require.NotNil(t, out.Winner)
	assert.Equal(t, "appnexus", out.Winner.Bidder)
	require.NoError(t, a.Close(ctx))

	// a fresh process sees the persisted unit
	b, err := Build(ctx, cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	defer func() { _ = b.Close(ctx) }()
	assert.Equal(t, []models.AdUnit{d1}, b.Registry.List())
}

func TestBuildFloorsFromConfig(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.FloorDesktop = 2.00

	a, err := Build(ctx, cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	defer func() { _ = a.Close(ctx) }()
	require.NoError(t, a.Registry.Register(ctx, d1))

	out := a.Broker.Run(ctx, models.RequestContext{})
	assert.Nil(t, out.Winner)
	assert.Equal(t, cfg.FallbackHTML, out.AdHTML)
}

func TestBuildSandboxPolicy(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.CreativePolicy = "sandbox"

	a, err := Build(ctx, cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	defer func() { _ = a.Close(ctx) }()
	require.NoError(t, a.Registry.Register(ctx, d1))

	out := a.Broker.Run(ctx, models.RequestContext{})
	require.NotNil(t, out.Winner)
	assert.Contains(t, out.AdHTML, "<iframe")
}

func TestBuildRejectsBadConfig(t *testing.T) {
	ctx := context.Background()
	cases := map[string]func(*config.Config){
		"creative policy":    func(c *config.Config) { c.CreativePolicy = "strip" },
		"registry store":     func(c *config.Config) { c.RegistryStore = "s3" },
		"bid source":         func(c *config.Config) { c.BidSource = "prebid" },
		"analytics backend":  func(c *config.Config) { c.AnalyticsBackends = []string{"ga"} },
		"openrtb no bidders": func(c *config.Config) { c.BidSource = "openrtb"; c.BidderEndpoints = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(t)
			mutate(&cfg)
			_, err := Build(ctx, cfg, zap.NewNop(), nil)
			assert.Error(t, err)
		})
	}
}

func TestBuildRedisBackends(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RegistryStore = "redis"
	cfg.RedisAddr = mr.Addr()
	cfg.AnalyticsBackends = []string{"redis"}

	a, err := Build(ctx, cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	require.NoError(t, a.Registry.Register(ctx, d1))
	assert.True(t, mr.Exists(db.RegistrySnapshotKey))

	out := a.Broker.Run(ctx, models.RequestContext{})
	require.NotNil(t, out.Winner)
	require.NoError(t, a.Close(ctx))

	key := db.AuctionEventKey("bid_won", "appnexus", time.Now().UTC())
	v, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}
