package config

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ServiceName  string
	DebugTrace   bool
	// Registry persistence: "file", "memory", "redis" or "postgres".
	RegistryStore string
	RegistryPath  string
	RedisAddr     string
	PostgresDSN   string
	ClickHouseDSN string
	GeoIPDB       string
	// Database connection pooling configuration
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
	// Bid source configuration
	BidSource       string
	BidTimeout      time.Duration
	SimBidders      string
	SimLatency      time.Duration
	BidderEndpoints string
	BidderTimeout   time.Duration
	// Per-bidder rate limiting for the OpenRTB source
	BidderRateLimitEnabled    bool
	BidderRateLimitCapacity   int
	BidderRateLimitRefillRate int
	// Auction and rendering policy
	FloorMobile    float64
	FloorDesktop   float64
	CreativePolicy string
	CreativeMacros bool
	FallbackHTML   string
	DegradedStatus int
	// Analytics
	AnalyticsBackends  []string
	AnalyticsQueueSize int
	// Tracing configuration
	TracingEnabled    bool
	TempoEndpoint     string
	TracingSampleRate float64
}

// Load parses environment variables and returns a Config populated with
// defaults when variables are absent.
func Load() Config {
	cfg := Config{}

	cfg.Port = getenv("PORT", "8787")
	cfg.ReadTimeout = envDuration("READ_TIMEOUT", 5*time.Second)
	// auctions may legitimately wait on slow bidders, so the write timeout
	// must outlast BID_TIMEOUT
	cfg.WriteTimeout = envDuration("WRITE_TIMEOUT", 310*time.Second)
	cfg.ServiceName = getenv("SERVICE_NAME", "adbroker")
	cfg.DebugTrace = envBool("DEBUG_TRACE", false)

	cfg.RegistryStore = strings.ToLower(getenv("REGISTRY_STORE", "file"))
	cfg.RegistryPath = getenv("REGISTRY_PATH", "./scratch/ad_units.json")
	cfg.RedisAddr = getenv("REDIS_ADDR", "localhost:6379")
	cfg.PostgresDSN = getenv("POSTGRES_DSN", "postgres://postgres@127.0.0.1:5432/postgres?sslmode=disable")
	cfg.ClickHouseDSN = getenv("CLICKHOUSE_DSN", "clickhouse://default:@localhost:9000/default?async_insert=1&wait_for_async_insert=1")
	// empty disables country enrichment of analytics events
	cfg.GeoIPDB = getenv("GEOIP_DB", "")

	cfg.DBMaxOpenConns = envInt("DB_MAX_OPEN_CONNS", 10)
	cfg.DBMaxIdleConns = envInt("DB_MAX_IDLE_CONNS", 2)
	cfg.DBConnMaxLifetime = envDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	cfg.DBConnMaxIdleTime = envDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute)

	cfg.BidSource = strings.ToLower(getenv("BID_SOURCE", "simulated"))
	// 300s matches the browser protocol timeout of the original Prebid.js setup
	cfg.BidTimeout = envDuration("BID_TIMEOUT", 300*time.Second)
	cfg.SimBidders = getenv("SIM_BIDDERS", "appnexus:1.50,rubicon:0.80")
	cfg.SimLatency = envDuration("SIM_LATENCY", 0)
	cfg.BidderEndpoints = getenv("BIDDER_ENDPOINTS", "")
	cfg.BidderTimeout = envDuration("BIDDER_TIMEOUT", 800*time.Millisecond)

	cfg.BidderRateLimitEnabled = envBool("BIDDER_RATE_LIMIT_ENABLED", false)
	cfg.BidderRateLimitCapacity = envInt("BIDDER_RATE_LIMIT_CAPACITY", 100)
	cfg.BidderRateLimitRefillRate = envInt("BIDDER_RATE_LIMIT_REFILL_RATE", 10)

	cfg.FloorMobile = envFloat("FLOOR_MOBILE", 0.50)
	cfg.FloorDesktop = envFloat("FLOOR_DESKTOP", 1.00)
	cfg.CreativePolicy = strings.ToLower(getenv("CREATIVE_POLICY", "passthrough"))
	cfg.CreativeMacros = envBool("CREATIVE_MACROS", false)
	cfg.FallbackHTML = getenv("FALLBACK_HTML", "<div>Fallback Ad</div>")
	cfg.DegradedStatus = envInt("DEGRADED_STATUS", 500)

	cfg.AnalyticsBackends = envList("ANALYTICS_BACKENDS", []string{"log"})
	cfg.AnalyticsQueueSize = envInt("ANALYTICS_QUEUE_SIZE", 1024)

	// Tracing configuration
	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)
	cfg.TempoEndpoint = getenv("TEMPO_ENDPOINT", "tempo:4317")
	cfg.TracingSampleRate = envFloat("TRACING_SAMPLE_RATE", 1.0) // Default to 100% sampling for dev

	return cfg
}

// getenv returns the value of the environment variable if set, otherwise def.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDuration parses an environment variable into a time.Duration.
// The value can be a duration string (e.g. "5s") or a number of seconds.
// If the variable is unset or invalid, def is returned.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// envBool parses a boolean environment variable. Accepted values are those
// supported by strconv.ParseBool. When unset or invalid, def is returned.
func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

// envInt parses an integer environment variable. When unset or invalid, def is returned.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

// envFloat parses a float64 environment variable. When unset, invalid or not
// finite, def is returned.
func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return def
}

// envList parses a comma-separated environment variable. Blank entries are
// dropped and values are lower-cased. When unset, def is returned.
func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
