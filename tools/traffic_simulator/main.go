package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickwarner/adbroker/internal/config"
	"github.com/patrickwarner/adbroker/internal/db"
	"github.com/patrickwarner/adbroker/internal/models"
	"github.com/patrickwarner/adbroker/internal/observability"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	server          string
	unitsCSV        string
	totalReq        int
	conc            int
	duration        time.Duration
	rate            float64
	stats           bool
	flush           bool
	redisAddr       string
	debug           bool
	label           string
	fallbackHTML    string
	surgeInterval   time.Duration
	surgeDuration   time.Duration
	surgeMultiplier float64
	jitter          float64
)

var logger *zap.Logger

var httpClient *http.Client

var (
	userAgents = []string{
		// Mobile
		"Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (Linux; Android 12; Pixel 6 Pro) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.5735.196 Mobile Safari/537.36",

		// Desktop
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_3_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Safari/605.1.15",
		"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:111.0) Gecko/20100101 Firefox/111.0",
	}
	userIPs = []string{
		"192.0.2.1",
		"198.51.100.1",
		"203.0.113.1",
	}
)

const statsInterval = 5 * time.Second

// outcome classifies one /request-bids response.
type outcome int

const (
	outcomeWin outcome = iota
	outcomeFallback
	outcomeDegraded
	outcomeError
)

var counts [outcomeError + 1]uint64
var countSent uint64

type bidsResponse struct {
	Error     string `json:"error"`
	AdHTML    string `json:"adHtml"`
	AuctionID string `json:"auctionId"`
}

func main() {
	flag.StringVar(&server, "server", "http://localhost:8787", "broker base URL")
	flag.StringVar(&unitsCSV, "units", "d1:728x90:desktop,m1:320x50:mobile", "ad units to register first, id:WxH[|WxH]:deviceType comma-separated (empty to skip)")
	flag.IntVar(&totalReq, "requests", 1000, "total auctions to request")
	flag.IntVar(&conc, "concurrency", 20, "concurrent requests")
	flag.DurationVar(&duration, "duration", 0, "how long to run traffic (0 to disable)")
	flag.Float64Var(&rate, "rate", 0, "requests per second (0 for unlimited)")
	flag.BoolVar(&stats, "stats", false, "print aggregated stats periodically")
	flag.BoolVar(&flush, "flush", false, "delete redis analytics counters before sending traffic")
	flag.StringVar(&redisAddr, "redis", "", "redis address (defaults to REDIS_ADDR)")
	flag.BoolVar(&debug, "debug", false, "enable verbose debug logs")
	flag.StringVar(&label, "label", "", "label to identify this run")
	flag.StringVar(&fallbackHTML, "fallback", "<div>Fallback Ad</div>", "markup the broker serves when nothing wins")
	flag.DurationVar(&surgeInterval, "surge-interval", 0, "interval between traffic surges (0 to disable)")
	flag.DurationVar(&surgeDuration, "surge-duration", 0, "duration of each surge window")
	flag.Float64Var(&surgeMultiplier, "surge-multiplier", 2.0, "requests multiplier during surge period")
	flag.Float64Var(&jitter, "jitter", 0.0, "random jitter factor for request spacing")
	flag.Parse()

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	var err error
	logger, err = observability.InitLoggerWithLevel(level, "traffic-simulator")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	httpClient = &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			MaxConnsPerHost:       50,
			IdleConnTimeout:       90 * time.Second,
		},
	}

	if label == "" {
		label = time.Now().Format(time.RFC3339)
	}

	if flush {
		if err := flushCounters(); err != nil {
			logger.Fatal("flush redis", zap.Error(err))
		}
	}

	units, err := parseUnits(unitsCSV)
	if err != nil {
		logger.Fatal("parse units", zap.Error(err))
	}
	for _, u := range units {
		if err := registerUnit(u); err != nil {
			logger.Fatal("register ad unit", zap.String("ad_unit_id", u.ID), zap.Error(err))
		}
	}

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	var rmu sync.Mutex
	pick := func(list []string) string {
		rmu.Lock()
		defer rmu.Unlock()
		return list[r.Intn(len(list))]
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, conc)
	done := make(chan struct{})

	var baseInterval time.Duration
	if rate > 0 {
		baseInterval = time.Duration(float64(time.Second) / rate)
	} else if duration > 0 && totalReq > 0 {
		baseInterval = duration / time.Duration(totalReq)
	}

	start := time.Now()
	next := start

	if stats {
		go func() {
			ticker := time.NewTicker(statsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					printStats()
				case <-done:
					return
				}
			}
		}()
	}
	for i := 0; ; i++ {
		if totalReq > 0 && i >= totalReq {
			break
		}
		if duration > 0 && time.Since(start) >= duration {
			break
		}
		if baseInterval > 0 {
			effective := baseInterval
			if surgeInterval > 0 && surgeDuration > 0 && surgeMultiplier > 0 {
				if time.Since(start)%surgeInterval < surgeDuration {
					effective = time.Duration(float64(effective) / surgeMultiplier)
				}
			}
			if jitter > 0 {
				rmu.Lock()
				jf := 1 + (r.Float64()*2-1)*jitter
				rmu.Unlock()
				effective = time.Duration(float64(effective) * max(jf, 0.1))
			}
			if now := time.Now(); now.Before(next) {
				time.Sleep(next.Sub(now))
			}
			next = next.Add(effective)
		}
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			atomic.AddUint64(&countSent, 1)
			o := requestBids(pick(userAgents), pick(userIPs))
			atomic.AddUint64(&counts[o], 1)
		}()
	}
	wg.Wait()
	close(done)
	printStats()
}

// parseUnits reads "id:WxH|WxH:device,..." into ad units.
func parseUnits(s string) ([]models.AdUnit, error) {
	var out []models.AdUnit
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("unit %q: want id:WxH:deviceType", item)
		}
		u := models.AdUnit{ID: parts[0], DeviceType: models.DeviceType(parts[2])}
		for _, dim := range strings.Split(parts[1], "|") {
			w, h, ok := strings.Cut(dim, "x")
			if !ok {
				return nil, fmt.Errorf("unit %q: bad size %q", item, dim)
			}
			width, err := strconv.Atoi(w)
			if err != nil {
				return nil, fmt.Errorf("unit %q: width: %w", item, err)
			}
			height, err := strconv.Atoi(h)
			if err != nil {
				return nil, fmt.Errorf("unit %q: height: %w", item, err)
			}
			u.Sizes = append(u.Sizes, models.Size{Width: width, Height: height})
		}
		if err := u.Validate(); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// registerUnit posts u to /ad-unit. A duplicate is not an error so the
// simulator can be rerun against the same broker.
func registerUnit(u models.AdUnit) error {
	blob, err := json.Marshal(u)
	if err != nil {
		return err
	}
	resp, err := httpClient.Post(server+"/ad-unit", "application/json", bytes.NewReader(blob))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	var msg struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&msg)
	switch {
	case resp.StatusCode == http.StatusCreated:
		logger.Info("ad unit registered", zap.String("ad_unit_id", u.ID))
	case resp.StatusCode == http.StatusBadRequest && msg.Message == "Ad unit already exists":
		logger.Debug("ad unit already registered", zap.String("ad_unit_id", u.ID))
	default:
		return fmt.Errorf("status %d: %s", resp.StatusCode, msg.Message)
	}
	return nil
}

func requestBids(ua, ip string) outcome {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/request-bids", nil)
	if err != nil {
		logger.Error("request build error", zap.Error(err))
		return outcomeError
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("X-Forwarded-For", ip)

	resp, err := httpClient.Do(req)
	if err != nil {
		logger.Error("request-bids error", zap.Error(err))
		return outcomeError
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Error("read body error", zap.Error(err))
		return outcomeError
	}
	return classify(resp.StatusCode, body, fallbackHTML)
}

// classify maps a /request-bids response to an outcome. Degraded responses
// carry an error field whatever status the broker is configured to use.
func classify(status int, body []byte, fallback string) outcome {
	var res bidsResponse
	if err := json.Unmarshal(body, &res); err != nil {
		logger.Error("decode error", zap.Int("status", status), zap.String("body", strings.TrimSpace(string(body))))
		return outcomeError
	}
	switch {
	case res.Error != "":
		logger.Debug("degraded", zap.String("auction_id", res.AuctionID), zap.Int("status", status))
		return outcomeDegraded
	case status != http.StatusOK:
		return outcomeError
	case res.AdHTML == fallback:
		return outcomeFallback
	}
	logger.Debug("win", zap.String("auction_id", res.AuctionID))
	return outcomeWin
}

// flushCounters deletes the broker's daily analytics counters.
func flushCounters() error {
	addr := redisAddr
	if addr == "" {
		addr = config.Load().RedisAddr
	}
	ctx := context.Background()
	store, err := db.InitRedis(ctx, addr)
	if err != nil {
		return err
	}
	defer store.Close()

	deleted := 0
	iter := store.Client.Scan(ctx, 0, "analytics:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := store.Client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return err
	}
	logger.Info("redis analytics counters flushed", zap.String("addr", addr), zap.Int("keys_deleted", deleted))
	return nil
}

func printStats() {
	logger.Info("stats",
		zap.String("run", label),
		zap.Uint64("sent", atomic.LoadUint64(&countSent)),
		zap.Uint64("win", atomic.LoadUint64(&counts[outcomeWin])),
		zap.Uint64("fallback", atomic.LoadUint64(&counts[outcomeFallback])),
		zap.Uint64("degraded", atomic.LoadUint64(&counts[outcomeDegraded])),
		zap.Uint64("errors", atomic.LoadUint64(&counts[outcomeError])))
}
