package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/patrickwarner/adbroker/internal/analytics"
	"github.com/patrickwarner/adbroker/internal/config"
	"github.com/patrickwarner/adbroker/internal/observability"
	"go.uber.org/zap"
)

func main() {
	logger, err := observability.InitLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	var id string
	var dsn string
	var timeout time.Duration
	flag.StringVar(&id, "id", "", "auction ID")
	flag.StringVar(&dsn, "dsn", "", "ClickHouse DSN (defaults to CLICKHOUSE_DSN)")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "query timeout")
	flag.Parse()

	if id == "" {
		fmt.Fprintln(os.Stderr, "id required")
		os.Exit(1)
	}
	if dsn == "" {
		dsn = config.Load().ClickHouseDSN
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ch, err := analytics.InitClickHouse(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect clickhouse: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := ch.Close(); err != nil {
			logger.Warn("close clickhouse", zap.Error(err))
		}
	}()

	events, err := ch.EventsByAuctionID(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query events: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("events loaded", zap.String("auction_id", id), zap.Int("count", len(events)))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(events); err != nil {
		fmt.Fprintf(os.Stderr, "encode events: %v\n", err)
		os.Exit(1)
	}
}
