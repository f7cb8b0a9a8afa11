package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"
)

const createEventsTable = `CREATE TABLE IF NOT EXISTS auction_events (
    timestamp   DateTime64(3),
    kind        LowCardinality(String),
    auction_id  String,
    bidder      String,
    price       Float64,
    ad_unit_id  String,
    error       String,
    device_type Nullable(String),
    country     Nullable(String)
) ENGINE=MergeTree() ORDER BY (kind, timestamp)`

// ClickHouse stores events in the auction_events table.
type ClickHouse struct {
	DB *sql.DB
}

// InitClickHouse connects to ClickHouse and ensures the events table exists.
func InitClickHouse(ctx context.Context, dsn string) (*ClickHouse, error) {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(25)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, createEventsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse create table: %w", err)
	}
	zap.L().Info("Connected to ClickHouse")
	return &ClickHouse{DB: db}, nil
}

func (c *ClickHouse) Name() string { return "clickhouse" }

// Write inserts one row. ErrUnavailable is returned when no DB is configured.
func (c *ClickHouse) Write(ctx context.Context, ev Event) error {
	if c == nil || c.DB == nil {
		return ErrUnavailable
	}
	const stmt = `INSERT INTO auction_events (timestamp, kind, auction_id, bidder, price, ad_unit_id, error, device_type, country) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := c.DB.ExecContext(ctx, stmt, ev.Timestamp, string(ev.Kind), ev.AuctionID, ev.Bidder, ev.Price, ev.AdUnitID, ev.Error,
		nullString(ev.Device), nullString(ev.Country)); err != nil {
		return fmt.Errorf("insert %s event: %w", ev.Kind, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Close terminates the ClickHouse connection.
func (c *ClickHouse) Close() error {
	if c != nil && c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// EventsByAuctionID returns all events of an auction ordered by time.
func (c *ClickHouse) EventsByAuctionID(ctx context.Context, id string) ([]Event, error) {
	if c == nil || c.DB == nil {
		return nil, ErrUnavailable
	}
	const query = `SELECT timestamp, kind, auction_id, bidder, price, ad_unit_id, error, device_type, country FROM auction_events WHERE auction_id=? ORDER BY timestamp`
	rows, err := c.DB.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("rows close", zap.Error(err))
		}
	}()

	var events []Event
	for rows.Next() {
		var (
			ev              Event
			kind            string
			ts              time.Time
			device, country sql.NullString
		)
		if err := rows.Scan(&ts, &kind, &ev.AuctionID, &ev.Bidder, &ev.Price, &ev.AdUnitID, &ev.Error, &device, &country); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind, ev.Timestamp, ev.Device, ev.Country = Kind(kind), ts, device.String, country.String
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}
