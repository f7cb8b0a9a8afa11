package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/patrickwarner/adbroker/internal/models"
)

// Postgres wraps a postgres DB connection.
type Postgres struct {
	DB *sql.DB
}

// schemaSQL sets up the necessary tables if they don't exist.
const schemaSQL = `CREATE TABLE IF NOT EXISTS ad_units (
    id          TEXT PRIMARY KEY,
    position    INT NOT NULL,
    sizes       TEXT[] NOT NULL,
    device_type TEXT NOT NULL,
    created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_ad_units_position ON ad_units (position);
`

// InitPostgres connects to Postgres with connection pooling configuration.
func InitPostgres(ctx context.Context, dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (*Postgres, error) {
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(
			attribute.String("db.system", "postgresql"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	p := &Postgres{DB: db}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	zap.L().Info("Connected to Postgres with connection pooling",
		zap.Int("max_open_conns", maxOpenConns),
		zap.Int("max_idle_conns", maxIdleConns),
		zap.Duration("conn_max_lifetime", connMaxLifetime))
	return p, nil
}

// Close terminates the Postgres connection.
func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		if err := p.DB.Close(); err != nil {
			zap.L().Error("postgres close", zap.Error(err))
		}
	}
}

// Save replaces the ad_units table with units inside one transaction. The
// position column keeps registration order.
func (p *Postgres) Save(ctx context.Context, units []models.AdUnit) (err error) {
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM ad_units`); err != nil {
		return fmt.Errorf("clear ad_units: %w", err)
	}
	const insert = `INSERT INTO ad_units (id, position, sizes, device_type) VALUES ($1, $2, $3, $4)`
	for i, u := range units {
		if _, err = tx.ExecContext(ctx, insert, u.ID, i, pq.Array(FormatSizes(u.Sizes)), string(u.DeviceType)); err != nil {
			return fmt.Errorf("insert ad unit %s: %w", u.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Load returns ad units in registration order.
func (p *Postgres) Load(ctx context.Context) ([]models.AdUnit, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT id, sizes, device_type FROM ad_units ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query ad_units: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("rows close", zap.Error(err))
		}
	}()

	var units []models.AdUnit
	for rows.Next() {
		var (
			u      models.AdUnit
			sizes  []string
			device string
		)
		if err := rows.Scan(&u.ID, pq.Array(&sizes), &device); err != nil {
			return nil, fmt.Errorf("scan ad unit: %w", err)
		}
		if u.Sizes, err = ParseSizes(sizes); err != nil {
			return nil, fmt.Errorf("ad unit %s: %w", u.ID, err)
		}
		u.DeviceType = models.DeviceType(device)
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return units, nil
}

// FormatSizes encodes sizes as "WxH" strings for the sizes column.
func FormatSizes(sizes []models.Size) []string {
	out := make([]string, len(sizes))
	for i, s := range sizes {
		out[i] = s.String()
	}
	return out
}

// ParseSizes decodes "WxH" strings.
func ParseSizes(in []string) ([]models.Size, error) {
	out := make([]models.Size, 0, len(in))
	for _, s := range in {
		w, h, ok := strings.Cut(s, "x")
		if !ok {
			return nil, fmt.Errorf("bad size %q", s)
		}
		wi, werr := strconv.Atoi(w)
		hi, herr := strconv.Atoi(h)
		if werr != nil || herr != nil {
			return nil, fmt.Errorf("bad size %q", s)
		}
		out = append(out, models.Size{Width: wi, Height: hi})
	}
	return out, nil
}
