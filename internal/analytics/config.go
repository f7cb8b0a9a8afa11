package analytics

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/patrickwarner/adbroker/internal/db"
)

// Backends holds the connections recorders may need. Nil entries are only
// an error when the matching backend is requested.
type Backends struct {
	Redis         *db.RedisStore
	ClickHouseDSN string
}

// BuildRecorders creates a recorder for each name in names ("log", "redis",
// "clickhouse").
func BuildRecorders(ctx context.Context, names []string, b Backends, logger *zap.Logger) (_ []Recorder, err error) {
	var out []Recorder
	defer func() {
		if err != nil {
			for _, r := range out {
				_ = r.Close()
			}
		}
	}()
	for _, name := range names {
		switch name {
		case "log":
			out = append(out, NewLogRecorder(logger))
		case "redis":
			if b.Redis == nil {
				return nil, fmt.Errorf("analytics backend redis: no redis connection")
			}
			out = append(out, NewRedisRecorder(b.Redis))
		case "clickhouse":
			ch, err := InitClickHouse(ctx, b.ClickHouseDSN)
			if err != nil {
				return nil, fmt.Errorf("analytics backend clickhouse: %w", err)
			}
			out = append(out, ch)
		case "none":
		default:
			return nil, fmt.Errorf("unknown analytics backend %q", name)
		}
	}
	return out, nil
}
