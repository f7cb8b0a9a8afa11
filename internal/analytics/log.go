package analytics

import (
	"context"

	"go.uber.org/zap"
)

// LogRecorder writes events as structured log lines.
type LogRecorder struct {
	logger *zap.Logger
}

// NewLogRecorder returns a recorder logging through logger.
func NewLogRecorder(logger *zap.Logger) *LogRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogRecorder{logger: logger.Named("analytics")}
}

func (l *LogRecorder) Name() string { return "log" }

func (l *LogRecorder) Write(_ context.Context, ev Event) error {
	fields := []zap.Field{
		zap.String("kind", string(ev.Kind)),
		zap.String("auction_id", ev.AuctionID),
		zap.Time("event_ts", ev.Timestamp),
	}
	if ev.Bidder != "" {
		fields = append(fields, zap.String("bidder", ev.Bidder), zap.Float64("price", ev.Price), zap.String("ad_unit_id", ev.AdUnitID))
	}
	if ev.Error != "" {
		fields = append(fields, zap.String("error", ev.Error))
	}
	if ev.Device != "" {
		fields = append(fields, zap.String("device_type", ev.Device))
	}
	if ev.Country != "" {
		fields = append(fields, zap.String("country", ev.Country))
	}
	l.logger.Info("auction event", fields...)
	return nil
}

func (l *LogRecorder) Close() error { return nil }
