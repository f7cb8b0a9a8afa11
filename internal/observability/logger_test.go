package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestGetLogLevel(t *testing.T) {
	t.Setenv("ENV", "dev")
	t.Setenv("LOG_LEVEL", "")
	assert.Equal(t, zap.DebugLevel, getLogLevel())

	t.Setenv("LOG_LEVEL", "warn")
	assert.Equal(t, zap.WarnLevel, getLogLevel())

	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	assert.Equal(t, zap.InfoLevel, getLogLevel())
}

func TestShouldSample_Bounds(t *testing.T) {
	assert.True(t, ShouldSample(1.0))
	assert.False(t, ShouldSample(0))
}

func TestMockMetricsRegistry_Counts(t *testing.T) {
	m := &MockMetricsRegistry{}
	m.IncrementAuctions("won")
	m.IncrementAuctions("won")
	m.IncrementAnalyticsEvents("error", "dropped")
	m.SetRegisteredAdUnits(3)

	assert.Equal(t, 2, m.Count("auctions", "won"))
	assert.Equal(t, 1, m.Count("analytics", "error", "dropped"))
	assert.Equal(t, 0, m.Count("auctions", "no_winner"))
	assert.Equal(t, 3, m.RegisteredAdUnits())
}
