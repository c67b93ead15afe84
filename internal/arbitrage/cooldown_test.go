package arbitrage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbscanner/internal/model"
)

func TestCooldownLedger(t *testing.T) {
	l := NewCooldownLedger(discardLogger())
	route := model.Route{Symbol: btc, Buy: "x", Sell: "y"}
	reverse := model.Route{Symbol: btc, Buy: "y", Sell: "x"}
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, l.IsBlocked(route, t0, 30*time.Second), "unknown route is never blocked")

	l.Record(route, t0)
	assert.True(t, l.IsBlocked(route, t0, 30*time.Second))
	assert.True(t, l.IsBlocked(route, t0.Add(29*time.Second), 30*time.Second))
	assert.False(t, l.IsBlocked(route, t0.Add(30*time.Second), 30*time.Second))
	assert.False(t, l.IsBlocked(reverse, t0, 30*time.Second), "direction is part of the route")
	assert.False(t, l.IsBlocked(route, t0, 0), "zero cooldown never blocks")

	at, ok := l.LastTrade(route)
	require.True(t, ok)
	assert.Equal(t, t0, at)
}

func TestCooldownLedger_ClockRegressionOverwrites(t *testing.T) {
	l := NewCooldownLedger(discardLogger())
	route := model.Route{Symbol: btc, Buy: "x", Sell: "y"}
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	l.Record(route, t0)
	l.Record(route, t0.Add(-time.Minute))

	at, ok := l.LastTrade(route)
	require.True(t, ok)
	assert.Equal(t, t0.Add(-time.Minute), at)
	assert.False(t, l.IsBlocked(route, t0, 30*time.Second))
}

func TestCooldownLedger_Prune(t *testing.T) {
	l := NewCooldownLedger(discardLogger())
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	l.Record(model.Route{Symbol: btc, Buy: "x", Sell: "y"}, t0)
	l.Record(model.Route{Symbol: btc, Buy: "y", Sell: "x"}, t0.Add(50*time.Second))
	require.Equal(t, 2, l.Len())

	assert.Equal(t, 1, l.Prune(t0.Add(time.Minute), 30*time.Second))
	assert.Equal(t, 1, l.Len())
	_, ok := l.LastTrade(model.Route{Symbol: btc, Buy: "x", Sell: "y"})
	assert.False(t, ok)
}
