package quote

import (
	"testing"
	"time"

	"arbscanner/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func q(symbol, exchange string, bid, ask float64, at time.Time) model.Quote {
	return model.Quote{
		Symbol:     symbol,
		Exchange:   exchange,
		Bid:        decimal.NewFromFloat(bid),
		Ask:        decimal.NewFromFloat(ask),
		Volume24h:  decimal.NewFromInt(20000),
		ObservedAt: at,
	}
}

func TestStore_UpsertLastWriteWins(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore()

	s.Upsert(q("BTC/USDT", "binance", 100, 101, now.Add(-time.Second)))
	s.Upsert(q("BTC/USDT", "binance", 102, 103, now))

	fresh := s.Fresh("BTC/USDT", 5*time.Second, now)
	require.Len(t, fresh, 1)
	assert.True(t, fresh[0].Bid.Equal(decimal.NewFromInt(102)))
	assert.Equal(t, 1, s.Len())
}

func TestStore_FreshExcludesStaleWithoutErasing(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore()

	s.Upsert(q("BTC/USDT", "kraken", 100, 101, now.Add(-6*time.Second)))
	s.Upsert(q("BTC/USDT", "binance", 100, 101, now.Add(-5*time.Second)))

	fresh := s.Fresh("BTC/USDT", 5*time.Second, now)
	require.Len(t, fresh, 1)
	assert.Equal(t, "binance", fresh[0].Exchange)

	assert.Equal(t, 2, s.Len(), "stale quote must stay stored")
	assert.Len(t, s.Fresh("BTC/USDT", 10*time.Second, now), 2)
}

func TestStore_FreshOrderedByExchange(t *testing.T) {
	now := time.Now()
	s := NewStore()
	for _, ex := range []string{"okx", "binance", "kraken"} {
		s.Upsert(q("ETH/USDT", ex, 10, 11, now))
	}
	s.Upsert(q("BTC/USDT", "binance", 10, 11, now))

	fresh := s.Fresh("ETH/USDT", time.Second, now)
	require.Len(t, fresh, 3)
	assert.Equal(t, []string{"binance", "kraken", "okx"}, []string{fresh[0].Exchange, fresh[1].Exchange, fresh[2].Exchange})
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, s.Symbols())
}

func TestStore_AbsentSymbol(t *testing.T) {
	s := NewStore()
	assert.Empty(t, s.Fresh("DOGE/USDT", time.Minute, time.Now()))
	assert.Empty(t, s.Snapshot())
}
