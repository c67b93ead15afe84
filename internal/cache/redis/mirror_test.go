package redis

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"arbscanner/internal/model"
)

var addr string

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		log.Fatalf("could not start redis container: %s", err)
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			log.Printf("could not stop redis container: %s", err)
		}
	}()

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("could not get container host: %s", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		log.Fatalf("could not get mapped port: %s", err)
	}
	addr = host + ":" + port.Port()

	return m.Run()
}

func newMirror(t *testing.T, ttl time.Duration) *Mirror {
	t.Helper()
	m, err := NewMirror(context.Background(), Config{Addr: addr, QuoteTTL: ttl})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestMirror_PublishQuotes(t *testing.T) {
	ctx := context.Background()
	m := newMirror(t, time.Minute)
	at := time.Date(2024, 5, 1, 12, 0, 0, 123, time.UTC)

	q := model.Quote{
		Symbol:     "BTC/USDT",
		Exchange:   "binance",
		Bid:        decimal.RequireFromString("60000.1"),
		Ask:        decimal.RequireFromString("60000.2"),
		Volume24h:  decimal.RequireFromString("1234567.89"),
		ObservedAt: at,
	}
	require.NoError(t, m.PublishQuotes(ctx, []model.Quote{q}))

	got, err := m.Quote(ctx, "binance", "BTC/USDT")
	require.NoError(t, err)
	assert.True(t, got.Bid.Equal(q.Bid))
	assert.True(t, got.Ask.Equal(q.Ask))
	assert.True(t, got.Volume24h.Equal(q.Volume24h))
	assert.True(t, got.ObservedAt.Equal(at))

	ttl, err := m.rdb.TTL(ctx, quoteKey("binance", "BTC/USDT")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	_, err = m.Quote(ctx, "kraken", "BTC/USDT")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMirror_PublishOpportunities(t *testing.T) {
	ctx := context.Background()
	m := newMirror(t, time.Minute)

	sub := m.Subscribe(ctx)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	opp := model.Opportunity{
		Symbol:       "BTC/USDT",
		BuyExchange:  "kraken",
		SellExchange: "binance",
		NetProfitPct: decimal.RequireFromString("0.3"),
	}
	require.NoError(t, m.PublishOpportunities(ctx, []model.Opportunity{opp}))

	select {
	case msg := <-sub.Channel():
		var got []model.Opportunity
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "kraken", got[0].BuyExchange)
		assert.True(t, got[0].NetProfitPct.Equal(opp.NetProfitPct))
	case <-time.After(5 * time.Second):
		t.Fatal("no opportunities message received")
	}
}
