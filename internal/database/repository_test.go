package database

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"arbscanner/internal/model"
)

var (
	pool *pgxpool.Pool
)

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpassword",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		log.Fatalf("could not start postgres container: %s", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			log.Printf("could not stop postgres container: %s", err)
		}
	}()

	host, err := pgContainer.Host(ctx)
	if err != nil {
		log.Fatalf("could not get container host: %s", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		log.Fatalf("could not get mapped port: %s", err)
	}

	connStr := "postgres://testuser:testpassword@" + host + ":" + port.Port() + "/testdb?sslmode=disable"

	repo, err := NewPostgresRepository(ctx, connStr)
	if err != nil {
		log.Fatalf("could not connect to database: %s", err)
	}
	pool = repo.Pool
	defer pool.Close()

	if err := repo.Migrate(ctx); err != nil {
		log.Fatalf("could not migrate: %s", err)
	}

	return m.Run()
}

func tradeAt(at time.Time, net string) model.TradeRecord {
	return model.TradeRecord{
		ID:           uuid.NewString(),
		Symbol:       "BTC/USDT",
		BuyExchange:  "kraken",
		SellExchange: "binance",
		Route:        "kraken → binance",
		BuyPrice:     decimal.RequireFromString("60000.5"),
		SellPrice:    decimal.RequireFromString("60300.25"),
		Amount:       decimal.RequireFromString("0.001666652778"),
		PositionSize: decimal.NewFromInt(100),
		NetProfitPct: decimal.RequireFromString(net),
		ProfitUSD:    decimal.RequireFromString(net),
		Mode:         model.ModeSimulated,
		Status:       model.StatusSimulated,
		ExecutedAt:   at,
	}
}

func TestPostgresRepository_LogTrade(t *testing.T) {
	ctx := context.Background()
	repo := &PostgresRepository{Pool: pool}
	_, err := pool.Exec(ctx, "TRUNCATE trade_records")
	require.NoError(t, err)

	trade := tradeAt(time.Now().UTC().Truncate(time.Microsecond), "0.3")
	trade.Reason = "paper"

	err = repo.LogTrade(ctx, trade)
	assert.NoError(t, err)

	var symbol, buyExchange, sellExchange, status string
	var buyPrice decimal.Decimal
	err = pool.QueryRow(ctx, "SELECT symbol, buy_exchange, sell_exchange, status, buy_price FROM trade_records WHERE id = $1", trade.ID).Scan(
		&symbol, &buyExchange, &sellExchange, &status, &buyPrice,
	)
	require.NoError(t, err)
	assert.Equal(t, trade.Symbol, symbol)
	assert.Equal(t, trade.BuyExchange, buyExchange)
	assert.Equal(t, trade.SellExchange, sellExchange)
	assert.Equal(t, string(model.StatusSimulated), status)
	assert.True(t, trade.BuyPrice.Equal(buyPrice))

	assert.Error(t, repo.LogTrade(ctx, trade), "ids are unique")
}

func TestPostgresRepository_ListTrades(t *testing.T) {
	ctx := context.Background()
	repo := &PostgresRepository{Pool: pool}
	_, err := pool.Exec(ctx, "TRUNCATE trade_records")
	require.NoError(t, err)

	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, net := range []string{"0.1", "0.2", "0.3"} {
		trade := tradeAt(t0.Add(time.Duration(i)*time.Minute), net)
		if i == 2 {
			trade.Mode = model.ModeReal
			trade.Status = model.StatusRejected
			trade.Reason = "order placement disabled for kraken"
			trade.ProfitUSD = decimal.Zero
		}
		require.NoError(t, repo.LogTrade(ctx, trade))
	}

	all, err := repo.ListTrades(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].NetProfitPct.Equal(decimal.RequireFromString("0.1")))
	assert.True(t, all[2].ExecutedAt.Equal(t0.Add(2*time.Minute)))
	assert.Equal(t, model.ModeSimulated, all[0].Mode)
	assert.Equal(t, "kraken → binance", all[0].Route)
	assert.True(t, all[0].Amount.Equal(decimal.RequireFromString("0.001666652778")))
	assert.Equal(t, model.ModeReal, all[2].Mode)
	assert.Equal(t, model.StatusRejected, all[2].Status)
	assert.Equal(t, "order placement disabled for kraken", all[2].Reason)
	assert.True(t, all[2].ProfitUSD.IsZero())

	recent, err := repo.ListTrades(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.True(t, recent[0].NetProfitPct.Equal(decimal.RequireFromString("0.2")), "oldest of the latest two first")
}
