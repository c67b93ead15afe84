package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"arbscanner/internal/model"
)

// Repository defines the standard interface for trade persistence.
type Repository interface {
	Migrate(ctx context.Context) error
	LogTrade(ctx context.Context, trade model.TradeRecord) error
	ListTrades(ctx context.Context, limit int) ([]model.TradeRecord, error)
}

const createTradeRecordsSQL = `
CREATE TABLE IF NOT EXISTS trade_records (
	id             VARCHAR(36) PRIMARY KEY,
	symbol         VARCHAR(32) NOT NULL,
	buy_exchange   VARCHAR(50) NOT NULL,
	sell_exchange  VARCHAR(50) NOT NULL,
	route          VARCHAR(120) NOT NULL,
	buy_price      NUMERIC(30, 12) NOT NULL,
	sell_price     NUMERIC(30, 12) NOT NULL,
	amount         NUMERIC(30, 12) NOT NULL,
	position_size  NUMERIC(30, 12) NOT NULL,
	net_profit_pct NUMERIC(30, 12) NOT NULL,
	profit_usd     NUMERIC(30, 12) NOT NULL,
	mode           VARCHAR(16) NOT NULL,
	status         VARCHAR(16) NOT NULL,
	reason         TEXT NOT NULL DEFAULT '',
	executed_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS trade_records_executed_at_idx ON trade_records (executed_at);`

// PostgresRepository stores trade records in PostgreSQL.
type PostgresRepository struct {
	Pool *pgxpool.Pool
}

// NewPostgresRepository opens a pool on dsn and checks the connection.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &PostgresRepository{Pool: pool}, nil
}

// Migrate creates the trade_records table if it does not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, createTradeRecordsSQL); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func (r *PostgresRepository) LogTrade(ctx context.Context, trade model.TradeRecord) error {
	_, err := r.Pool.Exec(ctx, `
		INSERT INTO trade_records (id, symbol, buy_exchange, sell_exchange, route, buy_price, sell_price, amount, position_size, net_profit_pct, profit_usd, mode, status, reason, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		trade.ID, trade.Symbol, trade.BuyExchange, trade.SellExchange, trade.Route,
		trade.BuyPrice, trade.SellPrice, trade.Amount, trade.PositionSize,
		trade.NetProfitPct, trade.ProfitUSD, string(trade.Mode), string(trade.Status),
		trade.Reason, trade.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade_record %s: %w", trade.ID, err)
	}
	return nil
}

// ListTrades returns the most recent limit trades, oldest first. A limit
// <= 0 returns every trade. Columns map onto TradeRecord by its db tags.
func (r *PostgresRepository) ListTrades(ctx context.Context, limit int) ([]model.TradeRecord, error) {
	query := `
		SELECT id, symbol, buy_exchange, sell_exchange, route, buy_price, sell_price, amount, position_size, net_profit_pct, profit_usd, mode, status, reason, executed_at
		FROM (
			SELECT * FROM trade_records ORDER BY executed_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	query += `
		) recent ORDER BY executed_at ASC, id ASC`

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trade_records: %w", err)
	}
	trades, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.TradeRecord])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trade_records: %w", err)
	}
	return trades, nil
}

// Close releases the pool.
func (r *PostgresRepository) Close() {
	r.Pool.Close()
}
