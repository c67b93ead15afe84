// Package redis mirrors the scanner's latest quotes and opportunities into
// Redis for dashboards, using go-redis/v9.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"arbscanner/internal/model"
)

// OpportunitiesChannel is the Pub/Sub channel carrying each cycle's opportunities.
const OpportunitiesChannel = "opportunities"

// ErrNotFound is returned when a mirrored quote does not exist or has expired.
var ErrNotFound = errors.New("redis: not found")

// Config holds connection parameters for the mirror.
type Config struct {
	Addr     string
	Password string
	DB       int
	QuoteTTL time.Duration
}

// Mirror writes quotes as hashes at "quote:{exchange}:{symbol}" with fields
// bid, ask, volume and ts (Unix nanoseconds), each expiring after QuoteTTL.
type Mirror struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewMirror connects to Redis and pings it.
func NewMirror(ctx context.Context, cfg Config) (*Mirror, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	ttl := cfg.QuoteTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Mirror{rdb: rdb, ttl: ttl}, nil
}

func quoteKey(exchangeID, symbol string) string {
	return "quote:" + exchangeID + ":" + symbol
}

// PublishQuotes writes every quote in one pipeline.
func (m *Mirror) PublishQuotes(ctx context.Context, quotes []model.Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	pipe := m.rdb.Pipeline()
	for _, q := range quotes {
		key := quoteKey(q.Exchange, q.Symbol)
		pipe.HSet(ctx, key, map[string]interface{}{
			"bid":    q.Bid.String(),
			"ask":    q.Ask.String(),
			"volume": q.Volume24h.String(),
			"ts":     strconv.FormatInt(q.ObservedAt.UnixNano(), 10),
		})
		pipe.Expire(ctx, key, m.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: mirror %d quotes: %w", len(quotes), err)
	}
	return nil
}

// PublishOpportunities sends the cycle's opportunities as a JSON array.
// An empty cycle publishes an empty array so subscribers can clear state.
func (m *Mirror) PublishOpportunities(ctx context.Context, opps []model.Opportunity) error {
	if opps == nil {
		opps = []model.Opportunity{}
	}
	payload, err := json.Marshal(opps)
	if err != nil {
		return fmt.Errorf("redis: encode opportunities: %w", err)
	}
	if err := m.rdb.Publish(ctx, OpportunitiesChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish opportunities: %w", err)
	}
	return nil
}

// Quote reads a mirrored quote back. It is the read side for dashboards and
// other processes sharing the Redis instance; the scanner itself only writes.
func (m *Mirror) Quote(ctx context.Context, exchangeID, symbol string) (model.Quote, error) {
	vals, err := m.rdb.HGetAll(ctx, quoteKey(exchangeID, symbol)).Result()
	if err != nil {
		return model.Quote{}, fmt.Errorf("redis: get quote %s %s: %w", exchangeID, symbol, err)
	}
	if len(vals) == 0 {
		return model.Quote{}, ErrNotFound
	}

	q := model.Quote{Symbol: symbol, Exchange: exchangeID}
	for field, dst := range map[string]*decimal.Decimal{"bid": &q.Bid, "ask": &q.Ask, "volume": &q.Volume24h} {
		d, err := decimal.NewFromString(vals[field])
		if err != nil {
			return model.Quote{}, fmt.Errorf("redis: parse %s of %s %s: %w", field, exchangeID, symbol, err)
		}
		*dst = d
	}
	ts, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return model.Quote{}, fmt.Errorf("redis: parse ts of %s %s: %w", exchangeID, symbol, err)
	}
	q.ObservedAt = time.Unix(0, ts)
	return q, nil
}

// Subscribe returns a subscription to the opportunities channel for external
// consumers. Each message is the JSON array published by PublishOpportunities.
func (m *Mirror) Subscribe(ctx context.Context) *redis.PubSub {
	return m.rdb.Subscribe(ctx, OpportunitiesChannel)
}

// Close closes the Redis connection.
func (m *Mirror) Close() error {
	return m.rdb.Close()
}
