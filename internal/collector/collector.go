// Package collector pulls quotes from every exchange source into the quote store.
package collector

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"arbscanner/internal/exchange"
	"arbscanner/internal/model"
	"arbscanner/internal/quote"
)

// Report counts the outcome of one collection cycle.
type Report struct {
	Fetched  int
	Failed   int
	Rejected int
}

// Collector fans quote fetches out to all sources once per cycle.
type Collector struct {
	sources      []exchange.QuoteSource
	store        *quote.Store
	symbols      []string
	fetchTimeout time.Duration
	logger       *slog.Logger
}

// New creates a Collector. The store is written only by this collector.
func New(sources []exchange.QuoteSource, store *quote.Store, symbols []string, fetchTimeout time.Duration, logger *slog.Logger) *Collector {
	return &Collector{
		sources:      sources,
		store:        store,
		symbols:      symbols,
		fetchTimeout: fetchTimeout,
		logger:       logger.With("component", "collector"),
	}
}

// Connect starts every source. A source that fails to connect is logged and
// simply yields no quotes.
func (c *Collector) Connect(ctx context.Context) {
	for _, src := range c.sources {
		if err := src.Connect(ctx, c.symbols); err != nil {
			c.logger.Error("Failed to connect exchange", "exchange", src.Name(), "error", err)
			continue
		}
		c.logger.Info("Exchange connected", "exchange", src.Name(), "symbols", len(c.symbols))
	}
}

// Disconnect stops every source.
func (c *Collector) Disconnect() {
	for _, src := range c.sources {
		if err := src.Disconnect(); err != nil {
			c.logger.Warn("Failed to disconnect exchange", "exchange", src.Name(), "error", err)
		}
	}
}

// Collect fetches every (source, symbol) pair concurrently and returns once all
// fetches have completed or timed out. Failed fetches leave the previous quote
// in place; staleness is enforced by the scanner.
func (c *Collector) Collect(ctx context.Context) Report {
	var fetched, failed, rejected atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range c.sources {
		for _, symbol := range c.symbols {
			g.Go(func() error {
				q, err := c.fetch(gctx, src, symbol)
				if err != nil {
					failed.Add(1)
					if errors.Is(err, exchange.ErrQuoteUnavailable) || errors.Is(err, context.DeadlineExceeded) {
						c.logger.Debug("Quote unavailable", "exchange", src.Name(), "symbol", symbol, "error", err)
					} else {
						c.logger.Warn("Quote fetch failed", "exchange", src.Name(), "symbol", symbol, "error", err)
					}
					return nil
				}
				if err := q.Validate(); err != nil {
					rejected.Add(1)
					c.logger.Warn("Discarding invalid quote", "exchange", src.Name(), "symbol", symbol, "error", err)
					return nil
				}
				if gctx.Err() != nil {
					return nil
				}
				c.store.Upsert(q)
				fetched.Add(1)
				return nil
			})
		}
	}
	_ = g.Wait()

	return Report{
		Fetched:  int(fetched.Load()),
		Failed:   int(failed.Load()),
		Rejected: int(rejected.Load()),
	}
}

func (c *Collector) fetch(ctx context.Context, src exchange.QuoteSource, symbol string) (model.Quote, error) {
	fctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	type result struct {
		q   model.Quote
		err error
	}
	ch := make(chan result, 1)
	go func() {
		q, err := src.FetchQuote(fctx, symbol)
		ch <- result{q: q, err: err}
	}()

	select {
	case <-fctx.Done():
		return model.Quote{}, fctx.Err()
	case r := <-ch:
		if r.err != nil {
			return model.Quote{}, r.err
		}
		// keys come from the request, not the adapter
		r.q.Symbol = symbol
		r.q.Exchange = src.Name()
		return r.q, nil
	}
}
