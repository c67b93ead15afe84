package arbitrage

import (
	"context"
	"log/slog"
	"time"

	"arbscanner/internal/collector"
	"arbscanner/internal/model"
	"arbscanner/internal/quote"
)

// QuoteCollector refreshes the quote store once per cycle.
type QuoteCollector interface {
	Collect(ctx context.Context) collector.Report
}

// Publisher mirrors each cycle's state to an external observer.
type Publisher interface {
	PublishQuotes(ctx context.Context, quotes []model.Quote) error
	PublishOpportunities(ctx context.Context, opps []model.Opportunity) error
}

// EngineConfig controls the pacing of the scan loop.
type EngineConfig struct {
	ScanInterval      time.Duration
	StatusInterval    time.Duration
	ExecuteTopN       int
	CooldownRetention time.Duration // cooldown entries older than this are pruned
}

// Engine runs the collect, scan, execute cycle until its context is cancelled.
type Engine struct {
	cfg       EngineConfig
	collector QuoteCollector
	quotes    *quote.Store
	scanner   *Scanner
	simulator *Simulator
	cooldown  *CooldownLedger
	publisher Publisher
	stats     *Stats
	now       func() time.Time
	logger    *slog.Logger
}

// NewEngine creates an Engine. publisher may be nil.
func NewEngine(cfg EngineConfig, c QuoteCollector, quotes *quote.Store, scanner *Scanner, simulator *Simulator, cooldown *CooldownLedger, publisher Publisher, now func() time.Time, logger *slog.Logger) *Engine {
	if now == nil {
		now = time.Now
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = time.Second
	}
	return &Engine{
		cfg:       cfg,
		collector: c,
		quotes:    quotes,
		scanner:   scanner,
		simulator: simulator,
		cooldown:  cooldown,
		publisher: publisher,
		stats:     NewStats(now()),
		now:       now,
		logger:    logger.With("component", "engine"),
	}
}

// Stats returns the engine's running counters.
func (e *Engine) Stats() *Stats {
	return e.stats
}

// Run executes cycles every ScanInterval. Cancellation is observed between
// cycles; the final statistics are logged on the way out.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("Starting scan loop",
		"scanInterval", e.cfg.ScanInterval,
		"executeTopN", e.cfg.ExecuteTopN,
	)

	var status <-chan time.Time
	if e.cfg.StatusInterval > 0 {
		ticker := time.NewTicker(e.cfg.StatusInterval)
		defer ticker.Stop()
		status = ticker.C
	}

	next := time.NewTimer(0)
	defer next.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logStats("Final statistics")
			return nil
		case <-status:
			e.logStats("Status")
		case <-next.C:
			e.RunCycle(ctx)
			next.Reset(e.cfg.ScanInterval)
		}
	}
}

// RunCycle performs one collect, scan, publish, execute and prune pass and
// returns the trades it produced.
func (e *Engine) RunCycle(ctx context.Context) []model.TradeRecord {
	report := e.collector.Collect(ctx)
	e.stats.recordCollect(report)
	if ctx.Err() != nil {
		return nil
	}

	now := e.now()
	opps := e.scanner.Scan(now)
	e.stats.recordScan(opps)
	e.publish(ctx, opps)

	if len(opps) == 0 {
		e.logger.Debug("No opportunities this cycle", "quotes", e.quotes.Len())
	} else {
		best := opps[0]
		e.logger.Info("Opportunities found",
			"count", len(opps),
			"bestRoute", best.Route().String(),
			"bestNetProfitPct", best.NetProfitPct.StringFixed(4),
		)
	}

	n := max(0, min(len(opps), e.cfg.ExecuteTopN))
	var trades []model.TradeRecord
	for _, opp := range opps[:n] {
		rec, err := e.simulator.Execute(ctx, opp)
		e.stats.recordTrade(rec)
		trades = append(trades, rec)
		if err != nil {
			e.stats.recordError()
			e.logger.Error("Failed to log trade", "tradeID", rec.ID, "error", err)
		}
	}

	if e.cfg.CooldownRetention > 0 {
		if pruned := e.cooldown.Prune(now, e.cfg.CooldownRetention); pruned > 0 {
			e.logger.Debug("Pruned cooldown entries", "count", pruned)
		}
	}
	return trades
}

func (e *Engine) publish(ctx context.Context, opps []model.Opportunity) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishQuotes(ctx, e.quotes.Snapshot()); err != nil {
		e.logger.Warn("Failed to publish quotes", "error", err)
	}
	if err := e.publisher.PublishOpportunities(ctx, opps); err != nil {
		e.logger.Warn("Failed to publish opportunities", "error", err)
	}
}

func (e *Engine) logStats(msg string) {
	s := e.stats.Snapshot()
	attrs := []any{
		"uptime", e.now().Sub(s.StartedAt).Round(time.Second),
		"scans", s.Scans,
		"opportunitiesFound", s.OpportunitiesFound,
		"tradesExecuted", s.TradesExecuted,
		"tradesFailed", s.TradesFailed,
		"totalProfitUSD", s.TotalProfitUSD.StringFixed(2),
		"quotesFetched", s.QuotesFetched,
		"quotesFailed", s.QuotesFailed,
		"quotesRejected", s.QuotesRejected,
		"errors", s.Errors,
		"trackedRoutes", e.cooldown.Len(),
	}
	if s.BestOpportunity != nil {
		attrs = append(attrs,
			"bestRoute", s.BestOpportunity.Route().String(),
			"bestNetProfitPct", s.BestOpportunity.NetProfitPct.StringFixed(4),
		)
	}
	for id, bal := range e.simulator.Balances() {
		attrs = append(attrs, "balance."+id, bal.StringFixed(2))
	}
	e.logger.Info(msg, attrs...)
}
