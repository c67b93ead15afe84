package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"arbscanner/internal/exchange"
	"arbscanner/internal/model"
)

// TradeLog is the append-only sink for executed trades.
type TradeLog interface {
	LogTrade(ctx context.Context, trade model.TradeRecord) error
}

// SimulatorConfig fixes the notional and the trading mode.
type SimulatorConfig struct {
	PositionSize decimal.Decimal // quote currency
	Mode         model.TradingMode
}

// Simulator turns opportunities into trade records and paper balances.
// It is the only writer of the cooldown ledger, the balances and the trade log.
type Simulator struct {
	cfg      SimulatorConfig
	cooldown *CooldownLedger
	trades   TradeLog
	placer   exchange.OrderPlacer
	now      func() time.Time
	logger   *slog.Logger

	mu       sync.RWMutex
	balances map[string]decimal.Decimal
}

// NewSimulator creates a Simulator seeded with each profile's initial balance.
// placer may be nil, in which case every trade is simulated.
func NewSimulator(cfg SimulatorConfig, profiles model.ProfileTable, cooldown *CooldownLedger, trades TradeLog, placer exchange.OrderPlacer, now func() time.Time, logger *slog.Logger) (*Simulator, error) {
	if !cfg.PositionSize.IsPositive() {
		return nil, errors.New("simulator: position size must be > 0")
	}
	if cfg.Mode == "" {
		cfg.Mode = model.ModeSimulated
	}
	if now == nil {
		now = time.Now
	}
	balances := make(map[string]decimal.Decimal, profiles.Len())
	for _, id := range profiles.IDs() {
		p, _ := profiles.Lookup(id)
		balances[id] = p.InitialBalance
	}
	return &Simulator{
		cfg:      cfg,
		cooldown: cooldown,
		trades:   trades,
		placer:   placer,
		now:      now,
		logger:   logger.With("component", "simulator"),
		balances: balances,
	}, nil
}

// Execute runs one opportunity. The route is cooled down on every attempt,
// whatever the outcome. Execution failures are recorded, not returned; the
// returned error only reports a trade log failure.
func (s *Simulator) Execute(ctx context.Context, opp model.Opportunity) (model.TradeRecord, error) {
	now := s.now()
	s.cooldown.Record(opp.Route(), now)

	size := s.cfg.PositionSize
	rec := model.TradeRecord{
		ID:           uuid.NewString(),
		Symbol:       opp.Symbol,
		BuyExchange:  opp.BuyExchange,
		SellExchange: opp.SellExchange,
		Route:        opp.BuyExchange + " → " + opp.SellExchange,
		BuyPrice:     opp.BuyPrice,
		SellPrice:    opp.SellPrice,
		Amount:       size.Div(opp.BuyPrice),
		PositionSize: size,
		NetProfitPct: opp.NetProfitPct,
		ProfitUSD:    decimal.Zero,
		ExecutedAt:   now,
	}

	if s.cfg.Mode == model.ModeReal && opp.Executable && s.placer != nil {
		rec = s.executeReal(ctx, opp, rec)
	} else {
		rec = s.executeSimulated(opp, rec)
	}

	if s.trades != nil {
		if err := s.trades.LogTrade(ctx, rec); err != nil {
			return rec, fmt.Errorf("simulator: log trade %s: %w", rec.ID, err)
		}
	}
	return rec, nil
}

func (s *Simulator) executeSimulated(opp model.Opportunity, rec model.TradeRecord) model.TradeRecord {
	size := rec.PositionSize
	if bal := s.Balance(opp.BuyExchange); bal.LessThan(size) {
		s.logger.Warn("Insufficient simulated balance, trading anyway",
			"exchange", opp.BuyExchange,
			"balance", bal,
			"positionSize", size,
		)
	}

	s.applyBalances(opp, size)
	rec.Mode = model.ModeSimulated
	rec.Status = model.StatusSimulated
	rec.ProfitUSD = size.Mul(opp.NetProfitPct).Div(hundred)

	s.logger.Info("Simulated arbitrage trade",
		"symbol", opp.Symbol,
		"buyExchange", opp.BuyExchange,
		"sellExchange", opp.SellExchange,
		"buyPrice", opp.BuyPrice,
		"sellPrice", opp.SellPrice,
		"netProfitPct", opp.NetProfitPct.StringFixed(4),
		"profitUSD", rec.ProfitUSD.StringFixed(2),
	)
	return rec
}

func (s *Simulator) executeReal(ctx context.Context, opp model.Opportunity, rec model.TradeRecord) model.TradeRecord {
	rec.Mode = model.ModeReal
	size := rec.PositionSize

	if bal := s.Balance(opp.BuyExchange); bal.LessThan(size) {
		rec.Status = model.StatusDeclined
		rec.Reason = fmt.Sprintf("insufficient balance on %s: %s < %s", opp.BuyExchange, bal, size)
		s.logger.Warn("Declining real trade", "route", opp.Route().String(), "reason", rec.Reason)
		return rec
	}

	legs := []model.OrderRequest{
		{Exchange: opp.BuyExchange, Symbol: opp.Symbol, Side: model.SideBuy, Amount: rec.Amount, Price: opp.BuyPrice},
		{Exchange: opp.SellExchange, Symbol: opp.Symbol, Side: model.SideSell, Amount: rec.Amount, Price: opp.SellPrice},
	}
	for _, leg := range legs {
		res, err := s.placer.PlaceOrder(ctx, leg)
		if err != nil && res.Status == "" {
			res.Status = model.OrderError
		}
		if res.Status == model.OrderFilled {
			continue
		}
		reason := res.Reason
		if err != nil {
			reason = err.Error()
		}
		if res.Status == model.OrderRejected {
			rec.Status = model.StatusRejected
		} else {
			rec.Status = model.StatusError
		}
		rec.Reason = fmt.Sprintf("%s leg on %s: %s", leg.Side, leg.Exchange, reason)
		s.logger.Error("Real order failed", "route", opp.Route().String(), "status", rec.Status, "reason", rec.Reason)
		return rec
	}

	s.applyBalances(opp, size)
	rec.Status = model.StatusFilled
	rec.ProfitUSD = size.Mul(opp.NetProfitPct).Div(hundred)
	s.logger.Info("Real arbitrage trade filled", "route", opp.Route().String(), "profitUSD", rec.ProfitUSD.StringFixed(2))
	return rec
}

// applyBalances debits the buy side and credits the sell side with the net
// profit. The legs are not cash-conserving; this is a paper approximation.
func (s *Simulator) applyBalances(opp model.Opportunity, size decimal.Decimal) {
	credit := size.Mul(decimal.NewFromInt(1).Add(opp.NetProfitPct.Div(hundred)))

	s.mu.Lock()
	s.balances[opp.BuyExchange] = s.balances[opp.BuyExchange].Sub(size)
	s.balances[opp.SellExchange] = s.balances[opp.SellExchange].Add(credit)
	s.mu.Unlock()
}

// Balance returns the simulated balance of an exchange.
func (s *Simulator) Balance(exchangeID string) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[exchangeID]
}

// Balances returns a copy of all simulated balances.
func (s *Simulator) Balances() map[string]decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(s.balances))
	for id, b := range s.balances {
		out[id] = b
	}
	return out
}
