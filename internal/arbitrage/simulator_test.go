package arbitrage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"arbscanner/internal/exchange"
	"arbscanner/internal/model"
)

type MockTradeLog struct {
	mock.Mock
}

func (m *MockTradeLog) LogTrade(ctx context.Context, trade model.TradeRecord) error {
	args := m.Called(ctx, trade)
	return args.Error(0)
}

type MockOrderPlacer struct {
	mock.Mock
}

func (m *MockOrderPlacer) PlaceOrder(ctx context.Context, req model.OrderRequest) (model.OrderResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(model.OrderResult), args.Error(1)
}

func scenarioAOpportunity(now time.Time) model.Opportunity {
	return model.Opportunity{
		Symbol:         btc,
		BuyExchange:    "x",
		SellExchange:   "y",
		BuyPrice:       dec("100"),
		SellPrice:      dec("100.5"),
		GrossSpreadPct: dec("0.5"),
		BuyFeePct:      dec("0.1"),
		SellFeePct:     dec("0.1"),
		NetProfitPct:   dec("0.3"),
		Liquidity:      dec("20000"),
		DiscoveredAt:   now,
	}
}

func newTestSimulator(t *testing.T, mode model.TradingMode, trades TradeLog, placer *MockOrderPlacer, now time.Time, profiles ...model.ExchangeProfile) (*Simulator, *CooldownLedger) {
	t.Helper()
	if len(profiles) == 0 {
		profiles = []model.ExchangeProfile{profile("x", "0.0005", "0.001"), profile("y", "0.0005", "0.001")}
	}
	cooldown := NewCooldownLedger(discardLogger())
	// A nil *MockOrderPlacer must not become a non-nil interface.
	var orders exchange.OrderPlacer
	if placer != nil {
		orders = placer
	}
	cfg := SimulatorConfig{PositionSize: dec("100"), Mode: mode}
	sim, err := NewSimulator(cfg, model.NewProfileTable(profiles...), cooldown, trades, orders, func() time.Time { return now }, discardLogger())
	require.NoError(t, err)
	return sim, cooldown
}

func TestSimulator_ScenarioC(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	trades := new(MockTradeLog)
	trades.On("LogTrade", mock.Anything, mock.MatchedBy(func(r model.TradeRecord) bool {
		return r.Status == model.StatusSimulated && r.Route == "x → y"
	})).Return(nil).Once()

	sim, cooldown := newTestSimulator(t, model.ModeSimulated, trades, nil, now)
	rec, err := sim.Execute(context.Background(), scenarioAOpportunity(now))
	require.NoError(t, err)
	trades.AssertExpectations(t)

	assert.NotEmpty(t, rec.ID)
	assert.True(t, rec.ProfitUSD.Equal(dec("0.3")), "profit %s", rec.ProfitUSD)
	assert.True(t, rec.Amount.Equal(dec("1")))
	assert.True(t, rec.PositionSize.Equal(dec("100")))
	assert.Equal(t, model.ModeSimulated, rec.Mode)
	assert.Equal(t, now, rec.ExecutedAt)

	at, ok := cooldown.LastTrade(model.Route{Symbol: btc, Buy: "x", Sell: "y"})
	require.True(t, ok)
	assert.Equal(t, now, at)

	balances := sim.Balances()
	assert.True(t, balances["x"].Equal(dec("900")), "x %s", balances["x"])
	assert.True(t, balances["y"].Equal(dec("1100.3")), "y %s", balances["y"])
}

func TestSimulator_InsufficientSimulatedBalanceProceeds(t *testing.T) {
	now := time.Now()
	poor := profile("x", "0.0005", "0.001")
	poor.InitialBalance = dec("10")
	trades := new(MockTradeLog)
	trades.On("LogTrade", mock.Anything, mock.Anything).Return(nil)

	sim, _ := newTestSimulator(t, model.ModeSimulated, trades, nil, now, poor, profile("y", "0.0005", "0.001"))
	rec, err := sim.Execute(context.Background(), scenarioAOpportunity(now))
	require.NoError(t, err)
	assert.Equal(t, model.StatusSimulated, rec.Status)
	assert.True(t, sim.Balance("x").Equal(dec("-90")))
}

func TestSimulator_LogFailureIsReturned(t *testing.T) {
	now := time.Now()
	trades := new(MockTradeLog)
	trades.On("LogTrade", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	sim, cooldown := newTestSimulator(t, model.ModeSimulated, trades, nil, now)
	rec, err := sim.Execute(context.Background(), scenarioAOpportunity(now))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, model.StatusSimulated, rec.Status)
	assert.Equal(t, 1, cooldown.Len(), "route is cooled down even when logging fails")
}

func TestSimulator_RealMode(t *testing.T) {
	now := time.Now()
	enabled := profile("y", "0.0005", "0.001")
	enabled.TradingEnabled = true
	executable := scenarioAOpportunity(now)
	executable.Executable = true

	t.Run("not executable stays simulated", func(t *testing.T) {
		trades := new(MockTradeLog)
		trades.On("LogTrade", mock.Anything, mock.Anything).Return(nil)
		placer := new(MockOrderPlacer)

		sim, _ := newTestSimulator(t, model.ModeReal, trades, placer, now)
		rec, err := sim.Execute(context.Background(), scenarioAOpportunity(now))
		require.NoError(t, err)
		assert.Equal(t, model.ModeSimulated, rec.Mode)
		placer.AssertNotCalled(t, "PlaceOrder")
	})

	t.Run("both legs filled", func(t *testing.T) {
		trades := new(MockTradeLog)
		trades.On("LogTrade", mock.Anything, mock.Anything).Return(nil)
		placer := new(MockOrderPlacer)
		placer.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(r model.OrderRequest) bool {
			return r.Side == model.SideBuy && r.Exchange == "x" && r.Amount.Equal(dec("1"))
		})).Return(model.OrderResult{OrderID: "b1", Status: model.OrderFilled}, nil).Once()
		placer.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(r model.OrderRequest) bool {
			return r.Side == model.SideSell && r.Exchange == "y"
		})).Return(model.OrderResult{OrderID: "s1", Status: model.OrderFilled}, nil).Once()

		sim, _ := newTestSimulator(t, model.ModeReal, trades, placer, now, profile("x", "0.0005", "0.001"), enabled)
		rec, err := sim.Execute(context.Background(), executable)
		require.NoError(t, err)
		placer.AssertExpectations(t)
		assert.Equal(t, model.ModeReal, rec.Mode)
		assert.Equal(t, model.StatusFilled, rec.Status)
		assert.True(t, rec.ProfitUSD.Equal(dec("0.3")))
		assert.True(t, sim.Balance("x").Equal(dec("900")))
	})

	t.Run("rejected order is recorded", func(t *testing.T) {
		trades := new(MockTradeLog)
		trades.On("LogTrade", mock.Anything, mock.Anything).Return(nil)
		placer := new(MockOrderPlacer)
		placer.On("PlaceOrder", mock.Anything, mock.Anything).
			Return(model.OrderResult{Status: model.OrderRejected, Reason: "order placement disabled for x"}, nil).Once()

		sim, _ := newTestSimulator(t, model.ModeReal, trades, placer, now, profile("x", "0.0005", "0.001"), enabled)
		rec, err := sim.Execute(context.Background(), executable)
		require.NoError(t, err)
		assert.Equal(t, model.StatusRejected, rec.Status)
		assert.Contains(t, rec.Reason, "disabled")
		assert.True(t, rec.ProfitUSD.IsZero())
		assert.True(t, sim.Balance("x").Equal(dec("1000")), "balances untouched")
		placer.AssertNumberOfCalls(t, "PlaceOrder", 1)
	})

	t.Run("placer error is recorded", func(t *testing.T) {
		trades := new(MockTradeLog)
		trades.On("LogTrade", mock.Anything, mock.Anything).Return(nil)
		placer := new(MockOrderPlacer)
		placer.On("PlaceOrder", mock.Anything, mock.Anything).
			Return(model.OrderResult{}, errors.New("timeout")).Once()

		sim, _ := newTestSimulator(t, model.ModeReal, trades, placer, now, profile("x", "0.0005", "0.001"), enabled)
		rec, err := sim.Execute(context.Background(), executable)
		require.NoError(t, err)
		assert.Equal(t, model.StatusError, rec.Status)
		assert.Contains(t, rec.Reason, "timeout")
	})

	t.Run("insufficient balance declines", func(t *testing.T) {
		poor := profile("x", "0.0005", "0.001")
		poor.InitialBalance = dec("50")
		trades := new(MockTradeLog)
		trades.On("LogTrade", mock.Anything, mock.Anything).Return(nil)
		placer := new(MockOrderPlacer)

		sim, cooldown := newTestSimulator(t, model.ModeReal, trades, placer, now, poor, enabled)
		rec, err := sim.Execute(context.Background(), executable)
		require.NoError(t, err)
		assert.Equal(t, model.ModeReal, rec.Mode)
		assert.Equal(t, model.StatusDeclined, rec.Status)
		assert.False(t, rec.Succeeded())
		assert.Equal(t, 1, cooldown.Len())
		placer.AssertNotCalled(t, "PlaceOrder")
	})
}

func TestNewSimulator_RejectsNonPositiveSize(t *testing.T) {
	_, err := NewSimulator(SimulatorConfig{PositionSize: dec("0")},
		model.NewProfileTable(profile("x", "0", "0"), profile("y", "0", "0")),
		NewCooldownLedger(discardLogger()), nil, nil, nil, discardLogger())
	assert.Error(t, err)
}
