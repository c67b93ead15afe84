package model

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidQuote marks a quote that must never take part in scanning.
var ErrInvalidQuote = errors.New("invalid quote")

var hundred = decimal.NewFromInt(100)

// Quote is the latest top-of-book snapshot for a symbol on one exchange.
type Quote struct {
	Symbol     string
	Exchange   string
	Bid        decimal.Decimal
	Ask        decimal.Decimal
	Volume24h  decimal.Decimal // quote currency
	ObservedAt time.Time
}

// Validate rejects non-positive prices and a bid above the exchange's own ask.
func (q Quote) Validate() error {
	if !q.Bid.IsPositive() || !q.Ask.IsPositive() {
		return fmt.Errorf("%w: %s@%s non-positive price bid=%s ask=%s", ErrInvalidQuote, q.Symbol, q.Exchange, q.Bid, q.Ask)
	}
	if q.Bid.GreaterThan(q.Ask) {
		return fmt.Errorf("%w: %s@%s crossed book bid=%s ask=%s", ErrInvalidQuote, q.Symbol, q.Exchange, q.Bid, q.Ask)
	}
	return nil
}

// Age returns how old the quote is at now.
func (q Quote) Age(now time.Time) time.Duration {
	return now.Sub(q.ObservedAt)
}

// ExchangeProfile is the static fee and capability configuration of an exchange.
type ExchangeProfile struct {
	ID             string
	MakerFee       decimal.Decimal // fraction, 0.001 = 0.1%
	TakerFee       decimal.Decimal
	TradingEnabled bool
	InitialBalance decimal.Decimal
}

// FeePct returns the applicable fee expressed as a percentage.
func (p ExchangeProfile) FeePct(maker bool) decimal.Decimal {
	if maker {
		return p.MakerFee.Mul(hundred)
	}
	return p.TakerFee.Mul(hundred)
}

// ProfileTable is the immutable set of exchange profiles keyed by id.
type ProfileTable struct {
	profiles map[string]ExchangeProfile
}

// NewProfileTable copies the given profiles into a table.
func NewProfileTable(profiles ...ExchangeProfile) ProfileTable {
	m := make(map[string]ExchangeProfile, len(profiles))
	for _, p := range profiles {
		m[p.ID] = p
	}
	return ProfileTable{profiles: m}
}

// Lookup returns the profile for an exchange id.
func (t ProfileTable) Lookup(id string) (ExchangeProfile, bool) {
	p, ok := t.profiles[id]
	return p, ok
}

// IDs returns the exchange ids in sorted order.
func (t ProfileTable) IDs() []string {
	ids := make([]string, 0, len(t.profiles))
	for id := range t.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of profiles.
func (t ProfileTable) Len() int {
	return len(t.profiles)
}

// Validate checks that the table can drive a cross-exchange scan.
func (t ProfileTable) Validate() error {
	if len(t.profiles) < 2 {
		return fmt.Errorf("at least two exchange profiles are required, got %d", len(t.profiles))
	}
	one := decimal.NewFromInt(1)
	for id, p := range t.profiles {
		if id == "" || p.ID != id {
			return fmt.Errorf("exchange profile has empty or mismatched id %q", id)
		}
		for name, fee := range map[string]decimal.Decimal{"maker_fee": p.MakerFee, "taker_fee": p.TakerFee} {
			if fee.IsNegative() || fee.GreaterThanOrEqual(one) {
				return fmt.Errorf("exchange %s: %s %s must be a fraction in [0, 1)", id, name, fee)
			}
		}
		if p.InitialBalance.IsNegative() {
			return fmt.Errorf("exchange %s: initial balance must be >= 0", id)
		}
	}
	return nil
}

// Route identifies a directional trade: buy on Buy, sell on Sell.
type Route struct {
	Symbol string
	Buy    string
	Sell   string
}

func (r Route) String() string {
	return r.Symbol + ":" + r.Buy + "->" + r.Sell
}

// Opportunity is a cross-exchange spread that cleared fee and liquidity policy.
type Opportunity struct {
	Symbol         string          `json:"symbol"`
	BuyExchange    string          `json:"buy_exchange"`
	SellExchange   string          `json:"sell_exchange"`
	BuyPrice       decimal.Decimal `json:"buy_price"`
	SellPrice      decimal.Decimal `json:"sell_price"`
	GrossSpreadPct decimal.Decimal `json:"gross_spread_pct"`
	BuyFeePct      decimal.Decimal `json:"buy_fee_pct"`
	SellFeePct     decimal.Decimal `json:"sell_fee_pct"`
	NetProfitPct   decimal.Decimal `json:"net_profit_pct"`
	Liquidity      decimal.Decimal `json:"liquidity"`
	Executable     bool            `json:"executable"`
	DiscoveredAt   time.Time       `json:"discovered_at"`
}

// Route returns the cooldown key of the opportunity.
func (o Opportunity) Route() Route {
	return Route{Symbol: o.Symbol, Buy: o.BuyExchange, Sell: o.SellExchange}
}

// TradingMode tells whether a trade was simulated or sent to an exchange.
type TradingMode string

const (
	ModeSimulated TradingMode = "simulated"
	ModeReal      TradingMode = "real"
)

// TradeStatus is the outcome of an execution attempt.
type TradeStatus string

const (
	StatusSimulated TradeStatus = "simulated"
	StatusFilled    TradeStatus = "filled"
	StatusRejected  TradeStatus = "rejected"
	StatusError     TradeStatus = "error"
	StatusDeclined  TradeStatus = "declined"
)

// TradeRecord is one immutable entry of the trade ledger.
type TradeRecord struct {
	ID           string          `json:"id" db:"id"`
	Symbol       string          `json:"symbol" db:"symbol"`
	BuyExchange  string          `json:"buy_exchange" db:"buy_exchange"`
	SellExchange string          `json:"sell_exchange" db:"sell_exchange"`
	Route        string          `json:"route" db:"route"`
	BuyPrice     decimal.Decimal `json:"buy_price" db:"buy_price"`
	SellPrice    decimal.Decimal `json:"sell_price" db:"sell_price"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	PositionSize decimal.Decimal `json:"position_size" db:"position_size"`
	NetProfitPct decimal.Decimal `json:"net_profit_pct" db:"net_profit_pct"`
	ProfitUSD    decimal.Decimal `json:"profit_usd" db:"profit_usd"`
	Mode         TradingMode     `json:"mode" db:"mode"`
	Status       TradeStatus     `json:"status" db:"status"`
	Reason       string          `json:"reason,omitempty" db:"reason"`
	ExecutedAt   time.Time       `json:"executed_at" db:"executed_at"`
}

// Succeeded reports whether the trade changed balances.
func (r TradeRecord) Succeeded() bool {
	return r.Status == StatusSimulated || r.Status == StatusFilled
}

// OrderSide is buy or sell.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderRequest is handed to an order-placement collaborator.
type OrderRequest struct {
	Exchange string
	Symbol   string
	Side     OrderSide
	Amount   decimal.Decimal
	Price    decimal.Decimal
}

// OrderStatus is the terminal state reported by an order placer.
type OrderStatus string

const (
	OrderFilled   OrderStatus = "filled"
	OrderRejected OrderStatus = "rejected"
	OrderError    OrderStatus = "error"
)

// OrderResult is the answer of an order-placement collaborator.
type OrderResult struct {
	OrderID string
	Status  OrderStatus
	Reason  string
}
