package arbitrage

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"arbscanner/internal/model"
	"arbscanner/internal/quote"
)

var hundred = decimal.NewFromInt(100)

// ScannerSettings holds the thresholds applied to every candidate spread.
type ScannerSettings struct {
	Symbols          []string
	MinProfitPct     decimal.Decimal
	MinVolume24h     decimal.Decimal
	StalenessWindow  time.Duration
	UseMakerFees     bool
	Cooldown         time.Duration
	MaxOpportunities int // 0 keeps every opportunity
}

func (s ScannerSettings) validate() error {
	if len(s.Symbols) == 0 {
		return errors.New("no symbols to scan")
	}
	if s.StalenessWindow <= 0 {
		return errors.New("staleness window must be > 0")
	}
	if s.MinVolume24h.IsNegative() {
		return errors.New("minimum volume must be >= 0")
	}
	if s.Cooldown < 0 || s.MaxOpportunities < 0 {
		return errors.New("cooldown and max opportunities must be >= 0")
	}
	return nil
}

// Scanner finds cross-exchange spreads that survive fees, liquidity and cooldown.
// It only reads the quote store and the cooldown ledger.
type Scanner struct {
	profiles model.ProfileTable
	settings ScannerSettings
	quotes   *quote.Store
	cooldown *CooldownLedger
	logger   *slog.Logger
}

// NewScanner creates a Scanner. An invalid profile table or settings is a
// configuration error.
func NewScanner(profiles model.ProfileTable, settings ScannerSettings, quotes *quote.Store, cooldown *CooldownLedger, logger *slog.Logger) (*Scanner, error) {
	if err := profiles.Validate(); err != nil {
		return nil, fmt.Errorf("scanner: %w", err)
	}
	if err := settings.validate(); err != nil {
		return nil, fmt.Errorf("scanner: %w", err)
	}
	return &Scanner{
		profiles: profiles,
		settings: settings,
		quotes:   quotes,
		cooldown: cooldown,
		logger:   logger.With("component", "scanner"),
	}, nil
}

// Scan returns the opportunities available at now, best net profit first.
// Equal profits keep discovery order: symbols as configured, exchanges by id.
func (s *Scanner) Scan(now time.Time) []model.Opportunity {
	var opps []model.Opportunity
	for _, symbol := range s.settings.Symbols {
		opps = append(opps, s.scanSymbol(symbol, now)...)
	}

	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].NetProfitPct.GreaterThan(opps[j].NetProfitPct)
	})
	if s.settings.MaxOpportunities > 0 && len(opps) > s.settings.MaxOpportunities {
		opps = opps[:s.settings.MaxOpportunities]
	}
	return opps
}

type pricedQuote struct {
	model.Quote
	profile model.ExchangeProfile
}

func (s *Scanner) scanSymbol(symbol string, now time.Time) []model.Opportunity {
	fresh := s.quotes.Fresh(symbol, s.settings.StalenessWindow, now)
	if len(fresh) < 2 {
		return nil
	}

	usable := make([]pricedQuote, 0, len(fresh))
	for _, q := range fresh {
		if err := q.Validate(); err != nil {
			s.logger.Warn("Skipping invalid quote", "error", err)
			continue
		}
		profile, ok := s.profiles.Lookup(q.Exchange)
		if !ok {
			s.logger.Error("Quote from exchange without profile", "exchange", q.Exchange, "symbol", symbol)
			continue
		}
		usable = append(usable, pricedQuote{Quote: q, profile: profile})
	}

	var opps []model.Opportunity
	for _, buy := range usable {
		for _, sell := range usable {
			if buy.Exchange == sell.Exchange {
				continue
			}
			if opp, ok := s.evaluate(symbol, buy, sell, now); ok {
				opps = append(opps, opp)
			}
		}
	}
	return opps
}

// evaluate prices buying on buy's ask and selling on sell's bid.
func (s *Scanner) evaluate(symbol string, buy, sell pricedQuote, now time.Time) (model.Opportunity, bool) {
	if !sell.Bid.GreaterThan(buy.Ask) {
		return model.Opportunity{}, false
	}

	gross := sell.Bid.Sub(buy.Ask).Div(buy.Ask).Mul(hundred)
	buyFee := buy.profile.FeePct(s.settings.UseMakerFees)
	sellFee := sell.profile.FeePct(s.settings.UseMakerFees)
	net := gross.Sub(buyFee.Add(sellFee))

	if buy.Volume24h.LessThan(s.settings.MinVolume24h) || sell.Volume24h.LessThan(s.settings.MinVolume24h) {
		s.logger.Debug("Spread skipped on liquidity",
			"symbol", symbol, "buyExchange", buy.Exchange, "sellExchange", sell.Exchange,
			"buyVolume", buy.Volume24h, "sellVolume", sell.Volume24h)
		return model.Opportunity{}, false
	}
	if net.LessThan(s.settings.MinProfitPct) {
		return model.Opportunity{}, false
	}

	route := model.Route{Symbol: symbol, Buy: buy.Exchange, Sell: sell.Exchange}
	if s.cooldown != nil && s.cooldown.IsBlocked(route, now, s.settings.Cooldown) {
		s.logger.Debug("Route in cooldown", "route", route.String())
		return model.Opportunity{}, false
	}

	return model.Opportunity{
		Symbol:         symbol,
		BuyExchange:    buy.Exchange,
		SellExchange:   sell.Exchange,
		BuyPrice:       buy.Ask,
		SellPrice:      sell.Bid,
		GrossSpreadPct: gross,
		BuyFeePct:      buyFee,
		SellFeePct:     sellFee,
		NetProfitPct:   net,
		Liquidity:      decimal.Min(buy.Volume24h, sell.Volume24h),
		Executable:     buy.profile.TradingEnabled || sell.profile.TradingEnabled,
		DiscoveredAt:   now,
	}, true
}
