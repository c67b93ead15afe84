package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"arbscanner/internal/model"
)

// Summary aggregates a list of trade records.
type Summary struct {
	TotalTrades    int
	Succeeded      int
	TotalProfitUSD decimal.Decimal
	Best           *model.TradeRecord // highest net profit among succeeded trades
	ByRoute        map[string]int
	ByStatus       map[model.TradeStatus]int
	First          time.Time
	Last           time.Time
}

// Summarize folds records into a Summary. Only succeeded trades add profit.
func Summarize(records []model.TradeRecord) Summary {
	s := Summary{
		TotalProfitUSD: decimal.Zero,
		ByRoute:        make(map[string]int),
		ByStatus:       make(map[model.TradeStatus]int),
	}
	for i := range records {
		r := records[i]
		s.TotalTrades++
		s.ByStatus[r.Status]++
		s.ByRoute[r.Symbol+" "+r.Route]++

		if s.First.IsZero() || r.ExecutedAt.Before(s.First) {
			s.First = r.ExecutedAt
		}
		if r.ExecutedAt.After(s.Last) {
			s.Last = r.ExecutedAt
		}

		if !r.Succeeded() {
			continue
		}
		s.Succeeded++
		s.TotalProfitUSD = s.TotalProfitUSD.Add(r.ProfitUSD)
		if s.Best == nil || r.NetProfitPct.GreaterThan(s.Best.NetProfitPct) {
			s.Best = &r
		}
	}
	return s
}
