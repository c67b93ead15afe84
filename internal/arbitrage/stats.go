package arbitrage

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"arbscanner/internal/collector"
	"arbscanner/internal/model"
)

// StatsSnapshot is a point-in-time copy of the running counters.
type StatsSnapshot struct {
	StartedAt          time.Time
	Scans              int
	OpportunitiesFound int
	TradesExecuted     int
	TradesFailed       int
	TotalProfitUSD     decimal.Decimal
	BestOpportunity    *model.Opportunity
	QuotesFetched      int
	QuotesFailed       int
	QuotesRejected     int
	Errors             int
}

// Stats accumulates counters across scan cycles.
type Stats struct {
	mu sync.Mutex
	s  StatsSnapshot
}

// NewStats starts the counters at startedAt.
func NewStats(startedAt time.Time) *Stats {
	return &Stats{s: StatsSnapshot{StartedAt: startedAt, TotalProfitUSD: decimal.Zero}}
}

func (st *Stats) recordCollect(r collector.Report) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.QuotesFetched += r.Fetched
	st.s.QuotesFailed += r.Failed
	st.s.QuotesRejected += r.Rejected
}

func (st *Stats) recordScan(opps []model.Opportunity) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Scans++
	st.s.OpportunitiesFound += len(opps)
	for _, opp := range opps {
		if st.s.BestOpportunity == nil || opp.NetProfitPct.GreaterThan(st.s.BestOpportunity.NetProfitPct) {
			best := opp
			st.s.BestOpportunity = &best
		}
	}
}

func (st *Stats) recordTrade(rec model.TradeRecord) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if !rec.Succeeded() {
		st.s.TradesFailed++
		return
	}
	st.s.TradesExecuted++
	st.s.TotalProfitUSD = st.s.TotalProfitUSD.Add(rec.ProfitUSD)
}

func (st *Stats) recordError() {
	st.mu.Lock()
	st.s.Errors++
	st.mu.Unlock()
}

// Snapshot returns a copy of the counters.
func (st *Stats) Snapshot() StatsSnapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := st.s
	if st.s.BestOpportunity != nil {
		best := *st.s.BestOpportunity
		out.BestOpportunity = &best
	}
	return out
}
