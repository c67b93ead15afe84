// Package quote holds the latest quote per symbol and exchange.
package quote

import (
	"sort"
	"sync"
	"time"

	"arbscanner/internal/model"
)

type key struct {
	symbol   string
	exchange string
}

// Store keeps the last observed quote per (symbol, exchange). No history is retained.
type Store struct {
	mu     sync.RWMutex
	quotes map[key]model.Quote
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{quotes: make(map[key]model.Quote)}
}

// Upsert replaces any prior quote for the same symbol and exchange.
func (s *Store) Upsert(q model.Quote) {
	s.mu.Lock()
	s.quotes[key{symbol: q.Symbol, exchange: q.Exchange}] = q
	s.mu.Unlock()
}

// Fresh returns the quotes for symbol observed within maxAge of now, ordered by
// exchange id. Older quotes are skipped, not erased.
func (s *Store) Fresh(symbol string, maxAge time.Duration, now time.Time) []model.Quote {
	s.mu.RLock()
	var out []model.Quote
	for k, q := range s.quotes {
		if k.symbol != symbol {
			continue
		}
		if q.Age(now) > maxAge {
			continue
		}
		out = append(out, q)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Exchange < out[j].Exchange })
	return out
}

// Snapshot returns every stored quote ordered by symbol then exchange.
func (s *Store) Snapshot() []model.Quote {
	s.mu.RLock()
	out := make([]model.Quote, 0, len(s.quotes))
	for _, q := range s.quotes {
		out = append(out, q)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Exchange < out[j].Exchange
	})
	return out
}

// Symbols returns the distinct symbols held, sorted.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	seen := make(map[string]struct{})
	for k := range s.quotes {
		seen[k.symbol] = struct{}{}
	}
	s.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of stored quotes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.quotes)
}
