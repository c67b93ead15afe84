package arbitrage

import (
	"log/slog"
	"sync"
	"time"

	"arbscanner/internal/model"
)

// CooldownLedger remembers when each route was last executed.
type CooldownLedger struct {
	mu      sync.RWMutex
	entries map[model.Route]time.Time
	logger  *slog.Logger
}

// NewCooldownLedger creates an empty ledger.
func NewCooldownLedger(logger *slog.Logger) *CooldownLedger {
	return &CooldownLedger{
		entries: make(map[model.Route]time.Time),
		logger:  logger.With("component", "cooldown"),
	}
}

// Record stores the execution time of a route, overwriting any earlier entry.
// A timestamp older than the stored one means the clock went backwards; the
// ledger may then under-block, which is logged and tolerated.
func (l *CooldownLedger) Record(route model.Route, at time.Time) {
	l.mu.Lock()
	prev, ok := l.entries[route]
	l.entries[route] = at
	l.mu.Unlock()

	if ok && at.Before(prev) {
		l.logger.Warn("Clock regression detected on cooldown record",
			"route", route.String(),
			"previous", prev,
			"current", at,
		)
	}
}

// IsBlocked reports whether the route was executed less than cooldown before now.
func (l *CooldownLedger) IsBlocked(route model.Route, now time.Time, cooldown time.Duration) bool {
	l.mu.RLock()
	last, ok := l.entries[route]
	l.mu.RUnlock()
	if !ok {
		return false
	}
	return now.Sub(last) < cooldown
}

// LastTrade returns the recorded time of a route.
func (l *CooldownLedger) LastTrade(route model.Route) (time.Time, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	at, ok := l.entries[route]
	return at, ok
}

// Prune drops entries older than maxAge and returns how many were removed.
func (l *CooldownLedger) Prune(now time.Time, maxAge time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for route, at := range l.entries {
		if now.Sub(at) > maxAge {
			delete(l.entries, route)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked routes.
func (l *CooldownLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
