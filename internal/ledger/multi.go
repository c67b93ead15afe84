package ledger

import (
	"context"
	"errors"

	"arbscanner/internal/model"
)

// Sink receives executed trades.
type Sink interface {
	LogTrade(ctx context.Context, trade model.TradeRecord) error
}

// Reader lists previously logged trades.
type Reader interface {
	ListTrades(ctx context.Context, limit int) ([]model.TradeRecord, error)
}

// Multi writes every trade to all of its sinks. A failing sink does not stop
// the others; the failures are joined.
type Multi struct {
	sinks []Sink
}

// NewMulti creates a fan-out sink. Nil sinks are skipped.
func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *Multi) LogTrade(ctx context.Context, trade model.TradeRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.LogTrade(ctx, trade); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}
