package exchange

import (
	"context"
	"errors"

	"arbscanner/internal/model"
)

var (
	// ErrQuoteUnavailable means the exchange has no usable quote for the symbol right now.
	ErrQuoteUnavailable = errors.New("quote unavailable")
	// ErrUnknownExchange is returned by the factory for an unsupported exchange id.
	ErrUnknownExchange = errors.New("unknown exchange")
)

// QuoteSource defines the standard interface for all exchange market-data clients.
type QuoteSource interface {
	Name() string
	Connect(ctx context.Context, symbols []string) error
	Disconnect() error
	FetchQuote(ctx context.Context, symbol string) (model.Quote, error)
}

// OrderPlacer sends a single order to an exchange.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req model.OrderRequest) (model.OrderResult, error)
}
