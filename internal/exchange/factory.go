package exchange

import (
	"fmt"
	"log/slog"
	"time"

	"arbscanner/internal/config"
)

// NewClient creates a new exchange client based on the given name and configuration.
// maxAge bounds how old a cached ticker may be when served.
func NewClient(name string, logger *slog.Logger, cfg *config.ExchangeConfig, maxAge time.Duration) (QuoteSource, error) {
	switch name {
	case "kraken":
		return NewKrakenClient(logger, cfg.WSURL, maxAge), nil
	case "binance":
		return NewBinanceClient(logger, cfg.WSURL, maxAge), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExchange, name)
	}
}
