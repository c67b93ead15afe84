package exchange

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"arbscanner/internal/model"
)

const binanceDefaultURL = "wss://stream.binance.com:9443"

// BinanceClient streams 24h tickers from the Binance combined stream endpoint.
type BinanceClient struct {
	*streamClient
}

// NewBinanceClient creates a new BinanceClient. An empty baseURL selects the public endpoint.
func NewBinanceClient(logger *slog.Logger, baseURL string, maxAge time.Duration) *BinanceClient {
	if baseURL == "" {
		baseURL = binanceDefaultURL
	}
	p := &binanceProtocol{baseURL: strings.TrimRight(baseURL, "/"), symbols: make(map[string]string)}
	return &BinanceClient{streamClient: newStreamClient("binance", logger, p, maxAge)}
}

type binanceProtocol struct {
	baseURL string
	symbols map[string]string // BTCUSDT -> BTC/USDT
}

// binanceSymbol converts "BTC/USDT" to "BTCUSDT".
func binanceSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}

func (p *binanceProtocol) streamURL(symbols []string) string {
	streams := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		native := binanceSymbol(sym)
		p.symbols[native] = sym
		streams = append(streams, strings.ToLower(native)+"@ticker")
	}
	return p.baseURL + "/stream?streams=" + strings.Join(streams, "/")
}

// The combined stream needs no subscription frame.
func (p *binanceProtocol) subscribe(*websocket.Conn, []string) error {
	return nil
}

type binanceEnvelope struct {
	Stream string        `json:"stream"`
	Data   binanceTicker `json:"data"`
}

type binanceTicker struct {
	Event       string `json:"e"`
	Symbol      string `json:"s"`
	Bid         string `json:"b"`
	Ask         string `json:"a"`
	QuoteVolume string `json:"q"`
}

func (p *binanceProtocol) parse(message []byte, receivedAt time.Time) ([]model.Quote, error) {
	var env binanceEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return nil, err
	}
	if env.Data.Event != "24hrTicker" {
		return nil, nil
	}
	symbol, ok := p.symbols[env.Data.Symbol]
	if !ok {
		return nil, nil
	}

	bid, err := decimal.NewFromString(env.Data.Bid)
	if err != nil {
		return nil, fmt.Errorf("binance: parse bid price: %w", err)
	}
	ask, err := decimal.NewFromString(env.Data.Ask)
	if err != nil {
		return nil, fmt.Errorf("binance: parse ask price: %w", err)
	}
	volume, err := decimal.NewFromString(env.Data.QuoteVolume)
	if err != nil {
		return nil, fmt.Errorf("binance: parse quote volume: %w", err)
	}

	return []model.Quote{{
		Symbol:     symbol,
		Exchange:   "binance",
		Bid:        bid,
		Ask:        ask,
		Volume24h:  volume,
		ObservedAt: receivedAt,
	}}, nil
}
