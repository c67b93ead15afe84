package exchange

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"arbscanner/internal/model"
)

const krakenDefaultURL = "wss://ws.kraken.com"

// Kraken uses legacy asset codes for a few currencies.
var krakenAssets = map[string]string{
	"BTC":  "XBT",
	"DOGE": "XDG",
}

// KrakenClient streams tickers from the Kraken public websocket API.
type KrakenClient struct {
	*streamClient
}

// NewKrakenClient creates a new KrakenClient. An empty url selects the public endpoint.
func NewKrakenClient(logger *slog.Logger, url string, maxAge time.Duration) *KrakenClient {
	if url == "" {
		url = krakenDefaultURL
	}
	p := &krakenProtocol{url: url, symbols: make(map[string]string)}
	return &KrakenClient{streamClient: newStreamClient("kraken", logger, p, maxAge)}
}

type krakenProtocol struct {
	url     string
	symbols map[string]string // XBT/USDT -> BTC/USDT
}

// krakenPair converts "BTC/USDT" to "XBT/USDT".
func krakenPair(symbol string) string {
	base, quote, ok := strings.Cut(strings.ToUpper(symbol), "/")
	if !ok {
		return strings.ToUpper(symbol)
	}
	if alias, ok := krakenAssets[base]; ok {
		base = alias
	}
	if alias, ok := krakenAssets[quote]; ok {
		quote = alias
	}
	return base + "/" + quote
}

func (p *krakenProtocol) streamURL(symbols []string) string {
	for _, sym := range symbols {
		p.symbols[krakenPair(sym)] = sym
	}
	return p.url
}

func (p *krakenProtocol) subscribe(c *websocket.Conn, symbols []string) error {
	pairs := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		pairs = append(pairs, krakenPair(sym))
	}
	subscription := map[string]interface{}{
		"event": "subscribe",
		"pair":  pairs,
		"subscription": map[string]string{
			"name": "ticker",
		},
	}
	if err := c.WriteJSON(subscription); err != nil {
		return fmt.Errorf("kraken: send subscription: %w", err)
	}
	return nil
}

type krakenTicker struct {
	Ask    []string `json:"a"`
	Bid    []string `json:"b"`
	Volume []string `json:"v"` // [today, last 24h] in base currency
	VWAP   []string `json:"p"` // [today, last 24h]
}

// parse handles ticker frames of the form [channelID, {ticker}, "ticker", "XBT/USDT"].
// Event objects (heartbeat, subscriptionStatus) are ignored.
func (p *krakenProtocol) parse(message []byte, receivedAt time.Time) ([]model.Quote, error) {
	trimmed := bytes.TrimSpace(message)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, nil
	}

	var frame []json.RawMessage
	if err := json.Unmarshal(trimmed, &frame); err != nil {
		return nil, err
	}
	if len(frame) < 4 {
		return nil, fmt.Errorf("kraken: short ticker frame of %d elements", len(frame))
	}
	var channel, pair string
	if err := json.Unmarshal(frame[len(frame)-2], &channel); err != nil || channel != "ticker" {
		return nil, nil
	}
	if err := json.Unmarshal(frame[len(frame)-1], &pair); err != nil {
		return nil, fmt.Errorf("kraken: parse pair: %w", err)
	}
	symbol, ok := p.symbols[pair]
	if !ok {
		return nil, nil
	}

	var t krakenTicker
	if err := json.Unmarshal(frame[1], &t); err != nil {
		return nil, fmt.Errorf("kraken: parse ticker: %w", err)
	}
	if len(t.Bid) == 0 || len(t.Ask) == 0 || len(t.Volume) < 2 || len(t.VWAP) < 2 {
		return nil, fmt.Errorf("kraken: incomplete ticker for %s", pair)
	}

	bid, err := decimal.NewFromString(t.Bid[0])
	if err != nil {
		return nil, fmt.Errorf("kraken: parse bid price: %w", err)
	}
	ask, err := decimal.NewFromString(t.Ask[0])
	if err != nil {
		return nil, fmt.Errorf("kraken: parse ask price: %w", err)
	}
	baseVolume, err := decimal.NewFromString(t.Volume[1])
	if err != nil {
		return nil, fmt.Errorf("kraken: parse volume: %w", err)
	}
	vwap, err := decimal.NewFromString(t.VWAP[1])
	if err != nil {
		return nil, fmt.Errorf("kraken: parse vwap: %w", err)
	}

	return []model.Quote{{
		Symbol:     symbol,
		Exchange:   "kraken",
		Bid:        bid,
		Ask:        ask,
		Volume24h:  baseVolume.Mul(vwap),
		ObservedAt: receivedAt,
	}}, nil
}
