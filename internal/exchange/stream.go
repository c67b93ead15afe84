package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"arbscanner/internal/model"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 16 * time.Second
)

// streamProtocol is the exchange-specific part of a ticker stream.
type streamProtocol interface {
	// streamURL returns the endpoint to dial for the given symbols.
	streamURL(symbols []string) string
	// subscribe sends any subscription frames after connecting.
	subscribe(c *websocket.Conn, symbols []string) error
	// parse decodes one frame into zero or more quotes.
	parse(message []byte, receivedAt time.Time) ([]model.Quote, error)
}

// streamClient keeps the latest ticker per symbol from a websocket stream and
// serves it through FetchQuote.
type streamClient struct {
	name     string
	logger   *slog.Logger
	protocol streamProtocol
	maxAge   time.Duration
	now      func() time.Time

	mu     sync.RWMutex
	latest map[string]model.Quote

	cancel context.CancelFunc
	done   chan struct{}
}

func newStreamClient(name string, logger *slog.Logger, protocol streamProtocol, maxAge time.Duration) *streamClient {
	return &streamClient{
		name:     name,
		logger:   logger.With("exchange", name),
		protocol: protocol,
		maxAge:   maxAge,
		now:      time.Now,
		latest:   make(map[string]model.Quote),
	}
}

func (s *streamClient) Name() string {
	return s.name
}

// Connect starts the background stream. The stream outlives ctx and stops on Disconnect.
func (s *streamClient) Connect(ctx context.Context, symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}
	if len(symbols) == 0 {
		return fmt.Errorf("%s: no symbols to stream", s.name)
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.run(streamCtx, symbols)
	}()
	return nil
}

// Disconnect stops the stream and waits for it to exit.
func (s *streamClient) Disconnect() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// FetchQuote returns the latest ticker for symbol, or ErrQuoteUnavailable when
// none has been received within maxAge.
func (s *streamClient) FetchQuote(ctx context.Context, symbol string) (model.Quote, error) {
	if err := ctx.Err(); err != nil {
		return model.Quote{}, err
	}
	s.mu.RLock()
	q, ok := s.latest[symbol]
	s.mu.RUnlock()

	if !ok {
		return model.Quote{}, fmt.Errorf("%s %s: no ticker received: %w", s.name, symbol, ErrQuoteUnavailable)
	}
	if s.maxAge > 0 && q.Age(s.now()) > s.maxAge {
		return model.Quote{}, fmt.Errorf("%s %s: ticker is %s old: %w", s.name, symbol, q.Age(s.now()).Round(time.Millisecond), ErrQuoteUnavailable)
	}
	return q, nil
}

func (s *streamClient) store(q model.Quote) {
	s.mu.Lock()
	s.latest[q.Symbol] = q
	s.mu.Unlock()
}

// run dials the stream and reconnects with capped exponential backoff until ctx is done.
// The backoff also applies after a dropped connection and is only reset once
// a connection has delivered a ticker.
func (s *streamClient) run(ctx context.Context, symbols []string) {
	url := s.protocol.streamURL(symbols)
	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			s.logger.Info("stream: context cancelled, shutting down")
			return
		}

		s.logger.Info("stream: connecting to WebSocket", "url", url, "backoff", backoff)
		c, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err == nil {
			err = s.protocol.subscribe(c, symbols)
			if err != nil {
				c.Close()
			}
		}
		if err != nil {
			s.logger.Error("stream: connection failed", "error", err)
		} else {
			s.logger.Info("stream: connected successfully")
			delivered, err := s.readLoop(ctx, c)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				s.logger.Error("stream: failed to read message", "error", err)
			}
			if delivered {
				backoff = initialBackoff
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			backoff = min(backoff*2, maxBackoff)
		}
	}
}

// readLoop consumes frames until the connection fails. delivered reports
// whether at least one ticker was stored.
func (s *streamClient) readLoop(ctx context.Context, c *websocket.Conn) (delivered bool, err error) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-stop:
		}
	}()
	defer c.Close()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			return delivered, err
		}
		quotes, err := s.protocol.parse(message, s.now())
		if err != nil {
			s.logger.Warn("stream: failed to parse message", "error", err)
			continue
		}
		for _, q := range quotes {
			delivered = true
			s.store(q)
			s.logger.Debug("stream: ticker", "symbol", q.Symbol, "bid", q.Bid, "ask", q.Ask)
		}
	}
}
