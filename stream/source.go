// Package stream runs the live loop: a trade feed in, trading actions
// and websocket broadcasts out.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/quicktime/lvntrader/market"
)

// TradeSource delivers market trades until ctx is cancelled or the
// feed fails.
type TradeSource interface {
	Run(ctx context.Context, out chan<- market.Trade) error
}

// wireTrade is the feed's JSON trade message.
type wireTrade struct {
	Time   time.Time `json:"time"`
	Price  float64   `json:"price"`
	Size   uint64    `json:"size"`
	Side   string    `json:"side"`
	Symbol string    `json:"symbol"`
}

func (w wireTrade) toTrade() market.Trade {
	side := market.Buy
	if w.Side == "SELL" || w.Side == "S" {
		side = market.Sell
	}
	return market.Trade{
		Time:   w.Time,
		Price:  w.Price,
		Size:   w.Size,
		Side:   side,
		Symbol: w.Symbol,
	}
}

// WSSource reads JSON trade messages from a websocket feed,
// reconnecting with backoff when the connection drops.
type WSSource struct {
	URL     string
	Symbol  string
	Log     zerolog.Logger
	Dialer  *websocket.Dialer
	Backoff time.Duration
}

func NewWSSource(url, symbol string, log zerolog.Logger) *WSSource {
	return &WSSource{
		URL:     url,
		Symbol:  symbol,
		Log:     log,
		Dialer:  websocket.DefaultDialer,
		Backoff: 2 * time.Second,
	}
}

func (s *WSSource) Run(ctx context.Context, out chan<- market.Trade) error {
	for {
		err := s.stream(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.Log.Warn().Err(err).Dur("backoff", s.Backoff).Msg("feed disconnected, reconnecting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.Backoff):
		}
	}
}

func (s *WSSource) stream(ctx context.Context, out chan<- market.Trade) error {
	conn, _, err := s.Dialer.DialContext(ctx, s.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.URL, err)
	}
	defer conn.Close()

	sub := map[string]string{"action": "subscribe", "symbol": s.Symbol}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.Symbol, err)
	}
	s.Log.Info().Str("url", s.URL).Str("symbol", s.Symbol).Msg("feed connected")

	// Unblock ReadMessage when ctx is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read feed: %w", err)
		}
		var wt wireTrade
		if err := json.Unmarshal(msg, &wt); err != nil {
			s.Log.Debug().Err(err).Msg("skipping unparseable feed message")
			continue
		}
		if wt.Price == 0 || wt.Size == 0 {
			continue
		}
		select {
		case out <- wt.toTrade():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
