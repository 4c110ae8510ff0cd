package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	drepo "FinValue/internal/domain/repository"
	"FinValue/pkg/logger"
)

var _ drepo.PriceFeed = (*Stream)(nil)

// Stream reads live trade prices from the Finnhub WebSocket.
type Stream struct {
	websocketURL string
	apiKey       string
	timeout      time.Duration
	dialer       *websocket.Dialer
	log          *logger.Logger
}

func NewStream(websocketURL, apiKey string, timeout time.Duration, log *logger.Logger) *Stream {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Stream{
		websocketURL: websocketURL,
		apiKey:       apiKey,
		timeout:      timeout,
		dialer:       websocket.DefaultDialer,
		log:          log,
	}
}

type wsTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type wsMessage struct {
	Type string    `json:"type"`
	Data []wsTrade `json:"data"`
	Msg  string    `json:"msg"`
}

// LastPrice subscribes to ticker and returns the first trade price seen.
func (s *Stream) LastPrice(ctx context.Context, ticker string) (float64, error) {
	ticker = strings.ToUpper(ticker)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	u, err := url.Parse(s.websocketURL)
	if err != nil {
		return 0, fmt.Errorf("finnhub stream url: %w", err)
	}
	q := u.Query()
	q.Set("token", s.apiKey)
	u.RawQuery = q.Encode()

	conn, _, err := s.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("finnhub connect: %w", err)
	}
	defer conn.Close()

	// unblock ReadMessage when ctx ends
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := conn.WriteJSON(map[string]string{"type": "subscribe", "symbol": ticker}); err != nil {
		return 0, fmt.Errorf("subscribe %s: %w", ticker, err)
	}
	defer func() {
		_ = conn.WriteJSON(map[string]string{"type": "unsubscribe", "symbol": ticker})
	}()

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return 0, fmt.Errorf("finnhub stream %s: %w", ticker, ctx.Err())
			}
			return 0, fmt.Errorf("finnhub read: %w", err)
		}
		var m wsMessage
		if err := json.Unmarshal(b, &m); err != nil {
			continue
		}
		switch m.Type {
		case "error":
			return 0, fmt.Errorf("finnhub stream: %s", m.Msg)
		case "trade":
			for i := len(m.Data) - 1; i >= 0; i-- {
				if d := m.Data[i]; d.S == ticker && d.P > 0 {
					s.log.Debug("live price", logger.String("ticker", ticker), logger.Float64("price", d.P))
					return d.P, nil
				}
			}
		}
	}
}
