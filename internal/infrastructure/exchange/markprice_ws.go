package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const BinanceMarkPriceWSURL = "wss://fstream.binance.com/ws/!markPrice@arr@1s"

type markPriceEvent struct {
	Event     string `json:"e"`
	Symbol    string `json:"s"`
	MarkPrice string `json:"p"`
}

// MarkPriceStream follows the all-market mark price stream and fans every
// update out to the registered callbacks.
type MarkPriceStream struct {
	wsURL     string
	dialer    *websocket.Dialer
	retry     RetryConfig
	logger    *zap.Logger
	callbacks []func(symbol string, price float64)
	mu        sync.Mutex
}

func NewMarkPriceStream(wsURL, proxyURL string, retry RetryConfig, logger *zap.Logger) (*MarkPriceStream, error) {
	if wsURL == "" {
		wsURL = BinanceMarkPriceWSURL
	}
	if retry.BaseDelay <= 0 {
		retry = DefaultRetryConfig()
	}
	dialer := &websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
		Proxy:            http.ProxyFromEnvironment,
	}
	if proxyURL != "" {
		proxy, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		dialer.Proxy = http.ProxyURL(proxy)
	}
	return &MarkPriceStream{
		wsURL:  wsURL,
		dialer: dialer,
		retry:  retry,
		logger: logger,
	}, nil
}

func (s *MarkPriceStream) OnPriceUpdate(callback func(symbol string, price float64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, callback)
}

// Run keeps the stream connected until ctx is cancelled.
func (s *MarkPriceStream) Run(ctx context.Context) {
	failures := 0
	for {
		connected, err := s.connect(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			failures = 0
		}
		failures++

		delay := s.retry.Backoff(failures, 0)
		s.logger.Warn("Mark price stream disconnected, reconnecting",
			zap.Error(err),
			zap.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// connect dials once and reads until the connection drops. It reports
// whether the handshake succeeded.
func (s *MarkPriceStream) connect(ctx context.Context) (bool, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()
	s.logger.Info("Mark price stream connected", zap.String("url", s.wsURL))

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
		_, message, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		s.dispatch(message)
	}
}

func (s *MarkPriceStream) dispatch(message []byte) {
	var events []markPriceEvent
	if err := json.Unmarshal(message, &events); err != nil {
		var single markPriceEvent
		if json.Unmarshal(message, &single) != nil {
			s.logger.Debug("Skipping unparseable mark price message", zap.Error(err))
			return
		}
		events = []markPriceEvent{single}
	}

	s.mu.Lock()
	callbacks := make([]func(string, float64), len(s.callbacks))
	copy(callbacks, s.callbacks)
	s.mu.Unlock()

	for _, e := range events {
		price := parseFloat(e.MarkPrice)
		if e.Symbol == "" || price <= 0 {
			continue
		}
		for _, cb := range callbacks {
			cb(e.Symbol, price)
		}
	}
}
