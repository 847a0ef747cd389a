package exchange

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Stream consumes the Binance.US combined miniTicker websocket and pushes
// fresh samples between REST poll ticks. The poller stays the source of
// truth; the stream only accelerates it.
type Stream struct {
	wsURL   string
	symbols []string
	conn    *websocket.Conn

	onTicker func(Ticker)

	running bool
	stopCh  chan struct{}
}

// NewStream creates a stream for the given unified symbols
func NewStream(symbols []string) *Stream {
	return &Stream{
		wsURL:   "wss://stream.binance.us:9443",
		symbols: symbols,
		stopCh:  make(chan struct{}),
	}
}

// SetTickerCallback sets the callback for streamed tickers
func (s *Stream) SetTickerCallback(cb func(Ticker)) {
	s.onTicker = cb
}

// Start connects and begins streaming
func (s *Stream) Start() {
	s.running = true
	go s.run()
	log.Info().Int("symbols", len(s.symbols)).Msg("📡 Binance.US ticker stream started")
}

// Stop closes the stream
func (s *Stream) Stop() {
	s.running = false
	close(s.stopCh)
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *Stream) run() {
	for s.running {
		if err := s.connect(); err != nil {
			log.Error().Err(err).Msg("Stream connection failed")
			select {
			case <-time.After(5 * time.Second):
			case <-s.stopCh:
				return
			}
			continue
		}

		s.readMessages()

		if s.running {
			log.Warn().Msg("Stream disconnected, reconnecting...")
			time.Sleep(time.Second)
		}
	}
}

func (s *Stream) connect() error {
	// Combined stream: /stream?streams=dogeusdt@miniTicker/shibusdt@miniTicker
	streams := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		streams = append(streams, strings.ToLower(binanceSymbol(sym))+"@miniTicker")
	}
	url := fmt.Sprintf("%s/stream?streams=%s", s.wsURL, strings.Join(streams, "/"))

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	s.conn = conn
	log.Debug().Str("url", url).Msg("Stream connected")
	return nil
}

func (s *Stream) readMessages() {
	for s.running {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if s.running {
				log.Error().Err(err).Msg("Stream read error")
			}
			return
		}
		s.handleMessage(message)
	}
}

func (s *Stream) handleMessage(data []byte) {
	var wrapper struct {
		Data struct {
			EventType   string `json:"e"`
			Symbol      string `json:"s"`
			Close       string `json:"c"`
			Open        string `json:"o"`
			QuoteVolume string `json:"q"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return
	}
	m := wrapper.Data
	if m.EventType != "24hrMiniTicker" {
		return
	}

	price := parseDecimal(m.Close)
	if price.IsZero() {
		return
	}

	open := parseDecimal(m.Open)
	changePct := decimal.Zero
	if !open.IsZero() {
		changePct = price.Sub(open).Div(open).Mul(decimal.NewFromInt(100))
	}

	ticker := Ticker{
		Symbol:       s.unifiedSymbol(m.Symbol),
		Exchange:     "binanceus",
		Price:        price,
		Bid:          price,
		Ask:          price,
		QuoteVolume:  parseDecimal(m.QuoteVolume),
		ChangePct24h: changePct,
		Timestamp:    time.Now(),
		IsRealData:   true,
		DataSource:   "EXCHANGE_WS",
	}

	if s.onTicker != nil {
		s.onTicker(ticker)
	}
}

// unifiedSymbol maps "DOGEUSDT" back to "DOGE/USDT" using the subscribed set
func (s *Stream) unifiedSymbol(raw string) string {
	for _, sym := range s.symbols {
		if binanceSymbol(sym) == raw {
			return sym
		}
	}
	return raw
}
