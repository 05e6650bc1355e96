// Package feed maintains the live price stream: a websocket subscription to
// the venue's trade stream that keeps the shared PriceStore current. The
// trading loop never talks to the socket; it only reads the store.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gabrielgyns/trading-bot/market"
	"github.com/gabrielgyns/trading-bot/metrics"
)

// DefaultEndpoint is the Binance spot combined-stream host.
const DefaultEndpoint = "wss://stream.binance.com:9443"

// Config for a price stream.
type Config struct {
	Endpoint string
	Symbol   market.Symbol

	ReadTimeout  time.Duration // reconnect when no frame arrives in this window
	PingInterval time.Duration
	Backoff      time.Duration // wait between reconnect attempts
}

func (c *Config) defaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 20 * time.Second
	}
	if c.Backoff <= 0 {
		c.Backoff = 5 * time.Second
	}
}

// tradeEvent is the subset of the venue's trade stream payload we consume.
type tradeEvent struct {
	EventType string `json:"e"`
	Price     string `json:"p"`
	TradeTime int64  `json:"T"` // milliseconds
}

// Stream owns one websocket connection and its reconnect loop.
type Stream struct {
	cfg    Config
	prices *market.PriceStore
}

func NewStream(cfg Config, prices *market.PriceStore) *Stream {
	cfg.defaults()
	return &Stream{cfg: cfg, prices: prices}
}

func (s *Stream) url() string {
	return fmt.Sprintf("%s/ws/%s@trade", s.cfg.Endpoint, strings.ToLower(s.cfg.Symbol.Compact()))
}

// Run blocks until ctx is cancelled, reconnecting forever. Each reconnect
// clears the store so the loop sees "no price" instead of a stale one.
func (s *Stream) Run(ctx context.Context) {
	first := true
	for {
		if !first {
			metrics.IncFeedReconnect()
			s.prices.Clear()
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.cfg.Backoff):
			}
		}
		first = false

		if err := s.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[feed] %s stream: %v", s.cfg.Symbol, err)
		}
	}
}

// runOnce dials, pumps frames into the store, and returns on any failure.
func (s *Stream) runOnce(ctx context.Context) error {
	url := s.url()
	log.Printf("[feed] connecting to %s", url)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	log.Printf("[feed] connected")

	// Close the socket on cancellation so ReadMessage unblocks.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	})

	// Ping keeps intermediaries from idling the connection out.
	go func() {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				deadline := time.Now().Add(10 * time.Second)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

		price, at, err := parseTrade(payload)
		if err != nil {
			log.Printf("[feed] skipping frame: %v", err)
			continue
		}
		s.prices.Set(price, at)
	}
}

// parseTrade extracts price and timestamp from a trade frame.
func parseTrade(payload []byte) (price float64, at time.Time, err error) {
	var ev tradeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return 0, time.Time{}, fmt.Errorf("decode: %w", err)
	}
	if ev.EventType != "trade" {
		return 0, time.Time{}, fmt.Errorf("unexpected event %q", ev.EventType)
	}

	price, err = strconv.ParseFloat(ev.Price, 64)
	if err != nil || price <= 0 {
		return 0, time.Time{}, fmt.Errorf("bad price %q", ev.Price)
	}

	at = time.UnixMilli(ev.TradeTime)
	if ev.TradeTime == 0 {
		at = time.Now()
	}
	return price, at, nil
}
