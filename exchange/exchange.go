// Package exchange defines the execution-venue surface the trading engine
// talks to, plus the order and balance types shared by all backends.
//
// Two concrete implementations exist:
//   - exchange/binance — signed REST client for Binance spot
//   - exchange/paper   — deterministic in-memory venue for tests and paper mode
package exchange

import (
	"context"
	"time"

	"github.com/gabrielgyns/trading-bot/market"
)

// Side is the direction of an order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the closing direction for an entry side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType distinguishes entries from the two bracket exit styles.
type OrderType string

const (
	Market          OrderType = "MARKET"
	StopLossLimit   OrderType = "STOP_LOSS_LIMIT"
	TakeProfitLimit OrderType = "TAKE_PROFIT_LIMIT"
)

// OrderStatus is the normalized lifecycle state of an order.
type OrderStatus string

const (
	StatusNew      OrderStatus = "NEW"
	StatusFilled   OrderStatus = "FILLED"
	StatusCanceled OrderStatus = "CANCELED"
	StatusRejected OrderStatus = "REJECTED"
)

// Order is a normalized view of a venue order.
type Order struct {
	ID        string
	Symbol    market.Symbol
	Side      Side
	Type      OrderType
	Size      float64
	Price     float64 // limit price (exits)
	StopPrice float64 // trigger price (exits)
	Status    OrderStatus
	FillPrice float64 // average execution price, set once filled
	Time      time.Time
}

// Balance is the free amount of a single asset.
type Balance struct {
	Asset string
	Free  float64
}

// StopOrderRequest describes one leg of a bracket: a stop-triggered limit
// exit in the position's closing direction.
type StopOrderRequest struct {
	Symbol       market.Symbol
	Side         Side
	Size         float64
	LimitPrice   float64
	TriggerPrice float64
	Type         OrderType // StopLossLimit or TakeProfitLimit
}

// Exchange is the venue surface the engine needs. All calls are synchronous
// with a bounded timeout enforced by the implementation; ctx cancellation is
// honored as well.
type Exchange interface {
	GetBalance(ctx context.Context, asset string) (Balance, error)
	PlaceMarketOrder(ctx context.Context, symbol market.Symbol, side Side, size float64) (Order, error)
	PlaceStopOrder(ctx context.Context, req StopOrderRequest) (Order, error)
	CancelOrder(ctx context.Context, symbol market.Symbol, orderID string) error
	CancelAllOrders(ctx context.Context, symbol market.Symbol) error
	ListOpenOrders(ctx context.Context, symbol market.Symbol) ([]Order, error)
	GetOrder(ctx context.Context, symbol market.Symbol, orderID string) (Order, error)
	GetCandles(ctx context.Context, symbol market.Symbol, timeframe string, limit int) ([]market.Candle, error)

	// RoundPrice and RoundSize snap values to the venue's tick and lot
	// precision. They are pure and never hit the network.
	RoundPrice(symbol market.Symbol, price float64) float64
	RoundSize(symbol market.Symbol, size float64) float64
}
