package engine

import (
	"time"

	"github.com/gabrielgyns/trading-bot/exchange"
	"github.com/gabrielgyns/trading-bot/market"
)

// Position is the one stateful entity: a confirmed entry fill bracketed by
// a take-profit and a stop-loss exit. At most one exists per symbol; it is
// created only after the entry fill is confirmed and destroyed when either
// exit fills or a cancel-all is issued.
type Position struct {
	Symbol     market.Symbol
	Side       exchange.Side
	EntryPrice float64
	Size       float64
	OpenTime   time.Time

	EntryOrderID      string
	TakeProfitOrderID string
	StopLossOrderID   string

	TakeProfitPrice float64
	StopLossPrice   float64

	StopMovedToBreakeven bool
}

// UnrealizedPnl returns the live percentage and absolute P&L at the given
// price. Sign is flipped for shorts.
func (p Position) UnrealizedPnl(current float64) (pct, abs float64) {
	pct = (current - p.EntryPrice) / p.EntryPrice * 100
	abs = (current - p.EntryPrice) * p.Size
	if p.Side == exchange.Sell {
		pct = -pct
		abs = -abs
	}
	return pct, abs
}

// realizedPnl computes the closed-trade P&L for an exit at the given price.
func (p Position) realizedPnl(exit float64) float64 {
	pnl := (exit - p.EntryPrice) * p.Size
	if p.Side == exchange.Sell {
		pnl = -pnl
	}
	return pnl
}
