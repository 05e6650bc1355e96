// Package journal records closed trades to SQLite and answers the daily
// queries the CLI and the operator channel need.
package journal

import "time"

// CloseReason is why a position left the book.
type CloseReason string

const (
	ReasonTakeProfit CloseReason = "TakeProfit"
	ReasonStopLoss   CloseReason = "StopLoss"
	ReasonCancel     CloseReason = "Cancel"
)

// TradeRecord is one completed round trip: entry fill to bracket exit.
type TradeRecord struct {
	TradeID     string
	Symbol      string
	Side        string // buy | sell (entry direction)
	Size        float64
	EntryPrice  float64
	ExitPrice   float64
	OpenTime    time.Time
	CloseTime   time.Time
	RealizedPnl float64
	Reason      string
}

// DaySummary aggregates one trading day.
type DaySummary struct {
	Trades      int
	Wins        int
	Losses      int
	NetPnl      float64
	GrossProfit float64
	GrossLoss   float64
}

type Journal interface {
	RecordTrade(TradeRecord) error
	Close() error
}

// Nop discards every record; used when journaling is disabled in config.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error { return nil }
func (Nop) Close() error                  { return nil }
