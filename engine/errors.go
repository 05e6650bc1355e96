package engine

import (
	"errors"
	"fmt"

	"github.com/gabrielgyns/trading-bot/exchange"
)

var (
	// ErrPositionOpen rejects an entry while a position already exists.
	// The caller skips the signal; no venue call is made.
	ErrPositionOpen = errors.New("engine: position already open")

	// ErrOrdersOpen rejects an entry while untracked orders rest on the
	// book for the symbol.
	ErrOrdersOpen = errors.New("engine: open orders exist for symbol")

	// ErrInsufficientFunds rejects an entry before any order is sent.
	ErrInsufficientFunds = errors.New("engine: insufficient balance for entry")

	// ErrBracketIncomplete reports that one or both exit legs failed to
	// appear on the book after entry. The manager has already issued the
	// corrective cancel-all by the time this is returned.
	ErrBracketIncomplete = errors.New("engine: bracket incomplete, all orders cancelled")
)

// EntryRejectedError reports a market entry the venue did not fill
// immediately. No position was created.
type EntryRejectedError struct {
	OrderID string
	Status  exchange.OrderStatus
}

func (e *EntryRejectedError) Error() string {
	return fmt.Sprintf("engine: entry order %s not filled (status %s)", e.OrderID, e.Status)
}
