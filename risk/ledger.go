// Package risk tracks the daily P&L budget: cumulative realized profit and
// loss against an absolute loss limit and profit target derived from the
// starting balance.
package risk

import (
	"fmt"
	"sync"
)

// HaltReason says which budget threshold stopped trading.
type HaltReason string

const (
	HaltLossLimit    HaltReason = "loss-limit"
	HaltProfitTarget HaltReason = "profit-target"
)

// InvalidConfigError reports unusable ledger parameters at startup.
type InvalidConfigError struct {
	Field string
	Msg   string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("risk: invalid config: %s %s", e.Field, e.Msg)
}

// Ledger accumulates realized P&L for the current trading day.
//
// There is no automatic day rollover: dailyPnl only resets with a process
// restart. Once either threshold is breached the ledger stays halted; later
// RecordRealizedPnl calls never un-halt it.
type Ledger struct {
	mu sync.Mutex

	initialBalance float64
	currentBalance float64
	dailyPnl       float64

	maxDailyLoss float64 // absolute, >= 0
	profitTarget float64 // absolute, >= 0

	halted     bool
	haltReason HaltReason
}

// New derives the absolute thresholds from the starting balance:
//
//	maxDailyLoss = initialBalance * maxDrawdownFrac
//	profitTarget = initialBalance * profitTargetFrac
func New(initialBalance, maxDrawdownFrac, profitTargetFrac float64) (*Ledger, error) {
	if initialBalance <= 0 {
		return nil, &InvalidConfigError{Field: "initial_balance", Msg: "must be positive"}
	}
	if maxDrawdownFrac < 0 {
		return nil, &InvalidConfigError{Field: "max_drawdown", Msg: "must not be negative"}
	}
	if profitTargetFrac < 0 {
		return nil, &InvalidConfigError{Field: "daily_profit_target", Msg: "must not be negative"}
	}

	return &Ledger{
		initialBalance: initialBalance,
		currentBalance: initialBalance,
		maxDailyLoss:   initialBalance * maxDrawdownFrac,
		profitTarget:   initialBalance * profitTargetFrac,
	}, nil
}

// RecordRealizedPnl adds a confirmed position closure to the day's total and
// re-evaluates the thresholds. It returns the halt reason and true when the
// ledger is (or already was) halted.
func (l *Ledger) RecordRealizedPnl(amount float64) (HaltReason, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.dailyPnl += amount
	l.currentBalance += amount
	return l.checkLocked()
}

// Check re-evaluates the thresholds without recording anything. The
// controller calls this at the start of every tick as a defense against a
// closure missed due to a transient fetch failure.
func (l *Ledger) Check() (HaltReason, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checkLocked()
}

func (l *Ledger) checkLocked() (HaltReason, bool) {
	if l.halted {
		return l.haltReason, true
	}
	switch {
	case l.dailyPnl <= -l.maxDailyLoss:
		l.halted = true
		l.haltReason = HaltLossLimit
	case l.dailyPnl >= l.profitTarget:
		l.halted = true
		l.haltReason = HaltProfitTarget
	}
	return l.haltReason, l.halted
}

// Halted reports the sticky halt state.
func (l *Ledger) Halted() (HaltReason, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.haltReason, l.halted
}

func (l *Ledger) DailyPnl() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dailyPnl
}

func (l *Ledger) CurrentBalance() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentBalance
}

func (l *Ledger) InitialBalance() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.initialBalance
}

func (l *Ledger) MaxDailyLoss() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maxDailyLoss
}

func (l *Ledger) ProfitTarget() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.profitTarget
}
