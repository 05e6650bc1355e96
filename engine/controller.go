package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gabrielgyns/trading-bot/exchange"
	"github.com/gabrielgyns/trading-bot/indicators"
	"github.com/gabrielgyns/trading-bot/market"
	"github.com/gabrielgyns/trading-bot/metrics"
	"github.com/gabrielgyns/trading-bot/risk"
	"github.com/gabrielgyns/trading-bot/strategy"
)

// ControllerConfig parameterizes the trading loop.
type ControllerConfig struct {
	Symbol         market.Symbol
	EntryTimeframe string // candles the evaluator runs on
	TrendTimeframe string // longer frame for trend confirmation
	CandleLimit    int

	RSIPeriod    int
	ATRPeriod    int
	VolumeWindow int
	TrendSMA     int

	RiskPerTrade float64 // fraction of current balance per entry
	MinOrderSize float64

	TickInterval time.Duration
	ErrorBackoff time.Duration
}

func (c *ControllerConfig) defaults() {
	if c.EntryTimeframe == "" {
		c.EntryTimeframe = "5m"
	}
	if c.TrendTimeframe == "" {
		c.TrendTimeframe = "1h"
	}
	if c.CandleLimit <= 0 {
		c.CandleLimit = 100
	}
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = 14
	}
	if c.ATRPeriod <= 0 {
		c.ATRPeriod = 14
	}
	if c.VolumeWindow <= 0 {
		c.VolumeWindow = 5
	}
	if c.TrendSMA <= 0 {
		c.TrendSMA = 20
	}
	if c.RiskPerTrade <= 0 {
		c.RiskPerTrade = 0.05
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 5 * time.Second
	}
}

// Controller is the trading loop: every tick it drains pending operator
// commands, checks the risk budget, resolves any open position, and when flat
// evaluates the strategy for a fresh entry.
type Controller struct {
	cfg ControllerConfig

	ex       exchange.Exchange
	mgr      *BracketManager
	prices   *market.PriceStore
	ledger   *risk.Ledger
	flags    *Flags
	eval     strategy.Evaluator
	notifier Notifier

	commands chan Command

	// prev is only touched from the loop goroutine.
	prev *strategy.Snapshot
}

// NewController wires the loop. commands may be nil; callers that front the
// loop with their own listener (e.g. Telegram) pass the channel they already
// hold.
func NewController(cfg ControllerConfig, ex exchange.Exchange, mgr *BracketManager,
	prices *market.PriceStore, ledger *risk.Ledger, flags *Flags,
	eval strategy.Evaluator, notifier Notifier, commands chan Command) *Controller {
	cfg.defaults()
	if commands == nil {
		commands = make(chan Command, 16)
	}
	return &Controller{
		cfg:      cfg,
		ex:       ex,
		mgr:      mgr,
		prices:   prices,
		ledger:   ledger,
		flags:    flags,
		eval:     eval,
		notifier: notifier,
		commands: commands,
	}
}

// Commands returns the channel operator front ends send on.
func (c *Controller) Commands() chan<- Command { return c.commands }

// Run blocks until ctx is cancelled. Errors inside a tick are logged and
// answered with a longer backoff rather than terminating the loop.
func (c *Controller) Run(ctx context.Context) {
	log.Printf("[loop] starting for %s (tick %s)", c.cfg.Symbol, c.cfg.TickInterval)

	for {
		c.drainCommands(ctx)

		wait := c.cfg.TickInterval
		if c.flags.Running() {
			if err := c.tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("[loop] tick: %v", err)
				wait = c.cfg.ErrorBackoff
			}
		}

		select {
		case <-ctx.Done():
			log.Printf("[loop] shutting down")
			return
		case <-time.After(wait):
		}
	}
}

func (c *Controller) drainCommands(ctx context.Context) {
	for {
		select {
		case cmd := <-c.commands:
			c.handleCommand(ctx, cmd)
		default:
			return
		}
	}
}

func (c *Controller) tick(ctx context.Context) error {
	metrics.IncTick()

	// Threshold re-check guards against a closure whose record was missed
	// on a failed tick.
	if reason, halted := c.ledger.Check(); halted {
		c.halt(ctx, reason)
		return nil
	}

	if err := c.mgr.PollResolution(ctx); err != nil {
		return err
	}

	// One position at a time; while it lives the loop only manages it.
	if _, open := c.mgr.Position(); open {
		return nil
	}

	price, ok := c.prices.Get()
	if !ok {
		log.Printf("[loop] no fresh price for %s, skipping tick", c.cfg.Symbol)
		return nil
	}

	snap, err := c.snapshot(ctx)
	if err != nil {
		return err
	}

	sig := c.eval.Evaluate(c.prev, snap)
	c.prev = &snap
	metrics.IncSignal(sig.String())

	var side exchange.Side
	switch sig {
	case strategy.Buy:
		side = exchange.Buy
	case strategy.Sell:
		side = exchange.Sell
	default:
		return nil
	}

	size := c.ex.RoundSize(c.cfg.Symbol, c.ledger.CurrentBalance()*c.cfg.RiskPerTrade/price)
	if size <= 0 || size < c.cfg.MinOrderSize {
		log.Printf("[loop] %s signal but size %.8f below minimum, skipping", sig, size)
		return nil
	}

	err = c.mgr.Enter(ctx, side, price, size, snap.ATR)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrPositionOpen), errors.Is(err, ErrOrdersOpen):
		// Lost the race with a resting state; the next tick sees it.
		log.Printf("[loop] entry skipped: %v", err)
		return nil
	case errors.Is(err, ErrInsufficientFunds):
		log.Printf("[loop] entry skipped: %v", err)
		return nil
	default:
		return err
	}
}

// halt stops trading and, on a loss-limit breach, flattens everything.
// The profit-target halt leaves any open position to run out its brackets.
func (c *Controller) halt(ctx context.Context, reason risk.HaltReason) {
	if !c.flags.Running() {
		return
	}

	if reason == risk.HaltLossLimit {
		if err := c.mgr.CancelAll(ctx); err != nil {
			log.Printf("[loop] halt cancel-all: %v", err)
		}
	}
	c.flags.SetRunning(false)
	metrics.IncHalt(string(reason))
	c.notifier.Notify(fmt.Sprintf("🛑 Trading halted (%s). Daily P&L: $%.2f. Restart required to resume.",
		reason, c.ledger.DailyPnl()))
}

// snapshot fetches both candle frames and computes the indicator state.
func (c *Controller) snapshot(ctx context.Context) (strategy.Snapshot, error) {
	candles, err := c.ex.GetCandles(ctx, c.cfg.Symbol, c.cfg.EntryTimeframe, c.cfg.CandleLimit)
	if err != nil {
		return strategy.Snapshot{}, fmt.Errorf("candles %s: %w", c.cfg.EntryTimeframe, err)
	}
	trend, err := c.ex.GetCandles(ctx, c.cfg.Symbol, c.cfg.TrendTimeframe, c.cfg.CandleLimit)
	if err != nil {
		return strategy.Snapshot{}, fmt.Errorf("candles %s: %w", c.cfg.TrendTimeframe, err)
	}

	macd, sigLine := indicators.MACD(candles)
	snap := strategy.Snapshot{
		RSI:        indicators.RSI(candles, c.cfg.RSIPeriod),
		ATR:        indicators.ATR(candles, c.cfg.ATRPeriod),
		Volume:     indicators.AvgVolume(candles, c.cfg.VolumeWindow),
		MACD:       macd,
		SignalLine: sigLine,
	}

	if len(trend) > 0 {
		sma := indicators.SMA(trend, c.cfg.TrendSMA)
		snap.TrendUp = trend[len(trend)-1].Close > sma
	}
	return snap, nil
}

func (c *Controller) handleCommand(ctx context.Context, cmd Command) {
	switch cmd.Kind {
	case CmdStart:
		if reason, halted := c.ledger.Halted(); halted {
			cmd.reply(fmt.Sprintf("Cannot start: halted (%s). Restart the process to reset the daily budget.", reason))
			return
		}
		c.flags.SetRunning(true)
		cmd.reply("▶️ Trading started")

	case CmdStop:
		c.flags.SetRunning(false)
		cmd.reply("⏸ Trading stopped (open position keeps its brackets)")

	case CmdToggleSim:
		if c.flags.ToggleSimulation() {
			cmd.reply("🧪 Simulation mode ON: entries will be logged, not sent")
		} else {
			cmd.reply("💵 Simulation mode OFF: entries go to the venue")
		}

	case CmdCancelAll:
		if err := c.mgr.CancelAll(ctx); err != nil {
			cmd.reply(fmt.Sprintf("Cancel-all failed: %v", err))
			return
		}
		cmd.reply("🚫 All orders cancelled, position cleared")

	case CmdStatus:
		cmd.reply(c.renderStatus())

	case CmdPosition:
		cmd.reply(c.renderPosition())

	case CmdDaily:
		cmd.reply(c.renderDaily())
	}
}

func (c *Controller) renderStatus() string {
	state := "stopped"
	if c.flags.Running() {
		state = "running"
	}
	mode := "live"
	if c.flags.Simulation() {
		mode = "simulation"
	}

	priceLine := "n/a"
	if price, ok := c.prices.Get(); ok {
		priceLine = fmt.Sprintf("$%.4f", price)
	}

	s := fmt.Sprintf("🤖 %s | %s | %s\nPrice: %s\nBalance: $%.2f\nDaily P&L: $%.2f",
		c.cfg.Symbol, state, mode, priceLine, c.ledger.CurrentBalance(), c.ledger.DailyPnl())
	if c.prev != nil {
		s += fmt.Sprintf("\nRSI(%d): %.1f | Volume: %.0f", c.cfg.RSIPeriod, c.prev.RSI, c.prev.Volume)
	}
	if reason, halted := c.ledger.Halted(); halted {
		s += fmt.Sprintf("\n🛑 HALTED: %s", reason)
	}
	return s
}

func (c *Controller) renderPosition() string {
	pos, open := c.mgr.Position()
	if !open {
		return "No open position"
	}

	s := fmt.Sprintf("📌 %s %s\nEntry: $%.4f\nSize: %.4f\nTP: $%.4f\nSL: $%.4f",
		pos.Side, pos.Symbol, pos.EntryPrice, pos.Size, pos.TakeProfitPrice, pos.StopLossPrice)
	if pos.StopMovedToBreakeven {
		s += " (break-even)"
	}
	if price, ok := c.prices.Get(); ok {
		pct, abs := pos.UnrealizedPnl(price)
		s += fmt.Sprintf("\nUnrealized: %.2f%% ($%.2f)", pct, abs)
	}
	return s
}

func (c *Controller) renderDaily() string {
	return fmt.Sprintf("📊 Daily P&L: $%.2f\nLoss limit: -$%.2f\nProfit target: +$%.2f\nBalance: $%.2f (started $%.2f)",
		c.ledger.DailyPnl(), c.ledger.MaxDailyLoss(), c.ledger.ProfitTarget(),
		c.ledger.CurrentBalance(), c.ledger.InitialBalance())
}
