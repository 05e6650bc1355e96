package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gabrielgyns/trading-bot/exchange"
	"github.com/gabrielgyns/trading-bot/internal/id"
	"github.com/gabrielgyns/trading-bot/journal"
	"github.com/gabrielgyns/trading-bot/market"
	"github.com/gabrielgyns/trading-bot/metrics"
	"github.com/gabrielgyns/trading-bot/risk"
)

// ManagerConfig holds the bracket parameters.
type ManagerConfig struct {
	Symbol market.Symbol

	// Volatility brackets (default): TP = entry ± ATR*RewardRatio,
	// SL = entry ∓ ATR.
	RewardRatio float64

	// Fixed-percentage brackets, used when FixedBrackets is set:
	// TP = entry*TakeProfitMult, SL = entry*StopLossMult (mirrored for
	// shorts).
	FixedBrackets  bool
	TakeProfitMult float64
	StopLossMult   float64

	// BreakEvenTrigger moves the stop to entry once price reaches
	// entry*BreakEvenTrigger. Long positions only.
	BreakEvenTrigger float64

	// StopLimitBuffer shifts the stop's limit price below its trigger
	// (longs) so the limit leg cannot cross its own trigger.
	StopLimitBuffer float64
}

// BracketManager owns the position lifecycle: entry execution, bracket
// placement and confirmation, break-even escalation, and closure accounting.
//
// A single mutex spans every public call, which is what enforces the
// single-flight guarantee on Enter: two concurrent entry attempts serialize,
// and the loser fails the no-position precondition.
type BracketManager struct {
	mu sync.Mutex

	cfg      ManagerConfig
	ex       exchange.Exchange
	prices   *market.PriceStore
	ledger   *risk.Ledger
	flags    *Flags
	notifier Notifier
	journal  journal.Journal

	pos *Position
}

func NewBracketManager(cfg ManagerConfig, ex exchange.Exchange, prices *market.PriceStore,
	ledger *risk.Ledger, flags *Flags, notifier Notifier, j journal.Journal) *BracketManager {
	if cfg.RewardRatio <= 0 {
		cfg.RewardRatio = 2.0
	}
	if cfg.BreakEvenTrigger <= 0 {
		cfg.BreakEvenTrigger = 1.007
	}
	if cfg.StopLimitBuffer <= 0 {
		cfg.StopLimitBuffer = 0.999
	}
	if j == nil {
		j = journal.Nop{}
	}
	return &BracketManager{
		cfg:      cfg,
		ex:       ex,
		prices:   prices,
		ledger:   ledger,
		flags:    flags,
		notifier: notifier,
		journal:  j,
	}
}

// Position returns a read-only copy of the current position.
func (m *BracketManager) Position() (Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos == nil {
		return Position{}, false
	}
	return *m.pos, true
}

// Enter opens a fully-bracketed position. The lock is held for the whole
// call so only one entry can ever be in flight.
func (m *BracketManager) Enter(ctx context.Context, side exchange.Side, refPrice, size, atr float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.flags.Simulation() {
		m.notifier.Notify(fmt.Sprintf("[SIM] %s %.4f %s @ %.4f", side, size, m.cfg.Symbol, refPrice))
		return nil
	}

	if m.pos != nil {
		return ErrPositionOpen
	}

	open, err := m.ex.ListOpenOrders(ctx, m.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("enter: list open orders: %w", err)
	}
	if len(open) > 0 {
		return ErrOrdersOpen
	}

	// Round once, up front, so the entry and both exits carry the same
	// quantity. Rounding after the market order would leave a residue
	// between the position and its brackets.
	size = m.ex.RoundSize(m.cfg.Symbol, size)

	if err := m.checkBalanceLocked(ctx, side, refPrice, size); err != nil {
		return err
	}

	ord, err := m.ex.PlaceMarketOrder(ctx, m.cfg.Symbol, side, size)
	if err != nil {
		return fmt.Errorf("enter: market order: %w", err)
	}
	if ord.Status != exchange.StatusFilled {
		return &EntryRejectedError{OrderID: ord.ID, Status: ord.Status}
	}

	// Brackets are computed from the actual fill price; the pre-trade
	// reference may already have moved.
	entry := ord.FillPrice
	if entry <= 0 {
		entry = refPrice
	}

	tp, sl := m.bracketPrices(side, entry, atr)
	tp = m.ex.RoundPrice(m.cfg.Symbol, tp)
	sl = m.ex.RoundPrice(m.cfg.Symbol, sl)

	exitSide := side.Opposite()

	tpOrd, err := m.ex.PlaceStopOrder(ctx, exchange.StopOrderRequest{
		Symbol:       m.cfg.Symbol,
		Side:         exitSide,
		Size:         size,
		LimitPrice:   tp,
		TriggerPrice: tp,
		Type:         exchange.TakeProfitLimit,
	})
	if err != nil {
		return m.abortBracketLocked(ctx, fmt.Errorf("enter: place take-profit: %w", err))
	}

	slLimit := sl * m.cfg.StopLimitBuffer
	if side == exchange.Sell {
		slLimit = sl * (2 - m.cfg.StopLimitBuffer)
	}
	slOrd, err := m.ex.PlaceStopOrder(ctx, exchange.StopOrderRequest{
		Symbol:       m.cfg.Symbol,
		Side:         exitSide,
		Size:         size,
		LimitPrice:   m.ex.RoundPrice(m.cfg.Symbol, slLimit),
		TriggerPrice: sl,
		Type:         exchange.StopLossLimit,
	})
	if err != nil {
		return m.abortBracketLocked(ctx, fmt.Errorf("enter: place stop-loss: %w", err))
	}

	// Placement acknowledgement does not guarantee book visibility; read
	// back and require both legs. A half-bracketed position is naked
	// exposure and must never persist.
	open, err = m.ex.ListOpenOrders(ctx, m.cfg.Symbol)
	if err != nil {
		return m.abortBracketLocked(ctx, fmt.Errorf("enter: confirm brackets: %w", err))
	}
	var tpSeen, slSeen bool
	for _, o := range open {
		if o.ID == tpOrd.ID {
			tpSeen = true
		}
		if o.ID == slOrd.ID {
			slSeen = true
		}
	}
	if !tpSeen || !slSeen {
		return m.abortBracketLocked(ctx, nil)
	}

	m.pos = &Position{
		Symbol:            m.cfg.Symbol,
		Side:              side,
		EntryPrice:        entry,
		Size:              size,
		OpenTime:          time.Now(),
		EntryOrderID:      ord.ID,
		TakeProfitOrderID: tpOrd.ID,
		StopLossOrderID:   slOrd.ID,
		TakeProfitPrice:   tp,
		StopLossPrice:     sl,
	}

	rewardPct := (tp - entry) / entry * 100
	riskPct := (entry - sl) / entry * 100
	if side == exchange.Sell {
		rewardPct = -rewardPct
		riskPct = -riskPct
	}

	metrics.IncEntry(string(side))
	m.notifier.Notify(fmt.Sprintf(
		"📌 New position: %s %s\n💰 Entry: $%.4f\n📈 TP: $%.4f (+%.2f%%)\n📉 SL: $%.4f (-%.2f%%)\n📦 Size: %.4f",
		side, m.cfg.Symbol, entry, tp, rewardPct, sl, riskPct, size))

	return nil
}

// checkBalanceLocked verifies the entry is affordable: quote currency for
// longs, base currency for shorts.
func (m *BracketManager) checkBalanceLocked(ctx context.Context, side exchange.Side, price, size float64) error {
	if side == exchange.Buy {
		bal, err := m.ex.GetBalance(ctx, m.cfg.Symbol.Quote())
		if err != nil {
			return fmt.Errorf("enter: balance: %w", err)
		}
		if bal.Free < size*price {
			return ErrInsufficientFunds
		}
		return nil
	}

	bal, err := m.ex.GetBalance(ctx, m.cfg.Symbol.Base())
	if err != nil {
		return fmt.Errorf("enter: balance: %w", err)
	}
	if bal.Free < size {
		return ErrInsufficientFunds
	}
	return nil
}

// abortBracketLocked is the corrective path for an incomplete bracket:
// cancel everything for the symbol, keep no position.
func (m *BracketManager) abortBracketLocked(ctx context.Context, cause error) error {
	if err := m.ex.CancelAllOrders(ctx, m.cfg.Symbol); err != nil {
		log.Printf("[bracket] cancel-all after incomplete bracket failed: %v", err)
	}
	m.pos = nil
	m.notifier.Notify("🚨 Bracket incomplete: cancelled all orders, no position kept")
	if cause != nil {
		return fmt.Errorf("%w: %v", ErrBracketIncomplete, cause)
	}
	return ErrBracketIncomplete
}

// bracketPrices computes exit levels from the fill price.
func (m *BracketManager) bracketPrices(side exchange.Side, entry, atr float64) (tp, sl float64) {
	if m.cfg.FixedBrackets {
		if side == exchange.Buy {
			return entry * m.cfg.TakeProfitMult, entry * m.cfg.StopLossMult
		}
		return entry * (2 - m.cfg.TakeProfitMult), entry * (2 - m.cfg.StopLossMult)
	}

	if side == exchange.Buy {
		return entry + atr*m.cfg.RewardRatio, entry - atr
	}
	return entry - atr*m.cfg.RewardRatio, entry + atr
}

// PollResolution checks whether either bracket leg has filled and settles
// the position if so; otherwise it considers break-even escalation. Called
// every tick while a position exists.
func (m *BracketManager) PollResolution(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pos == nil {
		return nil
	}

	price, ok := m.prices.Get()
	if !ok {
		log.Printf("[bracket] no current price, deferring resolution check")
		return nil
	}

	tpOrd, err := m.ex.GetOrder(ctx, m.cfg.Symbol, m.pos.TakeProfitOrderID)
	if err != nil {
		return fmt.Errorf("poll: take-profit order: %w", err)
	}
	slOrd, err := m.ex.GetOrder(ctx, m.cfg.Symbol, m.pos.StopLossOrderID)
	if err != nil {
		return fmt.Errorf("poll: stop-loss order: %w", err)
	}

	tpFilled := tpOrd.Status == exchange.StatusFilled
	slFilled := slOrd.Status == exchange.StatusFilled

	switch {
	case tpFilled:
		if slFilled {
			// Should be impossible; surface it rather than hide it.
			m.notifier.Notify("⚠️ Both bracket legs report filled; settling as take-profit")
		}
		m.settleLocked(ctx, tpOrd, journal.ReasonTakeProfit)
		return nil

	case slFilled:
		m.settleLocked(ctx, slOrd, journal.ReasonStopLoss)
		return nil
	}

	// Break-even escalation: one-way ratchet, long positions only.
	if m.pos.Side == exchange.Buy &&
		!m.pos.StopMovedToBreakeven &&
		price >= m.pos.EntryPrice*m.cfg.BreakEvenTrigger &&
		slOrd.Status == exchange.StatusNew {
		return m.moveStopToBreakevenLocked(ctx)
	}

	return nil
}

// settleLocked books a finished trade: realized P&L, ledger update, removal
// of the surviving leg, notification, journaling.
func (m *BracketManager) settleLocked(ctx context.Context, exitOrd exchange.Order, reason journal.CloseReason) {
	pos := *m.pos

	exit := exitOrd.FillPrice
	if exit <= 0 {
		exit = exitOrd.Price
	}
	pnl := pos.realizedPnl(exit)
	pnlPct := (exit - pos.EntryPrice) / pos.EntryPrice * 100
	if pos.Side == exchange.Sell {
		pnlPct = -pnlPct
	}

	if err := m.ex.CancelAllOrders(ctx, m.cfg.Symbol); err != nil {
		log.Printf("[bracket] cancel remaining leg: %v", err)
	}
	m.pos = nil

	_, wasHalted := m.ledger.Halted()
	haltReason, halted := m.ledger.RecordRealizedPnl(pnl)
	metrics.IncClose(string(reason))
	metrics.SetDailyPnl(m.ledger.DailyPnl())

	switch reason {
	case journal.ReasonTakeProfit:
		m.notifier.Notify(fmt.Sprintf(
			"✅ TAKE PROFIT filled!\nEntry: $%.4f\nExit: $%.4f\nProfit: %.2f%% ($%.2f)\nSize: %.4f",
			pos.EntryPrice, exit, pnlPct, pnl, pos.Size))
	case journal.ReasonStopLoss:
		m.notifier.Notify(fmt.Sprintf(
			"🛑 STOP LOSS filled!\nEntry: $%.4f\nExit: $%.4f\nLoss: %.2f%% ($%.2f)\nSize: %.4f",
			pos.EntryPrice, exit, pnlPct, pnl, pos.Size))
	}

	if err := m.journal.RecordTrade(journal.TradeRecord{
		TradeID:     id.New(),
		Symbol:      string(pos.Symbol),
		Side:        string(pos.Side),
		Size:        pos.Size,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   exit,
		OpenTime:    pos.OpenTime,
		CloseTime:   time.Now(),
		RealizedPnl: pnl,
		Reason:      string(reason),
	}); err != nil {
		log.Printf("[bracket] journal record: %v", err)
	}

	// Announce the breach even when the operator already stopped the bot:
	// a stopped loop skips ticks, so this is the only place that sees it.
	if halted && !wasHalted {
		m.flags.SetRunning(false)
		metrics.IncHalt(string(haltReason))
		m.notifier.Notify(fmt.Sprintf("🛑 Trading halted (%s): daily P&L $%.2f", haltReason, m.ledger.DailyPnl()))
	}
}

// moveStopToBreakevenLocked cancels the original stop and replaces it with
// one triggered at the entry price, eliminating downside on the trade. Once
// moved it is never moved back.
func (m *BracketManager) moveStopToBreakevenLocked(ctx context.Context) error {
	pos := m.pos

	if err := m.ex.CancelOrder(ctx, m.cfg.Symbol, pos.StopLossOrderID); err != nil {
		return fmt.Errorf("break-even: cancel stop: %w", err)
	}

	limit := m.ex.RoundPrice(m.cfg.Symbol, pos.EntryPrice*m.cfg.StopLimitBuffer)
	newSL, err := m.ex.PlaceStopOrder(ctx, exchange.StopOrderRequest{
		Symbol:       m.cfg.Symbol,
		Side:         pos.Side.Opposite(),
		Size:         pos.Size,
		LimitPrice:   limit,
		TriggerPrice: m.ex.RoundPrice(m.cfg.Symbol, pos.EntryPrice),
		Type:         exchange.StopLossLimit,
	})
	if err != nil {
		return fmt.Errorf("break-even: place replacement stop: %w", err)
	}

	pos.StopLossOrderID = newSL.ID
	pos.StopLossPrice = pos.EntryPrice
	pos.StopMovedToBreakeven = true

	m.notifier.Notify("Stop loss moved to break-even")
	return nil
}

// CancelAll unconditionally cancels every open order for the symbol and
// clears the position, whatever state it was in. Safe to call repeatedly.
func (m *BracketManager) CancelAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.ex.CancelAllOrders(ctx, m.cfg.Symbol)
	// Position is cleared regardless: this is the recovery primitive.
	hadPosition := m.pos != nil
	m.pos = nil

	if err != nil {
		return fmt.Errorf("cancel-all: %w", err)
	}
	if hadPosition {
		metrics.IncClose(string(journal.ReasonCancel))
	}
	m.notifier.Notify(fmt.Sprintf("🚫 All remaining orders cancelled for %s", m.cfg.Symbol))
	return nil
}
