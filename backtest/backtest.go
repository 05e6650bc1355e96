// Package backtest replays historical candles through the signal evaluator
// and a simplified fill model, reproducing the live loop's bracket and risk
// semantics without a venue.
//
// The fill model is intentionally simple:
//   - one position at a time
//   - market entries at bar close
//   - bracket exits evaluated on the OHLC of each later bar
//   - when both legs land inside the same bar, the stop fills (pessimistic)
package backtest

import (
	"fmt"
	"time"

	"github.com/gabrielgyns/trading-bot/indicators"
	"github.com/gabrielgyns/trading-bot/market"
	"github.com/gabrielgyns/trading-bot/risk"
	"github.com/gabrielgyns/trading-bot/strategy"
)

// Config mirrors the live trading parameters that matter offline.
type Config struct {
	Symbol         market.Symbol
	InitialBalance float64
	RiskPerTrade   float64

	RewardRatio      float64
	FixedBrackets    bool
	TakeProfitMult   float64
	StopLossMult     float64
	BreakEvenTrigger float64
	StopLimitBuffer  float64

	MaxDrawdown       float64
	DailyProfitTarget float64

	RSIPeriod    int
	ATRPeriod    int
	VolumeWindow int
	TrendSMA     int
}

func (c *Config) defaults() {
	if c.RiskPerTrade <= 0 {
		c.RiskPerTrade = 0.05
	}
	if c.RewardRatio <= 0 {
		c.RewardRatio = 2.0
	}
	if c.BreakEvenTrigger <= 0 {
		c.BreakEvenTrigger = 1.007
	}
	if c.StopLimitBuffer <= 0 {
		c.StopLimitBuffer = 0.999
	}
	if c.MaxDrawdown <= 0 {
		c.MaxDrawdown = 0.15
	}
	if c.DailyProfitTarget <= 0 {
		c.DailyProfitTarget = 0.10
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
}

// Trade is one completed round trip in the replay.
type Trade struct {
	EntryTime time.Time
	ExitTime  time.Time
	Side      strategy.Signal // Buy or Sell
	Entry     float64
	Exit      float64
	Size      float64
	Pnl       float64
	Reason    string
}

// Result aggregates a replay.
type Result struct {
	Trades       []Trade
	FinalBalance float64
	Wins         int
	Losses       int
	NetPnl       float64

	Halted     bool
	HaltReason risk.HaltReason
}

// position is the in-flight state between bars.
type position struct {
	side      strategy.Signal
	entry     float64
	size      float64
	tp, sl    float64
	openTime  time.Time
	breakEven bool
}

// Run replays the candle series oldest-first.
func Run(cfg Config, eval strategy.Evaluator, candles []market.Candle) (Result, error) {
	cfg.defaults()
	if eval == nil {
		return Result{}, fmt.Errorf("backtest: nil evaluator")
	}
	warmup := cfg.ATRPeriod
	if cfg.RSIPeriod+1 > warmup {
		warmup = cfg.RSIPeriod + 1
	}
	if len(candles) <= warmup {
		return Result{}, fmt.Errorf("backtest: need more than %d candles, have %d", warmup, len(candles))
	}

	ledger, err := risk.New(cfg.InitialBalance, cfg.MaxDrawdown, cfg.DailyProfitTarget)
	if err != nil {
		return Result{}, err
	}

	res := Result{}
	var pos *position
	var prev *strategy.Snapshot

	for i := warmup; i < len(candles); i++ {
		c := candles[i]

		// 1) Exits on this bar, with the stop as it stood entering the bar.
		if pos != nil {
			if exit, reason, hit := checkExit(pos, c, cfg.StopLimitBuffer); hit {
				pnl := closedPnl(pos, exit)
				res.Trades = append(res.Trades, Trade{
					EntryTime: pos.openTime,
					ExitTime:  c.Time,
					Side:      pos.side,
					Entry:     pos.entry,
					Exit:      exit,
					Size:      pos.size,
					Pnl:       pnl,
					Reason:    reason,
				})
				pos = nil

				if haltReason, halted := ledger.RecordRealizedPnl(pnl); halted {
					res.Halted = true
					res.HaltReason = haltReason
					break
				}
			} else if pos.side == strategy.Buy && !pos.breakEven && c.High >= pos.entry*cfg.BreakEvenTrigger {
				// Break-even ratchet, long positions only, applied after
				// this bar so the next one exits at entry.
				pos.sl = pos.entry
				pos.breakEven = true
			}
		}

		if pos != nil {
			prev = nil // evaluator state restarts after the position closes
			continue
		}

		// 2) Fresh entry decision at bar close.
		window := candles[:i+1]
		macd, sig := indicators.MACD(window)
		snap := strategy.Snapshot{
			RSI:        indicators.RSI(window, cfg.RSIPeriod),
			ATR:        indicators.ATR(window, cfg.ATRPeriod),
			Volume:     indicators.AvgVolume(window, cfg.VolumeWindow),
			MACD:       macd,
			SignalLine: sig,
			TrendUp:    c.Close > indicators.SMA(window, cfg.TrendSMA),
		}

		decision := eval.Evaluate(prev, snap)
		prevCopy := snap
		prev = &prevCopy

		if decision == strategy.None {
			continue
		}

		size := ledger.CurrentBalance() * cfg.RiskPerTrade / c.Close
		tp, sl := bracketPrices(cfg, decision, c.Close, snap.ATR)
		pos = &position{
			side:     decision,
			entry:    c.Close,
			size:     size,
			tp:       tp,
			sl:       sl,
			openTime: c.Time,
		}
	}

	for _, t := range res.Trades {
		res.NetPnl += t.Pnl
		if t.Pnl >= 0 {
			res.Wins++
		} else {
			res.Losses++
		}
	}
	res.FinalBalance = ledger.CurrentBalance()
	return res, nil
}

func bracketPrices(cfg Config, side strategy.Signal, entry, atr float64) (tp, sl float64) {
	if cfg.FixedBrackets {
		if side == strategy.Buy {
			return entry * cfg.TakeProfitMult, entry * cfg.StopLossMult
		}
		return entry * (2 - cfg.TakeProfitMult), entry * (2 - cfg.StopLossMult)
	}
	if side == strategy.Buy {
		return entry + atr*cfg.RewardRatio, entry - atr
	}
	return entry - atr*cfg.RewardRatio, entry + atr
}

// checkExit evaluates the brackets on one bar's range. Stop-first when both
// levels are inside the bar. The stop fills at its limit price, below the
// trigger by the buffer, matching the live order shape.
func checkExit(p *position, c market.Candle, buffer float64) (exit float64, reason string, hit bool) {
	switch p.side {
	case strategy.Buy:
		stopHit := c.Low <= p.sl
		takeHit := c.High >= p.tp
		if stopHit {
			slFill := p.sl * buffer
			if p.breakEven {
				reason = "break-even stop"
			} else {
				reason = "stop-loss"
			}
			return slFill, reason, true
		}
		if takeHit {
			return p.tp, "take-profit", true
		}
	case strategy.Sell:
		stopHit := c.High >= p.sl
		takeHit := c.Low <= p.tp
		if stopHit {
			return p.sl * (2 - buffer), "stop-loss", true
		}
		if takeHit {
			return p.tp, "take-profit", true
		}
	}
	return 0, "", false
}

func closedPnl(p *position, exit float64) float64 {
	pnl := (exit - p.entry) * p.size
	if p.side == strategy.Sell {
		pnl = -pnl
	}
	return pnl
}
