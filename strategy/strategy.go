// Package strategy turns indicator snapshots into entry decisions.
package strategy

import (
	"fmt"
	"math"
	"strings"
)

// Signal is an entry decision.
type Signal int

const (
	None Signal = iota
	Buy
	Sell
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "none"
	}
}

// Snapshot is the per-tick indicator state. It has no identity beyond the
// tick that produced it; evaluators keep the previous snapshot themselves
// when they need crossing detection.
type Snapshot struct {
	RSI        float64
	ATR        float64
	Volume     float64
	MACD       float64
	SignalLine float64
	TrendUp    bool
}

// valid reports whether the fields a decision depends on are defined.
// NaN from a warmup window or a zero average loss must never reach a
// trading decision.
func (s Snapshot) valid() bool {
	return !math.IsNaN(s.RSI) && !math.IsNaN(s.Volume)
}

// Evaluator converts the previous and current snapshots into a signal.
// prev is nil on the first tick after startup.
type Evaluator interface {
	Name() string
	Evaluate(prev *Snapshot, curr Snapshot) Signal
}

// ByName builds an evaluator from its config name.
func ByName(name string, minVolume float64) (Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "threshold", "":
		return &Threshold{Oversold: 30, Overbought: 70, MinVolume: minVolume}, nil
	case "crossing":
		return &Crossing{Oversold: 30, Overbought: 70, MinVolume: minVolume}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: threshold, crossing)", name)
	}
}

// Threshold signals on RSI extremes alone: buy when oversold, sell when
// overbought, both gated on volume. Stateless in RSI — it never looks at the
// previous snapshot.
type Threshold struct {
	Oversold   float64
	Overbought float64
	MinVolume  float64
}

func (t *Threshold) Name() string { return "threshold" }

func (t *Threshold) Evaluate(prev *Snapshot, curr Snapshot) Signal {
	if !curr.valid() || curr.Volume <= t.MinVolume {
		return None
	}

	switch {
	case curr.RSI < t.Oversold:
		return Buy
	case curr.RSI > t.Overbought:
		return Sell
	default:
		return None
	}
}

// Crossing is the stricter policy: it signals only on the tick where RSI
// crosses the band edge, and only with the longer-timeframe trend. Fewer
// false triggers than Threshold because a market parked in the oversold zone
// fires once, not every tick.
type Crossing struct {
	Oversold   float64
	Overbought float64
	MinVolume  float64
}

func (c *Crossing) Name() string { return "crossing" }

func (c *Crossing) Evaluate(prev *Snapshot, curr Snapshot) Signal {
	if prev == nil || !prev.valid() || !curr.valid() {
		return None
	}
	if curr.Volume <= c.MinVolume {
		return None
	}

	crossedDown := prev.RSI >= c.Oversold && curr.RSI < c.Oversold
	crossedUp := prev.RSI <= c.Overbought && curr.RSI > c.Overbought

	switch {
	case crossedDown && curr.TrendUp:
		return Buy
	case crossedUp && !curr.TrendUp:
		return Sell
	default:
		return None
	}
}
