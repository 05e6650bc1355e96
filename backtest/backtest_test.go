package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielgyns/trading-bot/market"
	"github.com/gabrielgyns/trading-bot/risk"
	"github.com/gabrielgyns/trading-bot/strategy"
)

func testConfig() Config {
	return Config{
		Symbol:         market.Symbol("XRP/USDT"),
		InitialBalance: 1000,
		RiskPerTrade:   0.05,
		FixedBrackets:  true,
		TakeProfitMult: 1.021,
		StopLossMult:   0.99,
		MaxDrawdown:    0.5,
	}
}

// falling returns n candles whose closes decline by 0.01 per bar from start,
// driving RSI to zero so the threshold evaluator buys on the first evaluated
// bar.
func falling(n int, start float64) []market.Candle {
	out := make([]market.Candle, n)
	ts := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	px := start
	for i := range out {
		out[i] = market.Candle{
			Open:   px,
			High:   px + 0.005,
			Low:    px - 0.015,
			Close:  px - 0.01,
			Volume: 80000,
			Time:   ts.Add(time.Duration(i) * 5 * time.Minute),
		}
		px -= 0.01
	}
	return out
}

func bar(prev market.Candle, high, low, close float64) market.Candle {
	return market.Candle{
		Open:   prev.Close,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: 80000,
		Time:   prev.Time.Add(5 * time.Minute),
	}
}

func evaluator(t *testing.T) strategy.Evaluator {
	t.Helper()
	eval, err := strategy.ByName("threshold", 0)
	require.NoError(t, err)
	return eval
}

func TestRunStopLossOnDecline(t *testing.T) {
	// Continuous decline: the first evaluated bar buys, the stop fills a
	// few bars later at its buffered limit price.
	candles := falling(25, 3.0)

	res, err := Run(testConfig(), evaluator(t), candles)
	require.NoError(t, err)
	require.NotEmpty(t, res.Trades)

	tr := res.Trades[0]
	assert.Equal(t, strategy.Buy, tr.Side)
	assert.Equal(t, "stop-loss", tr.Reason)
	assert.InDelta(t, 2.84, tr.Entry, 1e-9)
	assert.InDelta(t, 2.84*0.99*0.999, tr.Exit, 1e-9)
	assert.Less(t, tr.Pnl, 0.0)
	assert.Equal(t, res.Losses, len(res.Trades))
}

func TestRunTakeProfitOnRebound(t *testing.T) {
	candles := falling(16, 3.0) // entry at the close of the last bar: 2.84
	last := candles[len(candles)-1]
	candles = append(candles, bar(last, 2.95, 2.83, 2.93))

	res, err := Run(testConfig(), evaluator(t), candles)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, "take-profit", tr.Reason)
	assert.InDelta(t, 2.84*1.021, tr.Exit, 1e-9)
	assert.Greater(t, tr.Pnl, 0.0)
	assert.Equal(t, 1, res.Wins)
	assert.InDelta(t, 1000+tr.Pnl, res.FinalBalance, 1e-9)
}

func TestRunBreakEvenRatchet(t *testing.T) {
	candles := falling(16, 3.0) // entry 2.84, break-even trigger 2.84*1.007
	last := candles[len(candles)-1]
	up := bar(last, 2.87, 2.835, 2.86) // crosses the trigger, not the TP
	candles = append(candles, up)
	candles = append(candles, bar(up, 2.865, 2.82, 2.825)) // falls through entry

	res, err := Run(testConfig(), evaluator(t), candles)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, "break-even stop", tr.Reason)
	// The moved stop triggers at entry and fills at the buffered limit.
	assert.InDelta(t, 2.84*0.999, tr.Exit, 1e-9)
}

func TestRunHaltsOnLossLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDrawdown = 0.0001 // a single stop-out breaches the budget

	res, err := Run(cfg, evaluator(t), falling(40, 3.0))
	require.NoError(t, err)

	assert.True(t, res.Halted)
	assert.Equal(t, risk.HaltLossLimit, res.HaltReason)
	assert.Len(t, res.Trades, 1)
}

func TestRunNeedsWarmup(t *testing.T) {
	_, err := Run(testConfig(), evaluator(t), falling(10, 3.0))
	assert.Error(t, err)
}
