package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gabrielgyns/trading-bot/market"
)

func candlesFromCloses(closes ...float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{Open: c, High: c, Low: c, Close: c}
	}
	return out
}

func TestRSI(t *testing.T) {
	t.Run("all gains yields NaN (zero average loss)", func(t *testing.T) {
		c := candlesFromCloses(1, 2, 3, 4, 5, 6)
		assert.True(t, math.IsNaN(RSI(c, 5)))
	})

	t.Run("insufficient history", func(t *testing.T) {
		c := candlesFromCloses(1, 2, 3)
		assert.True(t, math.IsNaN(RSI(c, 14)))
	})

	t.Run("balanced gains and losses near 50", func(t *testing.T) {
		// Alternate +1/-1: avg gain == avg loss -> RSI == 50.
		c := candlesFromCloses(10, 11, 10, 11, 10, 11, 10, 11, 10, 11, 10)
		got := RSI(c, 10)
		assert.InDelta(t, 50.0, got, 1e-9)
	})

	t.Run("heavier losses push below 50", func(t *testing.T) {
		c := candlesFromCloses(10, 11, 9, 10, 8, 9, 7, 8, 6, 7, 5)
		got := RSI(c, 10)
		assert.Less(t, got, 50.0)
		assert.Greater(t, got, 0.0)
	})
}

func TestATR(t *testing.T) {
	candles := []market.Candle{
		{High: 10, Low: 9},  // range 1
		{High: 12, Low: 10}, // range 2
		{High: 13, Low: 10}, // range 3
	}

	assert.InDelta(t, 2.0, ATR(candles, 3), 1e-9)
	assert.InDelta(t, 2.5, ATR(candles, 2), 1e-9)
	assert.True(t, math.IsNaN(ATR(candles, 4)))
	assert.True(t, math.IsNaN(ATR(nil, 3)))
}

func TestAvgVolume(t *testing.T) {
	candles := []market.Candle{
		{Volume: 100},
		{Volume: 200},
		{Volume: 300},
	}

	assert.InDelta(t, 200.0, AvgVolume(candles, 3), 1e-9)
	assert.InDelta(t, 250.0, AvgVolume(candles, 2), 1e-9)
	assert.True(t, math.IsNaN(AvgVolume(candles, 5)))
}

func TestSMA(t *testing.T) {
	c := candlesFromCloses(1, 2, 3, 4, 5)
	assert.InDelta(t, 4.0, SMA(c, 3), 1e-9)
	assert.InDelta(t, 3.0, SMA(c, 5), 1e-9)
	assert.True(t, math.IsNaN(SMA(c, 6)))
}

func TestMACD(t *testing.T) {
	t.Run("insufficient history", func(t *testing.T) {
		macd, signal := MACD(candlesFromCloses(1, 2, 3))
		assert.True(t, math.IsNaN(macd))
		assert.True(t, math.IsNaN(signal))
	})

	t.Run("uptrend has positive MACD", func(t *testing.T) {
		closes := make([]float64, 40)
		for i := range closes {
			closes[i] = 100 + float64(i)
		}
		macd, signal := MACD(candlesFromCloses(closes...))
		assert.Greater(t, macd, 0.0)
		assert.Greater(t, signal, 0.0)
	})

	t.Run("flat series has zero MACD", func(t *testing.T) {
		closes := make([]float64, 40)
		for i := range closes {
			closes[i] = 100
		}
		macd, signal := MACD(candlesFromCloses(closes...))
		assert.InDelta(t, 0.0, macd, 1e-9)
		assert.InDelta(t, 0.0, signal, 1e-9)
	})
}
