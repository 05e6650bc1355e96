// Package indicators implements the technical transforms consumed by the
// signal evaluator: RSI, ATR, MACD and moving averages.
//
// All functions take a candle slice ordered oldest first and return the most
// recent value. Insufficient history or an undefined ratio (e.g. RSI with
// zero average loss) yields NaN; callers must treat NaN as "no signal".
package indicators

import (
	"math"

	"github.com/gabrielgyns/trading-bot/market"
)

// RSI returns the period-RSI of the last candle using simple rolling means of
// gains and losses. NaN when history is short or the average loss is zero.
func RSI(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return math.NaN()
	}

	var gain, loss float64
	for i := len(candles) - period; i < len(candles); i++ {
		d := candles[i].Close - candles[i-1].Close
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}

	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	if avgLoss == 0 {
		return math.NaN()
	}

	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// ATR returns a simple average true range: the period-mean of high-low.
// NaN when fewer than period candles are available.
func ATR(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return math.NaN()
	}

	var sum float64
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].High - candles[i].Low
	}
	return sum / float64(period)
}

// AvgVolume returns the mean volume of the last n candles.
func AvgVolume(candles []market.Candle, n int) float64 {
	if n <= 0 || len(candles) < n {
		return math.NaN()
	}

	var sum float64
	for i := len(candles) - n; i < len(candles); i++ {
		sum += candles[i].Volume
	}
	return sum / float64(n)
}

// SMA returns the n-period simple moving average of the close series.
func SMA(candles []market.Candle, n int) float64 {
	if n <= 0 || len(candles) < n {
		return math.NaN()
	}

	var sum float64
	for i := len(candles) - n; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(n)
}

// MACD returns the MACD line and its signal line for the standard 12/26/9
// parameterization. NaN pair when there are fewer candles than the slow
// period.
func MACD(candles []market.Candle) (macd, signal float64) {
	const (
		fastPeriod   = 12
		slowPeriod   = 26
		signalPeriod = 9
	)

	if len(candles) < slowPeriod {
		return math.NaN(), math.NaN()
	}

	closes := market.Closes(candles)
	fast := emaSeries(closes, fastPeriod)
	slow := emaSeries(closes, slowPeriod)

	diff := make([]float64, len(closes))
	for i := range closes {
		diff[i] = fast[i] - slow[i]
	}
	sig := emaSeries(diff, signalPeriod)

	return diff[len(diff)-1], sig[len(sig)-1]
}

// emaSeries computes an exponential moving average seeded with the first
// value (simple, deterministic), aligned to the input.
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	alpha := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1.0-alpha)*out[i-1]
	}
	return out
}
