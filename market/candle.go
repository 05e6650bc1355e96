package market

import "time"

// Candle represents OHLC (Open, High, Low, Close) candlestick data
// for a single timeframe bucket.
type Candle struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
	time.Time
	Volume float64
}

// Closes extracts the close series from a candle slice, oldest first.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Symbol is a trading pair in BASE/QUOTE form, e.g. "XRP/USDT".
type Symbol string

// Base returns the base asset of the pair ("XRP" for "XRP/USDT").
func (s Symbol) Base() string {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return string(s[:i])
		}
	}
	return string(s)
}

// Quote returns the quote asset of the pair ("USDT" for "XRP/USDT").
func (s Symbol) Quote() string {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return string(s[i+1:])
		}
	}
	return ""
}

// Compact returns the venue wire form without the separator ("XRPUSDT").
func (s Symbol) Compact() string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '/' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
