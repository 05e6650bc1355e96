package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSymbol(t *testing.T) {
	tests := []struct {
		sym     Symbol
		base    string
		quote   string
		compact string
	}{
		{"XRP/USDT", "XRP", "USDT", "XRPUSDT"},
		{"BTC/USDT", "BTC", "USDT", "BTCUSDT"},
		{"NOSLASH", "NOSLASH", "", "NOSLASH"},
	}

	for _, tt := range tests {
		t.Run(string(tt.sym), func(t *testing.T) {
			assert.Equal(t, tt.base, tt.sym.Base())
			assert.Equal(t, tt.quote, tt.sym.Quote())
			assert.Equal(t, tt.compact, tt.sym.Compact())
		})
	}
}

func TestPriceStore(t *testing.T) {
	s := NewPriceStore(0)

	_, ok := s.Get()
	assert.False(t, ok, "empty store must report absent")

	s.Set(2.3451, time.Now())
	px, ok := s.Get()
	assert.True(t, ok)
	assert.Equal(t, 2.3451, px)

	s.Clear()
	_, ok = s.Get()
	assert.False(t, ok)
}

func TestPriceStoreMaxAge(t *testing.T) {
	s := NewPriceStore(50 * time.Millisecond)

	s.Set(1.0, time.Now().Add(-time.Second))
	_, ok := s.Get()
	assert.False(t, ok, "stale price must be absent, not stale")

	s.Set(1.0, time.Now())
	_, ok = s.Get()
	assert.True(t, ok)
}

func TestCloses(t *testing.T) {
	candles := []Candle{
		{Close: 1.0},
		{Close: 1.1},
		{Close: 1.2},
	}
	assert.Equal(t, []float64{1.0, 1.1, 1.2}, Closes(candles))
	assert.Empty(t, Closes(nil))
}
