package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdPolicy(t *testing.T) {
	eval := &Threshold{Oversold: 30, Overbought: 70, MinVolume: 50000}

	tests := []struct {
		name string
		curr Snapshot
		want Signal
	}{
		{"oversold with volume", Snapshot{RSI: 25, Volume: 60000}, Buy},
		{"overbought with volume", Snapshot{RSI: 75, Volume: 60000}, Sell},
		{"oversold without volume", Snapshot{RSI: 25, Volume: 40000}, None},
		{"neutral rsi", Snapshot{RSI: 50, Volume: 60000}, None},
		{"exactly at band edge", Snapshot{RSI: 30, Volume: 60000}, None},
		{"nan rsi", Snapshot{RSI: math.NaN(), Volume: 60000}, None},
		{"nan volume", Snapshot{RSI: 25, Volume: math.NaN()}, None},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, eval.Evaluate(nil, tt.curr))
		})
	}
}

func TestCrossingPolicy(t *testing.T) {
	eval := &Crossing{Oversold: 30, Overbought: 70, MinVolume: 50000}

	prev := func(rsi float64) *Snapshot {
		return &Snapshot{RSI: rsi, Volume: 60000}
	}

	tests := []struct {
		name string
		prev *Snapshot
		curr Snapshot
		want Signal
	}{
		{
			"downward cross with uptrend buys",
			prev(31),
			Snapshot{RSI: 29, Volume: 60000, TrendUp: true},
			Buy,
		},
		{
			"no crossing stays flat",
			prev(29),
			Snapshot{RSI: 29, Volume: 60000, TrendUp: true},
			None,
		},
		{
			"downward cross against trend",
			prev(31),
			Snapshot{RSI: 29, Volume: 60000, TrendUp: false},
			None,
		},
		{
			"downward cross without volume",
			prev(31),
			Snapshot{RSI: 29, Volume: 40000, TrendUp: true},
			None,
		},
		{
			"upward cross with downtrend sells",
			prev(69),
			Snapshot{RSI: 71, Volume: 60000, TrendUp: false},
			Sell,
		},
		{
			"upward cross with uptrend",
			prev(69),
			Snapshot{RSI: 71, Volume: 60000, TrendUp: true},
			None,
		},
		{
			"first tick has no previous",
			nil,
			Snapshot{RSI: 20, Volume: 60000, TrendUp: true},
			None,
		},
		{
			"nan previous rsi",
			prev(math.NaN()),
			Snapshot{RSI: 29, Volume: 60000, TrendUp: true},
			None,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, eval.Evaluate(tt.prev, tt.curr))
		})
	}
}

func TestByName(t *testing.T) {
	e, err := ByName("threshold", 50000)
	require.NoError(t, err)
	assert.Equal(t, "threshold", e.Name())

	e, err = ByName("crossing", 50000)
	require.NoError(t, err)
	assert.Equal(t, "crossing", e.Name())

	// Default policy when unset.
	e, err = ByName("", 50000)
	require.NoError(t, err)
	assert.Equal(t, "threshold", e.Name())

	_, err = ByName("bogus", 50000)
	assert.Error(t, err)
}

func TestSignalString(t *testing.T) {
	assert.Equal(t, "buy", Buy.String())
	assert.Equal(t, "sell", Sell.String())
	assert.Equal(t, "none", None.String())
}
