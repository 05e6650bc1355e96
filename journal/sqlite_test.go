package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

func testRecord(id string, closeTime time.Time, pnl float64) TradeRecord {
	return TradeRecord{
		TradeID:     id,
		Symbol:      "XRP/USDT",
		Side:        "buy",
		Size:        5,
		EntryPrice:  2.30,
		ExitPrice:   2.30 + pnl/5,
		OpenTime:    closeTime.Add(-10 * time.Minute),
		CloseTime:   closeTime,
		RealizedPnl: pnl,
		Reason:      string(ReasonTakeProfit),
	}
}

func TestRecordAndGetTrade(t *testing.T) {
	j, err := NewSQLite(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	defer j.Close()

	now := time.Now().UTC().Truncate(time.Second)
	rec := testRecord("T1", now, 1.25)
	require.NoError(t, j.RecordTrade(rec))

	got, err := j.GetTrade("T1")
	require.NoError(t, err)
	assert.Equal(t, rec.Symbol, got.Symbol)
	assert.Equal(t, rec.Side, got.Side)
	assert.InDelta(t, rec.RealizedPnl, got.RealizedPnl, 1e-9)

	_, err = j.GetTrade("missing")
	assert.Error(t, err)
}

func TestListTradesClosedBetween(t *testing.T) {
	j, err := NewSQLite(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	defer j.Close()

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordTrade(testRecord("T1", day.Add(2*time.Hour), 1.0)))
	require.NoError(t, j.RecordTrade(testRecord("T2", day.Add(5*time.Hour), -0.5)))
	require.NoError(t, j.RecordTrade(testRecord("T3", day.Add(30*time.Hour), 2.0))) // next day

	recs, err := j.ListTradesClosedBetween(day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "T1", recs[0].TradeID)
	assert.Equal(t, "T2", recs[1].TradeID)
}

func TestSummarizeDay(t *testing.T) {
	j, err := NewSQLite(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	defer j.Close()

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordTrade(testRecord("T1", day.Add(1*time.Hour), 2.0)))
	require.NoError(t, j.RecordTrade(testRecord("T2", day.Add(2*time.Hour), -1.5)))
	require.NoError(t, j.RecordTrade(testRecord("T3", day.Add(3*time.Hour), 0.5)))

	sum, err := j.SummarizeDay(day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Trades)
	assert.Equal(t, 2, sum.Wins)
	assert.Equal(t, 1, sum.Losses)
	assert.InDelta(t, 1.0, sum.NetPnl, 1e-9)
	assert.InDelta(t, 2.5, sum.GrossProfit, 1e-9)
	assert.InDelta(t, 1.5, sum.GrossLoss, 1e-9)
}

func TestFormatTradeOrg(t *testing.T) {
	rec := testRecord("01HTESTULIDXXXXXXXXXXXXXXX", time.Now().UTC(), 1.0)
	out := FormatTradeOrg(rec)
	assert.Contains(t, out, ":TRADE_ID: 01HTESTULIDXXXXXXXXXXXXXXX")
	assert.Contains(t, out, ":SYMBOL: XRP/USDT")
	assert.Contains(t, out, "** Trade: BUY XRP/USDT (01HTESTU)")
	assert.Contains(t, out, "*** Review")
}

func TestExportCSVXZ(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv.xz")
	recs := []TradeRecord{
		testRecord("T1", time.Now().UTC(), 1.0),
		testRecord("T2", time.Now().UTC(), -0.5),
	}

	require.NoError(t, ExportCSVXZ(path, recs))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	xr, err := xz.NewReader(f)
	require.NoError(t, err)

	rows, err := csv.NewReader(xr).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + 2 records
	assert.Equal(t, "trade_id", rows[0][0])
	assert.Equal(t, "T1", rows[1][0])
	assert.Equal(t, "T2", rows[2][0])
}
