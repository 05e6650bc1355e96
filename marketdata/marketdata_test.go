package marketdata

import (
	"archive/zip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielgyns/trading-bot/market"
)

const testSym = market.Symbol("XRP/USDT")

const klineRows = "1717200000000,2.00,2.05,1.98,2.03,51000.5,1717200299999,103000.0,1200,25000.0,50400.0,0\n" +
	"1717200300000,2.03,2.08,2.01,2.06,48000.0,1717200599999,98000.0,1100,24000.0,49000.0,0\n"

func TestMonthlyKlineURL(t *testing.T) {
	im := NewImporter(t.TempDir())
	got := im.MonthlyKlineURL(testSym, "5m", 2025, time.June)
	assert.Equal(t, "https://data.binance.vision/data/spot/monthly/klines/XRPUSDT/5m/XRPUSDT-5m-2025-06.zip", got)
}

func TestReadKlineCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "klines.csv")
	require.NoError(t, os.WriteFile(path, []byte(klineRows), 0644))

	candles, err := ReadKlineCSV(path)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, time.UnixMilli(1717200000000).UTC(), candles[0].Time)
	assert.InDelta(t, 2.03, candles[0].Close, 1e-9)
	assert.InDelta(t, 51000.5, candles[0].Volume, 1e-9)
}

func TestReadKlineCSVSkipsHeaderAndMicroseconds(t *testing.T) {
	data := "open_time,open,high,low,close,volume,close_time,quote_volume,count,taker_base,taker_quote,ignore\n" +
		"1717200000000000,2.00,2.05,1.98,2.03,51000.5,1717200299999999,103000.0,1200,25000.0,50400.0,0\n"
	path := filepath.Join(t.TempDir(), "klines.csv")
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	candles, err := ReadKlineCSV(path)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, time.UnixMicro(1717200000000000).UTC(), candles[0].Time)
}

func TestImportMonthDownloadsAndCaches(t *testing.T) {
	name := "XRPUSDT-5m-2025-06"

	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "/data/spot/monthly/klines/XRPUSDT/5m/"+name+".zip", r.URL.Path)

		zw := zip.NewWriter(w)
		f, err := zw.Create(name + ".csv")
		require.NoError(t, err)
		f.Write([]byte(klineRows))
		require.NoError(t, zw.Close())
	}))
	defer srv.Close()

	im := NewImporter(t.TempDir())
	im.Base = srv.URL

	candles, err := im.ImportMonth(context.Background(), testSym, "5m", 2025, time.June)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 1, hits)

	// Second call serves from the extracted cache.
	again, err := im.ImportMonth(context.Background(), testSym, "5m", 2025, time.June)
	require.NoError(t, err)
	assert.Len(t, again, 2)
	assert.Equal(t, 1, hits)
}

func TestImportMonthMissingArchive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	im := NewImporter(t.TempDir())
	im.Base = srv.URL

	_, err := im.ImportMonth(context.Background(), testSym, "5m", 2019, time.January)
	assert.ErrorIs(t, err, ErrArchiveMissing)
}
