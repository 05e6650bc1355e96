// Package marketdata downloads historical kline archives from the venue's
// public data repository and loads them as candle series. Used by the journal
// and backtest CLI commands, never by the live loop.
package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xyproto/unzip"

	"github.com/gabrielgyns/trading-bot/market"
)

// DefaultBase is the Binance Vision public archive.
const DefaultBase = "https://data.binance.vision"

// ErrArchiveMissing reports a month the archive does not have (404).
var ErrArchiveMissing = fmt.Errorf("marketdata: archive not published")

// Importer fetches and caches monthly kline archives.
type Importer struct {
	Base     string
	CacheDir string
	Client   *http.Client
}

func NewImporter(cacheDir string) *Importer {
	return &Importer{
		Base:     DefaultBase,
		CacheDir: cacheDir,
		Client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// MonthlyKlineURL builds the archive URL for one symbol-interval-month, e.g.
// /data/spot/monthly/klines/XRPUSDT/5m/XRPUSDT-5m-2025-06.zip.
func (im *Importer) MonthlyKlineURL(symbol market.Symbol, interval string, year int, month time.Month) string {
	name := archiveName(symbol, interval, year, month)
	return fmt.Sprintf("%s/data/spot/monthly/klines/%s/%s/%s.zip",
		strings.TrimRight(im.Base, "/"), symbol.Compact(), interval, name)
}

func archiveName(symbol market.Symbol, interval string, year int, month time.Month) string {
	return fmt.Sprintf("%s-%s-%04d-%02d", symbol.Compact(), interval, year, int(month))
}

// ImportMonth returns the candles for one month, downloading and extracting
// the archive into the cache directory on first use.
func (im *Importer) ImportMonth(ctx context.Context, symbol market.Symbol, interval string, year int, month time.Month) ([]market.Candle, error) {
	name := archiveName(symbol, interval, year, month)
	zipPath := filepath.Join(im.CacheDir, name+".zip")
	csvPath := filepath.Join(im.CacheDir, name+".csv")

	if _, err := os.Stat(csvPath); err != nil {
		if err := im.download(ctx, im.MonthlyKlineURL(symbol, interval, year, month), zipPath); err != nil {
			return nil, err
		}
		if err := unzip.Extract(zipPath, im.CacheDir); err != nil {
			return nil, fmt.Errorf("marketdata: extract %s: %w", zipPath, err)
		}
	}

	return ReadKlineCSV(csvPath)
}

// download fetches url to dst via a temp file, skipping when dst already
// exists with content.
func (im *Importer) download(ctx context.Context, url, dst string) error {
	if st, err := os.Stat(dst); err == nil && st.Size() > 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := im.Client.Do(req)
	if err != nil {
		return fmt.Errorf("marketdata: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrArchiveMissing, url)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("marketdata: fetch %s: HTTP %d", url, resp.StatusCode)
	}

	tmp := dst + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		os.Remove(tmp)
		return copyErr
	}
	if closeErr != nil {
		os.Remove(tmp)
		return closeErr
	}
	return os.Rename(tmp, dst)
}

// ReadKlineCSV parses an extracted kline file. Rows look like:
//
//	openTime,open,high,low,close,volume,closeTime,quoteVolume,trades,...
//
// Older archives carry open time in milliseconds, 2025+ ones in microseconds;
// both are handled. A header row, when present, is skipped.
func ReadKlineCSV(path string) ([]market.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var out []market.Candle
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("marketdata: parse %s: %w", path, err)
		}
		if len(row) < 6 {
			continue
		}

		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue // header row
		}

		out = append(out, market.Candle{
			Time:   klineTime(ts),
			Open:   parseFloat(row[1]),
			High:   parseFloat(row[2]),
			Low:    parseFloat(row[3]),
			Close:  parseFloat(row[4]),
			Volume: parseFloat(row[5]),
		})
	}
	return out, nil
}

// klineTime normalizes an archive timestamp to UTC, whatever its unit.
func klineTime(ts int64) time.Time {
	if ts > 1e15 { // microseconds
		return time.UnixMicro(ts).UTC()
	}
	return time.UnixMilli(ts).UTC()
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
