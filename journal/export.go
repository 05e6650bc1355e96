package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ulikunitz/xz"
)

// ExportCSVXZ writes the records as an xz-compressed CSV (one file, columns
// matching the trades table). Suitable for archiving a day's trades.
func ExportCSVXZ(path string, records []TradeRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	defer f.Close()

	xw, err := xz.NewWriter(f)
	if err != nil {
		return fmt.Errorf("export: xz writer: %w", err)
	}

	cw := csv.NewWriter(xw)
	header := []string{
		"trade_id", "symbol", "side", "size",
		"entry_price", "exit_price", "open_time", "close_time",
		"realized_pnl", "reason",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range records {
		row := []string{
			r.TradeID,
			r.Symbol,
			r.Side,
			strconv.FormatFloat(r.Size, 'f', -1, 64),
			strconv.FormatFloat(r.EntryPrice, 'f', -1, 64),
			strconv.FormatFloat(r.ExitPrice, 'f', -1, 64),
			r.OpenTime.UTC().Format(time.RFC3339),
			r.CloseTime.UTC().Format(time.RFC3339),
			strconv.FormatFloat(r.RealizedPnl, 'f', -1, 64),
			r.Reason,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	if err := xw.Close(); err != nil {
		return fmt.Errorf("export: close xz stream: %w", err)
	}
	return nil
}
