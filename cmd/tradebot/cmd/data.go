package cmd

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/gabrielgyns/trading-bot/indicators"
	"github.com/gabrielgyns/trading-bot/market"
	"github.com/gabrielgyns/trading-bot/marketdata"
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Download and inspect historical market data",
	Long: `Fetch monthly kline archives from the exchange's public data
repository into a local cache and summarize them.

Example:
  tradebot data import --symbol XRP/USDT --interval 5m --month 2026-07`,
}

var dataImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Download one month of klines and print a summary",
	RunE:  runDataImport,
}

var (
	dataSymbol   string
	dataInterval string
	dataMonth    string
	dataCacheDir string
)

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataImportCmd)

	dataImportCmd.Flags().StringVarP(&dataSymbol, "symbol", "s", "XRP/USDT", "trading pair, BASE/QUOTE")
	dataImportCmd.Flags().StringVarP(&dataInterval, "interval", "i", "5m", "kline interval")
	dataImportCmd.Flags().StringVarP(&dataMonth, "month", "m", "", "month to import, YYYY-MM (required)")
	dataImportCmd.Flags().StringVar(&dataCacheDir, "cache", "./data", "local cache directory")
	dataImportCmd.MarkFlagRequired("month")
}

func runDataImport(cmd *cobra.Command, args []string) error {
	t, err := time.Parse("2006-01", dataMonth)
	if err != nil {
		return fmt.Errorf("bad --month (want YYYY-MM): %w", err)
	}

	im := marketdata.NewImporter(dataCacheDir)
	symbol := market.Symbol(dataSymbol)

	fmt.Printf("Fetching %s\n", im.MonthlyKlineURL(symbol, dataInterval, t.Year(), t.Month()))
	candles, err := im.ImportMonth(context.Background(), symbol, dataInterval, t.Year(), t.Month())
	if err != nil {
		return err
	}
	if len(candles) == 0 {
		return fmt.Errorf("archive contained no candles")
	}

	high, low := candles[0].High, candles[0].Low
	var volume float64
	for _, c := range candles {
		high = math.Max(high, c.High)
		low = math.Min(low, c.Low)
		volume += c.Volume
	}

	fmt.Printf("\n%s %s %s: %d candles\n", symbol, dataInterval, dataMonth, len(candles))
	fmt.Printf("  Range: %s -> %s\n",
		candles[0].Time.Format(time.RFC3339), candles[len(candles)-1].Time.Format(time.RFC3339))
	fmt.Printf("  High/Low: %.4f / %.4f, close %.4f\n", high, low, candles[len(candles)-1].Close)
	fmt.Printf("  Volume: %.0f total, %.0f per candle\n", volume, volume/float64(len(candles)))
	fmt.Printf("  Last RSI(14): %.1f, ATR(14): %.4f\n",
		indicators.RSI(candles, 14), indicators.ATR(candles, 14))
	return nil
}
