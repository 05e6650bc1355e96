package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gabrielgyns/trading-bot/backtest"
	"github.com/gabrielgyns/trading-bot/market"
	"github.com/gabrielgyns/trading-bot/marketdata"
	"github.com/gabrielgyns/trading-bot/strategy"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay historical candles through the strategy",
	Long: `Download one month of klines (cached locally) and replay them
through the signal evaluator with the live bracket and risk semantics.

Example:
  tradebot backtest --symbol XRP/USDT --interval 5m --month 2026-07 --strategy crossing`,
	RunE: runBacktest,
}

var (
	btSymbol    string
	btInterval  string
	btMonth     string
	btCacheDir  string
	btStrategy  string
	btBalance   float64
	btMinVolume float64
	btRisk      float64
	btFixed     bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btSymbol, "symbol", "s", "XRP/USDT", "trading pair, BASE/QUOTE")
	backtestCmd.Flags().StringVarP(&btInterval, "interval", "i", "5m", "kline interval")
	backtestCmd.Flags().StringVarP(&btMonth, "month", "m", "", "month to replay, YYYY-MM (required)")
	backtestCmd.Flags().StringVar(&btCacheDir, "cache", "./data", "local kline cache directory")
	backtestCmd.Flags().StringVar(&btStrategy, "strategy", "crossing", "signal evaluator (threshold, crossing)")
	backtestCmd.Flags().Float64Var(&btBalance, "balance", 1000, "starting quote balance")
	backtestCmd.Flags().Float64Var(&btMinVolume, "min-volume", 50000, "minimum average volume to take a signal")
	backtestCmd.Flags().Float64Var(&btRisk, "risk", 0.05, "fraction of balance per trade")
	backtestCmd.Flags().BoolVar(&btFixed, "fixed-brackets", false, "percentage brackets instead of ATR-scaled")
	backtestCmd.MarkFlagRequired("month")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	t, err := time.Parse("2006-01", btMonth)
	if err != nil {
		return fmt.Errorf("bad --month (want YYYY-MM): %w", err)
	}

	eval, err := strategy.ByName(btStrategy, btMinVolume)
	if err != nil {
		return err
	}

	symbol := market.Symbol(btSymbol)
	im := marketdata.NewImporter(btCacheDir)
	candles, err := im.ImportMonth(context.Background(), symbol, btInterval, t.Year(), t.Month())
	if err != nil {
		return err
	}

	cfg := backtest.Config{
		Symbol:         symbol,
		InitialBalance: btBalance,
		RiskPerTrade:   btRisk,
		FixedBrackets:  btFixed,
		TakeProfitMult: 1.021,
		StopLossMult:   0.99,
	}

	res, err := backtest.Run(cfg, eval, candles)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s %s: %d candles, strategy %s\n",
		symbol, btInterval, btMonth, len(candles), eval.Name())
	fmt.Printf("  Trades: %d (%d wins / %d losses)\n", len(res.Trades), res.Wins, res.Losses)
	fmt.Printf("  Net P&L: $%.2f, final balance $%.2f\n", res.NetPnl, res.FinalBalance)
	if res.Halted {
		fmt.Printf("  Halted early: %s\n", res.HaltReason)
	}
	for _, tr := range res.Trades {
		fmt.Printf("  %s %-4s %.4f -> %.4f x %.2f  %+.2f  (%s)\n",
			tr.ExitTime.Format("01-02 15:04"), tr.Side, tr.Entry, tr.Exit, tr.Size, tr.Pnl, tr.Reason)
	}
	return nil
}
