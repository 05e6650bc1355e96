package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tradebot",
	Short: "A momentum spot-trading bot with bracketed exits and a daily risk budget",
	Long: `Tradebot is a spot trading bot written in Go.

It provides:
  - RSI/volume momentum entries on 5m candles with trend confirmation
  - Bracketed positions: every entry ships with a take-profit and stop-loss
  - Break-even stop escalation once a trade moves in favor
  - A daily loss limit and profit target that halt trading when breached
  - Telegram remote control and notifications
  - A SQLite trade journal with export and historical data import`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
