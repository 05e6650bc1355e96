package cmd

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gabrielgyns/trading-bot/config"
	"github.com/gabrielgyns/trading-bot/engine"
	"github.com/gabrielgyns/trading-bot/exchange"
	"github.com/gabrielgyns/trading-bot/exchange/binance"
	"github.com/gabrielgyns/trading-bot/exchange/paper"
	"github.com/gabrielgyns/trading-bot/feed"
	"github.com/gabrielgyns/trading-bot/journal"
	"github.com/gabrielgyns/trading-bot/market"
	"github.com/gabrielgyns/trading-bot/metrics"
	"github.com/gabrielgyns/trading-bot/risk"
	"github.com/gabrielgyns/trading-bot/strategy"
	"github.com/gabrielgyns/trading-bot/telegram"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading bot from a config file",
	Long: `Start the trading loop using settings from a configuration file.

Credentials come from the environment (or a .env file):
  API_KEY, API_SECRET          - exchange credentials (binance venue)
  TELEGRAM_BOT_TOKEN           - bot token (when telegram is enabled)
  TELEGRAM_CHAT_ID             - operator chat (when telegram is enabled)

Example:
  tradebot run --config bot.yaml`,
	RunE: runRun,
}

var (
	runConfigPath string
	runEnvFile    string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.Flags().StringVar(&runEnvFile, "env", "", "path to .env file with credentials")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.LoadSecrets(runEnvFile); err != nil {
		return fmt.Errorf("load secrets: %w", err)
	}

	symbol := market.Symbol(cfg.Trading.Symbol)
	tick, err := cfg.Trading.TickDuration()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Venue.
	var venue exchange.Exchange
	switch cfg.Exchange.Venue {
	case "binance":
		client := binance.New(binance.Config{
			APIKey:    cfg.Exchange.APIKey,
			APISecret: cfg.Exchange.APISecret,
			Testnet:   cfg.Exchange.Testnet,
		})
		if err := client.Warmup(ctx, symbol); err != nil {
			return fmt.Errorf("warm up symbol filters: %w", err)
		}
		venue = client
	case "paper":
		// Paper execution against real market data: candles come from the
		// public API, fills happen in memory.
		venue = paperVenue{
			Venue: paper.New(cfg.Exchange.PaperBalances),
			data:  binance.New(binance.Config{Testnet: cfg.Exchange.Testnet}),
		}
	}

	// Journal.
	var j journal.Journal = journal.Nop{}
	if cfg.Journal.Enabled {
		sq, err := journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer sq.Close()
		j = sq
	}

	ledger, err := risk.New(cfg.Risk.InitialBalance, cfg.Risk.MaxDrawdown, cfg.Risk.DailyProfitTarget)
	if err != nil {
		return err
	}

	eval, err := strategy.ByName(cfg.Trading.Strategy, cfg.Trading.MinVolume)
	if err != nil {
		return err
	}

	prices := market.NewPriceStore(2 * tick)
	flags := engine.NewFlags(cfg.Trading.StartRunning, cfg.Trading.StartSimulation)
	commands := make(chan engine.Command, 16)

	// Telegram is both the command listener and a notification sink.
	notifier := engine.MultiNotifier{engine.LogNotifier{}}
	var bot *telegram.Bot
	if cfg.Telegram.Enabled {
		bot = telegram.New(telegram.Config{
			Token:  cfg.Telegram.Token,
			ChatID: cfg.Telegram.ChatID,
		}, commands)
		notifier = append(notifier, bot)
	}

	mgr := engine.NewBracketManager(engine.ManagerConfig{
		Symbol:           symbol,
		RewardRatio:      cfg.Trading.RewardRatio,
		FixedBrackets:    cfg.Trading.FixedBrackets,
		TakeProfitMult:   cfg.Trading.TakeProfitMult,
		StopLossMult:     cfg.Trading.StopLossMult,
		BreakEvenTrigger: cfg.Trading.BreakEvenTrigger,
	}, venue, prices, ledger, flags, notifier, j)

	controller := engine.NewController(engine.ControllerConfig{
		Symbol:         symbol,
		EntryTimeframe: cfg.Trading.EntryTimeframe,
		TrendTimeframe: cfg.Trading.TrendTimeframe,
		RiskPerTrade:   cfg.Trading.RiskPerTrade,
		MinOrderSize:   cfg.Trading.MinOrderSize,
		TickInterval:   tick,
	}, venue, mgr, prices, ledger, flags, eval, notifier, commands)

	if bot != nil {
		go bot.Run(ctx)
	}

	// Live price stream. The paper venue trades against real prices too:
	// the mirror goroutine forwards the feed so resting paper stops trigger.
	stream := feed.NewStream(feed.Config{Symbol: symbol}, prices)
	go stream.Run(ctx)
	if pv, ok := venue.(paperVenue); ok {
		go mirrorPrices(ctx, prices, pv.Venue, symbol, tick)
	}

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(cfg.Metrics.Addr); err != nil {
				log.Printf("metrics listener: %v", err)
			}
		}()
	}

	fmt.Printf("tradebot: %s on %s (%s venue, strategy %s)\n",
		cfg.Trading.Symbol, cfg.Trading.EntryTimeframe, cfg.Exchange.Venue, eval.Name())

	controller.Run(ctx)
	return nil
}

// paperVenue is paper execution over live market data.
type paperVenue struct {
	*paper.Venue
	data *binance.Client
}

func (p paperVenue) GetCandles(ctx context.Context, symbol market.Symbol, timeframe string, limit int) ([]market.Candle, error) {
	return p.data.GetCandles(ctx, symbol, timeframe, limit)
}

// mirrorPrices forwards the feed into the paper venue so resting paper
// brackets trigger on real ticks.
func mirrorPrices(ctx context.Context, prices *market.PriceStore, venue *paper.Venue, symbol market.Symbol, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if price, ok := prices.Get(); ok {
				venue.SetPrice(symbol, price)
			}
		}
	}
}
