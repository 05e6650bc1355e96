package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete bot configuration
type Config struct {
	Exchange Exchange `json:"exchange" yaml:"exchange"`
	Trading  Trading  `json:"trading" yaml:"trading"`
	Risk     Risk     `json:"risk" yaml:"risk"`
	Telegram Telegram `json:"telegram" yaml:"telegram"`
	Journal  Journal  `json:"journal" yaml:"journal"`
	Metrics  Metrics  `json:"metrics" yaml:"metrics"`
}

// Exchange selects the execution venue and its credentials. Secrets are never
// written to the config file; they come from the environment (see LoadSecrets).
type Exchange struct {
	Venue     string `json:"venue" yaml:"venue"` // "binance" or "paper"
	Testnet   bool   `json:"testnet,omitempty" yaml:"testnet,omitempty"`
	APIKey    string `json:"-" yaml:"-"`
	APISecret string `json:"-" yaml:"-"`

	// Paper venue starting balances, asset -> free amount.
	PaperBalances map[string]float64 `json:"paper_balances,omitempty" yaml:"paper_balances,omitempty"`
}

// Trading contains the strategy and loop parameters
type Trading struct {
	Symbol         string  `json:"symbol" yaml:"symbol"` // "XRP/USDT"
	Strategy       string  `json:"strategy" yaml:"strategy"`
	EntryTimeframe string  `json:"entry_timeframe" yaml:"entry_timeframe"`
	TrendTimeframe string  `json:"trend_timeframe" yaml:"trend_timeframe"`
	MinVolume      float64 `json:"min_volume" yaml:"min_volume"`
	RiskPerTrade   float64 `json:"risk_per_trade" yaml:"risk_per_trade"`
	MinOrderSize   float64 `json:"min_order_size,omitempty" yaml:"min_order_size,omitempty"`
	TickInterval   string  `json:"tick_interval,omitempty" yaml:"tick_interval,omitempty"`

	// Bracket sizing. Volatility mode uses reward_ratio against ATR; fixed
	// mode uses the two multipliers.
	FixedBrackets    bool    `json:"fixed_brackets,omitempty" yaml:"fixed_brackets,omitempty"`
	RewardRatio      float64 `json:"reward_ratio" yaml:"reward_ratio"`
	TakeProfitMult   float64 `json:"take_profit_mult,omitempty" yaml:"take_profit_mult,omitempty"`
	StopLossMult     float64 `json:"stop_loss_mult,omitempty" yaml:"stop_loss_mult,omitempty"`
	BreakEvenTrigger float64 `json:"break_even_trigger" yaml:"break_even_trigger"`

	StartRunning    bool `json:"start_running" yaml:"start_running"`
	StartSimulation bool `json:"start_simulation" yaml:"start_simulation"`
}

// TickDuration parses the tick interval, defaulting to one second.
func (t Trading) TickDuration() (time.Duration, error) {
	if t.TickInterval == "" {
		return time.Second, nil
	}
	return time.ParseDuration(t.TickInterval)
}

// Risk contains the daily budget parameters
type Risk struct {
	InitialBalance    float64 `json:"initial_balance" yaml:"initial_balance"`
	MaxDrawdown       float64 `json:"max_drawdown" yaml:"max_drawdown"`               // fraction of initial balance
	DailyProfitTarget float64 `json:"daily_profit_target" yaml:"daily_profit_target"` // fraction of initial balance
}

// Telegram contains the operator channel parameters
type Telegram struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Token   string `json:"-" yaml:"-"`
	ChatID  int64  `json:"-" yaml:"-"`
}

// Journal contains trade journaling parameters
type Journal struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	DBPath  string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// Metrics contains the Prometheus listener parameters
type Metrics struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// LoadFromFile loads configuration from a file (YAML or JSON)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// LoadSecrets pulls credentials from the environment, reading a .env file
// first when one exists. Missing variables are only an error for the
// components the config enables.
func (c *Config) LoadSecrets(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	} else {
		// Best effort: a .env in the working directory is optional.
		_ = godotenv.Load()
	}

	c.Exchange.APIKey = os.Getenv("API_KEY")
	c.Exchange.APISecret = os.Getenv("API_SECRET")
	c.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")

	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		c.Telegram.ChatID = id
	}

	if c.Exchange.Venue == "binance" && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		return fmt.Errorf("API_KEY and API_SECRET are required for the binance venue")
	}
	if c.Telegram.Enabled && (c.Telegram.Token == "" || c.Telegram.ChatID == 0) {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required when telegram is enabled")
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Exchange.Venue != "binance" && c.Exchange.Venue != "paper" {
		return fmt.Errorf("exchange.venue must be 'binance' or 'paper'")
	}
	if c.Trading.Symbol == "" || !strings.Contains(c.Trading.Symbol, "/") {
		return fmt.Errorf("trading.symbol must be BASE/QUOTE, e.g. XRP/USDT")
	}
	if c.Trading.RiskPerTrade <= 0 || c.Trading.RiskPerTrade > 1 {
		return fmt.Errorf("trading.risk_per_trade must be between 0 and 1")
	}
	if c.Trading.FixedBrackets {
		if c.Trading.TakeProfitMult <= 1 {
			return fmt.Errorf("trading.take_profit_mult must be greater than 1")
		}
		if c.Trading.StopLossMult <= 0 || c.Trading.StopLossMult >= 1 {
			return fmt.Errorf("trading.stop_loss_mult must be between 0 and 1")
		}
	} else if c.Trading.RewardRatio <= 0 {
		return fmt.Errorf("trading.reward_ratio must be positive")
	}
	if c.Trading.BreakEvenTrigger != 0 && c.Trading.BreakEvenTrigger <= 1 {
		return fmt.Errorf("trading.break_even_trigger must be greater than 1")
	}
	if _, err := c.Trading.TickDuration(); err != nil {
		return fmt.Errorf("trading.tick_interval: %w", err)
	}
	if c.Risk.InitialBalance <= 0 {
		return fmt.Errorf("risk.initial_balance must be positive")
	}
	if c.Risk.MaxDrawdown < 0 {
		return fmt.Errorf("risk.max_drawdown must not be negative")
	}
	if c.Risk.DailyProfitTarget < 0 {
		return fmt.Errorf("risk.daily_profit_target must not be negative")
	}
	if c.Journal.Enabled && c.Journal.DBPath == "" {
		return fmt.Errorf("journal.db_path required when journal is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr required when metrics is enabled")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Exchange: Exchange{
			Venue: "paper",
			PaperBalances: map[string]float64{
				"USDT": 1000,
			},
		},
		Trading: Trading{
			Symbol:           "XRP/USDT",
			Strategy:         "crossing",
			EntryTimeframe:   "5m",
			TrendTimeframe:   "1h",
			MinVolume:        50000,
			RiskPerTrade:     0.05,
			RewardRatio:      2.0,
			BreakEvenTrigger: 1.007,
			TickInterval:     "1s",
			StartRunning:     true,
		},
		Risk: Risk{
			InitialBalance:    1000,
			MaxDrawdown:       0.15,
			DailyProfitTarget: 0.10,
		},
		Journal: Journal{
			Enabled: true,
			DBPath:  "./trades.db",
		},
		Metrics: Metrics{
			Enabled: false,
			Addr:    ":9100",
		},
	}
}
