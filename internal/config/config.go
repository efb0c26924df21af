package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Indexer  IndexerConfig  `mapstructure:"indexer"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// IndexerConfig holds settlement indexer API configuration
type IndexerConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	// MarketIDs restricts polling to a watchlist. Empty means every market.
	MarketIDs      []string `mapstructure:"market_ids"`
	Categories     []string `mapstructure:"categories"`
	MaxConcurrency int      `mapstructure:"max_concurrency"`
}

// MonitorConfig holds change detection configuration
type MonitorConfig struct {
	PriceMoveThreshold float64       `mapstructure:"price_move_threshold"`
	Window             time.Duration `mapstructure:"window"`
	Cooldown           time.Duration `mapstructure:"cooldown"`
	NotifyTransitions  bool          `mapstructure:"notify_transitions"`
	TopK               int           `mapstructure:"top_k"`
	// ProbeAmount is the collateral used for the price impact shown next to each move.
	ProbeAmount float64 `mapstructure:"probe_amount"`
	ImpactSteps int     `mapstructure:"impact_steps"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds storage and retention configuration
type StorageConfig struct {
	DBPath                string `mapstructure:"db_path"`
	MaxMarkets            int    `mapstructure:"max_markets"`
	MaxSnapshotsPerMarket int    `mapstructure:"max_snapshots_per_market"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables. A .env file in
// the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	// PULSE_TELEGRAM_BOT_TOKEN overrides telegram.bot_token, etc.
	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("indexer.base_url", "https://userdbindexer-production.up.railway.app")
	v.SetDefault("indexer.poll_interval", "1m")
	v.SetDefault("indexer.timeout", "30s")
	v.SetDefault("indexer.max_retries", 3)
	v.SetDefault("indexer.retry_delay_base", "1s")
	v.SetDefault("indexer.max_concurrency", 8)

	v.SetDefault("monitor.price_move_threshold", 0.05)
	v.SetDefault("monitor.window", "1h")
	v.SetDefault("monitor.cooldown", "1h")
	v.SetDefault("monitor.notify_transitions", true)
	v.SetDefault("monitor.top_k", 10)
	v.SetDefault("monitor.probe_amount", 100.0)
	v.SetDefault("monitor.impact_steps", 1)

	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("storage.db_path", "./data/pulse.db")
	v.SetDefault("storage.max_markets", 1000)
	v.SetDefault("storage.max_snapshots_per_market", 500)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Indexer.BaseURL == "" {
		return fmt.Errorf("indexer.base_url is required")
	}
	if c.Indexer.PollInterval < 10*time.Second {
		return fmt.Errorf("indexer.poll_interval must be at least 10 seconds")
	}
	if c.Indexer.Timeout <= 0 {
		return fmt.Errorf("indexer.timeout must be positive")
	}
	if c.Indexer.MaxRetries < 1 {
		return fmt.Errorf("indexer.max_retries must be at least 1")
	}
	if c.Indexer.MaxConcurrency < 1 {
		return fmt.Errorf("indexer.max_concurrency must be at least 1")
	}

	if c.Monitor.PriceMoveThreshold <= 0.0 || c.Monitor.PriceMoveThreshold > 1.0 {
		return fmt.Errorf("monitor.price_move_threshold must be in (0.0, 1.0]")
	}
	if c.Monitor.Window < c.Indexer.PollInterval {
		return fmt.Errorf("monitor.window must be at least indexer.poll_interval")
	}
	if c.Monitor.Cooldown < 0 {
		return fmt.Errorf("monitor.cooldown must not be negative")
	}
	if c.Monitor.TopK < 1 {
		return fmt.Errorf("monitor.top_k must be at least 1")
	}
	if c.Monitor.ProbeAmount < 0 {
		return fmt.Errorf("monitor.probe_amount must not be negative")
	}
	if c.Monitor.ImpactSteps < 1 {
		return fmt.Errorf("monitor.impact_steps must be at least 1")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxMarkets < 1 {
		return fmt.Errorf("storage.max_markets must be at least 1")
	}
	if c.Storage.MaxSnapshotsPerMarket < 2 {
		return fmt.Errorf("storage.max_snapshots_per_market must be at least 2")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
