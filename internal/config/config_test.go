package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, `
indexer:
  base_url: "https://indexer.example.com"
  poll_interval: 30s
  market_ids:
    - mkt-1
    - mkt-2

monitor:
  price_move_threshold: 0.10
  window: 15m
  top_k: 5
  impact_steps: 4

telegram:
  bot_token: "test_token"
  chat_id: "12345"
  enabled: true

storage:
  db_path: ":memory:"

logging:
  level: "debug"
  format: "text"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.Indexer.BaseURL != "https://indexer.example.com" {
		t.Errorf("unexpected base_url %q", cfg.Indexer.BaseURL)
	}
	if cfg.Indexer.PollInterval != 30*time.Second {
		t.Errorf("expected poll_interval 30s, got %v", cfg.Indexer.PollInterval)
	}
	if len(cfg.Indexer.MarketIDs) != 2 {
		t.Errorf("expected 2 market ids, got %v", cfg.Indexer.MarketIDs)
	}
	if cfg.Monitor.Window != 15*time.Minute {
		t.Errorf("expected window 15m, got %v", cfg.Monitor.Window)
	}
	if cfg.Monitor.ImpactSteps != 4 {
		t.Errorf("expected impact_steps 4, got %d", cfg.Monitor.ImpactSteps)
	}

	// Defaults
	if cfg.Indexer.Timeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %v", cfg.Indexer.Timeout)
	}
	if cfg.Indexer.MaxConcurrency != 8 {
		t.Errorf("expected default max_concurrency 8, got %d", cfg.Indexer.MaxConcurrency)
	}
	if cfg.Storage.MaxSnapshotsPerMarket != 500 {
		t.Errorf("expected default max_snapshots_per_market 500, got %d", cfg.Storage.MaxSnapshotsPerMarket)
	}
	if !cfg.Monitor.NotifyTransitions {
		t.Error("expected notify_transitions to default to true")
	}
}

func TestEnvOverride(t *testing.T) {
	path := writeConfig(t, `
indexer:
  base_url: "https://indexer.example.com"
`)
	t.Setenv("PULSE_LOGGING_LEVEL", "error")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("expected env override to set level=error, got %q", cfg.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func validConfig() Config {
	return Config{
		Indexer: IndexerConfig{
			BaseURL:        "https://indexer.example.com",
			PollInterval:   time.Minute,
			Timeout:        30 * time.Second,
			MaxRetries:     3,
			MaxConcurrency: 4,
		},
		Monitor: MonitorConfig{
			PriceMoveThreshold: 0.05,
			Window:             time.Hour,
			Cooldown:           time.Hour,
			TopK:               10,
			ProbeAmount:        100,
			ImpactSteps:        1,
		},
		Storage: StorageConfig{
			DBPath:                ":memory:",
			MaxMarkets:            100,
			MaxSnapshotsPerMarket: 50,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing base url", func(c *Config) { c.Indexer.BaseURL = "" }, true},
		{"poll too fast", func(c *Config) { c.Indexer.PollInterval = time.Second }, true},
		{"threshold zero", func(c *Config) { c.Monitor.PriceMoveThreshold = 0 }, true},
		{"threshold above one", func(c *Config) { c.Monitor.PriceMoveThreshold = 1.5 }, true},
		{"window shorter than poll", func(c *Config) { c.Monitor.Window = 30 * time.Second }, true},
		{"zero impact steps", func(c *Config) { c.Monitor.ImpactSteps = 0 }, true},
		{"telegram without token", func(c *Config) { c.Telegram.Enabled = true; c.Telegram.ChatID = "1" }, true},
		{"telegram without chat", func(c *Config) { c.Telegram.Enabled = true; c.Telegram.BotToken = "t" }, true},
		{"too few snapshots", func(c *Config) { c.Storage.MaxSnapshotsPerMarket = 1 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
