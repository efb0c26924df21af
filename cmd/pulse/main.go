package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hetansh2220/Pulse/internal/config"
	"github.com/hetansh2220/Pulse/internal/indexer"
	"github.com/hetansh2220/Pulse/internal/lifecycle"
	"github.com/hetansh2220/Pulse/internal/logger"
	"github.com/hetansh2220/Pulse/internal/models"
	"github.com/hetansh2220/Pulse/internal/monitor"
	"github.com/hetansh2220/Pulse/internal/storage"
	"github.com/hetansh2220/Pulse/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.New(
		cfg.Storage.MaxMarkets,
		cfg.Storage.MaxSnapshotsPerMarket,
		cfg.Storage.DBPath,
	)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	client := indexer.NewClient(
		cfg.Indexer.BaseURL,
		cfg.Indexer.Timeout,
		indexer.ClientConfig{
			MaxRetries:     cfg.Indexer.MaxRetries,
			RetryDelayBase: cfg.Indexer.RetryDelayBase,
		},
	)

	mon := monitor.New(store)

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	logger.Info("Starting monitoring service (interval: %v, window: %v, threshold: %.2f, top_k: %d)",
		cfg.Indexer.PollInterval,
		cfg.Monitor.Window,
		cfg.Monitor.PriceMoveThreshold,
		cfg.Monitor.TopK,
	)
	logger.Debug("Monitoring configuration: market_ids=%v, categories=%v, probe_amount=%.2f, impact_steps=%d",
		cfg.Indexer.MarketIDs,
		cfg.Indexer.Categories,
		cfg.Monitor.ProbeAmount,
		cfg.Monitor.ImpactSteps,
	)

	ticker := time.NewTicker(cfg.Indexer.PollInterval)
	defer ticker.Stop()

	consecutiveFailures := 0

	handleCycleResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Monitoring cycle failed: %v", err)
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
			return
		}
		if consecutiveFailures > 0 && telegramClient != nil {
			if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
				logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
			}
		}
		consecutiveFailures = 0
	}

	logger.Debug("Running initial monitoring cycle")
	handleCycleResult(runMonitoringCycle(ctx, client, mon, telegramClient, cfg, time.Now()))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return

		case tickTime := <-ticker.C:
			logger.Debug("Starting scheduled monitoring cycle")
			handleCycleResult(runMonitoringCycle(ctx, client, mon, telegramClient, cfg, tickTime))

			if err := mon.Rotate(ctx); err != nil {
				logger.Warn("Failed to rotate storage: %v", err)
			}
		}
	}
}

func runMonitoringCycle(
	ctx context.Context,
	client *indexer.Client,
	mon *monitor.Monitor,
	telegramClient *telegram.Client,
	cfg *config.Config,
	cycleTime time.Time, // tick time (or startup time for the initial cycle)
) error {
	startTime := time.Now()
	logger.Info("Starting monitoring cycle")

	markets, err := fetchMarkets(ctx, client, cfg)
	if err != nil {
		return err
	}
	logger.Info("Fetched %d markets", len(markets))
	logger.Debug("Status counts: %v", lifecycle.Counts(markets, cycleTime))

	// Snapshots are stamped with the tick time so their ages are exact
	// multiples of the poll interval.
	transitions, snapErrors := mon.RecordSnapshots(ctx, markets, cycleTime)
	for _, detErr := range snapErrors {
		logger.Warn("Failed to record snapshot for market %s: %v", detErr.MarketID, detErr.Err)
	}
	if len(snapErrors) > 0 && len(snapErrors) == len(markets) {
		return fmt.Errorf("failed to record any snapshot: %w", snapErrors[0])
	}

	if len(transitions) > 0 {
		logger.Info("Detected %d status transitions", len(transitions))
		if cfg.Monitor.NotifyTransitions && telegramClient != nil {
			if err := telegramClient.SendTransitions(transitions); err != nil {
				logger.Error("Failed to send transition notification: %v", err)
			}
		}
	}

	changes, detectionErrors, err := mon.DetectChanges(ctx, markets, cfg.Monitor.Window, cfg.Monitor.PriceMoveThreshold, cycleTime)
	if err != nil {
		return fmt.Errorf("failed to detect changes: %w", err)
	}
	for _, detErr := range detectionErrors {
		logger.Warn("Failed to detect changes for market %s: %v", detErr.MarketID, detErr.Err)
	}
	logger.Info("Detected %d price moves above %.2f", len(changes), cfg.Monitor.PriceMoveThreshold)

	for _, detErr := range monitor.AttachImpact(changes, markets, cfg.Monitor.ProbeAmount, cfg.Monitor.ImpactSteps) {
		logger.Warn("Failed to compute impact for market %s: %v", detErr.MarketID, detErr.Err)
	}

	top := monitor.RankChanges(changes, cfg.Monitor.TopK)
	top = mon.FilterRecentlySent(top, cfg.Monitor.Cooldown, cycleTime)

	if len(top) > 0 {
		if telegramClient != nil {
			logger.Debug("Sending top %d price moves to Telegram", len(top))
			if err := telegramClient.SendChanges(top); err != nil {
				logger.Error("Failed to send Telegram notification: %v", err)
			} else {
				logger.Info("Sent Telegram notification with top %d price moves", len(top))
				mon.RecordNotified(top, cycleTime)
			}
		} else {
			logger.Debug("Price moves detected but Telegram notifications disabled")
		}
	} else {
		logger.Info("No new price moves to report this cycle")
	}

	logger.Info("Monitoring cycle completed in %v", time.Since(startTime))
	return nil
}

// fetchMarkets loads the watchlist when one is configured, otherwise every
// market, then applies the category filter.
func fetchMarkets(ctx context.Context, client *indexer.Client, cfg *config.Config) ([]models.Market, error) {
	var (
		markets []models.Market
		err     error
	)
	if len(cfg.Indexer.MarketIDs) > 0 {
		logger.Debug("Fetching %d watched markets (concurrency: %d)", len(cfg.Indexer.MarketIDs), cfg.Indexer.MaxConcurrency)
		var fetchErrors []indexer.FetchError
		markets, fetchErrors, err = client.FetchMarketsByID(ctx, cfg.Indexer.MarketIDs, cfg.Indexer.MaxConcurrency)
		for _, fetchErr := range fetchErrors {
			logger.Warn("Failed to fetch market %s: %v", fetchErr.MarketID, fetchErr.Err)
		}
		if err == nil && len(fetchErrors) == len(cfg.Indexer.MarketIDs) {
			err = fmt.Errorf("no watched market could be fetched: %w", fetchErrors[0])
		}
	} else {
		logger.Debug("Fetching all markets from %s", cfg.Indexer.BaseURL)
		markets, err = client.FetchMarkets(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch markets: %w", err)
	}

	if len(cfg.Indexer.Categories) == 0 {
		return markets, nil
	}
	var filtered []models.Market
	for _, category := range cfg.Indexer.Categories {
		filtered = append(filtered, models.FilterByCategory(markets, category)...)
	}
	return filtered, nil
}
