// Command pulse-analyze fetches every market from the indexer and prints a
// distribution report: markets per category and status, the deepest markets
// by collateral, reserve percentiles, and how many markets a given probe buy
// would move by more than a set of impact thresholds. The report helps pick
// monitor.probe_amount and monitor.price_move_threshold.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hetansh2220/Pulse/internal/amm"
	"github.com/hetansh2220/Pulse/internal/config"
	"github.com/hetansh2220/Pulse/internal/format"
	"github.com/hetansh2220/Pulse/internal/indexer"
	"github.com/hetansh2220/Pulse/internal/lifecycle"
	"github.com/hetansh2220/Pulse/internal/logger"
	"github.com/hetansh2220/Pulse/internal/models"
	"github.com/hetansh2220/Pulse/internal/units"
)

var impactThresholds = []float64{1, 5, 10, 25}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, time.Now()); err != nil {
		fmt.Fprintf(os.Stderr, "pulse-analyze: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, now time.Time) error {
	fs := flag.NewFlagSet("pulse-analyze", flag.ContinueOnError)
	configPath := fs.String("config", "configs/config.yaml", "Path to configuration file")
	baseURL := fs.String("indexer", "", "Indexer base URL (overrides config)")
	probe := fs.String("probe", "", "Probe buy size in collateral (overrides monitor.probe_amount)")
	top := fs.Int("top", 10, "Number of deepest markets to list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *top < 0 {
		return fmt.Errorf("invalid -top: must not be negative, got %d", *top)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger.Init(cfg.Logging.Level, "text")

	if *baseURL != "" {
		cfg.Indexer.BaseURL = *baseURL
	}
	probeAmount := cfg.Monitor.ProbeAmount
	if *probe != "" {
		base, err := units.ParseUSDC(*probe)
		if err != nil {
			return fmt.Errorf("invalid -probe: %w", err)
		}
		probeAmount = units.ToFloat(base)
	}

	client := indexer.NewClient(cfg.Indexer.BaseURL, cfg.Indexer.Timeout, indexer.ClientConfig{
		MaxRetries:     cfg.Indexer.MaxRetries,
		RetryDelayBase: cfg.Indexer.RetryDelayBase,
	})

	rule := strings.Repeat("-", 80)
	fmt.Fprintln(out, strings.Repeat("=", 80))
	fmt.Fprintln(out, "PULSE MARKET ANALYSIS")
	fmt.Fprintln(out, strings.Repeat("=", 80))

	fmt.Fprintf(out, "\nSTEP 1: Fetching markets from %s...\n%s\n", cfg.Indexer.BaseURL, rule)
	markets, err := client.FetchMarkets(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Fetched %d markets\n", len(markets))
	if len(markets) == 0 {
		return nil
	}

	fmt.Fprintf(out, "\nSTEP 2: Category and status distribution...\n%s\n", rule)
	analyzeCategories(out, markets, now)

	fmt.Fprintf(out, "\nSTEP 3: Collateral distribution...\n%s\n", rule)
	analyzeReserves(out, markets, *top)

	fmt.Fprintf(out, "\nSTEP 4: Price impact of a %s probe buy on tradable markets...\n%s\n", format.Currency(probeAmount, 2), rule)
	analyzeImpact(out, markets, probeAmount, cfg.Monitor.ImpactSteps, now)

	fmt.Fprintln(out, "\n"+strings.Repeat("=", 80))
	fmt.Fprintln(out, "ANALYSIS COMPLETE")
	fmt.Fprintln(out, strings.Repeat("=", 80))
	return nil
}

type categoryStats struct {
	name     string
	count    int
	reserves decimal.Decimal
	statuses map[models.Status]int
}

func analyzeCategories(out io.Writer, markets []models.Market, now time.Time) {
	byCategory := make(map[string]*categoryStats)
	for _, m := range markets {
		s, ok := byCategory[m.Category]
		if !ok {
			s = &categoryStats{name: m.Category, statuses: make(map[models.Status]int)}
			byCategory[m.Category] = s
		}
		s.count++
		s.reserves = s.reserves.Add(units.FromBaseUnits(m.MarketReserves))
		s.statuses[lifecycle.Classify(m.Lifecycle(), now)]++
	}

	stats := make([]*categoryStats, 0, len(byCategory))
	for _, s := range byCategory {
		stats = append(stats, s)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].count != stats[j].count {
			return stats[i].count > stats[j].count
		}
		return stats[i].name < stats[j].name
	})

	fmt.Fprintf(out, "%-16s %-8s %-16s %-9s %-9s %-9s %-9s\n", "Category", "Markets", "Collateral", "Upcoming", "Active", "Ended", "Resolved")
	for _, s := range stats {
		fmt.Fprintf(out, "%-16s %-8d %-16s %-9d %-9d %-9d %-9d\n",
			format.Truncate(s.name, 16), s.count, format.Dollars(s.reserves, 2),
			s.statuses[models.StatusUpcoming], s.statuses[models.StatusActive],
			s.statuses[models.StatusEnded], s.statuses[models.StatusResolved])
	}

	totals := lifecycle.Counts(markets, now)
	fmt.Fprintf(out, "\nTotal: %d upcoming, %d active, %d ended, %d resolved\n",
		totals[models.StatusUpcoming], totals[models.StatusActive], totals[models.StatusEnded], totals[models.StatusResolved])
}

func analyzeReserves(out io.Writer, markets []models.Market, top int) {
	sorted := make([]models.Market, len(markets))
	copy(sorted, markets)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MarketReserves > sorted[j].MarketReserves
	})

	top = max(0, min(top, len(sorted)))
	fmt.Fprintf(out, "Top %d markets by collateral:\n", top)
	for i, m := range sorted[:top] {
		quote := amm.Price(m.Reserves())
		fmt.Fprintf(out, "%2d. %-12s | YES %-7s | %s\n", i+1, format.USDC(m.MarketReserves), format.Price(quote.YesPrice), format.Truncate(m.Question, 50))
	}

	fmt.Fprintf(out, "\nCollateral percentiles:\n")
	for _, p := range []int{10, 25, 50, 75, 90} {
		// sorted is descending
		idx := (100 - p) * (len(sorted) - 1) / 100
		fmt.Fprintf(out, "%2dth percentile: %s\n", p, format.USDC(sorted[idx].MarketReserves))
	}
}

func analyzeImpact(out io.Writer, markets []models.Market, probe float64, steps int, now time.Time) {
	var impacts []float64
	for _, m := range markets {
		if !lifecycle.IsTradable(lifecycle.Classify(m.Lifecycle(), now)) {
			continue
		}
		yes, err := amm.PriceImpactSteps(probe, models.SideYes, m.Reserves(), steps)
		if err != nil {
			logger.Warn("Skipping impact for market %s: %v", m.ID, err)
			continue
		}
		no, err := amm.PriceImpactSteps(probe, models.SideNo, m.Reserves(), steps)
		if err != nil {
			logger.Warn("Skipping impact for market %s: %v", m.ID, err)
			continue
		}
		impacts = append(impacts, max(yes, no))
	}

	if len(impacts) == 0 {
		fmt.Fprintln(out, "No tradable markets")
		return
	}

	fmt.Fprintf(out, "%-12s %-10s %-10s\n", "Impact >", "Markets", "Share")
	for _, threshold := range impactThresholds {
		count := 0
		for _, v := range impacts {
			if v > threshold {
				count++
			}
		}
		fmt.Fprintf(out, "%-12s %-10d %s\n",
			format.Percent(threshold, 0, false), count,
			format.Percent(float64(count)*100/float64(len(impacts)), 1, false))
	}
}
