// Command pulse-quote prints the price, lifecycle status and trade estimates
// of a market, either from supplies given on the command line or fetched from
// the indexer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hetansh2220/Pulse/internal/amm"
	"github.com/hetansh2220/Pulse/internal/config"
	"github.com/hetansh2220/Pulse/internal/format"
	"github.com/hetansh2220/Pulse/internal/indexer"
	"github.com/hetansh2220/Pulse/internal/lifecycle"
	"github.com/hetansh2220/Pulse/internal/logger"
	"github.com/hetansh2220/Pulse/internal/models"
	"github.com/hetansh2220/Pulse/internal/pricehistory"
	"github.com/hetansh2220/Pulse/internal/units"
)

const defaultIndexerURL = "https://userdbindexer-production.up.railway.app"

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, time.Now()); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "pulse-quote: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	marketID   string
	indexerURL string
	configPath string
	yesSupply  string
	noSupply   string
	created    string
	end        string
	resolved   bool
	side       string
	buy        string
	sell       string
	steps      int
	history    bool
	logLevel   string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("pulse-quote", flag.ContinueOnError)
	fs.StringVar(&o.marketID, "market", "", "Market ID to fetch from the indexer")
	fs.StringVar(&o.indexerURL, "indexer", "", "Indexer base URL (default from -config, else the public indexer)")
	fs.StringVar(&o.configPath, "config", "", "Optional configuration file providing indexer settings")
	fs.StringVar(&o.yesSupply, "yes", "0", "YES token supply in base units")
	fs.StringVar(&o.noSupply, "no", "0", "NO token supply in base units")
	fs.StringVar(&o.created, "created", "", "Market creation time (RFC 3339)")
	fs.StringVar(&o.end, "end", "", "Market end time (RFC 3339)")
	fs.BoolVar(&o.resolved, "resolved", false, "Market has been resolved")
	fs.StringVar(&o.side, "side", "yes", "Outcome side for estimates: yes or no")
	fs.StringVar(&o.buy, "buy", "", "Collateral amount to buy with, e.g. 100 or 12.5")
	fs.StringVar(&o.sell, "sell", "", "Token amount to sell")
	fs.IntVar(&o.steps, "steps", 1, "Price impact refinement steps")
	fs.BoolVar(&o.history, "history", false, "Print the price history summary (requires -market)")
	fs.StringVar(&o.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.history && o.marketID == "" {
		return o, errors.New("-history requires -market")
	}
	return o, nil
}

func run(ctx context.Context, args []string, out io.Writer, now time.Time) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	logger.Init(o.logLevel, "text")

	side, err := models.ParseSide(o.side)
	if err != nil {
		return err
	}

	var market models.Market
	var client *indexer.Client
	if o.marketID != "" {
		client, err = newIndexerClient(o)
		if err != nil {
			return err
		}
		market, err = client.FetchMarket(ctx, o.marketID)
		if err != nil {
			return err
		}
	} else {
		market, err = marketFromFlags(o, now)
		if err != nil {
			return err
		}
	}

	if err := printQuote(out, market, now); err != nil {
		return err
	}
	if err := printEstimates(out, o, side, market.Reserves()); err != nil {
		return err
	}

	if o.history {
		raw, err := client.FetchPriceHistory(ctx, market.ID)
		if err != nil {
			return err
		}
		series, errs := pricehistory.Transform(raw)
		for _, e := range errs {
			logger.Warn("Skipped price history entry: %v", e)
		}
		printHistory(out, series, now)
	}
	return nil
}

func newIndexerClient(o options) (*indexer.Client, error) {
	baseURL := defaultIndexerURL
	timeout := 30 * time.Second
	retry := indexer.ClientConfig{}
	if o.configPath != "" {
		cfg, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		baseURL = cfg.Indexer.BaseURL
		timeout = cfg.Indexer.Timeout
		retry = indexer.ClientConfig{MaxRetries: cfg.Indexer.MaxRetries, RetryDelayBase: cfg.Indexer.RetryDelayBase}
	}
	if o.indexerURL != "" {
		baseURL = o.indexerURL
	}
	return indexer.NewClient(baseURL, timeout, retry), nil
}

func marketFromFlags(o options, now time.Time) (models.Market, error) {
	reserves, err := models.ParseReserveState(o.yesSupply, o.noSupply)
	if err != nil {
		return models.Market{}, err
	}

	created, end := now.Add(-lifecycle.BufferPeriod), now.Add(24*time.Hour)
	if o.created != "" {
		if created, err = time.Parse(time.RFC3339, o.created); err != nil {
			return models.Market{}, fmt.Errorf("invalid -created: %w", err)
		}
	}
	if o.end != "" {
		if end, err = time.Parse(time.RFC3339, o.end); err != nil {
			return models.Market{}, fmt.Errorf("invalid -end: %w", err)
		}
	}

	return models.Market{
		ID:           "local",
		Question:     "Quote from supplied reserves",
		YesSupply:    reserves.YesSupply,
		NoSupply:     reserves.NoSupply,
		CreationTime: created,
		EndTime:      end,
		Resolved:     o.resolved,
	}, nil
}

func printQuote(out io.Writer, m models.Market, now time.Time) error {
	quote := amm.Price(m.Reserves())
	status := lifecycle.Classify(m.Lifecycle(), now)

	statusLine := status.Label()
	switch status {
	case models.StatusUpcoming:
		statusLine += fmt.Sprintf(" (trading opens in %s)", lifecycle.BufferRemaining(m.CreationTime, now).Round(time.Second))
	case models.StatusActive:
		statusLine += fmt.Sprintf(" (%s left)", format.TimeRemaining(m.EndTime, now))
	case models.StatusResolved:
		if m.WinningToken != "" {
			statusLine += " (winner: " + m.WinningToken + ")"
		}
	}

	_, err := fmt.Fprintf(out,
		"Market:   %s\nID:       %s\nStatus:   %s\nYES:      %s (%s)\nNO:       %s (%s)\nSupply:   %s YES / %s NO\nEnds:     %s\n",
		format.Truncate(m.Question, 80),
		m.ID,
		statusLine,
		format.Price(quote.YesPrice), format.Probability(quote.YesPrice, 1),
		format.Price(quote.NoPrice), format.Probability(quote.NoPrice, 1),
		units.FromBaseUnits(m.YesSupply).String(), units.FromBaseUnits(m.NoSupply).String(),
		format.DateTime(m.EndTime),
	)
	return err
}

func printEstimates(out io.Writer, o options, side models.Side, r models.ReserveState) error {
	if o.buy != "" {
		base, err := units.ParseUSDC(o.buy)
		if err != nil {
			return fmt.Errorf("invalid -buy: %w", err)
		}
		amount := units.ToFloat(base)
		est, err := amm.EstimateBuyTrade(amount, side, r)
		if err != nil {
			return err
		}
		impact, err := amm.PriceImpactSteps(amount, side, r, o.steps)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nBuy %s of %s: ~%.2f tokens at %s, impact %s\n",
			format.USDC(base), side.Label(), est.Output,
			format.TokenPrice(est.Price, 4), format.Percent(impact, 2, false))
		fmt.Fprintln(out, est.Advisory)
	}

	if o.sell != "" {
		base, err := units.ParseUSDC(o.sell)
		if err != nil {
			return fmt.Errorf("invalid -sell: %w", err)
		}
		est, err := amm.EstimateSellTrade(units.ToFloat(base), side, r)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nSell %s %s tokens: ~%s at %s\n",
			units.FromBaseUnits(base).String(), side.Label(),
			format.Currency(est.Output, 2), format.TokenPrice(est.Price, 4))
		fmt.Fprintln(out, est.Advisory)
	}
	return nil
}

func printHistory(out io.Writer, series models.PriceSeries, now time.Time) {
	if len(series.Points) == 0 {
		fmt.Fprintln(out, "\nNo price history")
		return
	}
	first := series.Points[0]
	last := series.Points[len(series.Points)-1]
	fmt.Fprintf(out, "\nHistory:  %d points since %s\nRange:    %s - %s\nLast:     YES %s / NO %s (%s)\n",
		len(series.Points), format.DateTime(first.Timestamp),
		format.Price(series.MinPrice), format.Price(series.MaxPrice),
		format.Price(last.YesPrice), format.Price(last.NoPrice),
		format.TimeAgo(last.Timestamp, now))
}
