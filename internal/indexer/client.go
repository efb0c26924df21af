// Package indexer fetches markets and price history from the settlement
// indexer's HTTP API.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/hetansh2220/Pulse/internal/logger"
	"github.com/hetansh2220/Pulse/internal/models"
)

// ErrNotFound is returned when the indexer reports 404 for a market.
var ErrNotFound = errors.New("market not found")

// defaultLifetime is assumed for markets that report no end time.
const defaultLifetime = 30 * 24 * time.Hour

// Client provides access to the settlement indexer API
type Client struct {
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
	now            func() time.Time
}

// ClientConfig holds retry settings for the client.
type ClientConfig struct {
	MaxRetries     int
	RetryDelayBase time.Duration
}

// NewClient creates a new indexer client
func NewClient(baseURL string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
		now:            time.Now,
	}
}

// FetchMarkets retrieves every market known to the indexer.
func (c *Client) FetchMarkets(ctx context.Context) ([]models.Market, error) {
	body, err := c.get(ctx, c.baseURL+"/api/markets")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch markets: %w", err)
	}

	items, err := unwrapList(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode markets: %w", err)
	}

	now := c.now()
	markets := make([]models.Market, 0, len(items))
	for i, item := range items {
		m, err := decodeMarket(item, now)
		if err != nil {
			// One malformed record should not hide the rest.
			logger.Warn("Skipping market %d: %v", i, err)
			continue
		}
		markets = append(markets, m)
	}
	return markets, nil
}

// FetchMarket retrieves a single market by ID (its public key).
func (c *Client) FetchMarket(ctx context.Context, id string) (models.Market, error) {
	body, err := c.get(ctx, c.baseURL+"/api/markets/"+url.PathEscape(id))
	if err != nil {
		return models.Market{}, fmt.Errorf("failed to fetch market %s: %w", id, err)
	}

	var envelope struct {
		Market json.RawMessage `json:"market"`
	}
	raw := json.RawMessage(body)
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Market) > 0 {
		raw = envelope.Market
	}

	m, err := decodeMarket(raw, c.now())
	if err != nil {
		return models.Market{}, fmt.Errorf("failed to decode market %s: %w", id, err)
	}
	return m, nil
}

// FetchError records a market that could not be fetched.
type FetchError struct {
	MarketID string
	Err      error
}

func (e FetchError) Error() string {
	return fmt.Sprintf("market %s: %v", e.MarketID, e.Err)
}

func (e FetchError) Unwrap() error {
	return e.Err
}

// FetchMarketsByID fetches the given markets with at most concurrency
// requests in flight. Markets that fail are reported as FetchErrors and
// skipped; the rest keep the order of ids. The returned error is only set
// when ctx is done.
func (c *Client) FetchMarketsByID(ctx context.Context, ids []string, concurrency int) ([]models.Market, []FetchError, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]models.Market, len(ids))
	failures := make([]error, len(ids))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, id := range ids {
		g.Go(func() error {
			m, err := c.FetchMarket(ctx, id)
			if err != nil {
				failures[i] = err
				return nil
			}
			results[i] = m
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	markets := make([]models.Market, 0, len(ids))
	var fetchErrors []FetchError
	for i, id := range ids {
		if failures[i] != nil {
			fetchErrors = append(fetchErrors, FetchError{MarketID: id, Err: failures[i]})
			continue
		}
		markets = append(markets, results[i])
	}
	return markets, fetchErrors, nil
}

// FetchPriceHistory retrieves the raw YES/NO price series of a market.
func (c *Client) FetchPriceHistory(ctx context.Context, id string) (models.PriceHistoryResponse, error) {
	body, err := c.get(ctx, c.baseURL+"/api/markets/"+url.PathEscape(id)+"/price-history")
	if err != nil {
		return models.PriceHistoryResponse{}, fmt.Errorf("failed to fetch price history for %s: %w", id, err)
	}

	var resp models.PriceHistoryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.PriceHistoryResponse{}, fmt.Errorf("failed to decode price history for %s: %w", id, err)
	}
	return resp, nil
}

// get performs a GET with retry logic and returns the response body.
// Network errors and 5xx responses are retried with linear backoff; any other
// non-2xx status fails immediately.
func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * c.retryDelayBase):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			logger.Debug("Request to %s failed (attempt %d/%d): %v", target, i+1, c.maxRetries, err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			logger.Debug("Request to %s returned %d (attempt %d/%d)", target, resp.StatusCode, i+1, c.maxRetries)
			continue
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrNotFound
		case resp.StatusCode >= 300:
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}
		if err != nil {
			lastErr = fmt.Errorf("failed to read body: %w", err)
			continue
		}
		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// unwrapList accepts a bare array, {"markets": [...]} or {"data": [...]}.
func unwrapList(body []byte) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err == nil {
		return items, nil
	}

	var envelope struct {
		Markets []json.RawMessage `json:"markets"`
		Data    []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	if envelope.Markets != nil {
		return envelope.Markets, nil
	}
	return envelope.Data, nil
}

// rawMarket is a market record as the indexer sends it. Field names come in
// camelCase or snake_case depending on the upstream SDK, and numbers may be
// JSON numbers or decimal strings.
type rawMarket map[string]json.RawMessage

// pick returns the first present, non-null field among keys.
func (r rawMarket) pick(keys ...string) json.RawMessage {
	for _, k := range keys {
		if v, ok := r[k]; ok && string(v) != "null" {
			return v
		}
	}
	return nil
}

func (r rawMarket) str(keys ...string) string {
	v := r.pick(keys...)
	if v == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return strings.Trim(string(v), `"`)
}

func (r rawMarket) boolean(keys ...string) bool {
	var b bool
	if v := r.pick(keys...); v != nil {
		_ = json.Unmarshal(v, &b)
	}
	return b
}

func decodeMarket(data json.RawMessage, now time.Time) (models.Market, error) {
	var r rawMarket
	if err := json.Unmarshal(data, &r); err != nil {
		return models.Market{}, err
	}

	// SDK listings nest the on-chain account under "account".
	if account := r.pick("account"); account != nil {
		var inner rawMarket
		if err := json.Unmarshal(account, &inner); err != nil {
			return models.Market{}, fmt.Errorf("account: %w", err)
		}
		for _, k := range []string{"publicKey", "public_key", "address"} {
			if v, ok := r[k]; ok {
				inner[k] = v
			}
		}
		r = inner
	}

	var m models.Market
	m.PublicKey = r.str("publicKey", "public_key", "address")
	m.ID = m.PublicKey
	if m.ID == "" {
		m.ID = r.str("id")
	}
	if m.ID == "" {
		return models.Market{}, errors.New("market has no id")
	}

	m.Question = r.str("question")
	m.Category = r.str("category")
	if m.Category == "" {
		m.Category = "general"
	}
	m.Creator = r.str("creator")
	m.YesTokenMint = r.str("yesTokenMint", "yes_token_mint")
	m.NoTokenMint = r.str("noTokenMint", "no_token_mint")

	var err error
	if m.YesSupply, err = parseAmount(r.pick("yesTokenSupplyMinted", "yes_token_supply_minted", "yesTokenSupply", "yes_token_supply")); err != nil {
		return models.Market{}, fmt.Errorf("yes supply: %w", err)
	}
	if m.NoSupply, err = parseAmount(r.pick("noTokenSupplyMinted", "no_token_supply_minted", "noTokenSupply", "no_token_supply")); err != nil {
		return models.Market{}, fmt.Errorf("no supply: %w", err)
	}
	if m.MarketReserves, err = parseAmount(r.pick("marketReserves", "market_reserves")); err != nil {
		return models.Market{}, fmt.Errorf("market reserves: %w", err)
	}
	if m.InitialLiquidity, err = parseAmount(r.pick("initialLiquidity", "initial_liquidity")); err != nil {
		return models.Market{}, fmt.Errorf("initial liquidity: %w", err)
	}

	if m.CreationTime, err = parseTime(r.pick("creationTime", "creation_time")); err != nil {
		return models.Market{}, fmt.Errorf("creation time: %w", err)
	}
	if m.EndTime, err = parseTime(r.pick("endTime", "end_time")); err != nil {
		return models.Market{}, fmt.Errorf("end time: %w", err)
	}
	if m.CreationTime.IsZero() {
		m.CreationTime = now
	}
	if m.EndTime.IsZero() {
		m.EndTime = now.Add(defaultLifetime)
	}

	m.Resolved = r.boolean("resolved")
	m.Resolvable = r.boolean("resolvable")
	m.WinningToken = parseWinningToken(r.pick("winningTokenId", "winning_token_id", "winningToken", "winning_token"))
	if !m.Resolved && m.WinningToken != "" {
		m.WinningToken = ""
	}
	m.LastUpdated = now

	if err := m.Validate(); err != nil {
		return models.Market{}, err
	}
	return m, nil
}

// parseAmount reads a non-negative base-unit amount given as a JSON number or
// a decimal string. Missing values are zero; fractional values are floored.
func parseAmount(v json.RawMessage) (uint64, error) {
	if v == nil {
		return 0, nil
	}
	s := strings.TrimSpace(strings.Trim(string(v), `"`))
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed amount %q", models.ErrInvalidArgument, s)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: negative amount %q", models.ErrInvalidArgument, s)
	}
	b := d.Floor().BigInt()
	if !b.IsUint64() {
		return 0, fmt.Errorf("%w: amount %q out of range", models.ErrInvalidArgument, s)
	}
	return b.Uint64(), nil
}

// parseTime reads unix seconds (number or numeric string) or an RFC 3339
// string. Missing or zero values give the zero time.
func parseTime(v json.RawMessage) (time.Time, error) {
	if v == nil {
		return time.Time{}, nil
	}
	s := strings.TrimSpace(strings.Trim(string(v), `"`))
	if s == "" || s == "0" {
		return time.Time{}, nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Unix(int64(f), 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	}
	return t.UTC(), nil
}

// parseWinningToken maps the indexer's representations ("yes", 1, {"yes":{}})
// to the model's values. A numeric 0 is treated as unset.
func parseWinningToken(v json.RawMessage) string {
	if v == nil {
		return ""
	}

	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		switch strings.ToLower(s) {
		case models.WinningYes:
			return models.WinningYes
		case models.WinningNo:
			return models.WinningNo
		case models.WinningNone:
			return models.WinningNone
		}
		return ""
	}

	var n int
	if err := json.Unmarshal(v, &n); err == nil {
		if n == 1 {
			return models.WinningYes
		}
		return ""
	}

	var variant map[string]json.RawMessage
	if err := json.Unmarshal(v, &variant); err == nil {
		if _, ok := variant["yes"]; ok {
			return models.WinningYes
		}
		if _, ok := variant["no"]; ok {
			return models.WinningNo
		}
	}
	return ""
}
