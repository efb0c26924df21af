package indexer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hetansh2220/Pulse/internal/models"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestClient(url string) *Client {
	c := NewClient(url, 5*time.Second, ClientConfig{MaxRetries: 3, RetryDelayBase: time.Millisecond})
	c.now = func() time.Time { return fixedNow }
	return c
}

func TestFetchMarkets_MixedFieldStyles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/markets" {
			t.Errorf("Expected path /api/markets, got %s", r.URL.Path)
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Expected Accept: application/json, got %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"markets": [
			{
				"publicKey": "Mkt1111",
				"question": "Will SOL close above $200?",
				"category": "crypto",
				"yesTokenSupplyMinted": "1500000",
				"noTokenSupplyMinted": 500000,
				"marketReserves": "2000000",
				"creationTime": 1748700000,
				"endTime": "1751300000",
				"resolved": false
			},
			{
				"public_key": "Mkt2222",
				"question": "Will it rain tomorrow?",
				"yes_token_supply_minted": "0",
				"no_token_supply_minted": "0",
				"creation_time": "2025-05-01T00:00:00Z",
				"end_time": "2025-05-02T00:00:00Z",
				"resolved": true,
				"winning_token_id": {"no": {}}
			},
			{
				"publicKey": "Broken",
				"question": "Negative supply?",
				"yesTokenSupplyMinted": "-5"
			}
		]}`))
	}))
	defer server.Close()

	markets, err := newTestClient(server.URL).FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("FetchMarkets failed: %v", err)
	}
	if len(markets) != 2 {
		t.Fatalf("Expected 2 markets (malformed one skipped), got %d", len(markets))
	}

	m := markets[0]
	if m.ID != "Mkt1111" || m.PublicKey != "Mkt1111" {
		t.Errorf("Expected ID Mkt1111, got %q/%q", m.ID, m.PublicKey)
	}
	if m.YesSupply != 1_500_000 || m.NoSupply != 500_000 || m.MarketReserves != 2_000_000 {
		t.Errorf("Unexpected supplies: %+v", m)
	}
	if !m.CreationTime.Equal(time.Unix(1748700000, 0)) || !m.EndTime.Equal(time.Unix(1751300000, 0)) {
		t.Errorf("Unexpected times: %v - %v", m.CreationTime, m.EndTime)
	}
	if !m.LastUpdated.Equal(fixedNow) {
		t.Errorf("Expected LastUpdated %v, got %v", fixedNow, m.LastUpdated)
	}

	m = markets[1]
	if m.Category != "general" {
		t.Errorf("Expected default category general, got %q", m.Category)
	}
	if !m.Resolved || m.WinningToken != models.WinningNo {
		t.Errorf("Expected resolved NO market, got resolved=%v winning=%q", m.Resolved, m.WinningToken)
	}
}

func TestFetchMarkets_SDKEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [
			{"publicKey": "Acct1", "account": {"question": "Nested?", "yes_token_supply_minted": 10, "no_token_supply_minted": 30}}
		]}`))
	}))
	defer server.Close()

	markets, err := newTestClient(server.URL).FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("FetchMarkets failed: %v", err)
	}
	if len(markets) != 1 {
		t.Fatalf("Expected 1 market, got %d", len(markets))
	}
	m := markets[0]
	if m.ID != "Acct1" || m.Question != "Nested?" || m.YesSupply != 10 || m.NoSupply != 30 {
		t.Errorf("Unexpected market: %+v", m)
	}
	// Missing times default to now and now+30d.
	if !m.CreationTime.Equal(fixedNow) || !m.EndTime.Equal(fixedNow.Add(30*24*time.Hour)) {
		t.Errorf("Unexpected default times: %v - %v", m.CreationTime, m.EndTime)
	}
}

func TestFetchMarket_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchMarket(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestFetchMarket_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"market": {"id": "m1", "question": "Retry?", "creationTime": 1748700000, "endTime": 1751300000}}`))
	}))
	defer server.Close()

	m, err := newTestClient(server.URL).FetchMarket(context.Background(), "m1")
	if err != nil {
		t.Fatalf("FetchMarket failed: %v", err)
	}
	if m.ID != "m1" {
		t.Errorf("Expected market m1, got %q", m.ID)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls.Load())
	}
}

func TestFetchMarket_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchMarket(context.Background(), "m1")
	if err == nil || !strings.Contains(err.Error(), "max retries exceeded") {
		t.Errorf("Expected max retries error, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls.Load())
	}
}

func TestFetchMarkets_KeepsSparseRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"publicKey": "NoQuestion", "question": "", "creationTime": 1748700000, "endTime": 1751300000},
			{"publicKey": "LateListing", "question": "Already over?", "endTime": 1600000000}
		]`))
	}))
	defer server.Close()

	markets, err := newTestClient(server.URL).FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("FetchMarkets failed: %v", err)
	}
	if len(markets) != 2 {
		t.Fatalf("Expected 2 markets, got %d", len(markets))
	}
	if markets[0].Question != "" {
		t.Errorf("Expected empty question, got %q", markets[0].Question)
	}
	late := markets[1]
	if !late.CreationTime.Equal(fixedNow) {
		t.Errorf("Expected creation time to default to now, got %v", late.CreationTime)
	}
	if !late.EndTime.Equal(time.Unix(1600000000, 0)) {
		t.Errorf("Expected end time to be kept, got %v", late.EndTime)
	}
}

func TestFetchMarketsByID_PreservesOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/markets/")
		_, _ = w.Write([]byte(`{"id": "` + id + `", "question": "Market ` + id + `?", "creationTime": 1748700000, "endTime": 1751300000}`))
	}))
	defer server.Close()

	ids := []string{"a", "b", "c", "d", "e"}
	markets, fetchErrors, err := newTestClient(server.URL).FetchMarketsByID(context.Background(), ids, 2)
	if err != nil {
		t.Fatalf("FetchMarketsByID failed: %v", err)
	}
	if len(fetchErrors) != 0 {
		t.Errorf("Expected no fetch errors, got %v", fetchErrors)
	}
	if len(markets) != len(ids) {
		t.Fatalf("Expected %d markets, got %d", len(ids), len(markets))
	}
	for i, id := range ids {
		if markets[i].ID != id {
			t.Errorf("markets[%d].ID = %q, want %q", i, markets[i].ID, id)
		}
	}
}

func TestFetchMarketsByID_KeepsSuccessfulMarkets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/markets/")
		if id == "gone" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"id": "` + id + `", "question": "Fine?", "creationTime": 1748700000, "endTime": 1751300000}`))
	}))
	defer server.Close()

	markets, fetchErrors, err := newTestClient(server.URL).FetchMarketsByID(context.Background(), []string{"ok", "gone", "also-ok"}, 4)
	if err != nil {
		t.Fatalf("FetchMarketsByID failed: %v", err)
	}
	if len(markets) != 2 || markets[0].ID != "ok" || markets[1].ID != "also-ok" {
		t.Errorf("Expected markets [ok also-ok], got %+v", markets)
	}
	if len(fetchErrors) != 1 {
		t.Fatalf("Expected 1 fetch error, got %d", len(fetchErrors))
	}
	if fetchErrors[0].MarketID != "gone" || !errors.Is(fetchErrors[0], ErrNotFound) {
		t.Errorf("Expected ErrNotFound for gone, got %v", fetchErrors[0])
	}
}

func TestFetchMarketsByID_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "a", "question": "Fine?", "creationTime": 1748700000, "endTime": 1751300000}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := newTestClient(server.URL).FetchMarketsByID(ctx, []string{"a"}, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestFetchPriceHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/markets/m1/price-history" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"yes_token": {"price_history": [{"price": "0.6", "timestamp": "2025-05-01T00:00:00Z", "trade_type": "BUY_YES"}]},
			"no_token": {"price_history": [{"price": "40", "timestamp": "2025-05-01T00:00:00Z", "trade_type": "SELL_NO"}]}
		}`))
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).FetchPriceHistory(context.Background(), "m1")
	if err != nil {
		t.Fatalf("FetchPriceHistory failed: %v", err)
	}
	if len(resp.YesToken.PriceHistory) != 1 || resp.YesToken.PriceHistory[0].Price != "0.6" {
		t.Errorf("Unexpected yes history: %+v", resp.YesToken)
	}
	if len(resp.NoToken.PriceHistory) != 1 || resp.NoToken.PriceHistory[0].TradeType != models.TradeTypeSellNo {
		t.Errorf("Unexpected no history: %+v", resp.NoToken)
	}
}

func TestFetchMarkets_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, ClientConfig{MaxRetries: 5, RetryDelayBase: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := c.FetchMarkets(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Expected retry wait to stop on context cancellation")
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{`"1500000"`, 1_500_000, false},
		{`1500000`, 1_500_000, false},
		{`"18446744073709551615"`, 18446744073709551615, false},
		{`"12.9"`, 12, false},
		{`1e6`, 1_000_000, false},
		{`""`, 0, false},
		{`"-1"`, 0, true},
		{`"abc"`, 0, true},
		{`"18446744073709551616"`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmount([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseAmount(%s) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, models.ErrInvalidArgument) {
				t.Errorf("Expected ErrInvalidArgument, got %v", err)
			}
			if got != tt.want {
				t.Errorf("parseAmount(%s) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseWinningToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"yes"`, models.WinningYes},
		{`"No"`, models.WinningNo},
		{`1`, models.WinningYes},
		{`0`, ""},
		{`{"yes": {}}`, models.WinningYes},
		{`{"no": {}}`, models.WinningNo},
		{`"maybe"`, ""},
	}
	for _, tt := range tests {
		if got := parseWinningToken([]byte(tt.in)); got != tt.want {
			t.Errorf("parseWinningToken(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
