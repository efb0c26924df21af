package main

import (
	"bytes"
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hetansh2220/Pulse/internal/models"
)

func TestRunReport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"publicKey": "a", "question": "Deep crypto market?", "category": "crypto",
			 "yesTokenSupplyMinted": "1000", "noTokenSupplyMinted": "1000", "marketReserves": "5000000000",
			 "creationTime": 1746057600, "endTime": 1767225600},
			{"publicKey": "b", "question": "Thin crypto market?", "category": "crypto",
			 "yesTokenSupplyMinted": "10", "noTokenSupplyMinted": "10", "marketReserves": "1000000",
			 "creationTime": 1746057600, "endTime": 1767225600},
			{"publicKey": "c", "question": "Finished sports market?", "category": "sports",
			 "marketReserves": "2000000", "creationTime": 1746057600, "endTime": 1746144000, "resolved": true}
		]`))
	}))
	defer server.Close()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("indexer:\n  base_url: \""+server.URL+"\"\n  retry_delay_base: 1ms\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := run(context.Background(), []string{"-config", cfgPath, "-probe", "5", "-top", "2"}, &out, now); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"Fetched 3 markets",
		"Total: 0 upcoming, 2 active, 0 ended, 1 resolved",
		"Top 2 markets by collateral:",
		" 1. $5,000.00",
		"Deep crypto market?",
		"$5.00 probe buy",
		"ANALYSIS COMPLETE",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "crypto") > strings.Index(got, "sports") {
		t.Errorf("expected categories ordered by market count:\n%s", got)
	}
}

func TestRunInvalidProbe(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("indexer:\n  base_url: \"http://127.0.0.1:1\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := run(context.Background(), []string{"-config", cfgPath, "-probe", "-3"}, &out, time.Now()); err == nil {
		t.Error("expected error for negative probe")
	}
}

func TestRunNegativeTop(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("indexer:\n  base_url: \"http://127.0.0.1:1\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := run(context.Background(), []string{"-config", cfgPath, "-top", "-1"}, &out, time.Now()); err == nil {
		t.Error("expected error for negative top")
	}
}

func TestAnalyzeReservesClampsTop(t *testing.T) {
	markets := []models.Market{{ID: "a", Question: "Only market?", MarketReserves: 1_000_000}}
	for _, top := range []int{-1, 0, 5} {
		var out bytes.Buffer
		analyzeReserves(&out, markets, top)
		if top > 0 && !strings.Contains(out.String(), "Only market?") {
			t.Errorf("top=%d: expected market listed:\n%s", top, out.String())
		}
		if top <= 0 && !strings.Contains(out.String(), "Top 0 markets") {
			t.Errorf("top=%d: expected empty listing:\n%s", top, out.String())
		}
	}
}

func TestAnalyzeCategoriesLargeReserves(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	markets := []models.Market{
		{ID: "a", Category: "crypto", MarketReserves: math.MaxUint64, CreationTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour)},
		{ID: "b", Category: "crypto", MarketReserves: math.MaxUint64, CreationTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour)},
	}
	var out bytes.Buffer
	analyzeCategories(&out, markets, now)
	if !strings.Contains(out.String(), "$36,893,488,147,419.10") {
		t.Errorf("expected exact collateral sum:\n%s", out.String())
	}
}
