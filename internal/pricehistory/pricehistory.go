// Package pricehistory merges the indexer's per-token price histories into a
// single time-ordered YES/NO series suitable for charting.
package pricehistory

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hetansh2220/Pulse/internal/models"
)

// initialPrice seeds the forward fill before a side's first observation.
const initialPrice = 0.5

// rangePadding widens the observed price range on both sides for chart axes.
const rangePadding = 0.05

type pair struct {
	yes, no       float64
	hasYes, hasNo bool
}

// Transform merges raw YES and NO histories by timestamp. Prices above 1 are
// treated as percentages. A side missing at a timestamp carries its last known
// value forward, starting from 0.5. MinPrice and MaxPrice bound every point
// with 0.05 of padding, clamped to [0, 1]; an empty series spans [0, 1].
// Entries with unparseable timestamps or
// prices are skipped and reported in the returned error slice.
func Transform(raw models.PriceHistoryResponse) (models.PriceSeries, []error) {
	byTime := make(map[time.Time]*pair)
	var errs []error

	collect := func(entries []models.PriceHistoryEntry, side models.Side) {
		for _, e := range entries {
			ts, price, err := parseEntry(e)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s entry at %q: %w", side, e.Timestamp, err))
				continue
			}
			p, ok := byTime[ts]
			if !ok {
				p = &pair{}
				byTime[ts] = p
			}
			if side == models.SideYes {
				p.yes, p.hasYes = price, true
			} else {
				p.no, p.hasNo = price, true
			}
		}
	}
	collect(raw.YesToken.PriceHistory, models.SideYes)
	collect(raw.NoToken.PriceHistory, models.SideNo)

	times := make([]time.Time, 0, len(byTime))
	for ts := range byTime {
		times = append(times, ts)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	series := models.PriceSeries{Points: make([]models.ChartPoint, 0, len(times)), MinPrice: 0, MaxPrice: 1}
	if len(times) == 0 {
		return series, errs
	}

	lastYes, lastNo := initialPrice, initialPrice
	series.MinPrice, series.MaxPrice = 1, 0
	for _, ts := range times {
		p := byTime[ts]
		if p.hasYes {
			lastYes = p.yes
		}
		if p.hasNo {
			lastNo = p.no
		}
		series.Points = append(series.Points, models.ChartPoint{Timestamp: ts, YesPrice: lastYes, NoPrice: lastNo})
		series.MinPrice = min(series.MinPrice, lastYes, lastNo)
		series.MaxPrice = max(series.MaxPrice, lastYes, lastNo)
	}
	series.MinPrice = max(0, series.MinPrice-rangePadding)
	series.MaxPrice = min(1, series.MaxPrice+rangePadding)
	return series, errs
}

func parseEntry(e models.PriceHistoryEntry) (time.Time, float64, error) {
	ts, err := parseTimestamp(e.Timestamp)
	if err != nil {
		return time.Time{}, 0, err
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(e.Price), 64)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("bad price %q", e.Price)
	}
	if price < 0 || price > 100 {
		return time.Time{}, 0, fmt.Errorf("price %v out of range", price)
	}
	if price > 1 {
		price /= 100
	}
	return ts, price, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05.999999"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		if secs > 1e12 {
			return time.UnixMilli(secs).UTC(), nil
		}
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad timestamp %q", s)
}
