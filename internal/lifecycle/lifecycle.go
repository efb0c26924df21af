// Package lifecycle derives a market's display status from its timestamps.
//
// Classification is evaluated in a fixed priority order, first match wins:
//
//	resolved                    -> Resolved (terminal)
//	now < creation + buffer     -> Upcoming (quiet period, no trading)
//	now >= end                  -> Ended (awaiting resolution)
//	otherwise                   -> Active
//
// The 15 minute buffer keeps a creator from trading against a market nobody
// else has seen yet. Status here is advisory: the settlement program enforces
// the same gates independently.
//
// The current time is always passed in; nothing in this package reads the
// clock.
package lifecycle

import (
	"time"

	"github.com/hetansh2220/Pulse/internal/models"
)

// BufferPeriod is the quiet period after market creation during which trading
// is disallowed.
const BufferPeriod = 15 * time.Minute

// BufferRemaining returns how much of the buffer period is left at now. It is
// zero at and after creation+BufferPeriod.
func BufferRemaining(creation, now time.Time) time.Duration {
	remaining := creation.Add(BufferPeriod).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// InBufferPeriod reports whether trading is still inside the post-creation
// quiet period.
func InBufferPeriod(creation, now time.Time) bool {
	return BufferRemaining(creation, now) > 0
}

// HasEnded reports whether the market's event horizon has passed. The end
// instant itself counts as ended.
func HasEnded(end, now time.Time) bool {
	return !now.Before(end)
}

// Classify returns the display status of a market at now.
func Classify(in models.LifecycleInput, now time.Time) models.Status {
	if in.Resolved {
		return models.StatusResolved
	}
	if InBufferPeriod(in.CreationTime, now) {
		return models.StatusUpcoming
	}
	if HasEnded(in.EndTime, now) {
		return models.StatusEnded
	}
	return models.StatusActive
}

// IsTradable reports whether trade submission should be offered for status.
func IsTradable(status models.Status) bool {
	return status == models.StatusActive
}

// FilterByStatus returns the markets whose classification at now equals
// status. An empty status or "all" returns the input unchanged.
func FilterByStatus(markets []models.Market, status models.Status, now time.Time) []models.Market {
	if status == "" || status == "all" {
		return markets
	}
	var result []models.Market
	for _, m := range markets {
		if Classify(m.Lifecycle(), now) == status {
			result = append(result, m)
		}
	}
	return result
}

// Counts tallies markets by status at now.
func Counts(markets []models.Market, now time.Time) map[models.Status]int {
	counts := make(map[models.Status]int, len(models.Statuses))
	for _, s := range models.Statuses {
		counts[s] = 0
	}
	for _, m := range markets {
		counts[Classify(m.Lifecycle(), now)]++
	}
	return counts
}
