// Package monitor turns successive market observations into notable events.
//
// Each cycle the watcher hands the freshly fetched markets to RecordSnapshots,
// which prices them from their reserves, classifies their lifecycle status and
// stores a snapshot. A status that differs from the previous snapshot's is
// reported as a Transition. DetectChanges then compares the oldest and newest
// snapshot inside a time window and reports YES price moves at or above a
// threshold. Ranking keeps the top-K moves; the cooldown filter drops moves
// that were already announced in the same direction.
package monitor

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hetansh2220/Pulse/internal/amm"
	"github.com/hetansh2220/Pulse/internal/lifecycle"
	"github.com/hetansh2220/Pulse/internal/logger"
	"github.com/hetansh2220/Pulse/internal/models"
	"github.com/hetansh2220/Pulse/internal/storage"
)

// SnapshotSource tags snapshots written by the watcher.
const SnapshotSource = "indexer"

// notifiedRecord tracks a previously sent notification for cooldown deduplication.
type notifiedRecord struct {
	Direction string
	NewPrice  float64
	SentAt    time.Time
}

// Monitor handles snapshotting and change detection
type Monitor struct {
	storage         *storage.Storage
	notifiedMarkets map[string]notifiedRecord // key = market ID
}

// New creates a new Monitor instance
func New(s *storage.Storage) *Monitor {
	return &Monitor{
		storage:         s,
		notifiedMarkets: make(map[string]notifiedRecord),
	}
}

// DetectionError represents a per-market error during a cycle
type DetectionError struct {
	MarketID string
	Err      error
}

func (e DetectionError) Error() string {
	return fmt.Sprintf("detection error for market %s: %v", e.MarketID, e.Err)
}

func (e DetectionError) Unwrap() error {
	return e.Err
}

// RecordSnapshots stores the current quote and status of every market and
// returns the status transitions observed since each market's previous
// snapshot. A market seen for the first time produces no transition.
func (m *Monitor) RecordSnapshots(ctx context.Context, markets []models.Market, now time.Time) ([]models.Transition, []DetectionError) {
	var transitions []models.Transition
	var detectionErrors []DetectionError

	for i := range markets {
		market := &markets[i]

		prev, err := m.storage.LatestSnapshot(ctx, market.ID)
		if err != nil {
			detectionErrors = append(detectionErrors, DetectionError{MarketID: market.ID, Err: err})
			continue
		}

		status := lifecycle.Classify(market.Lifecycle(), now)
		quote := amm.Price(market.Reserves())

		if err := m.storage.UpsertMarket(ctx, market); err != nil {
			detectionErrors = append(detectionErrors, DetectionError{MarketID: market.ID, Err: err})
			continue
		}

		snap := &models.Snapshot{
			ID:        uuid.New().String(),
			MarketID:  market.ID,
			YesSupply: market.YesSupply,
			NoSupply:  market.NoSupply,
			YesPrice:  quote.YesPrice,
			NoPrice:   quote.NoPrice,
			Status:    status,
			Timestamp: now,
			Source:    SnapshotSource,
		}
		if err := m.storage.AddSnapshot(ctx, snap); err != nil {
			detectionErrors = append(detectionErrors, DetectionError{MarketID: market.ID, Err: err})
			continue
		}

		if prev != nil && prev.Status != status {
			transitions = append(transitions, models.Transition{
				ID:         uuid.New().String(),
				MarketID:   market.ID,
				Question:   market.Question,
				From:       prev.Status,
				To:         status,
				YesPrice:   quote.YesPrice,
				DetectedAt: now,
			})
		}
	}

	logger.Debug("RecordSnapshots: markets=%d transitions=%d errors=%d",
		len(markets), len(transitions), len(detectionErrors))

	return transitions, detectionErrors
}

// DetectChanges reports YES price moves of at least threshold between the
// oldest and newest snapshot within window. Returns changes, per-market errors
// (non-fatal), and a fatal error if the arguments are invalid.
func (m *Monitor) DetectChanges(ctx context.Context, markets []models.Market, window time.Duration, threshold float64, now time.Time) ([]models.Change, []DetectionError, error) {
	if window <= 0 {
		return nil, nil, fmt.Errorf("invalid window %v: must be positive", window)
	}
	if threshold <= 0 || threshold > 1 || math.IsNaN(threshold) {
		return nil, nil, fmt.Errorf("invalid threshold %v: must be in (0, 1]", threshold)
	}

	var changes []models.Change
	var detectionErrors []DetectionError

	marketsWithOneSnapshot := 0
	marketsBelowThreshold := 0
	maxChangeSeen := 0.0

	for _, market := range markets {
		snapshots, err := m.storage.GetSnapshotsInWindow(ctx, market.ID, window, now)
		if err != nil {
			detectionErrors = append(detectionErrors, DetectionError{MarketID: market.ID, Err: err})
			continue
		}
		if len(snapshots) < 2 {
			marketsWithOneSnapshot++
			continue
		}

		oldest := snapshots[0]
		current := snapshots[len(snapshots)-1]
		change := math.Abs(current.YesPrice - oldest.YesPrice)
		maxChangeSeen = max(maxChangeSeen, change)

		if change < threshold {
			marketsBelowThreshold++
			continue
		}

		direction := "increase"
		if current.YesPrice < oldest.YesPrice {
			direction = "decrease"
		}

		changes = append(changes, models.Change{
			ID:         uuid.New().String(),
			MarketID:   market.ID,
			Question:   market.Question,
			Magnitude:  change,
			Direction:  direction,
			OldPrice:   oldest.YesPrice,
			NewPrice:   current.YesPrice,
			TimeWindow: window,
			DetectedAt: now,
		})
	}

	logger.Debug("DetectChanges: <2 snapshots=%d, below threshold=%d, changes=%d, max_change=%.6f",
		marketsWithOneSnapshot, marketsBelowThreshold, len(changes), maxChangeSeen)

	return changes, detectionErrors, nil
}

// AttachImpact sets ProbeImpact on each change: the price impact of buying
// probeAmount of collateral on the side that moved (YES for increases, NO for
// decreases) at the market's current reserves.
func AttachImpact(changes []models.Change, markets []models.Market, probeAmount float64, steps int) []DetectionError {
	byID := make(map[string]models.ReserveState, len(markets))
	for _, market := range markets {
		byID[market.ID] = market.Reserves()
	}

	var detectionErrors []DetectionError
	for i := range changes {
		reserves, ok := byID[changes[i].MarketID]
		if !ok {
			continue
		}
		side := models.SideYes
		if changes[i].Direction == "decrease" {
			side = models.SideNo
		}
		impact, err := amm.PriceImpactSteps(probeAmount, side, reserves, steps)
		if err != nil {
			detectionErrors = append(detectionErrors, DetectionError{MarketID: changes[i].MarketID, Err: err})
			continue
		}
		changes[i].ProbeImpact = impact
	}
	return detectionErrors
}

// RankChanges returns at most topK changes, largest move first. Ties are
// broken by market ID. Returns a non-nil slice.
func RankChanges(changes []models.Change, topK int) []models.Change {
	ranked := make([]models.Change, len(changes))
	copy(ranked, changes)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Magnitude != ranked[j].Magnitude {
			return ranked[i].Magnitude > ranked[j].Magnitude
		}
		return ranked[i].MarketID < ranked[j].MarketID
	})
	if topK >= 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}

// isDeterministicZone reports whether p is in the near-certain region
// (>90% or <10%), where a further move is worth announcing again.
func isDeterministicZone(p float64) bool {
	return p > 0.90 || p < 0.10
}

// FilterRecentlySent removes changes for markets that were notified within
// cooldown with the same direction, unless the price is entering the
// deterministic zone for the first time. Returns a non-nil slice.
func (m *Monitor) FilterRecentlySent(changes []models.Change, cooldown time.Duration, now time.Time) []models.Change {
	result := []models.Change{}
	for _, change := range changes {
		rec, exists := m.notifiedMarkets[change.MarketID]
		if exists && now.Sub(rec.SentAt) < cooldown {
			sameDirection := rec.Direction == change.Direction
			enteringDetZone := isDeterministicZone(change.NewPrice) && !isDeterministicZone(rec.NewPrice)
			if sameDirection && !enteringDetZone {
				continue
			}
		}
		result = append(result, change)
	}
	return result
}

// RecordNotified records the changes as notified at now.
// Call this after a successful Telegram send to enable cooldown deduplication.
func (m *Monitor) RecordNotified(changes []models.Change, now time.Time) {
	for _, change := range changes {
		m.notifiedMarkets[change.MarketID] = notifiedRecord{
			Direction: change.Direction,
			NewPrice:  change.NewPrice,
			SentAt:    now,
		}
	}
}

// Rotate applies storage retention limits.
func (m *Monitor) Rotate(ctx context.Context) error {
	if err := m.storage.RotateSnapshots(ctx); err != nil {
		return err
	}
	return m.storage.RotateMarkets(ctx)
}
