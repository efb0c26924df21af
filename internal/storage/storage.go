// Package storage keeps observed markets and their price snapshots in SQLite.
//
// Markets are stored as JSON documents keyed by ID; snapshots are stored
// row-per-observation so the watcher can query a time window. Rotation bounds
// both tables. Supplies are kept as decimal text since SQLite integers are
// signed 64-bit.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hetansh2220/Pulse/internal/logger"
	"github.com/hetansh2220/Pulse/internal/models"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a market does not exist.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS markets (
	id           TEXT PRIMARY KEY,
	data         TEXT NOT NULL,
	last_updated INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	market_id  TEXT NOT NULL,
	yes_supply TEXT NOT NULL,
	no_supply  TEXT NOT NULL,
	yes_price  REAL NOT NULL,
	no_price   REAL NOT NULL,
	status     TEXT NOT NULL,
	ts         INTEGER NOT NULL,
	source     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_market_ts ON snapshots (market_id, ts);
`

// Storage provides SQLite-backed persistence for markets and snapshots
type Storage struct {
	db *sql.DB

	maxMarkets            int
	maxSnapshotsPerMarket int
}

// New opens (or creates) the database at dbPath. ":memory:" gives a private
// in-memory database.
func New(maxMarkets, maxSnapshotsPerMarket int, dbPath string) (*Storage, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite has a single writer and ":memory:" is per-connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Storage{
		db:                    db,
		maxMarkets:            maxMarkets,
		maxSnapshotsPerMarket: maxSnapshotsPerMarket,
	}, nil
}

// Close releases the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// UpsertMarket inserts a market or replaces the stored copy.
func (s *Storage) UpsertMarket(ctx context.Context, market *models.Market) error {
	if err := market.Validate(); err != nil {
		return fmt.Errorf("invalid market: %w", err)
	}
	data, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("failed to marshal market: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO markets (id, data, last_updated) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, last_updated = excluded.last_updated`,
		market.ID, string(data), market.LastUpdated.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to upsert market %s: %w", market.ID, err)
	}
	return nil
}

// GetMarket retrieves a market by ID
func (s *Storage) GetMarket(ctx context.Context, id string) (*models.Market, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM markets WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("market %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market %s: %w", id, err)
	}
	var m models.Market
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("failed to decode market %s: %w", id, err)
	}
	return &m, nil
}

// GetAllMarkets returns all markets ordered by ID
func (s *Storage) GetAllMarkets(ctx context.Context) ([]*models.Market, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM markets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list markets: %w", err)
	}
	defer rows.Close()

	var markets []*models.Market
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan market: %w", err)
		}
		var m models.Market
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			return nil, fmt.Errorf("failed to decode market: %w", err)
		}
		markets = append(markets, &m)
	}
	return markets, rows.Err()
}

// AddSnapshot adds a new snapshot for an existing market
func (s *Storage) AddSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM markets WHERE id = ?`, snapshot.MarketID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("market %s: %w", snapshot.MarketID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check market %s: %w", snapshot.MarketID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, market_id, yes_supply, no_supply, yes_price, no_price, status, ts, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snapshot.ID, snapshot.MarketID,
		strconv.FormatUint(snapshot.YesSupply, 10), strconv.FormatUint(snapshot.NoSupply, 10),
		snapshot.YesPrice, snapshot.NoPrice, string(snapshot.Status),
		snapshot.Timestamp.UnixNano(), snapshot.Source)
	if err != nil {
		return fmt.Errorf("failed to add snapshot: %w", err)
	}
	return nil
}

// GetSnapshots retrieves all snapshots for a market, oldest first
func (s *Storage) GetSnapshots(ctx context.Context, marketID string) ([]models.Snapshot, error) {
	return s.querySnapshots(ctx,
		`SELECT id, market_id, yes_supply, no_supply, yes_price, no_price, status, ts, source
		 FROM snapshots WHERE market_id = ? ORDER BY ts ASC`, marketID)
}

// GetSnapshotsInWindow retrieves snapshots taken within window before now,
// oldest first
func (s *Storage) GetSnapshotsInWindow(ctx context.Context, marketID string, window time.Duration, now time.Time) ([]models.Snapshot, error) {
	return s.querySnapshots(ctx,
		`SELECT id, market_id, yes_supply, no_supply, yes_price, no_price, status, ts, source
		 FROM snapshots WHERE market_id = ? AND ts >= ? AND ts <= ? ORDER BY ts ASC`,
		marketID, now.Add(-window).UnixNano(), now.UnixNano())
}

// LatestSnapshot returns the most recent snapshot of a market, or nil when
// none exists yet.
func (s *Storage) LatestSnapshot(ctx context.Context, marketID string) (*models.Snapshot, error) {
	snaps, err := s.querySnapshots(ctx,
		`SELECT id, market_id, yes_supply, no_supply, yes_price, no_price, status, ts, source
		 FROM snapshots WHERE market_id = ? ORDER BY ts DESC LIMIT 1`, marketID)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return &snaps[0], nil
}

func (s *Storage) querySnapshots(ctx context.Context, query string, args ...any) ([]models.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []models.Snapshot{}
	for rows.Next() {
		var (
			snap          models.Snapshot
			yesSup, noSup string
			status        string
			ts            int64
		)
		if err := rows.Scan(&snap.ID, &snap.MarketID, &yesSup, &noSup, &snap.YesPrice, &snap.NoPrice, &status, &ts, &snap.Source); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		reserves, err := models.ParseReserveState(yesSup, noSup)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", snap.ID, err)
		}
		snap.YesSupply, snap.NoSupply = reserves.YesSupply, reserves.NoSupply
		snap.Status = models.Status(status)
		snap.Timestamp = time.Unix(0, ts)
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// RotateSnapshots keeps only the most recent maxSnapshotsPerMarket snapshots
// of each market
func (s *Storage) RotateSnapshots(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY market_id ORDER BY ts DESC) AS rn
				FROM snapshots
			) WHERE rn > ?
		)`, s.maxSnapshotsPerMarket)
	if err != nil {
		return fmt.Errorf("failed to rotate snapshots: %w", err)
	}
	return nil
}

// RotateMarkets removes the least recently updated markets, and their
// snapshots, beyond maxMarkets
func (s *Storage) RotateMarkets(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rotation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM markets`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count markets: %w", err)
	}
	if count <= s.maxMarkets {
		return nil
	}

	victims := `SELECT id FROM markets ORDER BY last_updated ASC, id ASC LIMIT ?`
	toRemove := count - s.maxMarkets
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE market_id IN (`+victims+`)`, toRemove); err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM markets WHERE id IN (`+victims+`)`, toRemove); err != nil {
		return fmt.Errorf("failed to delete markets: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rotation: %w", err)
	}

	log := logger.ForComponent("storage")
	log.Debug().Int("pruned", toRemove).Int("kept", s.maxMarkets).Msg("rotated markets")
	return nil
}
