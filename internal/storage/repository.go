// Package storage persists ledger snapshots in a local SQLite database.
// The schema mirrors the original key/value layout: one row holds the
// serialized period map, another the active period name. Every mutation
// writes both rows in a single transaction, so a crash right after a user
// action never loses more than that one action.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"monthly/internal/core"
	"monthly/internal/ledger"

	_ "modernc.org/sqlite"
)

const (
	keyPeriods       = "periods"
	keyCurrentPeriod = "currentPeriod"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadInitial reads the persisted snapshot. The second return value is
// false when no ledger has been stored yet; callers then populate a
// default period.
func (r *SQLiteRepository) LoadInitial(ctx context.Context) (ledger.Snapshot, bool, error) {
	periodsJSON, okPeriods, err := r.get(ctx, keyPeriods)
	if err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("load periods: %w", err)
	}
	current, _, err := r.get(ctx, keyCurrentPeriod)
	if err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("load current period: %w", err)
	}
	if !okPeriods {
		return ledger.Snapshot{Periods: map[string][]core.Transaction{}}, false, nil
	}

	snap, err := DecodeSnapshot([]byte(periodsJSON), current)
	if err != nil {
		return ledger.Snapshot{}, false, err
	}

	slog.DebugContext(ctx, "Loaded ledger snapshot from SQLite",
		"periods", len(snap.Periods),
		"current_period", snap.CurrentPeriod)

	return snap, true, nil
}

// SaveSnapshot upserts the full serialized ledger and the current period
// name atomically.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, snap ledger.Snapshot) error {
	data, err := EncodePeriods(snap.Periods)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save transaction: %w", err)
	}
	defer tx.Rollback()

	const upsert = `
		INSERT INTO snapshots (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`

	if _, err := tx.ExecContext(ctx, upsert, keyPeriods, string(data)); err != nil {
		return fmt.Errorf("save periods: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsert, keyCurrentPeriod, snap.CurrentPeriod); err != nil {
		return fmt.Errorf("save current period: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save transaction: %w", err)
	}

	slog.DebugContext(ctx, "Ledger snapshot saved to SQLite",
		"periods", len(snap.Periods),
		"current_period", snap.CurrentPeriod,
		"bytes", len(data))

	return nil
}

// Snapshot reads the latest persisted snapshot; nothing stored decodes as
// an empty ledger. Together with Replace this lets a process sync
// straight off the database without caching ledger state in memory.
func (r *SQLiteRepository) Snapshot(ctx context.Context) (ledger.Snapshot, error) {
	snap, _, err := r.LoadInitial(ctx)
	return snap, err
}

// Replace overwrites the persisted snapshot wholesale.
func (r *SQLiteRepository) Replace(ctx context.Context, snap ledger.Snapshot) error {
	return r.SaveSnapshot(ctx, snap)
}

func (r *SQLiteRepository) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM snapshots WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}
