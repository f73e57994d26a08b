// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package checkpoint persists pipeline state snapshots to SQLite so an
// interrupted run can resume from its last completed stage. Rows are
// append-only; the newest row per run wins.
package checkpoint

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/research-assistant/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	stage TEXT NOT NULL,
	taken_at TEXT NOT NULL,
	state BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_run ON checkpoints(run_id, id);
`

// Store is a SQLite-backed checkpoint store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the checkpoint database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating checkpoint dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing checkpoint schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Save appends a checkpoint: the stage marker just completed plus the full
// state snapshot.
func (s *Store) Save(stage string, snap *types.Snapshot) error {
	blob, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO checkpoints (run_id, stage, taken_at, state) VALUES (?, ?, ?, ?)`,
		snap.RunID, stage, time.Now().UTC().Format(time.RFC3339), blob,
	)
	if err != nil {
		return fmt.Errorf("saving checkpoint: %w", err)
	}
	return nil
}

// LoadLatest returns the newest checkpoint for a run. When the run has no
// checkpoints it returns ("", nil, nil).
func (s *Store) LoadLatest(runID string) (string, *types.Snapshot, error) {
	row := s.db.QueryRow(
		`SELECT stage, state FROM checkpoints WHERE run_id = ? ORDER BY id DESC LIMIT 1`,
		runID,
	)

	var stage string
	var blob []byte
	if err := row.Scan(&stage, &blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, nil
		}
		return "", nil, fmt.Errorf("loading checkpoint: %w", err)
	}

	var snap types.Snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return "", nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return stage, &snap, nil
}

// LatestRun returns the run ID of the most recent checkpoint across all
// runs, or "" when the store is empty.
func (s *Store) LatestRun() (string, error) {
	row := s.db.QueryRow(`SELECT run_id FROM checkpoints ORDER BY id DESC LIMIT 1`)

	var runID string
	if err := row.Scan(&runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("finding latest run: %w", err)
	}
	return runID, nil
}
