// Package catalog implements the Extension Catalog (spec.md SPEC_FULL
// §4.11, C10): a side-channel table holding the latest scanAndLoad
// outcome for each candidate path, so operators can answer "why didn't my extension load" across process
// restarts. It never round-trips through Graph Persistence and plays no
// part in invariants I1-I7 — it is diagnostics, not state.
package catalog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ScanRecord is one row of scan history.
type ScanRecord struct {
	Path     string
	LoadedAt time.Time
	Outcome  string // "loaded" or "failed"
	Reason   string
}

// Catalog is the Extension Catalog, backed by a pure-Go SQLite database.
//
// Grounded on the teacher's infra/sqlite/store.go (Open/Close, WAL +
// busy_timeout pragmas) and internal/adapter/sqlite/store.go (inline
// CREATE TABLE IF NOT EXISTS schema, upsert-then-query pattern).
type Catalog struct {
	db *sql.DB
}

// Open creates the catalog database at path (and its parent directory)
// if needed, and ensures the scan_records table exists.
func Open(path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS scan_records (
	path TEXT PRIMARY KEY,
	loaded_at INTEGER NOT NULL,
	outcome TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT ''
)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize scan_records schema: %w", err)
	}

	return &Catalog{db: db}, nil
}

// Close closes the underlying database. Safe to call on a nil Catalog.
func (c *Catalog) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Record upserts one candidate path's outcome. Matches
// pluginhost.ScanObserver's signature in shape, though the error return
// means callers wire it in through a thin closure rather than passing
// Record directly.
func (c *Catalog) Record(path string, loaded bool, reason string) error {
	outcome := "failed"
	if loaded {
		outcome = "loaded"
	}
	_, err := c.db.Exec(`
INSERT INTO scan_records (path, loaded_at, outcome, reason) VALUES (?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET loaded_at = excluded.loaded_at, outcome = excluded.outcome, reason = excluded.reason`,
		path, time.Now().Unix(), outcome, reason)
	if err != nil {
		return fmt.Errorf("record scan outcome for %q: %w", path, err)
	}
	return nil
}

// Recent returns the n most recently scanned candidates, newest first.
func (c *Catalog) Recent(n int) ([]ScanRecord, error) {
	rows, err := c.db.Query(
		`SELECT path, loaded_at, outcome, reason FROM scan_records ORDER BY loaded_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("list scan records: %w", err)
	}
	defer rows.Close()

	var out []ScanRecord
	for rows.Next() {
		var rec ScanRecord
		var loadedAt int64
		if err := rows.Scan(&rec.Path, &loadedAt, &rec.Outcome, &rec.Reason); err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		rec.LoadedAt = time.Unix(loadedAt, 0)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scan records: %w", err)
	}
	return out, nil
}
