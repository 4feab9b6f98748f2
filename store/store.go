// Package store persists completed audit snapshots in SQLite so reports can
// be kept, listed, and diffed after the fact. The audit computation itself
// stays stateless; a snapshot is an explicit capture of one finished report.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/quarry-labs/pkgaudit"
)

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	taken_at TEXT NOT NULL,
	report TEXT NOT NULL,
	records BLOB NOT NULL
);`

const (
	defaultStoreDir = ".pkgaudit"
	defaultStoreDB  = "pkgaudit.db"
)

// Snapshot is one persisted audit: the normalized records plus the rendered
// report text, captured at a point in time.
type Snapshot struct {
	ID      string                   `json:"id"`
	TakenAt time.Time                `json:"taken_at"`
	Report  string                   `json:"report"`
	Records []pkgaudit.PackageRecord `json:"records"`
}

// Store is a SQLite-backed snapshot archive.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the default SQLite path for CLI storage.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: resolve user home: %w", err)
	}
	return filepath.Join(home, defaultStoreDir, defaultStoreDB), nil
}

// Open opens (or creates) a snapshot store at the given DSN.
func Open(dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("store: sqlite dsn is required")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: sqlite open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: sqlite set WAL mode: %w", err)
	}
	if _, err := db.Exec(snapshotSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: sqlite create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save captures a finished report as a new snapshot and returns it.
func (s *Store) Save(ctx context.Context, report *pkgaudit.Report) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	if s == nil || s.db == nil {
		return Snapshot{}, errors.New("store: snapshot store is nil")
	}
	if report == nil {
		return Snapshot{}, errors.New("store: report is nil")
	}

	snap := Snapshot{
		ID:      uuid.New().String(),
		TakenAt: time.Now().UTC(),
		Report:  report.Text(),
		Records: report.Records,
	}

	payload, err := json.Marshal(snap.Records)
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: encode records: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO snapshots (id, taken_at, report, records)
VALUES (?, ?, ?, ?)`,
		snap.ID,
		snap.TakenAt.Format(time.RFC3339Nano),
		snap.Report,
		payload,
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: insert snapshot: %w", err)
	}
	return snap, nil
}

// List returns all snapshots, newest first.
func (s *Store) List(ctx context.Context) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, errors.New("store: snapshot store is nil")
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, taken_at, report, records
FROM snapshots
ORDER BY taken_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: snapshot rows: %w", err)
	}
	return snaps, nil
}

// Get returns a snapshot by ID.
func (s *Store) Get(ctx context.Context, id string) (Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, false, err
	}
	if s == nil || s.db == nil {
		return Snapshot{}, false, errors.New("store: snapshot store is nil")
	}

	row := s.db.QueryRowContext(ctx, `
SELECT id, taken_at, report, records
FROM snapshots
WHERE id = ?`, id)

	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

// Delete removes a snapshot by ID. Deleting a missing ID is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return errors.New("store: snapshot store is nil")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete snapshot: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (Snapshot, error) {
	var (
		snap     Snapshot
		takenRaw string
		payload  []byte
	)
	if err := row.Scan(&snap.ID, &takenRaw, &snap.Report, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, err
		}
		return Snapshot{}, fmt.Errorf("store: scan snapshot: %w", err)
	}

	taken, err := time.Parse(time.RFC3339Nano, takenRaw)
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: parse snapshot time: %w", err)
	}
	snap.TakenAt = taken.UTC()

	if err := json.Unmarshal(payload, &snap.Records); err != nil {
		return Snapshot{}, fmt.Errorf("store: decode records: %w", err)
	}
	return snap, nil
}
