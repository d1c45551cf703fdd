// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package history persists handed-off barcode values in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/nutriscan/internal/metrics"
	"github.com/ManuGH/nutriscan/internal/persistence/sqlite"
	"github.com/google/uuid"
)

// MaxRecent caps Recent.
const MaxRecent = 500

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		page_id TEXT NOT NULL,
		modality TEXT NOT NULL,
		value TEXT NOT NULL,
		created_at_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_scans_created ON scans(created_at_ms DESC);`,
}

// ScanRecord is one hand-off.
type ScanRecord struct {
	ID        string    `json:"id"`
	PageID    string    `json:"pageId"`
	Modality  string    `json:"modality"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the SQLite scan history.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlite.Open(ctx, path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(ctx, db, migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: migration failed: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Record stores r. Empty ID and CreatedAt are filled in.
func (s *Store) Record(ctx context.Context, r ScanRecord) (ScanRecord, error) {
	if strings.TrimSpace(r.Value) == "" {
		return r, errors.New("history: empty value")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	r.CreatedAt = r.CreatedAt.UTC().Truncate(time.Millisecond)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scans (id, page_id, modality, value, created_at_ms) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.PageID, r.Modality, r.Value, r.CreatedAt.UnixMilli(),
	)
	metrics.RecordScanHistoryWrite(err == nil)
	if err != nil {
		return r, fmt.Errorf("history: insert: %w", err)
	}
	return r, nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]ScanRecord, error) {
	if limit <= 0 || limit > MaxRecent {
		limit = MaxRecent
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, page_id, modality, value, created_at_ms FROM scans
		 ORDER BY created_at_ms DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	out := make([]ScanRecord, 0, limit)
	for rows.Next() {
		var r ScanRecord
		var ms int64
		if err := rows.Scan(&r.ID, &r.PageID, &r.Modality, &r.Value, &ms); err != nil {
			return nil, fmt.Errorf("history: scan row: %w", err)
		}
		r.CreatedAt = time.UnixMilli(ms).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Check runs a quick integrity check; used by readiness.
func (s *Store) Check(ctx context.Context) error {
	problems, err := sqlite.VerifyIntegrity(ctx, s.db, false)
	if err != nil {
		return err
	}
	if len(problems) > 0 {
		return fmt.Errorf("history: integrity check: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
