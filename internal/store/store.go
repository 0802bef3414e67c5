// Package store keeps the scan ledger: one row per scan and every alert that
// left the bounded archive in alerts.json.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/abelbrown/astroscan/internal/curation"
	"github.com/abelbrown/astroscan/internal/logging"
)

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Scan is one ledger row.
type Scan struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	Records        int
	Confidence     int
	Source         string // narrative or fallback
	AlertsCreated  int
	AlertsActive   int
	AlertsArchived int
	CollectorErrs  int
}

// ArchivedAlert is an alert evicted from the JSON archive.
type ArchivedAlert struct {
	Alert     curation.Alert
	ScanID    string
	Reason    string
	EvictedAt time.Time
}

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for better concurrent read performance (file-based DBs only).
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so every pooled connection sees the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	logging.Debug("Ledger opened", "path", dbPath)
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		records INTEGER DEFAULT 0,
		confidence INTEGER DEFAULT 0,
		source TEXT NOT NULL,
		alerts_created INTEGER DEFAULT 0,
		alerts_active INTEGER DEFAULT 0,
		alerts_archived INTEGER DEFAULT 0,
		collector_errors INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_scans_started ON scans(started_at DESC);

	CREATE TABLE IF NOT EXISTS alert_archive (
		alert_id TEXT PRIMARY KEY,
		scan_id TEXT,
		title TEXT NOT NULL,
		confidence INTEGER DEFAULT 0,
		severity TEXT,
		alert_time DATETIME NOT NULL,
		evicted_at DATETIME NOT NULL,
		reason TEXT NOT NULL,
		payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_alert_archive_time ON alert_archive(alert_time DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// NewScanID returns a fresh ledger id.
func NewScanID() string {
	return uuid.NewString()
}

// RecordScan inserts sc, assigning an id when it has none.
func (s *Store) RecordScan(sc Scan) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sc.ID == "" {
		sc.ID = NewScanID()
	}
	_, err := s.db.Exec(`
		INSERT INTO scans (
			id, started_at, finished_at, records, confidence, source,
			alerts_created, alerts_active, alerts_archived, collector_errors
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sc.ID,
		sc.StartedAt.UTC(),
		sc.FinishedAt.UTC(),
		sc.Records,
		sc.Confidence,
		sc.Source,
		sc.AlertsCreated,
		sc.AlertsActive,
		sc.AlertsArchived,
		sc.CollectorErrs,
	)
	if err != nil {
		return "", fmt.Errorf("insert scan: %w", err)
	}
	return sc.ID, nil
}

// RecentScans returns up to limit scans, newest first.
func (s *Store) RecentScans(limit int) ([]Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, records, confidence, source,
			alerts_created, alerts_active, alerts_archived, collector_errors
		FROM scans
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scans []Scan
	for rows.Next() {
		var sc Scan
		if err := rows.Scan(
			&sc.ID,
			&sc.StartedAt,
			&sc.FinishedAt,
			&sc.Records,
			&sc.Confidence,
			&sc.Source,
			&sc.AlertsCreated,
			&sc.AlertsActive,
			&sc.AlertsArchived,
			&sc.CollectorErrs,
		); err != nil {
			return nil, err
		}
		scans = append(scans, sc)
	}
	return scans, rows.Err()
}

// ArchiveAlerts stores alerts that dropped out of the JSON archive.
// Alerts already present (by id) are ignored. Returns the number inserted.
func (s *Store) ArchiveAlerts(scanID, reason string, alerts []curation.Alert, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(alerts) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO alert_archive (
			alert_id, scan_id, title, confidence, severity,
			alert_time, evicted_at, reason, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, a := range alerts {
		payload, err := json.Marshal(a)
		if err != nil {
			return inserted, fmt.Errorf("marshal alert %s: %w", a.ID, err)
		}
		res, err := stmt.Exec(a.ID, scanID, a.Title, a.Confidence, string(a.Severity),
			a.Timestamp.UTC(), now.UTC(), reason, string(payload))
		if err != nil {
			return inserted, err
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// ArchivedAlerts returns up to limit ledger alerts, newest alert first.
func (s *Store) ArchivedAlerts(limit int) ([]ArchivedAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT scan_id, reason, evicted_at, payload
		FROM alert_archive
		ORDER BY alert_time DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArchivedAlert
	for rows.Next() {
		var (
			aa      ArchivedAlert
			scanID  sql.NullString
			payload string
		)
		if err := rows.Scan(&scanID, &aa.Reason, &aa.EvictedAt, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &aa.Alert); err != nil {
			return nil, fmt.Errorf("decode archived alert: %w", err)
		}
		aa.ScanID = scanID.String
		out = append(out, aa)
	}
	return out, rows.Err()
}

// ScanCount returns the number of ledger scans.
func (s *Store) ScanCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM scans").Scan(&n)
	return n, err
}

// ArchivedCount returns the number of alerts kept in the ledger.
func (s *Store) ArchivedCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM alert_archive").Scan(&n)
	return n, err
}
