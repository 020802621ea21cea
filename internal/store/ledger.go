// Package store persists terminal download outcomes to a local sqlite file.
// The ledger is an operator convenience for reconciling a run after the
// fact; the pipeline itself never reads from it.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Ledger struct {
	db *sql.DB
}

// Outcome is one persisted terminal result.
type Outcome struct {
	ID         int64
	Subject    string
	Outcome    string // "completed" or "failed"
	HTTPStatus int    // zero unless the failure carried a status
	RecordedAt time.Time
}

func Open(path string) (*Ledger, error) {
	dbDir := filepath.Dir(path)

	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Ping makes sure the file is actually accessible and the DSN is valid
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	ledger := &Ledger{db: db}

	if err := ledger.migrate(); err != nil {
		return nil, fmt.Errorf("could not migrate ledger: %w", err)
	}

	return ledger, nil
}

func (l *Ledger) migrate() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS outcomes (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			subject     TEXT NOT NULL,
			outcome     TEXT NOT NULL,
			http_status INTEGER NOT NULL DEFAULT 0,
			recorded_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`)
	return err
}

// Record appends one terminal outcome. Implements accounting.Ledger.
func (l *Ledger) Record(subject, outcome string, httpStatus int) error {
	_, err := l.db.Exec(
		`INSERT INTO outcomes (subject, outcome, http_status) VALUES (?, ?, ?)`,
		subject, outcome, httpStatus,
	)
	return err
}

// Outcomes returns every recorded outcome, oldest first.
func (l *Ledger) Outcomes() ([]Outcome, error) {
	rows, err := l.db.Query(
		`SELECT id, subject, outcome, http_status, recorded_at FROM outcomes ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []Outcome
	for rows.Next() {
		var o Outcome
		var recorded string
		if err := rows.Scan(&o.ID, &o.Subject, &o.Outcome, &o.HTTPStatus, &recorded); err != nil {
			return nil, err
		}
		if t, err := time.Parse("2006-01-02 15:04:05", recorded); err == nil {
			o.RecordedAt = t
		}
		outcomes = append(outcomes, o)
	}

	return outcomes, rows.Err()
}

func (l *Ledger) Close() error {
	return l.db.Close()
}
