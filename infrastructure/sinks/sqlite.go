package sinks

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/arlowe/go-latch/internal/domain"
	"github.com/arlowe/go-latch/internal/ports"
)

var _ ports.AuditSink = (*SQLiteSink)(nil)

// SQLiteSink persists attempts into a SQLite table so trails survive the
// process and stay queryable with plain SQL.
type SQLiteSink struct {
	db *sql.DB
}

const createAttemptsTable = `
CREATE TABLE IF NOT EXISTS binding_attempts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	unit_id TEXT NOT NULL,
	success BOOLEAN NOT NULL,
	attempted_at DATETIME NOT NULL,
	bound_result_id TEXT,
	context_snapshot TEXT,
	failure_reasons TEXT,
	data TEXT NOT NULL
)`

// NewSQLiteSink opens (or creates) the database file and ensures the
// attempts table exists.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite sink: open database: %w", err)
	}
	if _, err := db.Exec(createAttemptsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite sink: create table: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Write inserts one attempt row. The full attempt is stored as JSON in
// the data column alongside the queryable columns.
func (s *SQLiteSink) Write(attempt domain.Attempt) error {
	if s.db == nil {
		return ErrSinkClosed
	}

	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("sqlite sink: marshal attempt: %w", err)
	}
	snapshot, err := json.Marshal(attempt.ContextSnapshot)
	if err != nil {
		return fmt.Errorf("sqlite sink: marshal snapshot: %w", err)
	}

	var reasons []byte
	if len(attempt.FailureReasons) > 0 {
		reasons, err = json.Marshal(attempt.FailureReasons)
		if err != nil {
			return fmt.Errorf("sqlite sink: marshal reasons: %w", err)
		}
	}

	_, err = s.db.Exec(
		`INSERT INTO binding_attempts
		 (unit_id, success, attempted_at, bound_result_id, context_snapshot, failure_reasons, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		attempt.UnitID,
		attempt.Success,
		attempt.Timestamp.UTC().Format(time.RFC3339Nano),
		nullable(attempt.BoundResultID),
		string(snapshot),
		nullableBytes(reasons),
		string(data),
	)
	if err != nil {
		return fmt.Errorf("sqlite sink: insert attempt: %w", err)
	}
	return nil
}

// Flush is a no-op: every Write commits immediately.
func (s *SQLiteSink) Flush() error { return nil }

// Close releases the database handle.
func (s *SQLiteSink) Close() error {
	if s.db == nil {
		return nil
	}
	db := s.db
	s.db = nil
	return db.Close()
}

// AttemptsFor returns the stored attempts for a unit, oldest first,
// decoded from the data column.
func (s *SQLiteSink) AttemptsFor(unitID string) ([]domain.Attempt, error) {
	if s.db == nil {
		return nil, ErrSinkClosed
	}
	return s.queryAttempts(
		`SELECT data FROM binding_attempts WHERE unit_id = ? ORDER BY id`, unitID)
}

// Failures returns stored failed attempts, optionally filtered by unit.
func (s *SQLiteSink) Failures(unitID string) ([]domain.Attempt, error) {
	if s.db == nil {
		return nil, ErrSinkClosed
	}
	if unitID == "" {
		return s.queryAttempts(
			`SELECT data FROM binding_attempts WHERE success = 0 ORDER BY id`)
	}
	return s.queryAttempts(
		`SELECT data FROM binding_attempts WHERE success = 0 AND unit_id = ? ORDER BY id`, unitID)
}

func (s *SQLiteSink) queryAttempts(query string, args ...any) ([]domain.Attempt, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite sink: query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.Attempt
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("sqlite sink: scan row: %w", err)
		}
		var attempt domain.Attempt
		if err := json.Unmarshal([]byte(data), &attempt); err != nil {
			return nil, fmt.Errorf("sqlite sink: decode attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
