// Package history keeps a persistent log of playback transitions so
// `sidetrack history` can show what toggled the music and why.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Event is one recorded playback transition.
type Event struct {
	ID        int64
	Signal    string    // play or pause
	Cause     string    // launch, submit, burst, idle, hook, daemon, cleanup
	Mode      string    // backend mode at the time: native, remote, disabled
	Timestamp time.Time
}

// Log is a persistent playback event log backed by SQLite.
type Log struct {
	db *sql.DB
}

// Open creates (or opens) the event log at dbPath.
func Open(dbPath string) (*Log, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection keeps writes serialized; the log is low volume.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			signal TEXT NOT NULL,
			cause TEXT NOT NULL,
			mode TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Log{db: db}, nil
}

// Close closes the database connection
func (l *Log) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Record appends a playback transition to the log.
func (l *Log) Record(ctx context.Context, signal, cause, mode string) error {
	query := `INSERT INTO events (signal, cause, mode, timestamp) VALUES (?, ?, ?, ?)`

	if _, err := l.db.ExecContext(ctx, query, signal, cause, mode, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Recent returns the newest events, most recent first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Event, error) {
	query := `
		SELECT id, signal, cause, mode, timestamp
		FROM events
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`

	rows, err := l.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ts int64
		if err := rows.Scan(&e.ID, &e.Signal, &e.Cause, &e.Mode, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Timestamp = time.Unix(ts, 0)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Cleanup removes events older than maxAge and returns how many were
// deleted.
func (l *Log) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()

	result, err := l.db.ExecContext(ctx, `DELETE FROM events WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup events: %w", err)
	}
	return result.RowsAffected()
}
