// Package audit records sandbox executions in a SQLite database.
// The server only appends to it; nothing read back influences request handling.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/berkucuk/archchan/index"
)

// Entry is one executed command.
type Entry struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`
	// Command is stored redacted.
	Command  string        `json:"command"`
	Tier     string        `json:"tier"`
	Outcome  string        `json:"outcome"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration_ns"`
	At       time.Time     `json:"at"`
}

// Store is a SQLite-backed audit log.
type Store struct {
	db *sql.DB
}

// Open creates or opens the audit database at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize audit schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS executions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		command TEXT NOT NULL,
		tier TEXT NOT NULL,
		outcome TEXT NOT NULL,
		exit_code INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		executed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_executions_at ON executions(executed_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Record appends e. The command is redacted before it is written.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO executions (session_id, command, tier, outcome, exit_code, duration_ms, executed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, index.RedactCommand(e.Command), e.Tier, e.Outcome, e.ExitCode,
		e.Duration.Milliseconds(), e.At.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, command, tier, outcome, exit_code, duration_ms, executed_at
		FROM executions ORDER BY executed_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var durationMs, at int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Command, &e.Tier, &e.Outcome, &e.ExitCode, &durationMs, &at); err != nil {
			return nil, fmt.Errorf("scan execution row: %w", err)
		}
		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.At = time.UnixMilli(at)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
