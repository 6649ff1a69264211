// Package history records per-speaker build outcomes in a local SQLite
// database so past runs can be inspected from the CLI.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; users clear the history database after a mismatch.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("history schema version mismatch")

// Status values recorded per speaker per run.
const (
	StatusRegenerated = "regenerated"
	StatusSkipped     = "skipped"
	StatusFailed      = "failed"
)

// Record is one speaker's outcome in one build run.
type Record struct {
	ID          int64
	RunID       string
	Speaker     string
	Status      string
	Fingerprint string
	TotalFiles  int
	DurationMs  int64
	Error       string
	CreatedAt   time.Time
}

// Store manages build history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_version").Scan(&count); err != nil {
		return fmt.Errorf("check schema version: %w", err)
	}
	if count == 0 {
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// Append inserts one speaker outcome.
func (s *Store) Append(ctx context.Context, record Record) error {
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO build_runs (run_id, speaker, status, fingerprint, total_files, duration_ms, error, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.RunID,
		record.Speaker,
		record.Status,
		nullableString(record.Fingerprint),
		record.TotalFiles,
		record.DurationMs,
		nullableString(record.Error),
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert build record: %w", err)
	}
	return nil
}

// Recent returns the most recent records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, speaker, status, COALESCE(fingerprint, ''), total_files, duration_ms, COALESCE(error, ''), created_at
         FROM build_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query build records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var record Record
		var createdAt string
		if err := rows.Scan(&record.ID, &record.RunID, &record.Speaker, &record.Status,
			&record.Fingerprint, &record.TotalFiles, &record.DurationMs, &record.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scan build record: %w", err)
		}
		if parsed, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
			record.CreatedAt = parsed
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
