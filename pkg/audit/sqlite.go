package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	id                TEXT PRIMARY KEY,
	connection_id     TEXT NOT NULL,
	request_id        TEXT NOT NULL,
	method            TEXT NOT NULL,
	status            TEXT NOT NULL,
	error_code        INTEGER NOT NULL DEFAULT 0,
	model             TEXT NOT NULL DEFAULT '',
	prompt_tokens     INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens      INTEGER NOT NULL DEFAULT 0,
	chunks            INTEGER NOT NULL DEFAULT 0,
	duration_ms       INTEGER NOT NULL DEFAULT 0,
	created_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_records_created_at ON audit_records(created_at);
`

// SQLiteStore implements Store backed by a SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the SQLite database at path and prepares
// the schema. WAL mode is enabled for file-backed databases so the recorder
// worker and the retention pruner do not block each other.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Op: "open", Cause: err}
	}

	// SQLite allows a single writer; funneling everything through one
	// connection avoids SQLITE_BUSY and keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, &StorageError{Backend: "sqlite", Op: "pragma", Cause: err}
		}
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, &StorageError{Backend: "sqlite", Op: "pragma", Cause: err}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &StorageError{Backend: "sqlite", Op: "migrate", Cause: err}
	}

	s := &SQLiteStore{
		db:     db,
		path:   path,
		logger: slog.Default().With("component", "audit.sqlite"),
	}

	s.logger.Info("audit store opened", "path", path)
	return s, nil
}

// Save persists a single record.
func (s *SQLiteStore) Save(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_records (
			id, connection_id, request_id, method, status, error_code,
			model, prompt_tokens, completion_tokens, total_tokens,
			chunks, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ConnectionID, rec.RequestID, rec.Method, rec.Status,
		rec.ErrorCode, rec.Model, rec.PromptTokens, rec.CompletionTokens,
		rec.TotalTokens, rec.Chunks, rec.Duration.Milliseconds(),
		rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return &StorageError{Backend: "sqlite", Op: "save", Cause: err}
	}
	return nil
}

// List returns records created at or after since, newest first.
func (s *SQLiteStore) List(ctx context.Context, since time.Time, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, connection_id, request_id, method, status, error_code,
		       model, prompt_tokens, completion_tokens, total_tokens,
		       chunks, duration_ms, created_at
		FROM audit_records
		WHERE created_at >= ?
		ORDER BY created_at DESC
		LIMIT ?`,
		since.UnixMilli(), limit,
	)
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Op: "list", Cause: err}
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var rec Record
		var durationMs, createdAt int64
		if err := rows.Scan(
			&rec.ID, &rec.ConnectionID, &rec.RequestID, &rec.Method,
			&rec.Status, &rec.ErrorCode, &rec.Model, &rec.PromptTokens,
			&rec.CompletionTokens, &rec.TotalTokens, &rec.Chunks,
			&durationMs, &createdAt,
		); err != nil {
			return nil, &StorageError{Backend: "sqlite", Op: "scan", Cause: err}
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		rec.CreatedAt = time.UnixMilli(createdAt)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Backend: "sqlite", Op: "list", Cause: err}
	}

	return records, nil
}

// Count returns the total number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_records").Scan(&count)
	if err != nil {
		return 0, &StorageError{Backend: "sqlite", Op: "count", Cause: err}
	}
	return count, nil
}

// PruneBefore deletes records created before the cutoff.
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM audit_records WHERE created_at < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, &StorageError{Backend: "sqlite", Op: "prune", Cause: err}
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, &StorageError{Backend: "sqlite", Op: "prune", Cause: err}
	}
	return deleted, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close audit store: %w", err)
	}
	return nil
}
