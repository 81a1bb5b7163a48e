package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vkotlar/deskbridge/internal/domain"
	"github.com/vkotlar/deskbridge/internal/shared"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS access_requests (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		use_case TEXT NOT NULL,
		message TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_access_requests_created ON access_requests(created_at);

	CREATE TABLE IF NOT EXISTS access_codes (
		code TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		issued_at INTEGER NOT NULL,
		revoked_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_access_codes_email ON access_codes(email);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveAccessRequest persists one inbound access request.
func (s *SQLiteStore) SaveAccessRequest(ctx context.Context, req *domain.AccessRequest) error {
	query := `
		INSERT INTO access_requests (id, email, use_case, message, created_at)
		VALUES (?, ?, ?, ?, ?)`

	var message any
	if req.Message != "" {
		message = req.Message
	}

	err := withBusyRetry(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, query,
			req.ID, req.Email, req.UseCase, message, req.CreatedAt.Unix())
		return execErr
	})
	if err != nil {
		return fmt.Errorf("save access request: %w", err)
	}
	return nil
}

// ListAccessRequests returns the most recent access requests, newest first.
func (s *SQLiteStore) ListAccessRequests(ctx context.Context, limit int) ([]*domain.AccessRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, email, use_case, message, created_at
		FROM access_requests ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query access requests: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close access request rows", "error", closeErr)
		}
	}()

	var requests []*domain.AccessRequest
	for rows.Next() {
		var req domain.AccessRequest
		var message sql.NullString
		var createdAt int64

		if err := rows.Scan(&req.ID, &req.Email, &req.UseCase, &message, &createdAt); err != nil {
			return nil, fmt.Errorf("scan access request row: %w", err)
		}

		req.Message = message.String
		req.CreatedAt = time.Unix(createdAt, 0)
		requests = append(requests, &req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access requests: %w", err)
	}

	return requests, nil
}

// IssueAccessCode records a code issued for an email address.
func (s *SQLiteStore) IssueAccessCode(ctx context.Context, code *domain.AccessCode) error {
	query := `
		INSERT INTO access_codes (code, email, issued_at, revoked_at)
		VALUES (?, ?, ?, NULL)`

	err := withBusyRetry(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, query, code.Code, code.Email, code.IssuedAt.Unix())
		return execErr
	})
	if err != nil {
		return fmt.Errorf("issue access code: %w", err)
	}
	return nil
}

// RevokeAccessCode marks a code as revoked.
func (s *SQLiteStore) RevokeAccessCode(ctx context.Context, code string) error {
	query := `UPDATE access_codes SET revoked_at = ? WHERE code = ? AND revoked_at IS NULL`

	result, err := s.db.ExecContext(ctx, query, time.Now().Unix(), code)
	if err != nil {
		return fmt.Errorf("revoke access code: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("access code not found or already revoked")
	}
	return nil
}

// GetAccessCode retrieves an issued code record.
func (s *SQLiteStore) GetAccessCode(ctx context.Context, code string) (*domain.AccessCode, error) {
	query := `SELECT code, email, issued_at, revoked_at FROM access_codes WHERE code = ?`

	row := s.db.QueryRowContext(ctx, query, code)

	var rec domain.AccessCode
	var issuedAt int64
	var revokedAt sql.NullInt64

	err := row.Scan(&rec.Code, &rec.Email, &issuedAt, &revokedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan access code row: %w", err)
	}

	rec.IssuedAt = time.Unix(issuedAt, 0)
	if revokedAt.Valid {
		ts := time.Unix(revokedAt.Int64, 0)
		rec.RevokedAt = &ts
	}

	return &rec, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// withBusyRetry retries a write with exponential backoff when SQLite reports
// a lock conflict (SQLITE_BUSY or "database is locked").
func withBusyRetry(ctx context.Context, fn func() error) error {
	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !shared.IsSQLiteConflictError(err) || i == maxRetries-1 {
			return err
		}
		delay := baseDelay * time.Duration(1<<i)
		slog.Debug("SQLite write conflict, retrying", "attempt", i+1, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
