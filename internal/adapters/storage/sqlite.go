package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/armourmail/armourmail/internal/core"
)

// SQLiteStore is a SQLite implementation of core.Store.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (or creates) the database at dbPath and ensures
// the schema exists.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS scan_results (
			email_id TEXT PRIMARY KEY,
			verdict TEXT NOT NULL,
			level TEXT NOT NULL,
			score REAL NOT NULL,
			detectors TEXT NOT NULL,
			flags TEXT NOT NULL,
			classifier TEXT,
			sanitized_text TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS quarantine_items (
			id TEXT PRIMARY KEY,
			email_id TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL,
			resolver TEXT,
			reason TEXT,
			resolved_at TIMESTAMP,
			actions TEXT NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quarantine_pending
			ON quarantine_items(status, expires_at)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// SaveScanResult writes the completed result in one statement.
func (s *SQLiteStore) SaveScanResult(ctx context.Context, result *core.ScanResult) error {
	flags, detectors, classifier, err := encodeResult(result)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO scan_results
			(email_id, verdict, level, score, detectors, flags, classifier, sanitized_text, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, result.EmailID.String(), string(result.Verdict), string(result.Level), result.Score,
		detectors, flags, classifier, result.SanitizedText,
		result.StartedAt.UTC().Format(time.RFC3339Nano), result.CompletedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save scan result: %w", err)
	}
	return nil
}

// GetScanResult loads the stored result for an email id.
func (s *SQLiteStore) GetScanResult(ctx context.Context, emailID uuid.UUID) (*core.ScanResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT verdict, level, score, detectors, flags, classifier, sanitized_text, started_at, completed_at
		FROM scan_results WHERE email_id = ?
	`, emailID.String())
	return scanResultRow(row, emailID)
}

// SaveQuarantineItem creates the item; a duplicate id or email id maps
// the constraint violation to core.ErrAlreadyExists.
func (s *SQLiteStore) SaveQuarantineItem(ctx context.Context, item *core.QuarantineItem) error {
	actions, err := json.Marshal(item.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode actions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO quarantine_items
			(id, email_id, status, resolver, reason, resolved_at, actions, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID.String(), item.EmailID.String(), string(item.Status),
		resolverOf(item), reasonOf(item), resolvedAtOf(item), string(actions),
		item.ExpiresAt.UTC().Format(time.RFC3339Nano),
		item.CreatedAt.UTC().Format(time.RFC3339Nano),
		item.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return core.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create quarantine item: %w", err)
	}
	return nil
}

// GetQuarantineItem loads one item by id.
func (s *SQLiteStore) GetQuarantineItem(ctx context.Context, id uuid.UUID) (*core.QuarantineItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT email_id, status, resolver, reason, resolved_at, actions, expires_at, created_at, updated_at
		FROM quarantine_items WHERE id = ?
	`, id.String())
	return scanItemRow(row, id)
}

// UpdateQuarantineItem rewrites an existing item.
func (s *SQLiteStore) UpdateQuarantineItem(ctx context.Context, item *core.QuarantineItem) error {
	actions, err := json.Marshal(item.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode actions: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE quarantine_items
		SET status = ?, resolver = ?, reason = ?, resolved_at = ?, actions = ?, updated_at = ?
		WHERE id = ?
	`, string(item.Status), resolverOf(item), reasonOf(item), resolvedAtOf(item),
		string(actions), item.UpdatedAt.UTC().Format(time.RFC3339Nano), item.ID.String())
	if err != nil {
		return fmt.Errorf("failed to update quarantine item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ListPendingBefore returns pending items due at or before deadline,
// ordered by deadline.
func (s *SQLiteStore) ListPendingBefore(ctx context.Context, deadline time.Time) ([]*core.QuarantineItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email_id, status, resolver, reason, resolved_at, actions, expires_at, created_at, updated_at
		FROM quarantine_items
		WHERE status = ? AND expires_at <= ?
		ORDER BY expires_at
	`, string(core.StatusPending), deadline.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending items: %w", err)
	}
	defer rows.Close()

	var out []*core.QuarantineItem
	for rows.Next() {
		var idStr string
		var item core.QuarantineItem
		var emailID, status, actions string
		var resolver, reason, resolvedAt sql.NullString
		var expiresAt, createdAt, updatedAt string
		if err := rows.Scan(&idStr, &emailID, &status, &resolver, &reason, &resolvedAt,
			&actions, &expiresAt, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan quarantine row: %w", err)
		}
		decoded, err := decodeItem(idStr, emailID, status, resolver, reason, resolvedAt,
			actions, expiresAt, createdAt, updatedAt)
		if err != nil {
			return nil, err
		}
		item = *decoded
		out = append(out, &item)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
