package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/armourmail/armourmail/internal/core"
)

const mysqlDuplicateEntry = 1062

// MySQLStore is a MySQL implementation of core.Store.
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLStore connects with the given DSN and ensures the schema
// exists.
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS scan_results (
			email_id VARCHAR(36) PRIMARY KEY,
			verdict VARCHAR(16) NOT NULL,
			level VARCHAR(16) NOT NULL,
			score DOUBLE NOT NULL,
			detectors TEXT NOT NULL,
			flags MEDIUMTEXT NOT NULL,
			classifier TEXT,
			sanitized_text MEDIUMTEXT NOT NULL,
			started_at VARCHAR(64) NOT NULL,
			completed_at VARCHAR(64) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS quarantine_items (
			id VARCHAR(36) PRIMARY KEY,
			email_id VARCHAR(36) NOT NULL UNIQUE,
			status VARCHAR(16) NOT NULL,
			resolver VARCHAR(255),
			reason TEXT,
			resolved_at VARCHAR(64),
			actions TEXT NOT NULL,
			expires_at VARCHAR(64) NOT NULL,
			created_at VARCHAR(64) NOT NULL,
			updated_at VARCHAR(64) NOT NULL,
			INDEX idx_quarantine_pending (status, expires_at)
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return &MySQLStore{db: db, logger: logger}, nil
}

// SaveScanResult writes the completed result in one statement.
func (s *MySQLStore) SaveScanResult(ctx context.Context, result *core.ScanResult) error {
	flags, detectors, classifier, err := encodeResult(result)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		REPLACE INTO scan_results
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
func (s *MySQLStore) GetScanResult(ctx context.Context, emailID uuid.UUID) (*core.ScanResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT verdict, level, score, detectors, flags, classifier, sanitized_text, started_at, completed_at
		FROM scan_results WHERE email_id = ?
	`, emailID.String())
	return scanResultRow(row, emailID)
}

// SaveQuarantineItem creates the item; a duplicate key error maps to
// core.ErrAlreadyExists.
func (s *MySQLStore) SaveQuarantineItem(ctx context.Context, item *core.QuarantineItem) error {
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
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return core.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create quarantine item: %w", err)
	}
	return nil
}

// GetQuarantineItem loads one item by id.
func (s *MySQLStore) GetQuarantineItem(ctx context.Context, id uuid.UUID) (*core.QuarantineItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT email_id, status, resolver, reason, resolved_at, actions, expires_at, created_at, updated_at
		FROM quarantine_items WHERE id = ?
	`, id.String())
	return scanItemRow(row, id)
}

// UpdateQuarantineItem rewrites an existing item.
func (s *MySQLStore) UpdateQuarantineItem(ctx context.Context, item *core.QuarantineItem) error {
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

// ListPendingBefore returns pending items due at or before deadline.
func (s *MySQLStore) ListPendingBefore(ctx context.Context, deadline time.Time) ([]*core.QuarantineItem, error) {
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
		var idStr, emailID, status, actions string
		var resolver, reason, resolvedAt sql.NullString
		var expiresAt, createdAt, updatedAt string
		if err := rows.Scan(&idStr, &emailID, &status, &resolver, &reason, &resolvedAt,
			&actions, &expiresAt, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan quarantine row: %w", err)
		}
		item, err := decodeItem(idStr, emailID, status, resolver, reason, resolvedAt,
			actions, expiresAt, createdAt, updatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
