package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/armourmail/armourmail/internal/core"
)

// Shared row encoding/decoding for the SQL-backed stores. Flags,
// detector lists, classifier records and actions travel as JSON text
// columns; timestamps as RFC 3339 strings.

func encodeResult(result *core.ScanResult) (flags, detectors, classifier string, err error) {
	f, err := json.Marshal(result.Flags)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode flags: %w", err)
	}
	d, err := json.Marshal(result.Detectors)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode detectors: %w", err)
	}
	var c []byte
	if result.Classifier != nil {
		c, err = json.Marshal(result.Classifier)
		if err != nil {
			return "", "", "", fmt.Errorf("failed to encode classifier result: %w", err)
		}
	}
	return string(f), string(d), string(c), nil
}

func scanResultRow(row *sql.Row, emailID uuid.UUID) (*core.ScanResult, error) {
	var verdict, level, detectors, flags, sanitized string
	var classifier sql.NullString
	var score float64
	var startedAt, completedAt string
	err := row.Scan(&verdict, &level, &score, &detectors, &flags, &classifier,
		&sanitized, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scan result: %w", err)
	}

	result := &core.ScanResult{
		EmailID:       emailID,
		Score:         score,
		Level:         core.RiskLevel(level),
		Verdict:       core.Verdict(verdict),
		SanitizedText: sanitized,
	}
	if err := json.Unmarshal([]byte(flags), &result.Flags); err != nil {
		return nil, fmt.Errorf("failed to decode flags: %w", err)
	}
	if err := json.Unmarshal([]byte(detectors), &result.Detectors); err != nil {
		return nil, fmt.Errorf("failed to decode detectors: %w", err)
	}
	if classifier.Valid && classifier.String != "" {
		result.Classifier = &core.ClassifierResult{}
		if err := json.Unmarshal([]byte(classifier.String), result.Classifier); err != nil {
			return nil, fmt.Errorf("failed to decode classifier result: %w", err)
		}
	}
	if result.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if result.CompletedAt, err = parseTime(completedAt); err != nil {
		return nil, err
	}
	return result, nil
}

func scanItemRow(row *sql.Row, id uuid.UUID) (*core.QuarantineItem, error) {
	var emailID, status, actions string
	var resolver, reason, resolvedAt sql.NullString
	var expiresAt, createdAt, updatedAt string
	err := row.Scan(&emailID, &status, &resolver, &reason, &resolvedAt,
		&actions, &expiresAt, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load quarantine item: %w", err)
	}
	return decodeItem(id.String(), emailID, status, resolver, reason, resolvedAt,
		actions, expiresAt, createdAt, updatedAt)
}

func decodeItem(idStr, emailID, status string, resolver, reason, resolvedAt sql.NullString,
	actions, expiresAt, createdAt, updatedAt string) (*core.QuarantineItem, error) {

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid quarantine item id %q: %w", idStr, err)
	}
	eid, err := uuid.Parse(emailID)
	if err != nil {
		return nil, fmt.Errorf("invalid email id %q: %w", emailID, err)
	}

	item := &core.QuarantineItem{
		ID:      id,
		EmailID: eid,
		Status:  core.QuarantineStatus(status),
	}
	if err := json.Unmarshal([]byte(actions), &item.Actions); err != nil {
		return nil, fmt.Errorf("failed to decode actions: %w", err)
	}
	if resolvedAt.Valid && resolvedAt.String != "" {
		at, err := parseTime(resolvedAt.String)
		if err != nil {
			return nil, err
		}
		item.Resolution = &core.Resolution{
			Resolver:   resolver.String,
			Reason:     reason.String,
			ResolvedAt: at,
		}
	}
	if item.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	if item.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if item.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return item, nil
}

func resolverOf(item *core.QuarantineItem) sql.NullString {
	if item.Resolution == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: item.Resolution.Resolver, Valid: true}
}

func reasonOf(item *core.QuarantineItem) sql.NullString {
	if item.Resolution == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: item.Resolution.Reason, Valid: true}
}

func resolvedAtOf(item *core.QuarantineItem) sql.NullString {
	if item.Resolution == nil {
		return sql.NullString{}
	}
	return sql.NullString{
		String: item.Resolution.ResolvedAt.UTC().Format(time.RFC3339Nano),
		Valid:  true,
	}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}
