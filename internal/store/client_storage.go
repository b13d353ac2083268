package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// sqliteTime matches the layout of SQLite's datetime('now').
const sqliteTime = "2006-01-02 15:04:05"

// ClientStorage is the durable per-browser key-value store. Every value is
// scoped by the opaque session id carried in the browser cookie.
type ClientStorage struct {
	db *sql.DB
}

func NewClientStorage(db *sql.DB) *ClientStorage {
	return &ClientStorage{db: db}
}

// Get returns the value stored under key and whether it was present.
func (s *ClientStorage) Get(ctx context.Context, sessionID, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM client_storage WHERE session_id = ? AND key = ?
	`, sessionID, key).Scan(&value)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *ClientStorage) Set(ctx context.Context, sessionID, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO client_storage (session_id, key, value, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT (session_id, key)
		DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, sessionID, key, value)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Delete removes the given keys. Missing keys are not an error.
func (s *ClientStorage) Delete(ctx context.Context, sessionID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	args := make([]any, 0, len(keys)+1)
	args = append(args, sessionID)
	for _, k := range keys {
		args = append(args, k)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM client_storage WHERE session_id = ? AND key IN ("+placeholders+")",
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

// Clear removes every key of the session.
func (s *ClientStorage) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM client_storage WHERE session_id = ?
	`, sessionID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Prune deletes values not written since before and reports how many rows
// went away.
func (s *ClientStorage) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM client_storage WHERE updated_at < ?
	`, before.UTC().Format(sqliteTime))
	if err != nil {
		return 0, fmt.Errorf("failed to prune client storage: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
