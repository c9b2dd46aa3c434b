package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const overridesBusyTimeout = 5 * time.Second

// SQLiteOverrides persists setting overrides in a single-table sqlite file.
type SQLiteOverrides struct {
	db   *sql.DB
	path string
}

func OpenSQLiteOverrides(ctx context.Context, path string) (*SQLiteOverrides, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("storage: sqlite overrides path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("storage: ensure overrides dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite overrides: %w", err)
	}
	db.SetMaxOpenConns(1)

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	stmts := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", overridesBusyTimeout.Milliseconds()),
		`CREATE TABLE IF NOT EXISTS user_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(initCtx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage: init sqlite overrides: %w", err)
		}
	}
	return &SQLiteOverrides{db: db, path: path}, nil
}

func (s *SQLiteOverrides) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteOverrides) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM user_settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage: load override %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteOverrides) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("storage: save override %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteOverrides) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("storage: remove override %q: %w", key, err)
	}
	return nil
}

// All returns every stored override keyed by storage key.
func (s *SQLiteOverrides) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM user_settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("storage: list overrides: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("storage: scan override row: %w", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate overrides: %w", err)
	}
	return out, nil
}
