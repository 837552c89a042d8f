package store

import (
	"context"
	"database/sql"
	"errors"
)

// GetMeta returns the stored value for key, or ok=false if unset.
func (s *Store) GetMeta(ctx context.Context, key string) (value string, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, wrapTransient(err, "get meta")
	}
	return value, true, nil
}

// SetMeta upserts a key/value pair.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return wrapTransient(err, "set meta")
	}
	return nil
}
