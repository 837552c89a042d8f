package store

import (
	"context"
	"errors"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// Share is a single accepted proof-of-work submission.
type Share struct {
	BlockNumber uint64
	Address     string
	Nonce       string
	HashHex     string
	CreatedAt   time.Time
}

// InsertShare records an accepted share. It returns ok=false instead of
// an error when (block_number, address, nonce) already exists, so
// callers can treat a duplicate submission as a rejection rather than
// a fault.
func (s *Store) InsertShare(ctx context.Context, blockNumber uint64, address, nonce, hashHex string, at time.Time) (bool, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shares (block_number, address, nonce, hash_hex, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		blockNumber, address, nonce, hashHex, unixMicro(at))
	if err != nil {
		var sqErr sqlite3.Error
		if errors.As(err, &sqErr) && sqErr.Code == sqlite3.ErrConstraint {
			return false, nil
		}
		return false, wrapTransient(err, "insert share")
	}
	return true, nil
}

// ShareCount returns how many shares address has submitted into block.
// Used to enforce the per-address, per-block submission quota.
func (s *Store) ShareCount(ctx context.Context, blockNumber uint64, address string) (int, error) {
	var n int
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM shares WHERE block_number = ? AND address = ?`,
		blockNumber, address)
	if err := row.Scan(&n); err != nil {
		return 0, wrapTransient(err, "count shares")
	}
	return n, nil
}

// SharesForBlock returns every share submitted into a block, ordered by
// submission time. Callers feed this directly into the reward
// calculator at finalization.
func (s *Store) SharesForBlock(ctx context.Context, blockNumber uint64) ([]Share, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT block_number, address, nonce, hash_hex, created_at
		FROM shares WHERE block_number = ? ORDER BY id ASC`, blockNumber)
	if err != nil {
		return nil, wrapTransient(err, "query shares")
	}
	defer rows.Close()

	var out []Share
	for rows.Next() {
		var sh Share
		var createdAt int64
		if err := rows.Scan(&sh.BlockNumber, &sh.Address, &sh.Nonce, &sh.HashHex, &createdAt); err != nil {
			return nil, wrapTransient(err, "scan share")
		}
		sh.CreatedAt = fromUnixMicro(createdAt)
		out = append(out, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapTransient(err, "iterate shares")
	}
	return out, nil
}
