package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/nadfaucet/faucetd/internal/ferrors"
)

// Block is a single row of the block ledger.
type Block struct {
	Number      uint64
	SeedHex     string
	ProcessedAt *time.Time
}

// InsertBlock records the opening of a new block. It fails with a
// Conflict error if the block number already exists.
func (s *Store) InsertBlock(ctx context.Context, number uint64, seedHex string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blocks (block_number, seed_hex, processed_at) VALUES (?, ?, NULL)`,
		number, seedHex)
	if err != nil {
		var sqErr sqlite3.Error
		if errors.As(err, &sqErr) && sqErr.Code == sqlite3.ErrConstraint {
			return ferrors.Newf(ferrors.Conflict, "duplicate_block", "block %d already exists", number)
		}
		return wrapTransient(err, "insert block")
	}
	return nil
}

// MarkBlockProcessed stamps a block as finalized. It is idempotent: a
// block that is already marked processed is left untouched.
func (s *Store) MarkBlockProcessed(ctx context.Context, number uint64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE blocks SET processed_at = ? WHERE block_number = ? AND processed_at IS NULL`,
		unixMicro(at), number)
	if err != nil {
		return wrapTransient(err, "mark block processed")
	}
	return nil
}

// GetBlock loads a single block by number.
func (s *Store) GetBlock(ctx context.Context, number uint64) (Block, error) {
	var b Block
	var processedAt sql.NullInt64
	row := s.db.QueryRowContext(ctx,
		`SELECT block_number, seed_hex, processed_at FROM blocks WHERE block_number = ?`, number)
	if err := row.Scan(&b.Number, &b.SeedHex, &processedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Block{}, ferrors.Newf(ferrors.Validation, "block_not_found", "block %d not found", number)
		}
		return Block{}, wrapTransient(err, "get block")
	}
	if processedAt.Valid {
		t := fromUnixMicro(processedAt.Int64)
		b.ProcessedAt = &t
	}
	return b, nil
}
