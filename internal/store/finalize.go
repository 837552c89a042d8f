package store

import (
	"context"
	"database/sql"
	"time"
)

// ApplyBlockFinalization credits every reward in rewards (address ->
// micro-tokens) and marks blockNumber processed, all within a single
// transaction. A crash between the two halves is impossible: either
// both land or neither does.
func (s *Store) ApplyBlockFinalization(ctx context.Context, blockNumber uint64, at time.Time, rewards map[string]int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for address, micro := range rewards {
			if micro <= 0 {
				continue
			}
			if err := creditBalance(ctx, tx, address, micro); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE blocks SET processed_at = ? WHERE block_number = ? AND processed_at IS NULL`,
			unixMicro(at), blockNumber)
		return err
	})
}
