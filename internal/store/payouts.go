package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Payout statuses. A payout moves pending -> sent or pending -> failed
// and never transitions again.
const (
	PayoutPending = "pending"
	PayoutSent    = "sent"
	PayoutFailed  = "failed"
)

// Payout is a single queued or completed withdrawal.
type Payout struct {
	ID          string
	Address     string
	AmountMicro int64
	FeeMicro    int64
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	TxHash      *string
}

// Withdraw debits amountMicro+feeMicro from address's balance and
// enqueues a pending payout for amountMicro, atomically. It returns
// ok=false if the balance can't cover the full debit.
func (s *Store) Withdraw(ctx context.Context, address string, amountMicro, feeMicro int64) (payoutID string, ok bool, err error) {
	id := uuid.NewString()
	now := time.Now()
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getBalance(ctx, tx, address)
		if err != nil {
			return err
		}
		total := amountMicro + feeMicro
		if current < total {
			return nil
		}
		if err := creditBalance(ctx, tx, address, -total); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO payouts (id, address, amount_micro, fee_micro, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, address, amountMicro, feeMicro, PayoutPending, unixMicro(now), unixMicro(now))
		if err != nil {
			return wrapTransient(err, "insert payout")
		}
		ok = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return id, true, nil
}

// ListPendingPayouts returns every payout awaiting dispatch, oldest
// first.
func (s *Store) ListPendingPayouts(ctx context.Context) ([]Payout, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, address, amount_micro, fee_micro, status, created_at, updated_at, tx_hash
		FROM payouts WHERE status = ? ORDER BY created_at ASC`, PayoutPending)
	if err != nil {
		return nil, wrapTransient(err, "list pending payouts")
	}
	defer rows.Close()
	return scanPayouts(rows)
}

// ListPayouts returns every payout for address, most recent first.
func (s *Store) ListPayouts(ctx context.Context, address string) ([]Payout, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, address, amount_micro, fee_micro, status, created_at, updated_at, tx_hash
		FROM payouts WHERE address = ? ORDER BY created_at DESC`, address)
	if err != nil {
		return nil, wrapTransient(err, "list payouts")
	}
	defer rows.Close()
	return scanPayouts(rows)
}

func scanPayouts(rows *sql.Rows) ([]Payout, error) {
	var out []Payout
	for rows.Next() {
		var p Payout
		var createdAt, updatedAt int64
		var txHash sql.NullString
		if err := rows.Scan(&p.ID, &p.Address, &p.AmountMicro, &p.FeeMicro, &p.Status,
			&createdAt, &updatedAt, &txHash); err != nil {
			return nil, wrapTransient(err, "scan payout")
		}
		p.CreatedAt = fromUnixMicro(createdAt)
		p.UpdatedAt = fromUnixMicro(updatedAt)
		if txHash.Valid {
			p.TxHash = &txHash.String
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapTransient(err, "iterate payouts")
	}
	return out, nil
}

// SetPayoutStatus transitions a pending payout to sent or failed. The
// WHERE clause guards against double-dispatch: a payout already moved
// out of pending by a racing dispatcher is left untouched and ok is
// false.
func (s *Store) SetPayoutStatus(ctx context.Context, id, status string, txHash *string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE payouts SET status = ?, tx_hash = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		status, txHash, unixMicro(time.Now()), id, PayoutPending)
	if err != nil {
		return false, wrapTransient(err, "set payout status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapTransient(err, "rows affected")
	}
	return n == 1, nil
}
