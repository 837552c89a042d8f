package store

import (
	"context"
	"database/sql"
	"errors"
)

// GetBalance returns address's balance in micro-tokens, 0 if the
// address has never earned anything.
func (s *Store) GetBalance(ctx context.Context, address string) (int64, error) {
	return getBalance(ctx, s.db, address)
}

func getBalance(ctx context.Context, q querier, address string) (int64, error) {
	var micro int64
	row := q.QueryRowContext(ctx, `SELECT balance_micro FROM balances WHERE address = ?`, address)
	if err := row.Scan(&micro); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, wrapTransient(err, "get balance")
	}
	return micro, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func creditBalance(ctx context.Context, q querier, address string, deltaMicro int64) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO balances (address, balance_micro) VALUES (?, ?)
		ON CONFLICT(address) DO UPDATE SET balance_micro = balance_micro + excluded.balance_micro`,
		address, deltaMicro)
	if err != nil {
		return wrapTransient(err, "credit balance")
	}
	return nil
}

// CreditBalance adds deltaMicro (may be negative, but callers generally
// use DebitBalance for withdrawals) to address's balance, creating the
// row if absent.
func (s *Store) CreditBalance(ctx context.Context, address string, deltaMicro int64) error {
	return creditBalance(ctx, s.db, address, deltaMicro)
}

// DebitBalance atomically subtracts amountMicro from address's balance.
// It returns ok=false, rather than an error, if the balance is
// insufficient, so callers can render it as a Policy rejection.
func (s *Store) DebitBalance(ctx context.Context, address string, amountMicro int64) (bool, error) {
	ok := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getBalance(ctx, tx, address)
		if err != nil {
			return err
		}
		if current < amountMicro {
			return nil
		}
		if err := creditBalance(ctx, tx, address, -amountMicro); err != nil {
			return err
		}
		ok = true
		return nil
	})
	return ok, err
}
