// Package store is faucetd's relational persistence layer. A single
// SQLite file holds the block ledger, the share log, running balances
// and the payout queue. Writers serialize through SQLite's own locking
// (the driver DSN requests BEGIN IMMEDIATE semantics) and a gofrs/flock
// guard keeps two faucetd processes from ever opening the same database
// file at once.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/gofrs/flock"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nadfaucet/faucetd/internal/ferrors"
)

// Store wraps the database handle and the inter-process file lock that
// protects it.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
	path string
}

// Open acquires an exclusive lock on path+".lock", opens the SQLite
// database at path (creating it if absent), enables WAL journaling and
// foreign keys, and runs the schema migration. The returned Store owns
// both the lock and the handle; Close releases both.
func Open(path string) (*Store, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, wrapFatal(err, "acquire database lock")
	}
	if !locked {
		return nil, ferrors.New(ferrors.Fatal, "database_locked", "database is locked by another faucetd process")
	}

	dsn := fmt.Sprintf("file:%s?%s", path, url.Values{
		"_journal_mode": {"WAL"},
		"_foreign_keys": {"on"},
		"_txlock":       {"immediate"},
		"_busy_timeout": {"5000"},
	}.Encode())

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		lock.Unlock()
		return nil, wrapFatal(err, "open database")
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		lock.Unlock()
		return nil, wrapFatal(err, "ping database")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		lock.Unlock()
		return nil, wrapFatal(err, "apply schema")
	}

	return &Store{db: db, lock: lock, path: path}, nil
}

// Close releases the database handle and the process lock.
func (s *Store) Close() error {
	dbErr := s.db.Close()
	lockErr := s.lock.Unlock()
	if dbErr != nil {
		return dbErr
	}
	return lockErr
}

func wrapFatal(err error, op string) error {
	return ferrors.Wrap(ferrors.Fatal, "store_fatal", op, err)
}

func wrapTransient(err error, op string) error {
	return ferrors.Wrap(ferrors.Transient, "store_transient", op, err)
}

func unixMicro(t time.Time) int64 { return t.UnixMicro() }

func fromUnixMicro(v int64) time.Time { return time.UnixMicro(v) }

// withTx runs fn inside a transaction, committing on nil return and
// rolling back otherwise. SQLite serializes writers via the _txlock
// DSN parameter, so this is effectively a serializable write.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapTransient(err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapTransient(err, "commit transaction")
	}
	return nil
}
