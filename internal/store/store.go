// Package store is the narrow persistence contract the economy core runs on:
// typed finds and inserts, guarded updates that report whether the
// precondition matched, and an all-or-nothing transaction wrapper. Callers
// never see SQL; concurrency control is entirely the guarded updates.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	ErrNotFound = errors.New("not_found")
	// ErrNotMatched means a guarded update's precondition no longer held at
	// write time (unit not idle anymore, balance too low, status advanced).
	ErrNotMatched = errors.New("precondition_not_matched")
)

// Store wraps DB access.
type Store struct {
	DB *sql.DB
}

func New(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.DB.PingContext(ctx)
}

// WithTx runs fn inside a transaction. Any error (including ErrNotMatched
// surfaced by a guarded update) rolls back every step issued inside fn.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
