package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Store provides typed access to the minerva schema. All mutating calls
// that touch more than one row run inside a single transaction; reads go
// straight to the handed-in connection.
type Store struct {
	db *sql.DB
}

// NewStore creates a new store over an open database handle
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for collaborators that push their own
// queries down to the database (the authorization engine does this).
func (s *Store) DB() *sql.DB {
	return s.db
}

// withTx runs fn inside a transaction, rolling back on error
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
