package db

import (
	"context"
	"database/sql"

	"inputbid-service/internal/ports/outbound"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements outbound.Store on top of a Connection. A Store handed
// to a WithinTx callback routes every query through that transaction.
type Store struct {
	conn *Connection
	q    querier
	tx   *sql.Tx
}

// NewStore creates a store that runs each call in autocommit mode
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn, q: conn.GetDB()}
}

// Requests returns the bid request repository bound to this store
func (s *Store) Requests() outbound.RequestRepository {
	return &RequestRepository{q: s.q, dialect: s.conn.dialect}
}

// Bids returns the retailer bid repository bound to this store
func (s *Store) Bids() outbound.BidRepository {
	return &BidRepository{q: s.q, dialect: s.conn.dialect}
}

// Access returns the retailer access repository bound to this store
func (s *Store) Access() *AccessRepository {
	return &AccessRepository{q: s.q, dialect: s.conn.dialect}
}

// WithinTx runs fn inside a transaction, or inside the current one when
// the store is already transactional.
func (s *Store) WithinTx(ctx context.Context, fn func(tx outbound.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	return s.conn.ExecuteTransaction(ctx, func(tx *sql.Tx) error {
		return fn(&Store{conn: s.conn, q: tx, tx: tx})
	})
}
