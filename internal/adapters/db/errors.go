package db

import (
	"errors"
	"fmt"

	"inputbid-service/internal/domain/shared"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// SQLSTATE codes reported when a transaction lost a race with another writer
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
)

// translateError marks driver errors caused by concurrent writers with
// shared.ErrConcurrentWrite, keeping the driver error in the chain.
func translateError(err error) error {
	if err == nil || errors.Is(err, shared.ErrConcurrentWrite) {
		return err
	}
	if isConcurrentWrite(err) {
		return fmt.Errorf("%w: %w", shared.ErrConcurrentWrite, err)
	}
	return err
}

func isConcurrentWrite(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return retryableSQLState(string(pqErr.Code))
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return retryableSQLState(pgErr.Code)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}

	return false
}

func retryableSQLState(code string) bool {
	switch code {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
		return true
	}
	return false
}
