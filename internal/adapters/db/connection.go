package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"inputbid-service/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Connection represents a database connection
type Connection struct {
	db      *sql.DB
	dialect dialect
}

// NewConnection creates a new database connection
func NewConnection(config *config.Config) (*Connection, error) {
	return OpenDatabase(config.Database)
}

// OpenDatabase opens and verifies a connection for the configured driver
func OpenDatabase(dbConfig config.DatabaseConfig) (*Connection, error) {
	d, err := dialectFor(dbConfig.Driver)
	if err != nil {
		return nil, err
	}

	db, err := openDB(dbConfig)
	if err != nil {
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	if dbConfig.IsSQLite() {
		// SQLite has a single writer; one connection serializes every
		// transaction in-process.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		maxOpen := dbConfig.MaxOpenConns
		if maxOpen <= 0 {
			maxOpen = 25
		}
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(5)
	}

	return &Connection{db: db, dialect: d}, nil
}

func openDB(dbConfig config.DatabaseConfig) (*sql.DB, error) {
	dsn := dbConfig.GetConnectionString()
	if dbConfig.IsSQLite() {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(dbConfig.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	return db, nil
}

// sqliteDSN enables foreign keys, a busy timeout and immediate write locks
func sqliteDSN(dsn string) string {
	params := "_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}

// GetDB returns the underlying sql.DB instance
func (client *Connection) GetDB() *sql.DB {
	return client.db
}

// Driver returns the name of the configured driver
func (client *Connection) Driver() string {
	return client.dialect.name
}

// Close closes the database connection
func (client *Connection) Close() error {
	return client.db.Close()
}

// BeginTransaction starts a new database transaction
func (client *Connection) BeginTransaction(ctx context.Context) (*sql.Tx, error) {
	tx, err := client.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", translateError(err))
	}
	return tx, nil
}

// ExecuteTransaction executes a function within a transaction
func (client *Connection) ExecuteTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := client.BeginTransaction(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("tx failed: %w, rollback failed: %v", translateError(err), rbErr)
		}
		return translateError(err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", translateError(err))
	}

	return nil
}
