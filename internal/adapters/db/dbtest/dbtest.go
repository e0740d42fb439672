// Package dbtest opens throwaway SQLite databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"inputbid-service/internal/adapters/db"
	"inputbid-service/internal/config"

	"github.com/stretchr/testify/require"
)

// Config returns a database config pointing at a fresh SQLite file
func Config(t testing.TB) config.DatabaseConfig {
	t.Helper()
	return config.DatabaseConfig{
		Driver: config.DriverSQLite,
		URL:    "file:" + filepath.Join(t.TempDir(), "inputbid.db"),
	}
}

// Open migrates a fresh SQLite database and returns its connection. The
// connection is closed when the test ends.
func Open(t testing.TB) *db.Connection {
	t.Helper()

	cfg := Config(t)
	require.NoError(t, db.RunMigrations(cfg))

	conn, err := db.OpenDatabase(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}
