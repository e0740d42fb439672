package db

import (
	"fmt"
	"strconv"
	"strings"

	"inputbid-service/internal/config"
)

// dialect captures the SQL differences between Postgres and SQLite.
// Queries are written with ? placeholders and rebound per dialect.
type dialect struct {
	name          string
	numbered      bool
	rowLocks      bool
	migrationsDir string
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case config.DriverPostgres, config.DriverPgx:
		return dialect{name: driver, numbered: true, rowLocks: true, migrationsDir: "postgres"}, nil
	case config.DriverSQLite:
		return dialect{name: driver, migrationsDir: "sqlite3"}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// rebind rewrites ? placeholders into $1..$n for Postgres drivers
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// forUpdate is the exclusive row lock suffix. SQLite serializes writers
// on its single connection, so it needs none.
func (d dialect) forUpdate() string {
	if d.rowLocks {
		return " FOR UPDATE"
	}
	return ""
}

func (d dialect) forShare() string {
	if d.rowLocks {
		return " FOR SHARE"
	}
	return ""
}

// placeholders returns "?, ?, ..." with n entries
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
