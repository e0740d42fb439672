package config

import (
	"fmt"
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverSQLite   = "sqlite3"
)

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver       string
	URL          string
	MaxOpenConns int
	AutoMigrate  bool
}

// GetConnectionString returns the driver-specific connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return c.URL
}

// IsSQLite reports whether the embedded SQLite store is configured
func (c *DatabaseConfig) IsSQLite() bool {
	return c.Driver == DriverSQLite
}

// Validate validates the database section
func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverPgx, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Driver)
	}

	if c.URL == "" {
		return fmt.Errorf("database URL is required")
	}

	return nil
}
