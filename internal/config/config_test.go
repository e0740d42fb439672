package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, 10*time.Second, cfg.Server.RequestTimeout)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv(DBDriver, DriverSQLite)
	t.Setenv(DBURL, "file:inputbid.db")
	t.Setenv(SchedulerInterval, "250ms")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.Database.IsSQLite())
	assert.Equal(t, "file:inputbid.db", cfg.Database.GetConnectionString())
	assert.Equal(t, 250*time.Millisecond, cfg.Scheduler.Interval)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Server:    ServerConfig{Port: "8080"},
		Database:  DatabaseConfig{Driver: DriverPgx, URL: "postgres://localhost/db"},
		Redis:     RedisConfig{Addr: "localhost:6379"},
		Scheduler: SchedulerConfig{Interval: time.Second},
	}
	require.NoError(t, valid.Validate())

	badDriver := valid
	badDriver.Database.Driver = "mysql"
	assert.ErrorContains(t, badDriver.Validate(), "unsupported database driver")

	noRedis := valid
	noRedis.Redis.Addr = ""
	assert.ErrorContains(t, noRedis.Validate(), "redis address is required")
}
