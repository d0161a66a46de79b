package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`
database:
  host: db.local
  user: cj
  name: openCJ
`))
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 4, cfg.Database.Connections)
	assert.Equal(t, DefaultPollInterval, cfg.Engine.PollInterval)
	assert.Equal(t, DefaultMaxQueryLength, cfg.Engine.MaxQueryLength)
	assert.Equal(t, DefaultLongQueryCapacity, cfg.Engine.LongQueryCapacity)
	assert.Zero(t, cfg.Engine.DoneTTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestParse_MySQLPortAndOverrides(t *testing.T) {
	cfg, err := Parse([]byte(`
database:
  driver: MySQL
  host: db.local
  user: cj
  name: openCJ
  connections: 2
engine:
  poll_interval: 25ms
  done_ttl: 10m
`))
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, 2, cfg.Database.Connections)
	assert.Equal(t, 25*time.Millisecond, cfg.Engine.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.Engine.DoneTTL)
}

func TestParse_Validation(t *testing.T) {
	cases := map[string]string{
		"unknown driver": "database: {driver: oracle, host: h, user: u, name: n}",
		"missing host":   "database: {user: u, name: n}",
		"missing user":   "database: {host: h, name: n}",
		"missing name":   "database: {host: h, user: u}",
		"small capacity": "database: {host: h, user: u, name: n}\nengine: {max_query_length: 4096, long_query_capacity: 1024}",
		"bad yaml":       "database: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParse_PasswordFromEnv(t *testing.T) {
	t.Setenv("ASYNCSQL_DATABASE_PASSWORD", "s3cret")
	cfg, err := Parse([]byte("database: {host: h, user: u, name: n, password: plain}"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Password)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: {host: h, user: u, name: n}"), 0o600))

	cfg, err := LoadConfig(path, true)
	require.NoError(t, err)
	assert.True(t, cfg.Runtime.Dev)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), false)
	assert.Error(t, err)
}
