package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/quarry"
)

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("driver", "", "")
	fs.String("dsn", "", "")
	fs.String("dir", "", "")
	fs.String("table", "", "")
	fs.String("log-level", "", "")
	fs.Bool("log-sql", false, "")
	fs.Duration("slow-threshold", 0, "")
	fs.Bool("unrelated", false, "")
	return fs
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quarry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultDriver, cfg.Database.Driver)
	assert.Empty(t, cfg.Database.DSN)
	assert.Equal(t, 2, cfg.Database.MaxIdleConns)
	assert.Equal(t, DefaultMigrationsDir, cfg.Migrations.Dir)
	assert.Equal(t, DefaultTable, cfg.Migrations.Table)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.False(t, cfg.Log.SQL)
	assert.Equal(t, DefaultSlowThreshold, cfg.Stats.SlowThreshold)
	assert.Empty(t, cfg.File)
	require.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
database:
  driver: sqlite
  dsn: file:app.db
  max_open_conns: 4
  conn_max_lifetime: 5m
migrations:
  dir: db/migrations
log:
  format: json
  sql: true
stats:
  slow_threshold: 1s
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file:app.db", cfg.Database.DSN)
	assert.Equal(t, 4, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, "db/migrations", cfg.Migrations.Dir)
	assert.Equal(t, DefaultTable, cfg.Migrations.Table, "unset keys keep their defaults")
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Log.SQL)
	assert.Equal(t, time.Second, cfg.Stats.SlowThreshold)
}

func TestLoadDefaultFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte("migrations:\n  table: schema_history\n"), 0o600))
	t.Chdir(dir)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultFile, cfg.File)
	assert.Equal(t, "schema_history", cfg.Migrations.Table)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent.yaml")
}

func TestLoadPrecedence(t *testing.T) {
	path := writeFile(t, `
database:
  dsn: root@tcp(file:3306)/app
  max_idle_conns: 7
migrations:
  dir: from-file
  table: from-file
log:
  level: warn
`)
	t.Setenv("QUARRY_DATABASE_DSN", "root@tcp(env:3306)/app")
	t.Setenv("QUARRY_MIGRATIONS_DIR", "from-env")
	t.Setenv("QUARRY_DATABASE_MAX_IDLE_CONNS", "9")

	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--dir", "from-flag", "--log-sql", "--unrelated"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "root@tcp(env:3306)/app", cfg.Database.DSN, "env overrides file")
	assert.Equal(t, 9, cfg.Database.MaxIdleConns, "env values are decoded to the field type")
	assert.Equal(t, "from-flag", cfg.Migrations.Dir, "flags override env")
	assert.Equal(t, "from-file", cfg.Migrations.Table, "file overrides defaults")
	assert.Equal(t, "warn", cfg.Log.Level, "unset flags do not override the file")
	assert.True(t, cfg.Log.SQL)
}

func TestLoadFlagDuration(t *testing.T) {
	t.Chdir(t.TempDir())
	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--slow-threshold", "50ms", "--driver", "sqlite"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, cfg.Stats.SlowThreshold)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "database.dsn", envKey("database_dsn"))
	assert.Equal(t, "database.max_open_conns", envKey("database_max_open_conns"))
	assert.Equal(t, "stats.slow_threshold", envKey("stats_slow_threshold"))
	assert.Equal(t, "debug", envKey("debug"))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database:   DatabaseConfig{Driver: "mysql", DSN: "root:secret@tcp(localhost:3306)/app"},
			Migrations: MigrationsConfig{Dir: "migrations", Table: "migrations"},
			Log:        LogConfig{Level: "INFO", Format: "text"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"driver", func(c *Config) { c.Database.Driver = "postgres" }, "database.driver"},
		{"mysql_dsn", func(c *Config) { c.Database.DSN = "not a dsn" }, "database.dsn"},
		{"max_open", func(c *Config) { c.Database.MaxOpenConns = -1 }, "database.max_open_conns"},
		{"max_idle", func(c *Config) { c.Database.MaxIdleConns = -1 }, "database.max_idle_conns"},
		{"lifetime", func(c *Config) { c.Database.ConnMaxLifetime = -time.Second }, "database.conn_max_lifetime"},
		{"dir", func(c *Config) { c.Migrations.Dir = "" }, "migrations.dir"},
		{"table", func(c *Config) { c.Migrations.Table = "" }, "migrations.table"},
		{"slow", func(c *Config) { c.Stats.SlowThreshold = -time.Second }, "stats.slow_threshold"},
		{"format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, quarry.IsConfigError(err))
			assert.Contains(t, err.Error(), tt.key)
		})
	}

	t.Run("sqlite_dsn_is_free_form", func(t *testing.T) {
		c := valid()
		c.Database.Driver = "sqlite"
		c.Database.DSN = "file:test.db?_pragma=foreign_keys(1)"
		require.NoError(t, c.Validate())
	})
}

func TestRequireDSN(t *testing.T) {
	c := &Config{}
	err := c.RequireDSN()
	require.Error(t, err)
	assert.True(t, quarry.IsConfigError(err))

	c.Database.DSN = "x"
	require.NoError(t, c.RequireDSN())
}

func TestRedactedDSN(t *testing.T) {
	c := &Config{Database: DatabaseConfig{Driver: "mysql", DSN: "root:secret@tcp(localhost:3306)/app"}}
	red := c.RedactedDSN()
	assert.NotContains(t, red, "secret")
	assert.Contains(t, red, "xxxxx")
	assert.Contains(t, red, "localhost:3306")

	c.Database.Driver = "sqlite"
	c.Database.DSN = "file:app.db"
	assert.Equal(t, "file:app.db", c.RedactedDSN())
}
