// Package config loads the quarry command configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/syssam/quarry"
	"github.com/syssam/quarry/dialect"
)

// Defaults.
const (
	DefaultFile          = "quarry.yaml"
	DefaultDriver        = dialect.MySQL
	DefaultMigrationsDir = "migrations"
	DefaultTable         = "migrations"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultSlowThreshold = 200 * time.Millisecond

	// EnvPrefix is the prefix of environment variables read by Load.
	// QUARRY_DATABASE_DSN maps to database.dsn.
	EnvPrefix = "QUARRY_"
)

// Config is the decoded configuration.
type Config struct {
	Database   DatabaseConfig   `koanf:"database"`
	Migrations MigrationsConfig `koanf:"migrations"`
	Log        LogConfig        `koanf:"log"`
	Stats      StatsConfig      `koanf:"stats"`

	// File is the configuration file that was read, if any.
	File string `koanf:"-"`
}

// DatabaseConfig configures the connection pool.
type DatabaseConfig struct {
	Driver          string        `koanf:"driver"`
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// MigrationsConfig configures the migration runner and scaffold.
type MigrationsConfig struct {
	Dir   string `koanf:"dir"`
	Table string `koanf:"table"`
}

// LogConfig configures the command logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// SQL logs every statement at debug level.
	SQL bool `koanf:"sql"`
}

// StatsConfig configures statement statistics.
type StatsConfig struct {
	SlowThreshold time.Duration `koanf:"slow_threshold"`
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"driver":         "database.driver",
	"dsn":            "database.dsn",
	"dir":            "migrations.dir",
	"table":          "migrations.table",
	"log-level":      "log.level",
	"log-format":     "log.format",
	"log-sql":        "log.sql",
	"slow-threshold": "stats.slow_threshold",
}

func defaults() map[string]any {
	return map[string]any{
		"database.driver":            DefaultDriver,
		"database.dsn":               "",
		"database.max_open_conns":    0,
		"database.max_idle_conns":    2,
		"database.conn_max_lifetime": "0s",
		"migrations.dir":             DefaultMigrationsDir,
		"migrations.table":           DefaultTable,
		"log.level":                  DefaultLogLevel,
		"log.format":                 DefaultLogFormat,
		"log.sql":                    false,
		"stats.slow_threshold":       DefaultSlowThreshold.String(),
	}
}

// Load reads the configuration.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
//
// An explicit path must exist. Without one, DefaultFile is read when present.
// Only flags that were set on the command line override lower layers.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	used := path
	if used == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			used = DefaultFile
		}
	}
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", used, err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return envKey(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	if flags != nil {
		err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil)
		if err != nil {
			return nil, fmt.Errorf("config: load flags: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.File = used
	return cfg, nil
}

// envKey maps "database_max_open_conns" to "database.max_open_conns".
// The first underscore separates the section from the key.
func envKey(s string) string {
	section, key, ok := strings.Cut(s, "_")
	if !ok {
		return s
	}
	return section + "." + key
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case dialect.MySQL:
		if c.Database.DSN != "" {
			if _, err := mysql.ParseDSN(c.Database.DSN); err != nil {
				return quarry.Configf("database.dsn", "invalid mysql dsn: %v", err)
			}
		}
	case dialect.SQLite:
	default:
		return quarry.Configf("database.driver", "unsupported driver %q (want %s or %s)", c.Database.Driver, dialect.MySQL, dialect.SQLite)
	}
	switch {
	case c.Database.MaxOpenConns < 0:
		return quarry.NewConfigError("database.max_open_conns", "must not be negative")
	case c.Database.MaxIdleConns < 0:
		return quarry.NewConfigError("database.max_idle_conns", "must not be negative")
	case c.Database.ConnMaxLifetime < 0:
		return quarry.NewConfigError("database.conn_max_lifetime", "must not be negative")
	case c.Migrations.Dir == "":
		return quarry.NewConfigError("migrations.dir", "must not be empty")
	case c.Migrations.Table == "":
		return quarry.NewConfigError("migrations.table", "must not be empty")
	case c.Stats.SlowThreshold < 0:
		return quarry.NewConfigError("stats.slow_threshold", "must not be negative")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return quarry.Configf("log.format", "unsupported format %q (want text or json)", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return quarry.Configf("log.level", "unsupported level %q", c.Log.Level)
	}
	return nil
}

// RequireDSN reports a missing connection string. Commands that never
// touch the database skip it.
func (c *Config) RequireDSN() error {
	if c.Database.DSN == "" {
		return quarry.NewConfigError("database.dsn", "required (set --dsn, QUARRY_DATABASE_DSN or database.dsn)")
	}
	return nil
}

// RedactedDSN returns the DSN with the password masked, for logging.
func (c *Config) RedactedDSN() string {
	if c.Database.Driver != dialect.MySQL || c.Database.DSN == "" {
		return c.Database.DSN
	}
	dsn, err := mysql.ParseDSN(c.Database.DSN)
	if err != nil {
		return "[invalid]"
	}
	if dsn.Passwd != "" {
		dsn.Passwd = "xxxxx"
	}
	return dsn.FormatDSN()
}
