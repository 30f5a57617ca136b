// Package cli provides the quarry command-line interface.
package cli

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/syssam/quarry/dialect"
	"github.com/syssam/quarry/dialect/sql"
	"github.com/syssam/quarry/internal/config"
	"github.com/syssam/quarry/internal/logging"
	"github.com/syssam/quarry/migrate"
)

// Version is set at build time.
var Version = "dev"

// Option configures the command tree.
type Option func(*app)

// WithClock sets the clock used to timestamp new migrations.
func WithClock(now func() time.Time) Option {
	return func(a *app) {
		a.now = now
	}
}

// WithMigrations registers Go-defined migrations with the runner.
func WithMigrations(migrations ...*migrate.Migration) Option {
	return func(a *app) {
		a.migrations = append(a.migrations, migrations...)
	}
}

// app holds the state shared by the commands of one invocation.
type app struct {
	now        func() time.Time
	migrations []*migrate.Migration
	cfgFile    string
	cfg        *config.Config
	logger     *slog.Logger
}

// NewRootCmd creates and returns the root command.
func NewRootCmd(opts ...Option) *cobra.Command {
	a := &app{now: time.Now, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(a)
	}
	root := &cobra.Command{
		Use:   "quarry",
		Short: "Manage quarry database migrations",
		Long: `quarry manages schema migrations for applications built on the quarry
data-access layer.

Configuration is read from quarry.yaml (or --config), QUARRY_* environment
variables and flags, in increasing order of precedence.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := config.Load(a.cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
			if cfg.File != "" {
				a.logger.Debug("using config file", "file", cfg.File)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: ./quarry.yaml)")
	pf.String("driver", "", "database driver (mysql|sqlite)")
	pf.String("dsn", "", "database connection string")
	pf.String("dir", "", "migrations directory (default: migrations)")
	pf.String("table", "", "migration history table (default: migrations)")
	pf.String("log-level", "", "log level (debug|info|warn|error)")
	pf.String("log-format", "", "log format (text|json)")
	pf.Bool("log-sql", false, "log every SQL statement at debug level")
	pf.Duration("slow-threshold", 0, "warn about statements slower than this")

	_ = root.RegisterFlagCompletionFunc("driver", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{dialect.MySQL, dialect.SQLite}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(
		a.createMigrationCmd(),
		a.migrateCmd(),
		a.rollbackCmd(),
		a.statusCmd(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer, opts ...Option) int {
	root := NewRootCmd(opts...)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// pool is an open connection pool with statement statistics.
type pool struct {
	dialect.Pool
	stats *sql.StatsDriver
}

// open connects to the configured database. The caller closes the pool.
func (a *app) open(ctx context.Context) (*pool, error) {
	if err := a.cfg.RequireDSN(); err != nil {
		return nil, err
	}
	db := a.cfg.Database
	a.logger.DebugContext(ctx, "opening database", "driver", db.Driver, "target", a.cfg.RedactedDSN())
	conn, err := stdsql.Open(db.Driver, db.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", db.Driver, err)
	}
	if db.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(db.MaxOpenConns)
	}
	conn.SetMaxIdleConns(db.MaxIdleConns)
	conn.SetConnMaxLifetime(db.ConnMaxLifetime)
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect %s: %w", db.Driver, err)
	}

	var drv dialect.Pool = sql.OpenDB(db.Driver, conn)
	if a.cfg.Log.SQL {
		drv = sql.NewDebugDriver(drv, a.logger)
	}
	var opts []sql.StatsOption
	if t := a.cfg.Stats.SlowThreshold; t > 0 {
		opts = append(opts, sql.WithSlowThreshold(t), sql.WithSlowQueryLog(a.logger))
	}
	stats := sql.NewStatsDriver(drv, opts...)
	return &pool{Pool: stats, stats: stats}, nil
}

// close logs the statement statistics and closes the pool.
func (p *pool) close(ctx context.Context, logger *slog.Logger) error {
	s := p.stats.QueryStats().Stats()
	logger.DebugContext(ctx, "statement stats", "queries", s.TotalQueries, "execs", s.TotalExecs,
		"avg", s.AvgQueryDuration(), "slow", s.SlowQueries, "errors", s.Errors)
	return p.Close()
}

// runner builds a migration runner over p.
func (a *app) runner(p dialect.Pool) *migrate.Runner {
	opts := []migrate.Option{
		migrate.WithTable(a.cfg.Migrations.Table),
		migrate.WithLogger(a.logger),
		migrate.WithMigrations(a.migrations...),
	}
	if info, err := os.Stat(a.cfg.Migrations.Dir); err == nil && info.IsDir() {
		opts = append(opts, migrate.WithDir(os.DirFS(a.cfg.Migrations.Dir)))
	} else {
		a.logger.Debug("migrations directory not found", "dir", a.cfg.Migrations.Dir)
	}
	return migrate.NewRunner(p, opts...)
}

// withRunner opens the database, runs fn and closes the pool.
func (a *app) withRunner(ctx context.Context, fn func(*migrate.Runner) error) (err error) {
	p, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := p.close(ctx, a.logger); err == nil {
			err = cerr
		}
	}()
	return fn(a.runner(p))
}
