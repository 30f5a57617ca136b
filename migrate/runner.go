package migrate

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"time"

	"github.com/syssam/quarry"
	"github.com/syssam/quarry/dialect"
	"github.com/syssam/quarry/dialect/sql"
	"github.com/syssam/quarry/dialect/sql/schema"
)

// DefaultTable is the default name of the history table.
const DefaultTable = "migrations"

// Runner applies and reverts migrations against a connection pool.
type Runner struct {
	pool       dialect.Pool
	dir        fs.FS
	migrations []*Migration
	table      string
	logger     *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithDir loads SQL migrations from the root of fsys.
func WithDir(fsys fs.FS) Option {
	return func(r *Runner) { r.dir = fsys }
}

// WithMigrations adds migrations defined in Go.
func WithMigrations(migrations ...*Migration) Option {
	return func(r *Runner) { r.migrations = append(r.migrations, migrations...) }
}

// WithTable sets the history table name.
func WithTable(name string) Option {
	return func(r *Runner) {
		if name != "" {
			r.table = name
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner returns a runner on pool.
func NewRunner(pool dialect.Pool, opts ...Option) *Runner {
	r := &Runner{
		pool:   pool,
		table:  DefaultTable,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Init creates the history table if it does not exist.
func (r *Runner) Init(ctx context.Context) error {
	stmt, err := schema.CreateHistoryTable(r.table, r.pool.Dialect())
	if err != nil {
		return err
	}
	if err := r.pool.Exec(ctx, stmt, []any{}, nil); err != nil {
		return quarry.NewMutationError(r.table, "create table", err)
	}
	r.logger.DebugContext(ctx, "migration history ready", "table", r.table)
	return nil
}

// Migrations returns all known migrations in apply order.
func (r *Runner) Migrations() ([]*Migration, error) {
	all := slices.Clone(r.migrations)
	if r.dir != nil {
		loaded, err := Load(r.dir)
		if err != nil {
			return nil, err
		}
		all = append(all, loaded...)
	}
	seen := make(map[string]bool, len(all))
	for _, m := range all {
		switch {
		case m == nil || m.Up == nil:
			return nil, quarry.NewConfigError("migrate", "migration without Up body")
		case seen[m.Name]:
			return nil, quarry.Configf(m.Name, "duplicate migration")
		}
		seen[m.Name] = true
	}
	slices.SortFunc(all, less)
	return all, nil
}

// Migrate applies every pending migration in order and stops at the first
// failure.
func (r *Runner) Migrate(ctx context.Context) (*Report, error) {
	report := newReport()
	log := r.logger.With("run_id", report.RunID.String())
	if err := r.Init(ctx); err != nil {
		return report, err
	}
	all, err := r.Migrations()
	if err != nil {
		return report, err
	}
	applied, err := r.applied(ctx)
	if err != nil {
		return report, err
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}
	var pending []*Migration
	for _, m := range all {
		if !done[m.Name] {
			pending = append(pending, m)
			report.Steps = append(report.Steps, Step{Name: m.Name, Timestamp: m.Timestamp, State: StatePending})
		}
	}
	if len(pending) == 0 {
		log.InfoContext(ctx, "no pending migrations")
		return report, nil
	}
	for i, m := range pending {
		step := &report.Steps[i]
		step.State = StateRunning
		log.InfoContext(ctx, "applying migration", "migration", m.Name)
		start := time.Now()
		err := r.run(ctx, m.Up, func(ctx context.Context, eq dialect.ExecQuerier) error {
			_, err := r.history(eq).Insert(ctx, map[string]any{"name": m.Name, "timestamp": m.Timestamp})
			return err
		})
		step.Duration = time.Since(start)
		if err != nil {
			step.State, step.Err = StateFailed, err
			log.ErrorContext(ctx, "migration failed", "migration", m.Name, "error", err)
			return report, quarry.NewMigrationError(m.Name, "up", err)
		}
		step.State = StateApplied
		log.InfoContext(ctx, "applied migration", "migration", m.Name, "duration", step.Duration)
	}
	return report, nil
}

// Rollback reverts the last steps applied migrations, most recently
// applied first, and stops at the first failure.
func (r *Runner) Rollback(ctx context.Context, steps int) (*Report, error) {
	report := newReport()
	log := r.logger.With("run_id", report.RunID.String())
	if steps < 1 {
		return report, quarry.Configf("migrate", "rollback steps must be positive, got %d", steps)
	}
	if err := r.Init(ctx); err != nil {
		return report, err
	}
	all, err := r.Migrations()
	if err != nil {
		return report, err
	}
	byName := make(map[string]*Migration, len(all))
	for _, m := range all {
		byName[m.Name] = m
	}
	applied, err := r.applied(ctx)
	if err != nil {
		return report, err
	}
	applied = applied[max(0, len(applied)-steps):]
	slices.Reverse(applied)

	targets := make([]*Migration, len(applied))
	for i, name := range applied {
		m, ok := byName[name]
		if !ok {
			return report, quarry.NewMigrationError(name, "down", quarry.NewConfigError(name, "applied migration has no source"))
		}
		if m.Down == nil {
			return report, quarry.NewMigrationError(name, "down", quarry.NewConfigError(name, "migration has no Down body"))
		}
		targets[i] = m
		report.Steps = append(report.Steps, Step{Name: m.Name, Timestamp: m.Timestamp, State: StateApplied})
	}
	for i, m := range targets {
		step := &report.Steps[i]
		step.State = StateRunning
		log.InfoContext(ctx, "reverting migration", "migration", m.Name)
		start := time.Now()
		err := r.run(ctx, m.Down, func(ctx context.Context, eq dialect.ExecQuerier) error {
			_, err := r.history(eq).Where("name", sql.OpEQ, m.Name).Delete(ctx)
			return err
		})
		step.Duration = time.Since(start)
		if err != nil {
			step.State, step.Err = StateFailed, err
			log.ErrorContext(ctx, "rollback failed", "migration", m.Name, "error", err)
			return report, quarry.NewMigrationError(m.Name, "down", err)
		}
		step.State = StateReverted
		log.InfoContext(ctx, "reverted migration", "migration", m.Name, "duration", step.Duration)
	}
	return report, nil
}

// Status reports every known migration as applied or pending. Applied
// migrations without a source are reported after the known ones.
func (r *Runner) Status(ctx context.Context) (*Report, error) {
	report := newReport()
	if err := r.Init(ctx); err != nil {
		return report, err
	}
	all, err := r.Migrations()
	if err != nil {
		return report, err
	}
	applied, err := r.applied(ctx)
	if err != nil {
		return report, err
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}
	known := make(map[string]bool, len(all))
	for _, m := range all {
		known[m.Name] = true
		state := StatePending
		if done[m.Name] {
			state = StateApplied
		}
		report.Steps = append(report.Steps, Step{Name: m.Name, Timestamp: m.Timestamp, State: state})
	}
	for _, name := range applied {
		if !known[name] {
			ts, _, _ := ParseName(name)
			report.Steps = append(report.Steps, Step{
				Name:      name,
				Timestamp: ts,
				State:     StateApplied,
				Err:       quarry.NewConfigError(name, "applied migration has no source"),
			})
		}
	}
	return report, nil
}

func (r *Runner) history(eq dialect.ExecQuerier) *sql.QueryBuilder {
	return sql.NewQueryBuilder(eq, sql.WithLogger(r.logger)).From(r.table)
}

// applied returns the names of the applied migrations in execution order.
func (r *Runner) applied(ctx context.Context) ([]string, error) {
	records, err := r.history(r.pool).
		Select("name").
		OrderBy("executed_at", "asc").
		OrderBy("id", "asc").
		Get(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(records))
	for _, rec := range records {
		name, ok := rec["name"].(string)
		if !ok {
			return nil, quarry.NewQueryError(r.table, "select", fmt.Errorf("unexpected name %T", rec["name"]))
		}
		names = append(names, name)
	}
	return names, nil
}

// run executes body and record in one transaction on a dedicated
// connection. The connection is released on every path.
func (r *Runner) run(ctx context.Context, body, record Func) (err error) {
	sess, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := sess.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()
	tx, err := sess.Tx(ctx)
	if err != nil {
		return err
	}
	if err := call(ctx, body, tx); err != nil {
		return quarry.Rollback(err, tx.Rollback())
	}
	if err := record(ctx, tx); err != nil {
		return quarry.Rollback(err, tx.Rollback())
	}
	return tx.Commit()
}

// call runs fn, reporting a panic as an error.
func call(ctx context.Context, fn Func, eq dialect.ExecQuerier) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx, eq)
}
