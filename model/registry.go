package model

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/syssam/quarry"
	"github.com/syssam/quarry/dialect"
	"github.com/syssam/quarry/dialect/sql"
	sqlschema "github.com/syssam/quarry/dialect/sql/schema"
	"github.com/syssam/quarry/schema"
)

// Registry owns the registered model types of one database.
type Registry struct {
	drv    dialect.Driver
	logger *slog.Logger
	cache  quarry.Cache
	ttl    time.Duration
	now    func() time.Time

	mu    sync.RWMutex
	types map[string]*Type
	order []*Type
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger for statements and hook failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithCache caches model queries for ttl.
func WithCache(c quarry.Cache, ttl time.Duration) Option {
	return func(r *Registry) {
		r.cache, r.ttl = c, ttl
	}
}

// WithClock sets the clock used for managed timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry returns an empty registry executing on drv.
func NewRegistry(drv dialect.Driver, opts ...Option) *Registry {
	r := &Registry{
		drv:    drv,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
		types:  make(map[string]*Type),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register validates def and adds its type. No statement is executed.
func (r *Registry) Register(def *schema.Definition, opts ...TypeOption) (*Type, error) {
	if def == nil {
		return nil, quarry.NewConfigError("model", "nil definition")
	}
	res := sqlschema.ValidateDefinition(def)
	if res.HasErrors() {
		return nil, quarry.NewConfigError(def.Table(), res.Err().Error())
	}
	for _, w := range res.Warnings {
		r.logger.Warn("model definition", "table", def.Table(), "warning", w.Error())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[def.Table()]; ok {
		return nil, quarry.NewConfigError(def.Table(), "model already registered")
	}
	t := newType(r, def, opts...)
	r.types[def.Table()] = t
	r.order = append(r.order, t)
	return t, nil
}

// Type returns the type registered for table.
func (r *Registry) Type(table string) (*Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[table]
	if !ok {
		return nil, quarry.NewConfigError(table, "model not registered")
	}
	return t, nil
}

// Types returns the registered types in registration order.
func (r *Registry) Types() []*Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Driver returns the driver the registry executes on.
func (r *Registry) Driver() dialect.Driver { return r.drv }

// EnsureSchema creates the tables of all registered types and the pivot
// tables of their many-to-many relations that are not registered types.
func (r *Registry) EnsureSchema(ctx context.Context) error {
	r.mu.RLock()
	defs := make([]*schema.Definition, 0, len(r.order))
	seen := make(map[string]bool)
	for _, t := range r.order {
		defs = append(defs, t.def)
		seen[t.Table()] = true
	}
	for _, t := range r.order {
		for _, rel := range t.Relations() {
			if rel.kind == ManyToMany && !seen[rel.pivotTable] {
				defs = append(defs, rel.pivotDefinition())
				seen[rel.pivotTable] = true
			}
		}
	}
	r.mu.RUnlock()

	for _, def := range defs {
		stmt, err := sqlschema.CreateTable(def, r.drv.Dialect())
		if err != nil {
			return err
		}
		r.logger.DebugContext(ctx, "ensure schema", "table", def.Table())
		if err := r.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return quarry.NewMutationError(def.Table(), "create table", err)
		}
	}
	return nil
}

// query returns a builder on eq with the registry's logger, and its cache
// when cached is set.
func (r *Registry) query(eq dialect.ExecQuerier, table string, cached bool) *sql.QueryBuilder {
	opts := []sql.Option{sql.WithLogger(r.logger)}
	if cached && r.cache != nil {
		opts = append(opts, sql.WithCache(r.cache, r.ttl))
	}
	return sql.NewQueryBuilder(eq, opts...).From(table)
}

// inTx runs fn in a transaction, rolling back when fn fails.
func (r *Registry) inTx(ctx context.Context, fn func(dialect.ExecQuerier) error) error {
	tx, err := r.drv.Tx(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return quarry.Rollback(err, tx.Rollback())
	}
	return tx.Commit()
}
