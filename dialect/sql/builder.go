package sql

import (
	"bytes"
	"context"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/quarry"
	"github.com/syssam/quarry/dialect"
)

// QueryBuilder composes the fragment builders into a full statement and
// executes it. A QueryBuilder is not safe for concurrent use; call Clone to
// derive independent copies.
type QueryBuilder struct {
	eq         dialect.ExecQuerier
	table      string
	fields     []string
	joins      *JoinBuilder
	where      *WhereBuilder
	group      *GroupBuilder
	order      *OrderBuilder
	page       *Pagination
	limit      int
	logger     *slog.Logger
	cache      quarry.Cache
	ttl        time.Duration
	sequential bool
}

// Option configures a QueryBuilder.
type Option func(*QueryBuilder)

// WithLogger sets the logger statements are reported to at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(b *QueryBuilder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithCache caches SELECT results for ttl. Mutations executed through a
// builder holding the same cache invalidate the table's entries.
func WithCache(c quarry.Cache, ttl time.Duration) Option {
	return func(b *QueryBuilder) {
		b.cache, b.ttl = c, ttl
	}
}

// WithSequential forces GetPaginated to run its data and count queries one
// after the other.
func WithSequential() Option {
	return func(b *QueryBuilder) { b.sequential = true }
}

// NewQueryBuilder returns a builder executing on eq.
func NewQueryBuilder(eq dialect.ExecQuerier, opts ...Option) *QueryBuilder {
	b := &QueryBuilder{
		eq:     eq,
		fields: []string{"*"},
		joins:  NewJoinBuilder(),
		where:  NewWhereBuilder(),
		group:  NewGroupBuilder(),
		order:  NewOrderBuilder(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// From sets the table.
func (b *QueryBuilder) From(table string) *QueryBuilder {
	b.table = table
	return b
}

// Table returns the table set by From.
func (b *QueryBuilder) Table() string { return b.table }

// Select sets the projected columns. Default is "*".
func (b *QueryBuilder) Select(fields ...string) *QueryBuilder {
	if len(fields) == 0 {
		fields = []string{"*"}
	}
	b.fields = fields
	return b
}

// Join adds a join of the given kind.
func (b *QueryBuilder) Join(kind JoinKind, table, on string, args ...any) *QueryBuilder {
	b.joins.Join(kind, table, on, args...)
	return b
}

// InnerJoin adds an INNER JOIN.
func (b *QueryBuilder) InnerJoin(table, on string, args ...any) *QueryBuilder {
	b.joins.InnerJoin(table, on, args...)
	return b
}

// LeftJoin adds a LEFT JOIN.
func (b *QueryBuilder) LeftJoin(table, on string, args ...any) *QueryBuilder {
	b.joins.LeftJoin(table, on, args...)
	return b
}

// RightJoin adds a RIGHT JOIN.
func (b *QueryBuilder) RightJoin(table, on string, args ...any) *QueryBuilder {
	b.joins.RightJoin(table, on, args...)
	return b
}

// CrossJoin adds a CROSS JOIN.
func (b *QueryBuilder) CrossJoin(table string) *QueryBuilder {
	b.joins.CrossJoin(table)
	return b
}

// Where adds an AND predicate.
func (b *QueryBuilder) Where(field string, op Operator, value ...any) *QueryBuilder {
	b.where.Where(field, op, value...)
	return b
}

// OrWhere adds an OR predicate.
func (b *QueryBuilder) OrWhere(field string, op Operator, value ...any) *QueryBuilder {
	b.where.OrWhere(field, op, value...)
	return b
}

// WhereIn adds an IN predicate.
func (b *QueryBuilder) WhereIn(field string, values ...any) *QueryBuilder {
	b.where.WhereIn(field, values...)
	return b
}

// OrWhereIn adds an OR IN predicate.
func (b *QueryBuilder) OrWhereIn(field string, values ...any) *QueryBuilder {
	b.where.OrWhereIn(field, values...)
	return b
}

// WhereNotIn adds a NOT IN predicate.
func (b *QueryBuilder) WhereNotIn(field string, values ...any) *QueryBuilder {
	b.where.WhereNotIn(field, values...)
	return b
}

// WhereBetween adds a BETWEEN predicate.
func (b *QueryBuilder) WhereBetween(field string, lo, hi any) *QueryBuilder {
	b.where.WhereBetween(field, lo, hi)
	return b
}

// WhereNull adds an IS NULL predicate.
func (b *QueryBuilder) WhereNull(field string) *QueryBuilder {
	b.where.WhereNull(field)
	return b
}

// WhereNotNull adds an IS NOT NULL predicate.
func (b *QueryBuilder) WhereNotNull(field string) *QueryBuilder {
	b.where.WhereNotNull(field)
	return b
}

// WhereGroup adds a parenthesized group joined with conn.
func (b *QueryBuilder) WhereGroup(fn func(*WhereBuilder), conn Connector) *QueryBuilder {
	b.where.Group(fn, conn)
	return b
}

// WhereP applies typed predicates.
func (b *QueryBuilder) WhereP(ps ...Predicate) *QueryBuilder {
	b.where.Apply(ps...)
	return b
}

// GroupBy appends grouping columns.
func (b *QueryBuilder) GroupBy(fields ...string) *QueryBuilder {
	b.group.GroupBy(fields...)
	return b
}

// Having adds a HAVING condition.
func (b *QueryBuilder) Having(field string, op Operator, value any) *QueryBuilder {
	b.group.Having(field, op, value)
	return b
}

// HavingAgg adds a HAVING condition on an aggregate, e.g. COUNT(id) > ?.
func (b *QueryBuilder) HavingAgg(fn, field string, op Operator, value any) *QueryBuilder {
	b.group.HavingAgg(fn, field, op, value)
	return b
}

// OrderBy adds an ordering term.
func (b *QueryBuilder) OrderBy(field, dir string) *QueryBuilder {
	b.order.OrderBy(field, dir)
	return b
}

// OrderByDesc adds a descending ordering term.
func (b *QueryBuilder) OrderByDesc(field string) *QueryBuilder {
	b.order.OrderByDesc(field)
	return b
}

// ClearOrder removes all ordering terms.
func (b *QueryBuilder) ClearOrder() *QueryBuilder {
	b.order.Clear()
	return b
}

// Paginate sets the LIMIT/OFFSET window. It takes precedence over Limit.
func (b *QueryBuilder) Paginate(opts PageOptions) *QueryBuilder {
	b.page = NewPagination(opts)
	return b
}

// Limit sets a plain LIMIT, ignored when Paginate is used.
func (b *QueryBuilder) Limit(n int) *QueryBuilder {
	b.limit = n
	return b
}

// Clone returns a deep copy sharing only the executor, logger and cache.
func (b *QueryBuilder) Clone() *QueryBuilder {
	c := *b
	c.fields = append([]string(nil), b.fields...)
	c.joins = b.joins.Clone()
	c.where = b.where.Clone()
	c.group = b.group.Clone()
	c.order = b.order.Clone()
	if b.page != nil {
		p := *b.page
		c.page = &p
	}
	return &c
}

func (b *QueryBuilder) checkTable() error {
	if strings.TrimSpace(b.table) == "" {
		return quarry.NewConfigError("", "query has no table; call From before executing")
	}
	return nil
}

// body compiles "FROM table [joins] [WHERE ...]" shared by the select,
// count, update and delete statements.
func (b *QueryBuilder) body() (string, []any, error) {
	if err := b.checkTable(); err != nil {
		return "", nil, err
	}
	parts := []string{"FROM", b.table}
	var args []any
	if js, jargs := b.joins.Build(); js != "" {
		parts = append(parts, js)
		args = append(args, jargs...)
	}
	ws, wargs, err := b.where.Build()
	if err != nil {
		return "", nil, err
	}
	if ws != "" {
		parts = append(parts, "WHERE", ws)
		args = append(args, wargs...)
	}
	return strings.Join(parts, " "), args, nil
}

// grouped compiles the SELECT through HAVING with the given projection.
func (b *QueryBuilder) grouped(fields []string) (string, []any, error) {
	body, args, err := b.body()
	if err != nil {
		return "", nil, err
	}
	parts := []string{"SELECT", strings.Join(fields, ", "), body}
	gs, gargs, err := b.group.Build()
	if err != nil {
		return "", nil, err
	}
	if gs != "" {
		parts = append(parts, gs)
		args = append(args, gargs...)
	}
	return strings.Join(parts, " "), args, nil
}

// Build compiles the SELECT statement. Clauses are emitted in the fixed
// order SELECT, FROM, JOIN, WHERE, GROUP BY/HAVING, ORDER BY, LIMIT/OFFSET,
// and arguments follow the same order.
func (b *QueryBuilder) Build() (string, []any, error) {
	query, args, err := b.grouped(b.fields)
	if err != nil {
		return "", nil, err
	}
	parts := []string{query}
	if os := b.order.Build(); os != "" {
		parts = append(parts, os)
	}
	switch {
	case b.page != nil:
		ps, pargs := b.page.Build()
		parts = append(parts, ps)
		args = append(args, pargs...)
	case b.limit > 0:
		parts = append(parts, "LIMIT ?")
		args = append(args, b.limit)
	}
	return strings.Join(parts, " "), args, nil
}

// BuildCount compiles the COUNT statement over the same JOIN and WHERE
// fragments. Grouped queries count their groups through a derived table
// that projects only the grouping columns.
func (b *QueryBuilder) BuildCount() (string, []any, error) {
	if b.group.Grouped() {
		query, args, err := b.grouped(b.group.Fields())
		if err != nil {
			return "", nil, err
		}
		return "SELECT COUNT(*) AS count FROM (" + query + ") AS grouped", args, nil
	}
	body, args, err := b.body()
	if err != nil {
		return "", nil, err
	}
	return "SELECT COUNT(*) AS count " + body, args, nil
}

// Get executes the SELECT and returns the rows.
func (b *QueryBuilder) Get(ctx context.Context) ([]Record, error) {
	query, args, err := b.Build()
	if err != nil {
		return nil, err
	}
	return b.fetch(ctx, "select", query, args)
}

// First returns the first row or a *quarry.NotFoundError.
func (b *QueryBuilder) First(ctx context.Context) (Record, error) {
	q := b
	if b.page == nil {
		q = b.Clone().Limit(1)
	}
	records, err := q.Get(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, quarry.NewNotFoundError(b.table)
	}
	return records[0], nil
}

// Count executes the COUNT statement.
func (b *QueryBuilder) Count(ctx context.Context) (int, error) {
	query, args, err := b.BuildCount()
	if err != nil {
		return 0, err
	}
	b.logger.DebugContext(ctx, "count", "table", b.table, "sql", query, "args", len(args))
	var rows Rows
	if err := b.eq.Query(ctx, query, args, &rows); err != nil {
		return 0, quarry.NewQueryError(b.table, "count", err)
	}
	defer rows.Close()
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, quarry.NewQueryError(b.table, "count", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, quarry.NewQueryError(b.table, "count", err)
	}
	return int(n), nil
}

// GetPaginated runs the windowed SELECT together with a COUNT that applies
// the same joins and filters.
func (b *QueryBuilder) GetPaginated(ctx context.Context) (*Page[Record], error) {
	if b.page == nil {
		return nil, quarry.NewConfigError(b.table, "pagination not configured; call Paginate before GetPaginated")
	}
	if err := b.checkTable(); err != nil {
		return nil, err
	}
	return Paginate(ctx, b.page, b.Get, b.Count, !b.concurrent())
}

// concurrent reports whether statements may overlap. Only a pool-backed
// Driver can serve two statements at once; a Tx or Session is one connection.
func (b *QueryBuilder) concurrent() bool {
	if b.sequential {
		return false
	}
	_, ok := b.eq.(dialect.Driver)
	return ok
}

func (b *QueryBuilder) fetch(ctx context.Context, op, query string, args []any) ([]Record, error) {
	key, cacheable := b.cacheKey(ctx, op, query, args)
	if cacheable {
		if records, ok := b.cached(ctx, key); ok {
			return records, nil
		}
	}
	b.logger.DebugContext(ctx, op, "table", b.table, "sql", query, "args", len(args))
	var rows Rows
	if err := b.eq.Query(ctx, query, args, &rows); err != nil {
		return nil, quarry.NewQueryError(b.table, op, err)
	}
	records, err := ScanRecords(rows)
	if err != nil {
		return nil, quarry.NewQueryError(b.table, op, err)
	}
	if cacheable {
		b.store(ctx, key, records)
	}
	return records, nil
}

// cacheKey derives the key of a read. Arguments are msgpack encoded so that
// distinct argument lists never share a key; a list that cannot be encoded
// is not cached.
func (b *QueryBuilder) cacheKey(ctx context.Context, op, query string, args []any) (string, bool) {
	if b.cache == nil {
		return "", false
	}
	data, err := msgpack.Marshal(args)
	if err != nil {
		b.logger.WarnContext(ctx, "query arguments not cacheable", "table", b.table, "error", err)
		return "", false
	}
	return quarry.CacheKey{Table: b.table, Operation: op, Query: query, Args: hex.EncodeToString(data)}.String(), true
}

func (b *QueryBuilder) cached(ctx context.Context, key string) ([]Record, bool) {
	data, err := b.cache.Get(ctx, key)
	if err != nil || data == nil {
		return nil, false
	}
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	var records []Record
	if err := dec.Decode(&records); err != nil {
		b.logger.WarnContext(ctx, "discarding undecodable cache entry", "key", key, "error", err)
		return nil, false
	}
	return records, true
}

func (b *QueryBuilder) store(ctx context.Context, key string, records []Record) {
	data, err := msgpack.Marshal(records)
	if err == nil {
		err = b.cache.Set(ctx, key, data, b.ttl)
	}
	if err != nil {
		b.logger.WarnContext(ctx, "cache store failed", "key", key, "error", err)
	}
}

func (b *QueryBuilder) invalidate(ctx context.Context) {
	if b.cache == nil {
		return
	}
	if err := b.cache.DeletePrefix(ctx, quarry.TablePrefix(b.table)); err != nil {
		b.logger.WarnContext(ctx, "cache invalidation failed", "table", b.table, "error", err)
	}
}
