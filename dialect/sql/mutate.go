package sql

import (
	"context"
	"slices"
	"strings"

	"github.com/syssam/quarry"
	"github.com/syssam/quarry/dialect/sql/sqlgraph"
)

// InsertSQL compiles an INSERT for one row. Columns are emitted in sorted
// order so the statement text is stable.
func InsertSQL(table string, values map[string]any) (string, []any) {
	cols := sortedKeys(values)
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = values[c]
	}
	return "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders(len(cols)) + ")", args
}

// Insert inserts one row and returns the generated id.
func (b *QueryBuilder) Insert(ctx context.Context, values map[string]any) (int64, error) {
	if err := b.checkTable(); err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, quarry.NewConfigError(b.table, "insert without values")
	}
	query, args := InsertSQL(b.table, values)
	res, err := b.exec(ctx, "insert", query, args)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, quarry.NewMutationError(b.table, "insert", err)
	}
	return id, nil
}

// InsertMany inserts rows with a single multi-row statement and returns the
// number of rows affected. Every row must set the same columns.
func (b *QueryBuilder) InsertMany(ctx context.Context, rows []map[string]any) (int64, error) {
	if err := b.checkTable(); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	cols := sortedKeys(rows[0])
	if len(cols) == 0 {
		return 0, quarry.NewConfigError(b.table, "insert without values")
	}
	var (
		sb    strings.Builder
		args  = make([]any, 0, len(rows)*len(cols))
		tuple = "(" + placeholders(len(cols)) + ")"
	)
	sb.WriteString("INSERT INTO " + b.table + " (" + strings.Join(cols, ", ") + ") VALUES ")
	for i, row := range rows {
		if !slices.Equal(sortedKeys(row), cols) {
			return 0, quarry.Configf(b.table, "row %d sets different columns than row 0", i)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(tuple)
		for _, c := range cols {
			args = append(args, row[c])
		}
	}
	res, err := b.exec(ctx, "insert", sb.String(), args)
	if err != nil {
		return 0, err
	}
	return affected(b.table, "insert", res)
}

// Update sets values on every row matching the WHERE predicates and returns
// the number of rows affected.
func (b *QueryBuilder) Update(ctx context.Context, values map[string]any) (int64, error) {
	if len(values) == 0 {
		return 0, quarry.NewConfigError(b.table, "update without values")
	}
	body, wargs, err := b.mutationBody()
	if err != nil {
		return 0, err
	}
	cols := sortedKeys(values)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(wargs))
	for i, c := range cols {
		sets[i] = c + " = ?"
		args = append(args, values[c])
	}
	// body starts with "FROM table"; UPDATE names the table itself.
	where := strings.TrimPrefix(body, "FROM "+b.table)
	query := "UPDATE " + b.table + " SET " + strings.Join(sets, ", ") + where
	res, err := b.exec(ctx, "update", query, append(args, wargs...))
	if err != nil {
		return 0, err
	}
	return affected(b.table, "update", res)
}

// Delete removes every row matching the WHERE predicates and returns the
// number of rows affected.
func (b *QueryBuilder) Delete(ctx context.Context) (int64, error) {
	body, args, err := b.mutationBody()
	if err != nil {
		return 0, err
	}
	res, err := b.exec(ctx, "delete", "DELETE "+body, args)
	if err != nil {
		return 0, err
	}
	return affected(b.table, "delete", res)
}

func (b *QueryBuilder) mutationBody() (string, []any, error) {
	if len(b.joins.joins) > 0 {
		return "", nil, quarry.NewConfigError(b.table, "joins are not supported in UPDATE or DELETE")
	}
	return b.body()
}

func (b *QueryBuilder) exec(ctx context.Context, op, query string, args []any) (Result, error) {
	b.logger.DebugContext(ctx, op, "table", b.table, "sql", query, "args", len(args))
	var res Result
	if err := b.eq.Exec(ctx, query, args, &res); err != nil {
		return nil, quarry.NewMutationError(b.table, op, sqlgraph.Classify(err))
	}
	b.invalidate(ctx)
	return res, nil
}

func affected(table, op string, res Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, quarry.NewMutationError(table, op, err)
	}
	return n, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
