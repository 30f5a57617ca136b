package sql

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Operator is a comparison operator accepted by WhereBuilder.
type Operator string

// Supported operators.
const (
	OpEQ        Operator = "="
	OpNEQ       Operator = "!="
	OpLTGT      Operator = "<>"
	OpGT        Operator = ">"
	OpLT        Operator = "<"
	OpGTE       Operator = ">="
	OpLTE       Operator = "<="
	OpLike      Operator = "LIKE"
	OpNotLike   Operator = "NOT LIKE"
	OpIn        Operator = "IN"
	OpNotIn     Operator = "NOT IN"
	OpBetween   Operator = "BETWEEN"
	OpIsNull    Operator = "IS NULL"
	OpIsNotNull Operator = "IS NOT NULL"
)

func (op Operator) valid() bool {
	switch op {
	case OpEQ, OpNEQ, OpLTGT, OpGT, OpLT, OpGTE, OpLTE, OpLike, OpNotLike,
		OpIn, OpNotIn, OpBetween, OpIsNull, OpIsNotNull:
		return true
	}
	return false
}

// Connector joins a predicate to the one before it.
type Connector string

// Connectors.
const (
	AND Connector = "AND"
	OR  Connector = "OR"
)

// Errors returned by Build when a predicate cannot be compiled.
var (
	ErrEmptyIn         = errors.New("dialect/sql: IN requires at least one value")
	ErrInvalidBetween  = errors.New("dialect/sql: BETWEEN requires exactly two values")
	ErrInvalidOperator = errors.New("dialect/sql: unsupported operator")
)

type predicate struct {
	conn   Connector
	field  string
	op     Operator
	values []any
	group  *WhereBuilder // non-nil for nested groups
}

// WhereBuilder accumulates predicates and compiles them into a WHERE
// fragment (without the keyword) and its positional arguments.
type WhereBuilder struct {
	preds []predicate
}

// NewWhereBuilder returns an empty WhereBuilder.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{}
}

// Where adds an AND predicate.
func (w *WhereBuilder) Where(field string, op Operator, value ...any) *WhereBuilder {
	return w.add(AND, field, op, value)
}

// OrWhere adds an OR predicate.
func (w *WhereBuilder) OrWhere(field string, op Operator, value ...any) *WhereBuilder {
	return w.add(OR, field, op, value)
}

// WhereIn adds "field IN (...)". A single slice argument is expanded.
func (w *WhereBuilder) WhereIn(field string, values ...any) *WhereBuilder {
	return w.add(AND, field, OpIn, values)
}

// OrWhereIn adds "OR field IN (...)".
func (w *WhereBuilder) OrWhereIn(field string, values ...any) *WhereBuilder {
	return w.add(OR, field, OpIn, values)
}

// WhereNotIn adds "field NOT IN (...)".
func (w *WhereBuilder) WhereNotIn(field string, values ...any) *WhereBuilder {
	return w.add(AND, field, OpNotIn, values)
}

// WhereBetween adds "field BETWEEN ? AND ?".
func (w *WhereBuilder) WhereBetween(field string, lo, hi any) *WhereBuilder {
	return w.add(AND, field, OpBetween, []any{lo, hi})
}

// WhereNull adds "field IS NULL".
func (w *WhereBuilder) WhereNull(field string) *WhereBuilder {
	return w.add(AND, field, OpIsNull, nil)
}

// WhereNotNull adds "field IS NOT NULL".
func (w *WhereBuilder) WhereNotNull(field string) *WhereBuilder {
	return w.add(AND, field, OpIsNotNull, nil)
}

// Group adds a parenthesized sub-expression built by fn, joined to the
// preceding predicate with conn.
func (w *WhereBuilder) Group(fn func(*WhereBuilder), conn Connector) *WhereBuilder {
	g := NewWhereBuilder()
	fn(g)
	if conn != OR {
		conn = AND
	}
	w.preds = append(w.preds, predicate{conn: conn, group: g})
	return w
}

// OrGroup is shorthand for Group(fn, OR).
func (w *WhereBuilder) OrGroup(fn func(*WhereBuilder)) *WhereBuilder {
	return w.Group(fn, OR)
}

// Apply runs the given predicates against the builder.
func (w *WhereBuilder) Apply(ps ...Predicate) *WhereBuilder {
	for _, p := range ps {
		p(w)
	}
	return w
}

// Empty reports whether no predicates were added.
func (w *WhereBuilder) Empty() bool {
	return w == nil || len(w.preds) == 0
}

// Clone returns a deep copy of the builder.
func (w *WhereBuilder) Clone() *WhereBuilder {
	if w == nil {
		return NewWhereBuilder()
	}
	c := &WhereBuilder{preds: make([]predicate, len(w.preds))}
	for i, p := range w.preds {
		p.values = append([]any(nil), p.values...)
		if p.group != nil {
			p.group = p.group.Clone()
		}
		c.preds[i] = p
	}
	return c
}

func (w *WhereBuilder) add(conn Connector, field string, op Operator, values []any) *WhereBuilder {
	w.preds = append(w.preds, predicate{conn: conn, field: field, op: Operator(strings.ToUpper(string(op))), values: values})
	return w
}

// Build compiles the predicates. The connector of the first emitted
// predicate is dropped; every following one is prefixed by its own.
func (w *WhereBuilder) Build() (string, []any, error) {
	var (
		b    strings.Builder
		args []any
	)
	for _, p := range w.preds {
		var (
			frag  string
			fargs []any
		)
		if p.group != nil {
			gs, gargs, err := p.group.Build()
			if err != nil {
				return "", nil, err
			}
			if gs == "" {
				continue
			}
			frag, fargs = "("+gs+")", gargs
		} else {
			var err error
			if frag, fargs, err = p.build(); err != nil {
				return "", nil, err
			}
		}
		if b.Len() > 0 {
			b.WriteString(" " + string(p.conn) + " ")
		}
		b.WriteString(frag)
		args = append(args, fargs...)
	}
	return b.String(), args, nil
}

func (p predicate) build() (string, []any, error) {
	if !p.op.valid() {
		return "", nil, fmt.Errorf("%w %q on %s", ErrInvalidOperator, p.op, p.field)
	}
	switch p.op {
	case OpIsNull, OpIsNotNull:
		return p.field + " " + string(p.op), nil, nil
	case OpIn, OpNotIn:
		values := flatten(p.values)
		if len(values) == 0 {
			return "", nil, fmt.Errorf("%w: %s", ErrEmptyIn, p.field)
		}
		return fmt.Sprintf("%s %s (%s)", p.field, p.op, placeholders(len(values))), values, nil
	case OpBetween:
		values := flatten(p.values)
		if len(values) != 2 {
			return "", nil, fmt.Errorf("%w: %s got %d", ErrInvalidBetween, p.field, len(values))
		}
		return p.field + " BETWEEN ? AND ?", values, nil
	default:
		var v any
		if len(p.values) > 0 {
			v = p.values[0]
		}
		return p.field + " " + string(p.op) + " ?", []any{v}, nil
	}
}

// flatten expands a single slice argument into its elements.
// Byte slices are scalar values and are kept as-is.
func flatten(values []any) []any {
	if len(values) != 1 {
		return values
	}
	if _, ok := values[0].([]byte); ok {
		return values
	}
	rv := reflect.ValueOf(values[0])
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return values
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
