package sql

import (
	"fmt"
	"strings"
)

type having struct {
	fn    string // aggregate function, optional
	field string
	op    Operator
	value any
}

// GroupBuilder compiles GROUP BY and HAVING. Having conditions are joined by AND.
type GroupBuilder struct {
	fields  []string
	havings []having
}

// NewGroupBuilder returns an empty GroupBuilder.
func NewGroupBuilder() *GroupBuilder {
	return &GroupBuilder{}
}

// GroupBy appends grouping columns.
func (g *GroupBuilder) GroupBy(fields ...string) *GroupBuilder {
	g.fields = append(g.fields, fields...)
	return g
}

// Having adds "field op ?".
func (g *GroupBuilder) Having(field string, op Operator, value any) *GroupBuilder {
	g.havings = append(g.havings, having{field: field, op: Operator(strings.ToUpper(string(op))), value: value})
	return g
}

// HavingAgg adds "FN(field) op ?", e.g. HavingAgg("COUNT", "id", ">", 1).
func (g *GroupBuilder) HavingAgg(fn, field string, op Operator, value any) *GroupBuilder {
	g.havings = append(g.havings, having{fn: strings.ToUpper(fn), field: field, op: Operator(strings.ToUpper(string(op))), value: value})
	return g
}

// Fields returns the grouping columns.
func (g *GroupBuilder) Fields() []string {
	return append([]string(nil), g.fields...)
}

// Grouped reports whether a GROUP BY was requested.
func (g *GroupBuilder) Grouped() bool {
	return len(g.fields) > 0
}

// Clone returns a copy of the builder.
func (g *GroupBuilder) Clone() *GroupBuilder {
	return &GroupBuilder{
		fields:  append([]string(nil), g.fields...),
		havings: append([]having(nil), g.havings...),
	}
}

// Build compiles the clause, or returns "" when empty.
func (g *GroupBuilder) Build() (string, []any, error) {
	var b strings.Builder
	if len(g.fields) > 0 {
		b.WriteString("GROUP BY ")
		b.WriteString(strings.Join(g.fields, ", "))
	}
	if len(g.havings) == 0 {
		return b.String(), nil, nil
	}
	args := make([]any, 0, len(g.havings))
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	b.WriteString("HAVING ")
	for i, h := range g.havings {
		switch h.op {
		case OpIn, OpNotIn, OpBetween, OpIsNull, OpIsNotNull:
			return "", nil, fmt.Errorf("%w %q in HAVING", ErrInvalidOperator, h.op)
		}
		if !h.op.valid() {
			return "", nil, fmt.Errorf("%w %q in HAVING", ErrInvalidOperator, h.op)
		}
		if i > 0 {
			b.WriteString(" AND ")
		}
		if h.fn != "" {
			fmt.Fprintf(&b, "%s(%s) %s ?", h.fn, h.field, h.op)
		} else {
			fmt.Fprintf(&b, "%s %s ?", h.field, h.op)
		}
		args = append(args, h.value)
	}
	return b.String(), args, nil
}
