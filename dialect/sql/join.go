package sql

import "strings"

// JoinKind is the join type keyword.
type JoinKind string

// Join kinds.
const (
	InnerJoin JoinKind = "INNER"
	LeftJoin  JoinKind = "LEFT"
	RightJoin JoinKind = "RIGHT"
	CrossJoin JoinKind = "CROSS"
)

type join struct {
	kind  JoinKind
	table string
	on    string
	args  []any
}

// JoinBuilder accumulates JOIN clauses in call order.
type JoinBuilder struct {
	joins []join
}

// NewJoinBuilder returns an empty JoinBuilder.
func NewJoinBuilder() *JoinBuilder {
	return &JoinBuilder{}
}

// Join adds a join of the given kind. on may contain placeholders bound to args.
func (j *JoinBuilder) Join(kind JoinKind, table, on string, args ...any) *JoinBuilder {
	j.joins = append(j.joins, join{kind: kind, table: table, on: on, args: args})
	return j
}

// InnerJoin adds an INNER JOIN.
func (j *JoinBuilder) InnerJoin(table, on string, args ...any) *JoinBuilder {
	return j.Join(InnerJoin, table, on, args...)
}

// LeftJoin adds a LEFT JOIN.
func (j *JoinBuilder) LeftJoin(table, on string, args ...any) *JoinBuilder {
	return j.Join(LeftJoin, table, on, args...)
}

// RightJoin adds a RIGHT JOIN.
func (j *JoinBuilder) RightJoin(table, on string, args ...any) *JoinBuilder {
	return j.Join(RightJoin, table, on, args...)
}

// CrossJoin adds a CROSS JOIN without condition.
func (j *JoinBuilder) CrossJoin(table string) *JoinBuilder {
	return j.Join(CrossJoin, table, "")
}

// Clone returns a copy of the builder.
func (j *JoinBuilder) Clone() *JoinBuilder {
	c := &JoinBuilder{joins: make([]join, len(j.joins))}
	for i, jn := range j.joins {
		jn.args = append([]any(nil), jn.args...)
		c.joins[i] = jn
	}
	return c
}

// Build compiles the joins separated by a single space.
func (j *JoinBuilder) Build() (string, []any) {
	var (
		parts []string
		args  []any
	)
	for _, jn := range j.joins {
		s := string(jn.kind) + " JOIN " + jn.table
		if jn.on != "" {
			s += " ON " + jn.on
		}
		parts = append(parts, s)
		args = append(args, jn.args...)
	}
	return strings.Join(parts, " "), args
}
