package sql

// Predicate applies one or more conditions to a WhereBuilder.
type Predicate func(*WhereBuilder)

// Field is a typed column name that provides predicate constructors.
//
// Usage:
//
//	var Email = sql.Field[string]("email")
//	qb.WhereP(Email.EQ("a@example.com"), Age.GTE(18))
type Field[T any] string

// Name returns the column name.
func (f Field[T]) Name() string { return string(f) }

// EQ returns a predicate that checks if the field equals the given value.
func (f Field[T]) EQ(v T) Predicate { return f.cmp(OpEQ, v) }

// NEQ returns a predicate that checks if the field does not equal the given value.
func (f Field[T]) NEQ(v T) Predicate { return f.cmp(OpNEQ, v) }

// GT returns a predicate that checks if the field is greater than the given value.
func (f Field[T]) GT(v T) Predicate { return f.cmp(OpGT, v) }

// GTE returns a predicate that checks if the field is greater than or equal to the given value.
func (f Field[T]) GTE(v T) Predicate { return f.cmp(OpGTE, v) }

// LT returns a predicate that checks if the field is less than the given value.
func (f Field[T]) LT(v T) Predicate { return f.cmp(OpLT, v) }

// LTE returns a predicate that checks if the field is less than or equal to the given value.
func (f Field[T]) LTE(v T) Predicate { return f.cmp(OpLTE, v) }

// In returns a predicate that checks if the field value is in the given list.
func (f Field[T]) In(vs ...T) Predicate {
	return func(w *WhereBuilder) { w.WhereIn(string(f), toAny(vs)...) }
}

// NotIn returns a predicate that checks if the field value is not in the given list.
func (f Field[T]) NotIn(vs ...T) Predicate {
	return func(w *WhereBuilder) { w.WhereNotIn(string(f), toAny(vs)...) }
}

// Between returns a predicate that checks if the field lies in [lo, hi].
func (f Field[T]) Between(lo, hi T) Predicate {
	return func(w *WhereBuilder) { w.WhereBetween(string(f), lo, hi) }
}

// IsNull returns a predicate that checks if the field is NULL.
func (f Field[T]) IsNull() Predicate {
	return func(w *WhereBuilder) { w.WhereNull(string(f)) }
}

// NotNull returns a predicate that checks if the field is not NULL.
func (f Field[T]) NotNull() Predicate {
	return func(w *WhereBuilder) { w.WhereNotNull(string(f)) }
}

// Contains returns a LIKE predicate matching values that contain s.
// The pattern is not escaped.
func Contains(field, s string) Predicate {
	return func(w *WhereBuilder) { w.Where(field, OpLike, "%"+s+"%") }
}

// HasPrefix returns a LIKE predicate matching values that start with s.
func HasPrefix(field, s string) Predicate {
	return func(w *WhereBuilder) { w.Where(field, OpLike, s+"%") }
}

// HasSuffix returns a LIKE predicate matching values that end with s.
func HasSuffix(field, s string) Predicate {
	return func(w *WhereBuilder) { w.Where(field, OpLike, "%"+s) }
}

// Or returns a predicate that groups ps with OR between them, joined to the
// preceding predicate with AND.
func Or(ps ...Predicate) Predicate {
	return func(w *WhereBuilder) {
		w.Group(func(g *WhereBuilder) {
			for _, p := range ps {
				sub := NewWhereBuilder()
				p(sub)
				g.Group(func(inner *WhereBuilder) { inner.preds = sub.preds }, OR)
			}
		}, AND)
	}
}

func (f Field[T]) cmp(op Operator, v T) Predicate {
	return func(w *WhereBuilder) { w.Where(string(f), op, v) }
}

func toAny[T any](vs []T) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}
