package sql

import "strings"

// Order directions.
const (
	Asc  = "ASC"
	Desc = "DESC"
)

type order struct {
	field string
	dir   string
}

// OrderBuilder compiles ORDER BY in call order.
type OrderBuilder struct {
	orders []order
}

// NewOrderBuilder returns an empty OrderBuilder.
func NewOrderBuilder() *OrderBuilder {
	return &OrderBuilder{}
}

// OrderBy adds an ordering term. Any direction other than DESC sorts ascending.
func (o *OrderBuilder) OrderBy(field, dir string) *OrderBuilder {
	if strings.EqualFold(dir, Desc) {
		dir = Desc
	} else {
		dir = Asc
	}
	o.orders = append(o.orders, order{field: field, dir: dir})
	return o
}

// OrderByDesc adds a descending ordering term.
func (o *OrderBuilder) OrderByDesc(field string) *OrderBuilder {
	return o.OrderBy(field, Desc)
}

// Clear drops all ordering terms.
func (o *OrderBuilder) Clear() *OrderBuilder {
	o.orders = nil
	return o
}

// Clone returns a copy of the builder.
func (o *OrderBuilder) Clone() *OrderBuilder {
	return &OrderBuilder{orders: append([]order(nil), o.orders...)}
}

// Build compiles the clause, or returns "" when empty.
func (o *OrderBuilder) Build() string {
	if len(o.orders) == 0 {
		return ""
	}
	terms := make([]string, len(o.orders))
	for i, ord := range o.orders {
		terms[i] = ord.field + " " + ord.dir
	}
	return "ORDER BY " + strings.Join(terms, ", ")
}
