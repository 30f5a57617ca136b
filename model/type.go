package model

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"sync"

	"github.com/syssam/quarry"
	"github.com/syssam/quarry/dialect/sql"
	"github.com/syssam/quarry/schema"
	"github.com/syssam/quarry/validate"
)

// Type is a registered model type. It owns the definition, the hook
// subscriptions and the relation definitions of its table.
type Type struct {
	reg       *Registry
	def       *schema.Definition
	validator *validate.Validator

	mu        sync.RWMutex
	hooks     map[Event][]Hook
	relations map[string]*Relation
	relOrder  []string
}

// TypeOption configures a Type at registration.
type TypeOption func(*Type)

// WithValidator validates attributes before every Save.
func WithValidator(v *validate.Validator) TypeOption {
	return func(t *Type) {
		t.validator = v
	}
}

func newType(reg *Registry, def *schema.Definition, opts ...TypeOption) *Type {
	t := &Type{
		reg:       reg,
		def:       def,
		hooks:     make(map[Event][]Hook),
		relations: make(map[string]*Relation),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Definition returns the model definition.
func (t *Type) Definition() *schema.Definition { return t.def }

// Table returns the table name.
func (t *Type) Table() string { return t.def.Table() }

// Query returns a QueryBuilder on the type's table.
func (t *Type) Query() *sql.QueryBuilder {
	return t.reg.query(t.reg.drv, t.Table(), true)
}

// New returns an unsaved instance holding attrs. An instance created with
// a primary key value is treated as persisted.
func (t *Type) New(attrs map[string]any) (*Model, error) {
	m := t.newModel()
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		v := attrs[k]
		if k == t.def.PrimaryKey() {
			m.attrs[k] = normalizeKey(v)
			continue
		}
		cv, err := t.check(k, v)
		if err != nil {
			return nil, err
		}
		m.attrs[k] = cv
	}
	m.isNew = m.attrs[t.def.PrimaryKey()] == nil
	return m, nil
}

// Find returns the instance with the given primary key or a
// *quarry.NotFoundError.
func (t *Type) Find(ctx context.Context, id any) (*Model, error) {
	rec, err := t.Query().Where(t.def.PrimaryKey(), sql.OpEQ, id).First(ctx)
	if quarry.IsNotFound(err) {
		return nil, quarry.NewNotFoundErrorWithID(t.Table(), id)
	}
	if err != nil {
		return nil, err
	}
	return t.hydrate(rec)
}

// FindAll returns every row of the table.
func (t *Type) FindAll(ctx context.Context) ([]*Model, error) {
	return t.All(ctx, t.Query())
}

// All executes q and hydrates the rows. q must select from the type's table.
func (t *Type) All(ctx context.Context, q *sql.QueryBuilder) ([]*Model, error) {
	if q.Table() != t.Table() {
		return nil, quarry.Configf(t.Table(), "query selects from %q", q.Table())
	}
	records, err := q.Get(ctx)
	if err != nil {
		return nil, err
	}
	return t.Hydrate(records)
}

// Hydrate converts rows into persisted instances. Columns that are not
// attributes of the type are dropped.
func (t *Type) Hydrate(records []sql.Record) ([]*Model, error) {
	models := make([]*Model, 0, len(records))
	for _, rec := range records {
		m, err := t.hydrate(rec)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, nil
}

func (t *Type) hydrate(rec sql.Record) (*Model, error) {
	m := t.newModel()
	for col, v := range rec {
		if col == t.def.PrimaryKey() {
			m.attrs[col] = normalizeKey(v)
			continue
		}
		fd, ok := t.def.Field(col)
		if !ok {
			continue
		}
		cv, err := fd.Convert(v)
		if err != nil {
			return nil, quarry.NewQueryError(t.Table(), "hydrate", err)
		}
		m.attrs[col] = cv
	}
	return m, nil
}

func (t *Type) newModel() *Model {
	return &Model{
		typ:       t,
		attrs:     make(map[string]any),
		dirty:     make(map[string]struct{}),
		relations: make(map[string]any),
	}
}

// check validates a write of v to the attribute name.
func (t *Type) check(name string, v any) (any, error) {
	if name == t.def.PrimaryKey() {
		return nil, quarry.Configf(t.Table(), "primary key %q is managed by the database", name)
	}
	fd, ok := t.def.Field(name)
	if !ok {
		return nil, quarry.Configf(t.Table(), "unknown attribute %q", name)
	}
	cv, err := fd.Check(v)
	if err != nil {
		return nil, quarry.NewConfigError(t.Table(), err.Error())
	}
	return cv, nil
}

// normalizeKey maps key values onto int64 or string so that keys read by
// different drivers compare equal.
func normalizeKey(v any) any {
	switch k := v.(type) {
	case nil:
		return nil
	case []byte:
		return normalizeKey(string(k))
	case string:
		if n, err := strconv.ParseInt(k, 10, 64); err == nil {
			return n
		}
		return k
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return rv.Int()
	case rv.CanUint():
		return int64(rv.Uint())
	case rv.CanFloat():
		if f := rv.Float(); f == float64(int64(f)) {
			return int64(f)
		}
	}
	return fmt.Sprint(v)
}
