package schema

import (
	"errors"
	"slices"

	"github.com/syssam/quarry/schema/field"
)

// Column names managed when timestamps are enabled.
const (
	CreatedAt = "created_at"
	UpdatedAt = "updated_at"
)

// DefaultPrimaryKey is the primary key column used when none is set.
const DefaultPrimaryKey = "id"

// Mixin is a reusable set of fields.
type Mixin interface {
	Fields() []field.Field
}

// Definition describes a model type: its table, primary key, timestamp
// management and attributes. It is never mutated after New returns.
type Definition struct {
	table      string
	primaryKey string
	timestamps bool
	fields     []*field.Descriptor
	index      map[string]int
	err        error
}

// Option configures a Definition.
type Option func(*Definition)

// PrimaryKey sets the primary key column.
func PrimaryKey(name string) Option {
	return func(d *Definition) {
		d.primaryKey = name
	}
}

// Timestamps enables created_at and updated_at management.
func Timestamps() Option {
	return func(d *Definition) {
		d.timestamps = true
	}
}

// WithoutTimestamps disables created_at and updated_at management.
func WithoutTimestamps() Option {
	return func(d *Definition) {
		d.timestamps = false
	}
}

// WithMixin appends the fields of the given mixins after the declared fields.
func WithMixin(mixins ...Mixin) Option {
	return func(d *Definition) {
		for _, m := range mixins {
			d.add(m.Fields()...)
		}
	}
}

// New returns the definition of the given table.
func New(table string, fields []field.Field, opts ...Option) *Definition {
	d := &Definition{
		table:      table,
		primaryKey: DefaultPrimaryKey,
		timestamps: true,
		index:      make(map[string]int),
	}
	d.add(fields...)
	for _, opt := range opts {
		opt(d)
	}
	if d.timestamps {
		for _, name := range []string{CreatedAt, UpdatedAt} {
			if _, ok := d.index[name]; !ok {
				d.add(field.Timestamp(name).Nullable())
			}
		}
	}
	return d
}

func (d *Definition) add(fields ...field.Field) {
	for _, f := range fields {
		desc := f.Descriptor()
		if desc.Err != nil {
			d.err = errors.Join(d.err, desc.Err)
		}
		if _, ok := d.index[desc.Name]; !ok {
			d.index[desc.Name] = len(d.fields)
		}
		d.fields = append(d.fields, desc)
	}
}

// Table returns the table name.
func (d *Definition) Table() string { return d.table }

// PrimaryKey returns the primary key column.
func (d *Definition) PrimaryKey() string { return d.primaryKey }

// Timestamps reports whether created_at and updated_at are managed.
func (d *Definition) Timestamps() bool { return d.timestamps }

// Fields returns the attribute descriptors in declaration order.
// Timestamp columns come last when enabled.
func (d *Definition) Fields() []*field.Descriptor {
	return slices.Clone(d.fields)
}

// Field returns the descriptor of the named attribute.
func (d *Definition) Field(name string) (*field.Descriptor, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.fields[i], true
}

// Columns returns the primary key followed by every attribute name.
// An attribute named like the primary key is not repeated.
func (d *Definition) Columns() []string {
	cols := make([]string, 0, len(d.fields)+1)
	cols = append(cols, d.primaryKey)
	for _, f := range d.fields {
		if f.Name != d.primaryKey {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

// Err returns the errors collected from field builders.
func (d *Definition) Err() error { return d.err }
