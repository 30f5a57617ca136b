package field

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/syssam/quarry/dialect/sql"
)

// A Type represents a field type.
type Type uint8

// List of field types.
const (
	TypeInvalid Type = iota
	TypeString
	TypeText
	TypeInt
	TypeFloat
	TypeBool
	TypeDate
	TypeDateTime
	TypeTimestamp
	endTypes
)

var typeNames = [...]string{
	TypeInvalid:   "invalid",
	TypeString:    "string",
	TypeText:      "text",
	TypeInt:       "int",
	TypeFloat:     "float",
	TypeBool:      "bool",
	TypeDate:      "date",
	TypeDateTime:  "datetime",
	TypeTimestamp: "timestamp",
}

// String returns the string representation of a type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// Valid reports if the given type if known type.
func (t Type) Valid() bool {
	return t > TypeInvalid && t < endTypes
}

// Temporal reports if the type holds a date or a time.
func (t Type) Temporal() bool {
	return t == TypeDate || t == TypeDateTime || t == TypeTimestamp
}

// ParseType returns the type registered under the given name.
// Names are matched case-insensitively, and "number" and "boolean" are
// accepted as aliases for int and bool.
func ParseType(name string) (Type, error) {
	name = strings.ToLower(name)
	switch name {
	case "number":
		return TypeInt, nil
	case "boolean":
		return TypeBool, nil
	}
	for t := TypeString; t < endTypes; t++ {
		if typeNames[t] == name {
			return t, nil
		}
	}
	return TypeInvalid, fmt.Errorf("field: unknown type %q", name)
}

// A Descriptor for field configuration.
type Descriptor struct {
	Name       string            // field name.
	Type       Type              // field type.
	Nullable   bool              // nullable field in the database.
	Default    any               // default value on create.
	Comment    string            // field comment.
	SchemaType map[string]string // override the schema type per dialect.
	Err        error
}

// Field is implemented by every field builder.
type Field interface {
	Descriptor() *Descriptor
}

// Builder is the builder for all field types.
type Builder struct {
	desc *Descriptor
}

func newBuilder(name string, t Type) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Type: t}}
}

// String returns a new Field with type string, stored as VARCHAR(255).
func String(name string) *Builder { return newBuilder(name, TypeString) }

// Text returns a new string field without a length limit.
func Text(name string) *Builder { return newBuilder(name, TypeText) }

// Int returns a new Field with type int.
func Int(name string) *Builder { return newBuilder(name, TypeInt) }

// Float returns a new Field with type float.
func Float(name string) *Builder { return newBuilder(name, TypeFloat) }

// Bool returns a new Field with type bool.
func Bool(name string) *Builder { return newBuilder(name, TypeBool) }

// Date returns a new Field holding a calendar date.
func Date(name string) *Builder { return newBuilder(name, TypeDate) }

// DateTime returns a new Field holding a date and time of day.
func DateTime(name string) *Builder { return newBuilder(name, TypeDateTime) }

// Timestamp returns a new Field holding a point in time.
func Timestamp(name string) *Builder { return newBuilder(name, TypeTimestamp) }

// Nullable indicates that this field is a nullable column.
func (b *Builder) Nullable() *Builder {
	b.desc.Nullable = true
	return b
}

// Default sets the default value of the field. The value must pass Check.
func (b *Builder) Default(v any) *Builder {
	cv, err := b.desc.Check(v)
	if err != nil {
		b.desc.Err = fmt.Errorf("field: invalid default for %q: %w", b.desc.Name, err)
		return b
	}
	b.desc.Default = cv
	return b
}

// Comment sets the comment of the field.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// SchemaType overrides the default database type with a custom
// schema type (per dialect).
func (b *Builder) SchemaType(types map[string]string) *Builder {
	b.desc.SchemaType = types
	return b
}

// Descriptor implements the Field interface by returning its descriptor.
func (b *Builder) Descriptor() *Descriptor {
	return b.desc
}

// Check validates a value written by application code and returns it in
// normalised form. nil is accepted only for nullable fields.
func (d *Descriptor) Check(v any) (any, error) {
	if v == nil {
		if !d.Nullable {
			return nil, fmt.Errorf("field %q is not nullable", d.Name)
		}
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	switch d.Type {
	case TypeString, TypeText:
		if rv.Kind() == reflect.String {
			return rv.String(), nil
		}
	case TypeInt:
		if n, ok := asInt(rv); ok {
			return n, nil
		}
	case TypeFloat:
		switch {
		case rv.Kind() == reflect.Float32 || rv.Kind() == reflect.Float64:
			return rv.Float(), nil
		case rv.CanInt() || rv.CanUint():
			n, _ := asInt(rv)
			return float64(n), nil
		}
	case TypeBool:
		if rv.Kind() == reflect.Bool {
			return rv.Bool(), nil
		}
	case TypeDate, TypeDateTime, TypeTimestamp:
		switch tv := v.(type) {
		case time.Time:
			return tv, nil
		case string:
			if t, ok := sql.ParseTime(tv); ok {
				return t, nil
			}
			return nil, fmt.Errorf("field %q: cannot parse %q as %s", d.Name, tv, d.Type)
		}
	default:
		return nil, fmt.Errorf("field %q has invalid type", d.Name)
	}
	return nil, fmt.Errorf("field %q expects %s, got %T", d.Name, d.Type, v)
}

// Convert normalises a value read from the database. Drivers return
// integers for booleans, byte slices for text and strings for temporal
// columns; all of them are converted to the field's Go representation.
func (d *Descriptor) Convert(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if cv, err := d.Check(v); err == nil {
		return cv, nil
	}
	rv := reflect.ValueOf(v)
	switch d.Type {
	case TypeString, TypeText:
		return fmt.Sprint(v), nil
	case TypeInt:
		switch {
		case rv.CanFloat():
			if f := rv.Float(); f == math.Trunc(f) {
				return int64(f), nil
			}
		case rv.Kind() == reflect.String:
			if n, err := strconv.ParseInt(rv.String(), 10, 64); err == nil {
				return n, nil
			}
		case rv.Kind() == reflect.Bool:
			if rv.Bool() {
				return int64(1), nil
			}
			return int64(0), nil
		}
	case TypeFloat:
		if rv.Kind() == reflect.String {
			if f, err := strconv.ParseFloat(rv.String(), 64); err == nil {
				return f, nil
			}
		}
	case TypeBool:
		if n, ok := asInt(rv); ok {
			return n != 0, nil
		}
		if rv.Kind() == reflect.String {
			if b, err := strconv.ParseBool(rv.String()); err == nil {
				return b, nil
			}
		}
	}
	return nil, fmt.Errorf("field %q: cannot convert %T to %s", d.Name, v, d.Type)
}

func asInt(rv reflect.Value) (int64, bool) {
	switch {
	case rv.CanInt():
		return rv.Int(), true
	case rv.CanUint():
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}
