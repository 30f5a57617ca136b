// Package mixin provides reusable field sets for model definitions.
//
// A mixin embeds Schema and overrides Fields:
//
//	type Audit struct {
//	    mixin.Schema
//	}
//
//	func (Audit) Fields() []field.Field {
//	    return []field.Field{
//	        field.String("created_by").Nullable(),
//	        field.String("updated_by").Nullable(),
//	    }
//	}
//
// Mixins are attached with schema.WithMixin. The Time mixins declare
// timestamp columns for tables that opt out of automatic timestamp
// management but still want the columns, for example pivot tables written
// outside the model layer.
package mixin

import (
	"github.com/syssam/quarry/schema"
	"github.com/syssam/quarry/schema/field"
)

// Schema is the default implementation for the schema.Mixin interface.
// It should be embedded in all custom mixin definitions.
type Schema struct{}

// Fields returns the fields of the mixin.
func (Schema) Fields() []field.Field { return nil }

// schema mixin must implement `Mixin` interface.
var _ schema.Mixin = (*Schema)(nil)

// Time adds created_at and updated_at timestamp fields.
type Time struct {
	Schema
}

// Fields returns the time tracking fields.
func (Time) Fields() []field.Field {
	return append(CreateTime{}.Fields(), UpdateTime{}.Fields()...)
}

// CreateTime adds only the created_at timestamp field.
type CreateTime struct {
	Schema
}

// Fields returns the created_at field.
func (CreateTime) Fields() []field.Field {
	return []field.Field{
		field.Timestamp(schema.CreatedAt).
			Nullable().
			Comment("Timestamp when the row was created"),
	}
}

// UpdateTime adds only the updated_at timestamp field.
type UpdateTime struct {
	Schema
}

// Fields returns the updated_at field.
func (UpdateTime) Fields() []field.Field {
	return []field.Field{
		field.Timestamp(schema.UpdatedAt).
			Nullable().
			Comment("Timestamp when the row was last updated"),
	}
}

// Annotate wraps a mixin and sets the comment of every field it returns.
func Annotate(m schema.Mixin, comment string) schema.Mixin {
	return commenter{Mixin: m, comment: comment}
}

type commenter struct {
	schema.Mixin
	comment string
}

func (c commenter) Fields() []field.Field {
	fields := c.Mixin.Fields()
	for i := range fields {
		fields[i].Descriptor().Comment = c.comment
	}
	return fields
}
