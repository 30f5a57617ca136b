// Package schema provides the immutable model definition consumed by the
// model layer and the DDL generator.
//
// A definition is declared once, at registration time:
//
//	users := schema.New("users", []field.Field{
//	    field.String("email"),
//	    field.String("name").Nullable(),
//	    field.Int("age").Default(0),
//	})
//
// The primary key defaults to "id" and is always an auto-increment
// integer managed by the database. Timestamps are on by default: the
// created_at and updated_at columns are added and set by the model layer.
//
//	tags := schema.New("tags", []field.Field{field.String("label")},
//	    schema.PrimaryKey("tag_id"),
//	    schema.WithoutTimestamps(),
//	)
//
// Reusable field sets are attached with mixins:
//
//	posts := schema.New("posts", fields, schema.WithMixin(mixin.CreateTime{}))
package schema
