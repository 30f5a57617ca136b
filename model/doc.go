// Package model maps table rows onto model instances with dirty tracking,
// lifecycle hooks and relations.
//
// Registration is pure; schema creation is a separate, explicit step:
//
//	reg := model.NewRegistry(drv, model.WithLogger(logger))
//	users, err := reg.Register(schema.New("users", []field.Field{
//	    field.String("email"),
//	    field.String("name").Nullable(),
//	}))
//	posts, err := reg.Register(schema.New("posts", []field.Field{
//	    field.String("title"),
//	    field.Int("users_id"),
//	}))
//	if err := reg.EnsureSchema(ctx); err != nil {
//	    return err
//	}
//
// Relations are declared on the owning type and loaded on demand:
//
//	users.HasMany("posts", posts)
//	posts.BelongsTo("author", users)
//	users.ManyToMany("roles", roles)
//
//	u, err := users.Find(ctx, 1)
//	if err := u.Load(ctx, "posts", "roles"); err != nil {
//	    return err
//	}
//	ps, _ := u.Many("posts")
//
// Lifecycle hooks run synchronously in registration order. A failing or
// panicking hook is logged and never changes the outcome of Save or Delete:
//
//	users.On(model.EventCreating, func(ctx context.Context, m *model.Model) error {
//	    return m.Set("name", "anonymous")
//	})
//
// Model instances are not safe for concurrent use.
package model
