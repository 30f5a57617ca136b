// Package sql provides the database/sql driver, the SQL fragment builders
// and the QueryBuilder that composes them.
//
// # Fragment Builders
//
// Each builder compiles one clause plus its positional arguments:
//
//   - WhereBuilder: predicates with AND/OR connectors and nested groups
//   - JoinBuilder: INNER, LEFT, RIGHT and CROSS joins
//   - GroupBuilder: GROUP BY and HAVING, optionally on aggregates
//   - OrderBuilder: ORDER BY terms
//   - Pagination: LIMIT ? OFFSET ? from page/perPage or offset/limit
//
// Arguments are returned in the order their placeholders appear.
//
//	sql, args, err := sql.NewWhereBuilder().
//	    Where("status", "=", "active").
//	    Group(func(w *sql.WhereBuilder) {
//	        w.Where("age", ">", 18).OrWhere("role", "=", "admin")
//	    }, sql.AND).
//	    Build()
//	// status = ? AND (age > ? OR role = ?)   [active 18 admin]
//
// # QueryBuilder
//
// The QueryBuilder emits clauses in a fixed order regardless of call order:
// SELECT, FROM, JOIN, WHERE, GROUP BY/HAVING, ORDER BY, LIMIT/OFFSET.
//
//	page, err := sql.NewQueryBuilder(drv).
//	    From("posts").
//	    LeftJoin("users", "users.id = posts.user_id").
//	    Where("posts.published", "=", true).
//	    OrderByDesc("posts.created_at").
//	    Paginate(sql.PageOptions{Page: 2, PerPage: 20}).
//	    GetPaginated(ctx)
//
// The count query issued by GetPaginated reuses the same JOIN and WHERE
// fragments, so Total reflects the active filters.
//
// # Typed predicates
//
//	var Age = sql.Field[int]("age")
//	qb.WhereP(Age.GTE(18), sql.HasPrefix("email", "admin"))
//
// # Decoding
//
// Rows come back as Records. Decode maps them onto structs by `db` tag:
//
//	type User struct {
//	    ID   int64  `db:"id"`
//	    Name string `db:"name"`
//	}
//	users, err := sql.Decode[User](records)
package sql
