// Package dialect defines the connection-provider interfaces shared by the
// query builder, the model layer and the migration runner.
//
// # Dialect Constants
//
// Each backend is identified by a constant string:
//
//	dialect.MySQL  = "mysql"
//	dialect.SQLite = "sqlite"
//
// Queries are always built with "?" placeholders, which both backends accept.
//
// # Interfaces
//
// ExecQuerier is implemented by Driver, Tx and Session:
//
//	type ExecQuerier interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	}
//
// A Driver runs statements on a pool. A Pool can additionally hand out a
// Session, a single connection that must be released when done:
//
//	sess, err := pool.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer sess.Release()
//	tx, err := sess.Tx(ctx)
//
// # Usage
//
//	import (
//	    "github.com/syssam/quarry/dialect"
//	    "github.com/syssam/quarry/dialect/sql"
//	)
//
//	drv, err := sql.Open(dialect.MySQL, "user:pass@tcp(localhost:3306)/app")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
// # Sub-packages
//
//   - dialect/sql: database/sql driver, fragment builders and QueryBuilder
//   - dialect/sql/schema: DDL generation for model definitions and migration history
//   - dialect/sql/sqlgraph: constraint error classification
package dialect
