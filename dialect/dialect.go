package dialect

import "context"

// Dialect names for the supported backends.
const (
	MySQL  = "mysql"
	SQLite = "sqlite"
)

// ExecQuerier wraps the 2 database operations.
type ExecQuerier interface {
	// Exec executes a query that does not return records. For example, in SQL, INSERT or UPDATE.
	// It scans the result into the pointer v. For SQL drivers, it is dialect/sql.Result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a query that returns rows, typically a SELECT in SQL.
	// It scans the result into the pointer v. For SQL drivers, it is *dialect/sql.Rows.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all necessary operations for the data-access layer.
// A Driver hands statements to a connection pool; consecutive calls may run on
// different physical connections.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection pool.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps the Exec and Query operations in transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

// Session is a single connection taken out of the pool. Statements issued on
// a Session run on the same physical connection until Release is called.
type Session interface {
	ExecQuerier
	// Tx starts a transaction on the session's connection.
	Tx(context.Context) (Tx, error)
	// Release returns the connection to the pool. Calling it more than
	// once is a no-op.
	Release() error
}

// Pool is a Driver that can hand out dedicated sessions.
type Pool interface {
	Driver
	// Acquire takes a connection out of the pool.
	Acquire(context.Context) (Session, error)
}
