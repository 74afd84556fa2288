// Package dialect provides database dialect abstraction for Grimoire.
//
// This package defines the interfaces and names used by the compiler and the
// execution layer, allowing Grimoire to render and run queries against
// multiple database backends.
//
// # Supported Dialects
//
//	dialect.MySQL    = "mysql"    // MySQL and MariaDB, backtick quoting
//	dialect.Postgres = "postgres" // PostgreSQL, double quotes, $n placeholders
//	dialect.SQLite   = "sqlite"   // SQLite, double quotes
//
// # Driver Interface
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// The Tx interface extends ExecQuerier with Commit and Rollback. A Tx is
// bound to one connection, so every statement issued through it shares that
// connection.
//
// # Sub-packages
//
//   - dialect/sql: database/sql backed Driver, debug and stats wrappers, and
//     driver error classification.
package dialect
