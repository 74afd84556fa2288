package dialect

import (
	"context"
	"strings"
)

// Database dialects supported by the compiler.
const (
	MySQL    = "mysql"
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// ExecQuerier wraps the two methods for executing statements.
type ExecQuerier interface {
	// Exec executes a statement that returns no rows. v may be nil or a
	// pointer to a sql.Result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a statement that returns rows into v.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all necessary operations for
// executing compiled queries against a database.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction. All statements issued
	// through the returned Tx share one connection.
	Tx(ctx context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps the Exec and Query operations in a transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

// Normalize maps driver names and aliases to one of the dialect constants.
// It returns the input unchanged when no dialect matches.
func Normalize(name string) string {
	switch n := strings.ToLower(name); {
	case strings.HasPrefix(n, MySQL), n == "mariadb":
		return MySQL
	case strings.HasPrefix(n, Postgres), n == "pg", n == "postgresql":
		return Postgres
	case strings.HasPrefix(n, SQLite):
		return SQLite
	default:
		return name
	}
}
