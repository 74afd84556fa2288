// Package sql runs compiled statements over database/sql.
//
// Driver implements dialect.Driver for MySQL (go-sql-driver/mysql),
// Postgres (lib/pq) and SQLite (modernc.org/sqlite). Exec and Query take
// the SQL text and the values of a spellbook.Statement:
//
//	drv, err := sql.Open(dialect.Postgres, dsn)
//	if err != nil {
//	    return err
//	}
//	var rows sql.Rows
//	if err := drv.Query(ctx, st.SQL, st.Values, &rows); err != nil {
//	    return err
//	}
//	defer rows.Close()
//
// # Errors
//
// Constraint violations reported by any of the three drivers are wrapped in
// a *ConstraintError and can be told apart with IsUniqueConstraintError,
// IsForeignKeyConstraintError and IsCheckConstraintError.
//
// # Instrumentation
//
// NewStatsDriver counts statements by kind, errors, constraint violations
// and transactions, and reports slow statements. NewDebugDriver logs every
// statement with log/slog. Both wrap any dialect.Driver.
package sql
