package sql

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ConstraintError wraps a driver error caused by a constraint violation.
type ConstraintError struct {
	Kind string // "unique", "foreign key" or "check".
	wrap error
}

// Error implements the error interface.
func (e *ConstraintError) Error() string {
	return e.Kind + " constraint violation: " + e.wrap.Error()
}

// Unwrap returns the driver error.
func (e *ConstraintError) Unwrap() error { return e.wrap }

// IsConstraintError returns true if the error resulted from a database
// constraint violation.
func IsConstraintError(err error) bool {
	var e *ConstraintError
	return errors.As(err, &e) ||
		IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err)
}

// wrapConstraint wraps constraint violations in a *ConstraintError. Other
// errors are returned unchanged.
func wrapConstraint(err error) error {
	var kind string
	switch {
	case IsUniqueConstraintError(err):
		kind = "unique"
	case IsForeignKeyConstraintError(err):
		kind = "foreign key"
	case IsCheckConstraintError(err):
		kind = "check"
	default:
		return err
	}
	return &ConstraintError{Kind: kind, wrap: err}
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// violation matches a driver error against the codes of one kind of
// constraint, per driver.
type violation struct {
	pg     string
	mysql  []uint16
	sqlite []int
	text   []string // Fallback for wrapped or proxied drivers.
}

func (v violation) match(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return string(pgErr.Code) == v.pg
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		for _, n := range v.mysql {
			if myErr.Number == n {
				return true
			}
		}
		return false
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		for _, c := range v.sqlite {
			if liteErr.Code() == c {
				return true
			}
		}
		return false
	}
	msg := err.Error()
	for _, s := range v.text {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

var (
	uniqueViolation = violation{
		pg:     pgUniqueViolation,
		mysql:  []uint16{mysqlDuplicateEntry},
		sqlite: []int{sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY},
		text:   []string{"Error 1062", "violates unique constraint", "UNIQUE constraint failed"},
	}
	foreignKeyViolation = violation{
		pg:     pgForeignKeyViolation,
		mysql:  []uint16{mysqlForeignKeyParent, mysqlForeignKeyChild},
		sqlite: []int{sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY},
		text:   []string{"Error 1451", "Error 1452", "violates foreign key constraint", "FOREIGN KEY constraint failed"},
	}
	checkViolation = violation{
		pg:     pgCheckViolation,
		mysql:  []uint16{mysqlCheckConstraintViolate},
		sqlite: []int{sqlite3.SQLITE_CONSTRAINT_CHECK},
		text:   []string{"Error 3819", "violates check constraint", "CHECK constraint failed"},
	}
)

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness
// constraint violation, e.g. duplicate value in unique index.
func IsUniqueConstraintError(err error) bool { return uniqueViolation.match(err) }

// IsForeignKeyConstraintError reports if the error resulted from a database
// foreign-key constraint violation, e.g. parent row does not exist.
func IsForeignKeyConstraintError(err error) bool { return foreignKeyViolation.match(err) }

// IsCheckConstraintError reports if the error resulted from a database check
// constraint violation.
func IsCheckConstraintError(err error) bool { return checkViolation.match(err) }
