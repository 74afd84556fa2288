package sql

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestConstraintErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		unique     bool
		foreignKey bool
		check      bool
	}{
		{name: "nil"},
		{name: "unrelated", err: errors.New("connection refused")},
		{name: "mysql duplicate", err: &mysql.MySQLError{Number: 1062}, unique: true},
		{name: "mysql parent row", err: &mysql.MySQLError{Number: 1451}, foreignKey: true},
		{name: "mysql child row", err: &mysql.MySQLError{Number: 1452}, foreignKey: true},
		{name: "mysql check", err: &mysql.MySQLError{Number: 3819}, check: true},
		{name: "mysql other", err: &mysql.MySQLError{Number: 1064, Message: "violates unique constraint"}},
		{name: "postgres unique", err: &pq.Error{Code: "23505"}, unique: true},
		{name: "postgres foreign key", err: &pq.Error{Code: "23503"}, foreignKey: true},
		{name: "postgres check", err: &pq.Error{Code: "23514"}, check: true},
		{name: "wrapped", err: fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), unique: true},
		{name: "sqlite unique text", err: errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"), unique: true},
		{name: "sqlite foreign key text", err: errors.New("FOREIGN KEY constraint failed"), foreignKey: true},
		{name: "sqlite check text", err: errors.New("CHECK constraint failed: positive"), check: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unique, IsUniqueConstraintError(tt.err))
			assert.Equal(t, tt.foreignKey, IsForeignKeyConstraintError(tt.err))
			assert.Equal(t, tt.check, IsCheckConstraintError(tt.err))
			assert.Equal(t, tt.unique || tt.foreignKey || tt.check, IsConstraintError(tt.err))
		})
	}
}

func TestWrapConstraint(t *testing.T) {
	plain := errors.New("boom")
	assert.Equal(t, plain, wrapConstraint(plain))

	driverErr := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	err := wrapConstraint(driverErr)
	var ce *ConstraintError
	assert.ErrorAs(t, err, &ce)
	assert.Equal(t, "unique", ce.Kind)
	assert.ErrorIs(t, err, driverErr)
	assert.Contains(t, err.Error(), "unique constraint violation")
}
