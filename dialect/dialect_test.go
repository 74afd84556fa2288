package dialect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/grimoire/dialect"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"mysql", dialect.MySQL},
		{"MariaDB", dialect.MySQL},
		{"postgres", dialect.Postgres},
		{"postgresql", dialect.Postgres},
		{"pg", dialect.Postgres},
		{"sqlite3", dialect.SQLite},
		{"sqlite", dialect.SQLite},
		{"oracle", "oracle"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, dialect.Normalize(tt.in))
		})
	}
}
