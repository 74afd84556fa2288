package spellbook

import (
	"fmt"

	"github.com/syssam/grimoire"
	"github.com/syssam/grimoire/dialect"
	"github.com/syssam/grimoire/spell"
)

// Statement is a compiled query: the SQL text and its parameters, in
// placeholder order.
type Statement struct {
	SQL    string
	Values []any
}

// Book compiles built queries for one dialect. A Book holds no state of
// its own and is safe for concurrent use.
type Book struct {
	rules Rules
}

// New returns the Book of the named dialect.
func New(name string) (*Book, error) {
	switch dialect.Normalize(name) {
	case dialect.MySQL:
		return WithRules(MySQLRules()), nil
	case dialect.Postgres:
		return WithRules(PostgresRules()), nil
	case dialect.SQLite:
		return WithRules(SQLiteRules()), nil
	}
	return nil, fmt.Errorf("spellbook: unsupported dialect %q", name)
}

// WithRules returns a Book compiling with the given rules.
func WithRules(r Rules) *Book {
	return &Book{rules: r}
}

// Dialect returns the dialect name of the book.
func (b *Book) Dialect() string { return b.rules.Dialect() }

// Rules returns the rules of the book.
func (b *Book) Rules() Rules { return b.rules }

// Compile compiles a built query. Errors are returned before any SQL is
// produced and are never transient.
func (b *Book) Compile(q *spell.Query) (*Statement, error) {
	if q == nil {
		return nil, grimoire.NewCompileError("nil query")
	}
	return newCompiler(b.rules, q, new(int)).compile()
}

// Format builds the spell and compiles the resulting query.
func (b *Book) Format(s *spell.Spell) (*Statement, error) {
	q, err := s.Build()
	if err != nil {
		return nil, err
	}
	return b.Compile(q)
}

func (c *compiler) compile() (*Statement, error) {
	var err error
	switch cmd := c.q.Command(); cmd {
	case spell.CommandSelect:
		err = c.compileSelect()
	case spell.CommandInsert, spell.CommandBulkInsert:
		err = c.compileInsert(false)
	case spell.CommandUpsert:
		err = c.compileInsert(true)
	case spell.CommandUpdate:
		err = c.compileUpdate()
	case spell.CommandDelete:
		err = c.compileDelete()
	default:
		err = grimoire.NewUnsupportedCommandError(cmd.String(), c.rules.Dialect())
	}
	if err != nil {
		return nil, err
	}
	return &Statement{SQL: c.b.String(), Values: c.values}, nil
}
