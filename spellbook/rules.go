package spellbook

import (
	"strconv"
	"strings"

	"github.com/syssam/grimoire"
	"github.com/syssam/grimoire/dialect"
)

// Rules are the fragments that differ between dialects. The compiler owns
// the algorithm and asks its Rules for everything else.
type Rules interface {
	// Dialect returns the dialect name.
	Dialect() string
	// QuoteIdent escapes a table, alias or column name.
	QuoteIdent(name string) string
	// Placeholder returns the n-th (1-based) parameter placeholder.
	Placeholder(n int) string
	// Returning reports if writes support a RETURNING clause.
	Returning() bool
	// Hints reports if optimizer and index hints are rendered.
	Hints() bool
	// NestWildcard reports if `qualifier.*` results can be told apart per
	// qualifier. Otherwise joined columns are listed and aliased one by one.
	NestWildcard() bool
	// Upsert returns the conflict clause appended to an insert. keys is the
	// conflict target, updates the columns to update, primary the primary
	// key column. All are column names.
	Upsert(keys, updates []string, primary string) (string, error)
}

// MySQLRules returns the rules of MySQL and MariaDB.
func MySQLRules() Rules { return mysqlRules{} }

// PostgresRules returns the rules of Postgres.
func PostgresRules() Rules { return postgresRules{} }

// SQLiteRules returns the rules of SQLite.
func SQLiteRules() Rules { return sqliteRules{} }

type mysqlRules struct{}

func (mysqlRules) Dialect() string { return dialect.MySQL }

func (mysqlRules) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (mysqlRules) Placeholder(int) string { return "?" }
func (mysqlRules) Returning() bool        { return false }
func (mysqlRules) Hints() bool            { return true }
func (mysqlRules) NestWildcard() bool     { return true }

// Upsert renders ON DUPLICATE KEY UPDATE. The primary key is reassigned with
// LAST_INSERT_ID so that the id of an updated row is reported back.
func (r mysqlRules) Upsert(_, updates []string, primary string) (string, error) {
	sets := make([]string, 0, len(updates)+1)
	if primary != "" && !contains(updates, primary) {
		pk := r.QuoteIdent(primary)
		sets = append(sets, pk+" = LAST_INSERT_ID("+pk+")")
	}
	for _, col := range updates {
		q := r.QuoteIdent(col)
		sets = append(sets, q+" = VALUES("+q+")")
	}
	if len(sets) == 0 {
		return "", grimoire.NewCompileError("upsert without columns to update")
	}
	return "ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", "), nil
}

type postgresRules struct{}

func (postgresRules) Dialect() string { return dialect.Postgres }

func (postgresRules) QuoteIdent(name string) string { return quoteDouble(name) }

func (postgresRules) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (postgresRules) Returning() bool          { return true }
func (postgresRules) Hints() bool              { return false }
func (postgresRules) NestWildcard() bool       { return true }

func (postgresRules) Upsert(keys, updates []string, _ string) (string, error) {
	return onConflict(quoteDouble, keys, updates)
}

type sqliteRules struct{}

func (sqliteRules) Dialect() string { return dialect.SQLite }

func (sqliteRules) QuoteIdent(name string) string { return quoteDouble(name) }

func (sqliteRules) Placeholder(int) string { return "?" }
func (sqliteRules) Returning() bool        { return true }
func (sqliteRules) Hints() bool            { return false }
func (sqliteRules) NestWildcard() bool     { return false }

func (sqliteRules) Upsert(keys, updates []string, _ string) (string, error) {
	return onConflict(quoteDouble, keys, updates)
}

func quoteDouble(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// onConflict renders ON CONFLICT (keys) DO UPDATE SET col = EXCLUDED.col.
func onConflict(quote func(string) string, keys, updates []string) (string, error) {
	if len(keys) == 0 {
		return "", grimoire.NewCompileError("upsert without unique key")
	}
	target := make([]string, len(keys))
	for i, k := range keys {
		target[i] = quote(k)
	}
	clause := "ON CONFLICT (" + strings.Join(target, ", ") + ")"
	if len(updates) == 0 {
		return clause + " DO NOTHING", nil
	}
	sets := make([]string, len(updates))
	for i, col := range updates {
		q := quote(col)
		sets[i] = q + " = EXCLUDED." + q
	}
	return clause + " DO UPDATE SET " + strings.Join(sets, ", "), nil
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
