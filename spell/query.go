package spell

import (
	"github.com/syssam/grimoire"
	"github.com/syssam/grimoire/expr"
	"github.com/syssam/grimoire/schema"
)

// Query is a built spell: scopes applied, sharding key checked and joined
// columns qualified. It has no mutators; slices returned by its getters
// must not be modified.
type Query struct {
	s    *Spell
	from *Query
}

// Build validates the spell and returns its immutable Query. The spell is
// left untouched and may be built again or changed further; changes made
// after Build do not affect the returned Query.
func (s *Spell) Build() (*Query, error) {
	if err := s.Err(); err != nil {
		return nil, err
	}
	c := s.clone()
	for _, scope := range c.scopes {
		scope(c)
	}
	paranoid(c)
	c.scopes = nil
	if err := c.Err(); err != nil {
		return nil, err
	}
	if err := c.checkShardingKey(); err != nil {
		return nil, err
	}
	if c.offset > 0 && !c.limited {
		return nil, grimoire.NewCompileError("offset %d requires a limit", c.offset)
	}
	if err := c.freeze(); err != nil {
		return nil, err
	}
	q := &Query{s: c}
	if c.from != nil {
		from, err := c.from.Build()
		if err != nil {
			return nil, err
		}
		q.from = from
	}
	c.qualify()
	return q, nil
}

// freeze replaces the spells nested as subqueries or written values with
// their built queries.
func (s *Spell) freeze() error {
	var err error
	fn := func(n expr.Expr) expr.Expr {
		sub, ok := n.(*expr.Subquery)
		if !ok || err != nil {
			return n
		}
		inner, ok := sub.Query.(*Spell)
		if !ok {
			return n
		}
		built, berr := inner.Build()
		if berr != nil {
			err = berr
			return n
		}
		return &expr.Subquery{Query: built}
	}
	rewrite := func(nodes []expr.Expr) []expr.Expr {
		out := make([]expr.Expr, len(nodes))
		for i, n := range nodes {
			out[i] = expr.Rewrite(n, fn)
		}
		return out
	}
	s.columns = rewrite(s.columns)
	s.where = rewrite(s.where)
	s.groups = rewrite(s.groups)
	s.having = rewrite(s.having)
	for i, o := range s.orders {
		s.orders[i] = expr.Ordering{Expr: expr.Rewrite(o.Expr, fn), Desc: o.Desc}
	}
	for _, j := range s.joins {
		j.On = expr.Rewrite(j.On, fn)
	}
	for _, set := range s.sets {
		for k, v := range set {
			switch x := v.(type) {
			case *Spell:
				built, berr := x.Build()
				if berr != nil && err == nil {
					err = berr
				}
				set[k] = built
			case expr.Expr:
				set[k] = expr.Rewrite(x, fn)
			}
		}
	}
	return err
}

// QueryCommand implements the expr.Query interface.
func (q *Query) QueryCommand() string { return string(q.s.command) }

// Command returns the command of the query.
func (q *Query) Command() Command { return q.s.command }

// Model returns the model of the query.
func (q *Query) Model() *schema.Model { return q.s.model }

// From returns the query selected from, or nil when selecting from the
// model table.
func (q *Query) From() *Query { return q.from }

// Columns returns the selected columns.
func (q *Query) Columns() []expr.Expr { return q.s.columns }

// Where returns the conditions, ANDed together.
func (q *Query) Where() []expr.Expr { return q.s.where }

// Groups returns the GROUP BY list.
func (q *Query) Groups() []expr.Expr { return q.s.groups }

// Having returns the HAVING conditions, ANDed together.
func (q *Query) Having() []expr.Expr { return q.s.having }

// Orders returns the ORDER BY list.
func (q *Query) Orders() []expr.Ordering { return q.s.orders }

// Joins returns the joined tables in declaration order.
func (q *Query) Joins() []*Join { return q.s.joins }

// Limit returns the row count and whether it is set.
func (q *Query) Limit() (int, bool) { return q.s.limit, q.s.limited }

// Offset returns the number of skipped rows.
func (q *Query) Offset() int { return q.s.offset }

// Sets returns the payload of insert, upsert and update queries; bulk
// inserts carry one map per row.
func (q *Query) Sets() []map[string]any { return q.s.sets }

// UniqueKeys returns the explicit conflict target of an upsert.
func (q *Query) UniqueKeys() []string { return q.s.uniqueKeys }

// UpdateOnDuplicate returns the explicit columns updated on conflict.
func (q *Query) UpdateOnDuplicate() []string { return q.s.onConflict }

// Returning returns the columns returned by insert and upsert.
func (q *Query) Returning() []string { return q.s.returning }

// Hints returns the MySQL hints.
func (q *Query) Hints() []Hint { return q.s.hints }

// Grouped reports if the query has a GROUP BY clause.
func (q *Query) Grouped() bool { return len(q.s.groups) > 0 }

// Aggregated reports if any selected column is an aggregate.
func (q *Query) Aggregated() bool {
	for _, c := range q.s.columns {
		if expr.IsAggregate(c) {
			return true
		}
	}
	return false
}

// Tables returns the tables read or written by the query, the base table
// first. Subqueries are included.
func (q *Query) Tables() []string {
	var tables []string
	seen := make(map[string]bool)
	add := func(t string) {
		if !seen[t] {
			seen[t] = true
			tables = append(tables, t)
		}
	}
	add(q.s.model.Table())
	if q.from != nil {
		for _, t := range q.from.Tables() {
			add(t)
		}
	}
	for _, j := range q.s.joins {
		add(j.Model.Table())
	}
	return tables
}
