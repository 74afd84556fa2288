package spellbook

import (
	"strconv"
	"strings"

	"github.com/syssam/grimoire/expr"
	"github.com/syssam/grimoire/spell"
)

func (c *compiler) compileSelect() error {
	q := c.q
	where, orders := q.Where(), q.Orders()
	limit, limited := q.Limit()
	offset := q.Offset()

	// A has-many join multiplies the base rows; paginate the base table in
	// a subquery so LIMIT counts base rows.
	var baseWhere []expr.Expr
	var baseOrders []expr.Ordering
	paginate := c.joined && hasMany(q) && (limited || offset > 0)
	if paginate {
		alias := q.Model().TableAlias()
		where = nil
		for _, cond := range q.Where() {
			if onlyQualifiedBy(cond, alias) {
				baseWhere = append(baseWhere, cond)
			} else {
				where = append(where, cond)
			}
		}
		for _, o := range q.Orders() {
			if onlyQualifiedBy(o.Expr, alias) {
				baseOrders = append(baseOrders, o)
			}
		}
	}

	c.b.WriteString("SELECT ")
	c.optimizerHints()
	var (
		columns string
		err     error
	)
	if c.joined {
		columns, err = c.joinedColumns()
	} else {
		columns, err = c.columnList(q.Columns())
		if columns == "" {
			columns = "*"
		}
	}
	if err != nil {
		return err
	}
	c.b.WriteString(columns)
	c.b.WriteString(" FROM ")

	m := q.Model()
	switch {
	case paginate:
		c.b.WriteString("(SELECT * FROM ")
		c.b.WriteString(c.quote(m.Table()) + " AS " + c.quote(m.TableAlias()))
		c.indexHints()
		if err := c.clause(" WHERE ", baseWhere); err != nil {
			return err
		}
		if err := c.orderBy(baseOrders); err != nil {
			return err
		}
		c.limit(limit, limited, offset)
		c.b.WriteString(") AS " + c.quote(m.TableAlias()))
		limited, offset = false, 0
	case q.From() != nil:
		st, err := newCompiler(c.rules, q.From(), c.counter).compile()
		if err != nil {
			return err
		}
		c.values = append(c.values, st.Values...)
		c.b.WriteString("(" + st.SQL + ") AS " + c.quote(m.TableAlias()))
	case c.joined:
		c.b.WriteString(c.quote(m.Table()) + " AS " + c.quote(m.TableAlias()))
		c.indexHints()
	default:
		c.b.WriteString(c.quote(m.Table()))
		c.indexHints()
	}
	for _, j := range q.Joins() {
		on, err := c.expr(j.On)
		if err != nil {
			return err
		}
		c.b.WriteString(" " + string(j.Kind) + " " + c.quote(j.Model.Table()) + " AS " + c.quote(j.Qualifier) + " ON " + on)
	}
	if err := c.clause(" WHERE ", where); err != nil {
		return err
	}
	if groups := q.Groups(); len(groups) > 0 {
		s, err := c.columnList(groups)
		if err != nil {
			return err
		}
		c.b.WriteString(" GROUP BY " + s)
	}
	if err := c.clause(" HAVING ", q.Having()); err != nil {
		return err
	}
	if err := c.orderBy(orders); err != nil {
		return err
	}
	c.limit(limit, limited, offset)
	return nil
}

// clause writes the conditions ANDed together. A top-level OR is
// parenthesized when it is not alone.
func (c *compiler) clause(keyword string, conds []expr.Expr) error {
	if len(conds) == 0 {
		return nil
	}
	parts := make([]string, len(conds))
	for i, cond := range conds {
		s, err := c.expr(cond)
		if err != nil {
			return err
		}
		if op, ok := cond.(*expr.Operator); ok && op.Name == expr.OpOr && len(conds) > 1 {
			s = "(" + s + ")"
		}
		parts[i] = s
	}
	c.b.WriteString(keyword + strings.Join(parts, " AND "))
	return nil
}

func (c *compiler) orderBy(orders []expr.Ordering) error {
	if len(orders) == 0 {
		return nil
	}
	parts := make([]string, len(orders))
	for i, o := range orders {
		s, err := c.expr(o.Expr)
		if err != nil {
			return err
		}
		if o.Desc {
			s += " DESC"
		}
		parts[i] = s
	}
	c.b.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	return nil
}

func (c *compiler) limit(limit int, limited bool, offset int) {
	if limited {
		c.b.WriteString(" LIMIT " + strconv.Itoa(limit))
	}
	if offset > 0 {
		c.b.WriteString(" OFFSET " + strconv.Itoa(offset))
	}
}

// columnList formats a comma separated list. Identical entries without
// parameters are emitted once.
func (c *compiler) columnList(nodes []expr.Expr) (string, error) {
	var (
		parts []string
		seen  = make(map[string]bool)
	)
	for _, n := range nodes {
		if !hasParams(n) {
			s, err := c.format(n)
			if err != nil {
				return "", err
			}
			if seen[s] {
				continue
			}
			seen[s] = true
			parts = append(parts, s)
			continue
		}
		s, err := c.expr(n)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", "), nil
}

// joinedColumns lists the requested columns, then a wildcard for every
// table without requested columns. The wildcard is withheld from grouped
// or aggregated queries. Dialects unable to nest wildcard results get the
// columns one by one, aliased "qualifier:column".
func (c *compiler) joinedColumns() (string, error) {
	q := c.q
	owned := make(map[string]bool)
	var parts []string
	seen := make(map[string]bool)
	for _, col := range q.Columns() {
		if o := owner(col); o != "" {
			owned[o] = true
		}
		s, err := c.expr(col)
		if err != nil {
			return "", err
		}
		if id, ok := col.(*expr.Identifier); ok && !c.rules.NestWildcard() {
			s += " AS " + c.quote(qualifierOf(id)+":"+c.modelColumn(id))
		}
		if !hasParams(col) {
			if seen[s] {
				continue
			}
			seen[s] = true
		}
		parts = append(parts, s)
	}
	if !q.Grouped() && !q.Aggregated() {
		qualifiers := []string{q.Model().TableAlias()}
		for _, j := range q.Joins() {
			qualifiers = append(qualifiers, j.Qualifier)
		}
		for _, qual := range qualifiers {
			if owned[qual] {
				continue
			}
			if c.rules.NestWildcard() {
				parts = append(parts, c.quote(qual)+".*")
				continue
			}
			for _, col := range c.modelOf(qual).Columns() {
				parts = append(parts, c.quote(qual)+"."+c.quote(col)+" AS "+c.quote(qual+":"+col))
			}
		}
	}
	if len(parts) == 0 {
		return "*", nil
	}
	return strings.Join(parts, ", "), nil
}

func (c *compiler) modelColumn(id *expr.Identifier) string {
	if m := c.modelOf(qualifierOf(id)); m != nil {
		return m.Column(id.Value)
	}
	return id.Value
}

// owner returns the qualifier a selected column belongs to, or "" for
// expressions spanning tables.
func owner(n expr.Expr) string {
	switch x := n.(type) {
	case *expr.Identifier:
		if len(x.Qualifiers) > 0 {
			return x.Qualifiers[0]
		}
	case *expr.Wildcard:
		if len(x.Qualifiers) > 0 {
			return x.Qualifiers[0]
		}
	case *expr.Alias:
		return owner(x.Arg)
	}
	return ""
}

func (c *compiler) optimizerHints() {
	if !c.rules.Hints() {
		return
	}
	var texts []string
	for _, h := range c.q.Hints() {
		if h.Kind == spell.HintOptimizer {
			texts = append(texts, h.Text)
		}
	}
	if len(texts) > 0 {
		c.b.WriteString("/*+ " + strings.Join(texts, " ") + " */ ")
	}
}

func (c *compiler) indexHints() {
	if !c.rules.Hints() {
		return
	}
	for _, h := range c.q.Hints() {
		var kind string
		switch h.Kind {
		case spell.HintUseIndex:
			kind = "USE INDEX"
		case spell.HintForceIndex:
			kind = "FORCE INDEX"
		case spell.HintIgnoreIndex:
			kind = "IGNORE INDEX"
		default:
			continue
		}
		names := make([]string, len(h.Indexes))
		for i, idx := range h.Indexes {
			names[i] = c.quote(idx)
		}
		c.b.WriteString(" " + kind + " (" + strings.Join(names, ", ") + ")")
	}
}

func hasMany(q *spell.Query) bool {
	for _, j := range q.Joins() {
		if j.HasMany {
			return true
		}
	}
	return false
}

// onlyQualifiedBy reports if every identifier of the node is qualified by
// the given alias.
func onlyQualifiedBy(n expr.Expr, alias string) bool {
	ok := true
	expr.Walk(n, func(e expr.Expr) bool {
		if id, isID := e.(*expr.Identifier); isID && (len(id.Qualifiers) == 0 || id.Qualifiers[0] != alias) {
			ok = false
		}
		return ok
	})
	return ok
}

// hasParams reports if formatting the node emits placeholders.
func hasParams(n expr.Expr) bool {
	found := false
	expr.Walk(n, func(e expr.Expr) bool {
		switch x := e.(type) {
		case *expr.Literal:
			if x.Value != nil {
				found = true
			}
		case *expr.Subquery:
			found = true
		}
		return !found
	})
	return found
}
