package spellbook

import (
	"sort"
	"strings"

	"github.com/syssam/grimoire"
	"github.com/syssam/grimoire/expr"
	"github.com/syssam/grimoire/schema"
	"github.com/syssam/grimoire/schema/field"
)

// column is one written column of an insert or update.
type column struct {
	name   string // Attribute name, or the key when not an attribute.
	column string
	desc   *field.Descriptor
}

func (col column) lookup(set map[string]any) (any, bool) {
	if v, ok := set[col.name]; ok {
		return v, true
	}
	v, ok := set[col.column]
	return v, ok
}

// columnsOf returns the union of the keys of the sets: attributes in
// declaration order, then unknown keys sorted. Virtual attributes are
// dropped.
func columnsOf(m *schema.Model, sets []map[string]any) []column {
	var (
		cols []column
		rest []string
		seen = make(map[string]bool)
	)
	for _, fd := range m.Attributes() {
		if fd.Virtual {
			continue
		}
		col := column{name: fd.Name, column: fd.Column, desc: fd}
		for _, set := range sets {
			if _, ok := col.lookup(set); ok {
				cols = append(cols, col)
				break
			}
		}
	}
	for _, set := range sets {
		for k := range set {
			if _, ok := m.Attribute(k); ok || seen[k] {
				continue
			}
			seen[k] = true
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		cols = append(cols, column{name: k, column: k})
	}
	return cols
}

// value renders one written value: nodes and subqueries are formatted in
// place, everything else is encoded and bound.
func (c *compiler) value(col column, v any) (string, error) {
	switch x := v.(type) {
	case expr.Expr:
		return c.expr(x)
	case expr.Query:
		return c.expr(&expr.Subquery{Query: x})
	}
	enc, err := col.desc.Encode(v)
	if err != nil {
		return "", grimoire.NewCompileError("%v", err)
	}
	c.values = append(c.values, enc)
	return c.placeholder(), nil
}

func (c *compiler) compileInsert(upsert bool) error {
	q := c.q
	m := q.Model()
	sets := q.Sets()
	cols := columnsOf(m, sets)
	if len(cols) == 0 {
		return grimoire.NewCompileError("insert into %s without values", m.Name())
	}
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = c.quote(col.column)
	}
	c.b.WriteString("INSERT INTO " + c.quote(m.Table()) + " (" + strings.Join(names, ", ") + ") VALUES ")
	for i, set := range sets {
		if i > 0 {
			c.b.WriteString(", ")
		}
		row := make([]string, len(cols))
		for j, col := range cols {
			v, _ := col.lookup(set)
			s, err := c.value(col, v)
			if err != nil {
				return err
			}
			row[j] = s
		}
		c.b.WriteString("(" + strings.Join(row, ", ") + ")")
	}
	if upsert {
		keys := c.conflictKeys(cols)
		clause, err := c.rules.Upsert(keys, c.updateColumns(cols, keys), m.PrimaryColumn())
		if err != nil {
			return err
		}
		c.b.WriteString(" " + clause)
	}
	c.returning()
	return nil
}

// conflictKeys returns the conflict target of an upsert: the explicit
// unique keys, else the primary key if inserted, else the inserted unique
// attributes, else the primary key.
func (c *compiler) conflictKeys(cols []column) []string {
	m := c.q.Model()
	if keys := c.q.UniqueKeys(); len(keys) > 0 {
		out := make([]string, len(keys))
		for i, k := range keys {
			out[i] = m.Column(k)
		}
		return out
	}
	pk := m.PrimaryColumn()
	var unique []string
	for _, col := range cols {
		switch {
		case col.desc == nil:
		case col.column == pk:
			return []string{pk}
		case col.desc.Unique:
			unique = append(unique, col.column)
		}
	}
	if len(unique) > 0 {
		return unique
	}
	if pk != "" {
		return []string{pk}
	}
	return nil
}

// updateColumns returns the columns updated on conflict: the explicit
// list, else every inserted column but the sharding key, the creation
// timestamp and the conflict target.
func (c *compiler) updateColumns(cols []column, keys []string) []string {
	m := c.q.Model()
	if explicit := c.q.UpdateOnDuplicate(); len(explicit) > 0 {
		out := make([]string, len(explicit))
		for i, k := range explicit {
			out[i] = m.Column(k)
		}
		return out
	}
	skip := map[string]bool{}
	for _, k := range keys {
		skip[k] = true
	}
	if key := m.ShardingKey(); key != "" {
		skip[m.Column(key)] = true
	}
	if created := m.CreatedAt(); created != "" {
		skip[m.Column(created)] = true
	}
	var out []string
	for _, col := range cols {
		if !skip[col.column] {
			out = append(out, col.column)
		}
	}
	return out
}

func (c *compiler) compileUpdate() error {
	q := c.q
	m := q.Model()
	var set map[string]any
	if sets := q.Sets(); len(sets) > 0 {
		set = sets[0]
	}
	cols := columnsOf(m, []map[string]any{set})
	if len(cols) == 0 {
		return grimoire.NewEmptySetError(m.Name())
	}
	c.b.WriteString("UPDATE ")
	c.optimizerHints()
	c.b.WriteString(c.quote(m.Table()) + " SET ")
	for i, col := range cols {
		if i > 0 {
			c.b.WriteString(", ")
		}
		v, _ := col.lookup(set)
		s, err := c.value(col, v)
		if err != nil {
			return err
		}
		c.b.WriteString(c.quote(col.column) + " = " + s)
	}
	if err := c.clause(" WHERE ", q.Where()); err != nil {
		return err
	}
	c.returning()
	return nil
}

func (c *compiler) compileDelete() error {
	c.b.WriteString("DELETE ")
	c.optimizerHints()
	c.b.WriteString("FROM " + c.quote(c.q.Model().Table()))
	if err := c.clause(" WHERE ", c.q.Where()); err != nil {
		return err
	}
	c.returning()
	return nil
}

func (c *compiler) returning() {
	cols := c.q.Returning()
	if len(cols) == 0 || !c.rules.Returning() {
		return
	}
	names := make([]string, len(cols))
	for i, col := range cols {
		if col == "*" {
			names[i] = col
			continue
		}
		names[i] = c.quote(c.q.Model().Column(col))
	}
	c.b.WriteString(" RETURNING " + strings.Join(names, ", "))
}
