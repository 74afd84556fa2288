package client

import (
	"fmt"
	"strings"

	"github.com/syssam/grimoire/dialect/sql"
	"github.com/syssam/grimoire/expr"
	"github.com/syssam/grimoire/schema"
	"github.com/syssam/grimoire/schema/field"
	"github.com/syssam/grimoire/spell"
	"github.com/syssam/grimoire/spellbook"
)

// rowSet holds the raw values read from a result, as returned by the
// driver. It is the payload of the result cache.
type rowSet struct {
	Columns []string `msgpack:"columns"`
	Rows    [][]any  `msgpack:"rows"`
}

func readRows(rows sql.Rows) (*rowSet, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("client: reading columns: %w", err)
	}
	rs := &rowSet{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("client: scanning row: %w", err)
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("client: reading rows: %w", err)
	}
	return rs, nil
}

// target is where one result column goes: the record of a qualifier ("" for
// the base model) under the given key.
type target struct {
	qualifier string
	key       string
	field     *field.Descriptor
}

func (t target) decode(v any) (any, error) {
	if t.field == nil {
		if b, ok := v.([]byte); ok {
			return string(b), nil
		}
		return v, nil
	}
	return t.field.Decode(v)
}

// scanner turns the rows of a query into records.
type scanner struct {
	q     *spell.Query
	rules spellbook.Rules
}

func newScanner(q *spell.Query, rules spellbook.Rules) *scanner {
	return &scanner{q: q, rules: rules}
}

// modelOf returns the model of a qualifier. The base model answers to its
// alias and to "".
func (sc *scanner) modelOf(qualifier string) (*schema.Model, string) {
	m := sc.q.Model()
	if qualifier == "" || qualifier == m.TableAlias() {
		return m, ""
	}
	for _, j := range sc.q.Joins() {
		if j.Qualifier == qualifier {
			return j.Model, qualifier
		}
	}
	return nil, qualifier
}

func (sc *scanner) target(qualifier, name string) target {
	m, qual := sc.modelOf(qualifier)
	t := target{qualifier: qual, key: name}
	if m == nil {
		return t
	}
	if fd, ok := m.Attribute(name); ok {
		t.key = fd.Name
		t.field = fd
	}
	return t
}

// layout maps the result columns to targets. Results of joined queries
// are nested by "qualifier:column" names on dialects that cannot nest
// wildcards, and by position otherwise.
func (sc *scanner) layout(names []string) ([]target, error) {
	targets := make([]target, 0, len(names))
	if len(sc.q.Joins()) == 0 {
		for _, name := range names {
			targets = append(targets, sc.target("", name))
		}
		return targets, nil
	}
	if !sc.rules.NestWildcard() {
		for _, name := range names {
			if qual, col, ok := strings.Cut(name, ":"); ok {
				if m, _ := sc.modelOf(qual); m != nil {
					targets = append(targets, sc.target(qual, col))
					continue
				}
			}
			targets = append(targets, sc.target("", name))
		}
		return targets, nil
	}
	return sc.positional(names)
}

// positional lays out the requested columns, then one wildcard segment per
// table without requested columns. A segment ends at a column it already
// holds, or at a column only the model of the next segment has.
func (sc *scanner) positional(names []string) ([]target, error) {
	var (
		targets []target
		owned   = make(map[string]bool)
		seen    = make(map[string]bool)
		i       int
	)
	for _, col := range sc.q.Columns() {
		qual := ownerOf(col)
		if qual != "" {
			owned[qual] = true
		}
		if id, ok := col.(*expr.Identifier); ok {
			k := qual + "." + id.Value
			if seen[k] {
				continue
			}
			seen[k] = true
		}
		if i >= len(names) {
			return nil, fmt.Errorf("client: %d result columns for %d selected", len(names), len(sc.q.Columns()))
		}
		if _, ok := col.(*expr.Identifier); ok {
			targets = append(targets, sc.target(qual, names[i]))
		} else {
			targets = append(targets, target{key: names[i]})
		}
		i++
	}
	if !sc.q.Grouped() && !sc.q.Aggregated() {
		qualifiers := []string{sc.q.Model().TableAlias()}
		for _, j := range sc.q.Joins() {
			qualifiers = append(qualifiers, j.Qualifier)
		}
		var segments []string
		for _, qual := range qualifiers {
			if !owned[qual] {
				segments = append(segments, qual)
			}
		}
		for n, qual := range segments {
			m, _ := sc.modelOf(qual)
			var next *schema.Model
			if n+1 < len(segments) {
				next, _ = sc.modelOf(segments[n+1])
			}
			held := make(map[string]bool)
			for ; i < len(names); i++ {
				name := names[i]
				if held[name] {
					break
				}
				if _, ok := m.Attribute(name); !ok && next != nil {
					if _, ok := next.Attribute(name); ok {
						break
					}
				}
				held[name] = true
				targets = append(targets, sc.target(qual, name))
			}
		}
	}
	if i < len(names) {
		return nil, fmt.Errorf("client: unexpected result column %q", names[i])
	}
	return targets, nil
}

func ownerOf(n expr.Expr) string {
	switch x := n.(type) {
	case *expr.Identifier:
		if len(x.Qualifiers) > 0 {
			return x.Qualifiers[len(x.Qualifiers)-1]
		}
	case *expr.Wildcard:
		if len(x.Qualifiers) > 0 {
			return x.Qualifiers[len(x.Qualifiers)-1]
		}
	}
	return ""
}

// records decodes the rows. Rows of joined queries are merged by the
// primary key of the base model: has-many associations collect their
// records in a slice, other associations hold one record or nil.
func (sc *scanner) records(rs *rowSet) ([]Record, error) {
	targets, err := sc.layout(rs.Columns)
	if err != nil {
		return nil, err
	}
	joins := sc.q.Joins()
	present := make(map[string]bool)
	for _, t := range targets {
		present[t.qualifier] = true
	}
	var (
		out   []Record
		index = make(map[string]Record)
		pk    = sc.q.Model().PrimaryKey()
		seen  = make(map[string]map[string]bool)
	)
	for _, row := range rs.Rows {
		parts := map[string]Record{"": {}}
		for i, t := range targets {
			v, err := t.decode(row[i])
			if err != nil {
				return nil, fmt.Errorf("client: %w", err)
			}
			rec, ok := parts[t.qualifier]
			if !ok {
				rec = Record{}
				parts[t.qualifier] = rec
			}
			rec[t.key] = v
		}
		base := parts[""]
		if len(joins) == 0 {
			out = append(out, base)
			continue
		}
		key, grouped := recordKey(base, pk)
		if grouped {
			if prev, ok := index[key]; ok {
				base = prev
			} else {
				index[key] = base
				out = append(out, base)
			}
		} else {
			out = append(out, base)
		}
		for _, j := range joins {
			if !present[j.Qualifier] {
				continue
			}
			sub := parts[j.Qualifier]
			if !j.HasMany {
				if empty(sub) {
					sub = nil
				}
				base[j.Qualifier] = sub
				continue
			}
			list, _ := base[j.Qualifier].([]Record)
			if list == nil {
				list = []Record{}
			}
			if !empty(sub) {
				dup := false
				if ck, ok := recordKey(sub, j.Model.PrimaryKey()); ok && grouped {
					k := key + "/" + j.Qualifier
					if seen[k] == nil {
						seen[k] = make(map[string]bool)
					}
					dup = seen[k][ck]
					seen[k][ck] = true
				}
				if !dup {
					list = append(list, sub)
				}
			}
			base[j.Qualifier] = list
		}
	}
	return out, nil
}

func recordKey(rec Record, pk string) (string, bool) {
	if pk == "" {
		return "", false
	}
	v, ok := rec[pk]
	if !ok || v == nil {
		return "", false
	}
	return fmt.Sprint(v), true
}

// empty reports if every value of the record is nil, as left by an outer
// join without match.
func empty(rec Record) bool {
	for _, v := range rec {
		if v != nil {
			return false
		}
	}
	return true
}
