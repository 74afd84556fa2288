package spell

import (
	"fmt"
	"sort"
	"strings"

	"github.com/syssam/grimoire"
	"github.com/syssam/grimoire/expr"
	"github.com/syssam/grimoire/schema"
)

// Command is the kind of statement a Spell compiles into.
type Command string

// List of commands.
const (
	CommandSelect     Command = "select"
	CommandInsert     Command = "insert"
	CommandBulkInsert Command = "bulkInsert"
	CommandUpdate     Command = "update"
	CommandDelete     Command = "delete"
	CommandUpsert     Command = "upsert"
)

// String implements the fmt.Stringer interface.
func (c Command) String() string { return string(c) }

// HintKind is the kind of a MySQL hint.
type HintKind uint8

// List of hint kinds.
const (
	HintOptimizer HintKind = iota
	HintUseIndex
	HintForceIndex
	HintIgnoreIndex
)

// Hint is an optimizer hint (`/*+ ... */`) or an index hint. Dialects
// without hint support ignore them.
type Hint struct {
	Kind    HintKind
	Text    string
	Indexes []string
}

// Spell is the mutable descriptor of one query in construction. Builder
// methods record their errors and return the Spell for chaining; Build
// reports the first of them and produces an immutable Query.
//
// A Spell is not safe for concurrent use.
type Spell struct {
	command    Command
	model      *schema.Model
	registry   *schema.Registry
	from       *Spell
	columns    []expr.Expr
	where      []expr.Expr
	groups     []expr.Expr
	having     []expr.Expr
	orders     []expr.Ordering
	joins      []*Join
	limit      int
	limited    bool
	offset     int
	sets       []map[string]any
	uniqueKeys []string
	onConflict []string
	returning  []string
	hints      []Hint
	scopes     []Scope
	unparanoid bool
	errs       []error
}

// Option configures a Spell.
type Option func(*Spell)

// WithRegistry sets the registry used to resolve association targets.
func WithRegistry(r *schema.Registry) Option {
	return func(s *Spell) {
		s.registry = r
	}
}

// WithScopes appends scopes applied when the spell is built.
func WithScopes(scopes ...Scope) Option {
	return func(s *Spell) {
		s.scopes = append(s.scopes, scopes...)
	}
}

func newSpell(cmd Command, m *schema.Model, opts []Option) *Spell {
	s := &Spell{command: cmd, model: m}
	if m == nil {
		s.errs = append(s.errs, grimoire.NewCompileError("%s without model", cmd))
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select returns a select spell on the model.
func Select(m *schema.Model, opts ...Option) *Spell {
	return newSpell(CommandSelect, m, opts)
}

// Insert returns a spell inserting one row. Keys of values are attribute
// names or column names.
func Insert(m *schema.Model, values map[string]any, opts ...Option) *Spell {
	s := newSpell(CommandInsert, m, opts)
	s.sets = []map[string]any{copyMap(values)}
	return s
}

// BulkInsert returns a spell inserting several rows at once.
func BulkInsert(m *schema.Model, rows []map[string]any, opts ...Option) *Spell {
	s := newSpell(CommandBulkInsert, m, opts)
	if len(rows) == 0 {
		s.errs = append(s.errs, grimoire.NewCompileError("bulk insert into %s without rows", s.modelName()))
	}
	for _, r := range rows {
		s.sets = append(s.sets, copyMap(r))
	}
	return s
}

// Update returns a spell updating the rows matched by its conditions.
func Update(m *schema.Model, values map[string]any, opts ...Option) *Spell {
	s := newSpell(CommandUpdate, m, opts)
	s.sets = []map[string]any{copyMap(values)}
	return s
}

// Delete returns a spell deleting the rows matched by its conditions.
func Delete(m *schema.Model, opts ...Option) *Spell {
	return newSpell(CommandDelete, m, opts)
}

// Upsert returns a spell inserting one row, or updating it when it
// conflicts with an existing one.
func Upsert(m *schema.Model, values map[string]any, opts ...Option) *Spell {
	s := newSpell(CommandUpsert, m, opts)
	s.sets = []map[string]any{copyMap(values)}
	return s
}

// QueryCommand implements the expr.Query interface.
func (s *Spell) QueryCommand() string { return string(s.command) }

// Command returns the command of the spell.
func (s *Spell) Command() Command { return s.command }

// Model returns the model of the spell.
func (s *Spell) Model() *schema.Model { return s.model }

// Err returns the first error recorded by a builder call.
func (s *Spell) Err() error {
	if len(s.errs) > 0 {
		return s.errs[0]
	}
	return nil
}

func (s *Spell) modelName() string {
	if s.model == nil {
		return ""
	}
	return s.model.Name()
}

func (s *Spell) addErr(err error) *Spell {
	if err != nil {
		s.errs = append(s.errs, err)
	}
	return s
}

// Columns appends columns to select. Strings are parsed as comma separated
// lists ("id, count(*) as count"); nodes are used as is.
func (s *Spell) Columns(columns ...any) *Spell {
	list, err := parseList(columns)
	if err != nil {
		return s.addErr(err)
	}
	s.columns = append(s.columns, list...)
	return s
}

// Where appends conditions ANDed with the existing ones. See
// expr.ParseConditions for the accepted forms.
func (s *Spell) Where(cond any, values ...any) *Spell {
	nodes, err := expr.ParseConditions(cond, values...)
	if err != nil {
		return s.addErr(err)
	}
	s.where = append(s.where, nodes...)
	return s
}

// OrWhere combines the existing conditions and the given ones with OR.
func (s *Spell) OrWhere(cond any, values ...any) *Spell {
	nodes, err := expr.ParseConditions(cond, values...)
	if err != nil {
		return s.addErr(err)
	}
	s.where = orConditions(s.where, nodes)
	return s
}

// Having appends HAVING conditions.
func (s *Spell) Having(cond any, values ...any) *Spell {
	nodes, err := expr.ParseConditions(cond, values...)
	if err != nil {
		return s.addErr(err)
	}
	s.having = append(s.having, nodes...)
	return s
}

// OrHaving combines the existing HAVING conditions and the given ones with OR.
func (s *Spell) OrHaving(cond any, values ...any) *Spell {
	nodes, err := expr.ParseConditions(cond, values...)
	if err != nil {
		return s.addErr(err)
	}
	s.having = orConditions(s.having, nodes)
	return s
}

func orConditions(current, nodes []expr.Expr) []expr.Expr {
	switch {
	case len(nodes) == 0:
		return current
	case len(current) == 0:
		return nodes
	}
	return []expr.Expr{expr.Or(expr.And(current...), expr.And(nodes...))}
}

// Order appends orderings. It accepts a string ("created_at desc, id"), a
// node (ascending), or a map from column to "asc" or "desc".
func (s *Spell) Order(order any, values ...any) *Spell {
	switch o := order.(type) {
	case string:
		orders, err := expr.ParseOrders(o, values...)
		if err != nil {
			return s.addErr(err)
		}
		s.orders = append(s.orders, orders...)
	case expr.Expr:
		s.orders = append(s.orders, expr.Ordering{Expr: o})
	case map[string]string:
		keys := make([]string, 0, len(o))
		for k := range o {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			desc := strings.EqualFold(o[k], "desc")
			if !desc && !strings.EqualFold(o[k], "asc") {
				return s.addErr(grimoire.NewParseError(o[k], -1, "unknown order direction for %q", k))
			}
			s.orders = append(s.orders, expr.Ordering{Expr: expr.Ident(k), Desc: desc})
		}
	default:
		return s.addErr(grimoire.NewParseError(fmt.Sprint(order), -1, "unsupported order type %T", order))
	}
	return s
}

// OrderBy appends an ordering on a node.
func (s *Spell) OrderBy(e expr.Expr, desc bool) *Spell {
	s.orders = append(s.orders, expr.Ordering{Expr: e, Desc: desc})
	return s
}

// Group appends GROUP BY columns, parsed like Columns.
func (s *Spell) Group(columns ...any) *Spell {
	list, err := parseList(columns)
	if err != nil {
		return s.addErr(err)
	}
	s.groups = append(s.groups, list...)
	return s
}

// Limit sets the maximum number of rows.
func (s *Spell) Limit(n int) *Spell {
	if n < 0 {
		return s.addErr(grimoire.NewCompileError("negative limit %d", n))
	}
	s.limit, s.limited = n, true
	return s
}

// Offset sets the number of rows to skip. It requires a limit.
func (s *Spell) Offset(n int) *Spell {
	if n < 0 {
		return s.addErr(grimoire.NewCompileError("negative offset %d", n))
	}
	s.offset = n
	return s
}

// From selects from another spell instead of the model table.
func (s *Spell) From(sub *Spell) *Spell {
	if sub == nil {
		return s.addErr(grimoire.NewCompileError("nil subquery"))
	}
	s.from = sub
	return s
}

// Count replaces the columns with COUNT(column) AS count. An empty column
// counts rows.
func (s *Spell) Count(column string) *Spell {
	return s.aggregate("count", "count", column)
}

// Sum replaces the columns with SUM(column) AS sum.
func (s *Spell) Sum(column string) *Spell {
	return s.aggregate("sum", "sum", column)
}

// Average replaces the columns with AVG(column) AS average.
func (s *Spell) Average(column string) *Spell {
	return s.aggregate("avg", "average", column)
}

// Minimum replaces the columns with MIN(column) AS minimum.
func (s *Spell) Minimum(column string) *Spell {
	return s.aggregate("min", "minimum", column)
}

// Maximum replaces the columns with MAX(column) AS maximum.
func (s *Spell) Maximum(column string) *Spell {
	return s.aggregate("max", "maximum", column)
}

func (s *Spell) aggregate(fn, alias, column string) *Spell {
	var arg expr.Expr = &expr.Wildcard{}
	if column != "" && column != "*" {
		e, err := expr.Parse(column)
		if err != nil {
			return s.addErr(err)
		}
		arg = e
	}
	s.columns = []expr.Expr{expr.As(expr.Call(fn, arg), alias)}
	return s
}

// Increment updates the column to `column + by`.
func (s *Spell) Increment(column string, by any) *Spell {
	return s.step("increment", "+", column, by)
}

// Decrement updates the column to `column - by`.
func (s *Spell) Decrement(column string, by any) *Spell {
	return s.step("decrement", "-", column, by)
}

func (s *Spell) step(name, op, column string, by any) *Spell {
	if s.command != CommandUpdate {
		return s.addErr(grimoire.NewCompileError("%s is only supported on update", name))
	}
	key := column
	if s.model != nil {
		if fd, ok := s.model.Attribute(column); ok {
			key = fd.Name
			delete(s.sets[0], fd.Column)
		}
	}
	s.sets[0][key] = expr.Op(op, expr.Ident(key), expr.Lit(by))
	return s
}

// Set adds values to an insert, upsert or update payload.
func (s *Spell) Set(values map[string]any) *Spell {
	if len(s.sets) != 1 || s.command == CommandBulkInsert {
		return s.addErr(grimoire.NewCompileError("set is not supported on %s", s.command))
	}
	for k, v := range values {
		s.sets[0][k] = v
	}
	return s
}

// Returning sets the columns returned by insert and upsert statements on
// dialects supporting RETURNING. No column returns the primary key.
func (s *Spell) Returning(columns ...string) *Spell {
	if len(columns) == 0 && s.model != nil && s.model.PrimaryKey() != "" {
		columns = []string{s.model.PrimaryKey()}
	}
	s.returning = append(s.returning, columns...)
	return s
}

// UniqueKeys sets the conflict target of an upsert.
func (s *Spell) UniqueKeys(columns ...string) *Spell {
	s.uniqueKeys = append(s.uniqueKeys, columns...)
	return s
}

// UpdateOnDuplicate sets the columns updated when an upsert conflicts.
// By default all inserted columns are updated except the sharding key, the
// creation timestamp and the conflict target.
func (s *Spell) UpdateOnDuplicate(columns ...string) *Spell {
	s.onConflict = append(s.onConflict, columns...)
	return s
}

// Optimizer appends an optimizer hint, e.g. "MAX_EXECUTION_TIME(1000)".
func (s *Spell) Optimizer(text string) *Spell {
	s.hints = append(s.hints, Hint{Kind: HintOptimizer, Text: text})
	return s
}

// UseIndex appends a USE INDEX hint.
func (s *Spell) UseIndex(indexes ...string) *Spell {
	return s.indexHint(HintUseIndex, indexes)
}

// ForceIndex appends a FORCE INDEX hint.
func (s *Spell) ForceIndex(indexes ...string) *Spell {
	return s.indexHint(HintForceIndex, indexes)
}

// IgnoreIndex appends an IGNORE INDEX hint.
func (s *Spell) IgnoreIndex(indexes ...string) *Spell {
	return s.indexHint(HintIgnoreIndex, indexes)
}

func (s *Spell) indexHint(kind HintKind, indexes []string) *Spell {
	if len(indexes) == 0 {
		return s.addErr(grimoire.NewCompileError("index hint without index"))
	}
	s.hints = append(s.hints, Hint{Kind: kind, Indexes: indexes})
	return s
}

// Scope appends a scope applied when the spell is built.
func (s *Spell) Scope(fn Scope) *Spell {
	s.scopes = append(s.scopes, fn)
	return s
}

// Unscoped drops every scope, including the soft delete filter.
func (s *Spell) Unscoped() *Spell {
	s.scopes = nil
	s.unparanoid = true
	return s
}

// Unparanoid drops the soft delete filter only.
func (s *Spell) Unparanoid() *Spell {
	s.unparanoid = true
	return s
}

func parseList(items []any) ([]expr.Expr, error) {
	var list []expr.Expr
	for _, item := range items {
		switch x := item.(type) {
		case string:
			l, err := expr.ParseList(x)
			if err != nil {
				return nil, err
			}
			list = append(list, l...)
		case []string:
			for _, c := range x {
				l, err := expr.ParseList(c)
				if err != nil {
					return nil, err
				}
				list = append(list, l...)
			}
		case expr.Expr:
			list = append(list, x)
		default:
			return nil, grimoire.NewParseError(fmt.Sprint(item), -1, "unsupported column type %T", item)
		}
	}
	return list, nil
}

func copyMap(m map[string]any) map[string]any {
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Clone returns a copy of the spell, errors included. Changes made to
// either spell do not affect the other.
func (s *Spell) Clone() *Spell {
	c := s.clone()
	c.errs = append([]error(nil), s.errs...)
	return c
}

// clone returns a copy of the spell sharing its immutable nodes.
func (s *Spell) clone() *Spell {
	c := *s
	c.columns = append([]expr.Expr(nil), s.columns...)
	c.where = append([]expr.Expr(nil), s.where...)
	c.groups = append([]expr.Expr(nil), s.groups...)
	c.having = append([]expr.Expr(nil), s.having...)
	c.orders = append([]expr.Ordering(nil), s.orders...)
	c.joins = make([]*Join, len(s.joins))
	for i, j := range s.joins {
		jc := *j
		c.joins[i] = &jc
	}
	c.sets = make([]map[string]any, len(s.sets))
	for i, set := range s.sets {
		c.sets[i] = copyMap(set)
	}
	c.uniqueKeys = append([]string(nil), s.uniqueKeys...)
	c.onConflict = append([]string(nil), s.onConflict...)
	c.returning = append([]string(nil), s.returning...)
	c.hints = append([]Hint(nil), s.hints...)
	c.scopes = append([]Scope(nil), s.scopes...)
	c.errs = nil
	return &c
}
