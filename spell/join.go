package spell

import (
	"github.com/syssam/grimoire"
	"github.com/syssam/grimoire/expr"
	"github.com/syssam/grimoire/schema"
	"github.com/syssam/grimoire/schema/edge"
)

// JoinKind is the SQL join type.
type JoinKind string

// List of join kinds.
const (
	JoinLeft  JoinKind = "LEFT JOIN"
	JoinInner JoinKind = "INNER JOIN"
)

// Join is one joined table, keyed by its qualifier.
type Join struct {
	Qualifier string
	Model     *schema.Model
	On        expr.Expr
	Kind      JoinKind
	// HasMany is set for has-many associations, which multiply the rows of
	// the base table.
	HasMany bool
}

// With joins the named associations of the model. Each association is
// qualified by its name and joined with LEFT JOIN.
func (s *Spell) With(names ...string) *Spell {
	for _, name := range names {
		if err := s.with(name); err != nil {
			return s.addErr(err)
		}
	}
	return s
}

func (s *Spell) with(name string) error {
	if s.model == nil {
		return nil
	}
	ed, ok := s.model.Edge(name)
	if !ok {
		return grimoire.NewCompileError("unknown association %q on %s", name, s.model.Name())
	}
	if s.registry == nil {
		return grimoire.NewCompileError("association %q on %s requires a registry", name, s.model.Name())
	}
	target, err := s.registry.Lookup(ed.Type)
	if err != nil {
		return err
	}
	base := s.model.TableAlias()
	var on expr.Expr
	switch ed.Kind {
	case edge.KindBelongsTo:
		on = expr.Eq(qualified(base, ed.ForeignKey), qualified(name, target.PrimaryKey()))
	default:
		on = expr.Eq(qualified(base, s.model.PrimaryKey()), qualified(name, ed.ForeignKey))
	}
	if target.Paranoid() {
		on = expr.And(on, expr.Eq(qualified(name, target.DeletedAt()), expr.Lit(nil)))
	}
	return s.join(&Join{
		Qualifier: name,
		Model:     target,
		On:        on,
		Kind:      JoinLeft,
		HasMany:   ed.Kind == edge.KindHasMany,
	})
}

// Join left joins the model, qualified by its table alias. The on condition
// accepts the forms of Where.
func (s *Spell) Join(m *schema.Model, on any, values ...any) *Spell {
	return s.joinModel(JoinLeft, m, on, values)
}

// InnerJoin inner joins the model, qualified by its table alias.
func (s *Spell) InnerJoin(m *schema.Model, on any, values ...any) *Spell {
	return s.joinModel(JoinInner, m, on, values)
}

func (s *Spell) joinModel(kind JoinKind, m *schema.Model, on any, values []any) *Spell {
	if m == nil {
		return s.addErr(grimoire.NewCompileError("join without model"))
	}
	nodes, err := expr.ParseConditions(on, values...)
	if err != nil {
		return s.addErr(err)
	}
	if len(nodes) == 0 {
		return s.addErr(grimoire.NewCompileError("join %s without condition", m.Name()))
	}
	return s.addErr(s.join(&Join{Qualifier: m.TableAlias(), Model: m, On: expr.And(nodes...), Kind: kind}))
}

func (s *Spell) join(j *Join) error {
	if s.model != nil && j.Qualifier == s.model.TableAlias() {
		return grimoire.NewCompileError("join qualifier %q collides with the base table", j.Qualifier)
	}
	for _, existing := range s.joins {
		if existing.Qualifier == j.Qualifier {
			return grimoire.NewCompileError("duplicate join qualifier %q", j.Qualifier)
		}
	}
	s.joins = append(s.joins, j)
	return nil
}

func qualified(qualifier, name string) *expr.Identifier {
	return &expr.Identifier{Value: name, Qualifiers: []string{qualifier}}
}

// qualify attaches the base table alias to every bare identifier naming an
// attribute of the base model. Qualified identifiers are left as is, so
// running it again changes nothing.
func (s *Spell) qualify() {
	if len(s.joins) == 0 {
		return
	}
	alias := s.model.TableAlias()
	fn := func(n expr.Expr) expr.Expr {
		if id, ok := n.(*expr.Identifier); ok && len(id.Qualifiers) == 0 {
			if _, ok := s.model.Attribute(id.Value); ok {
				id.Qualifiers = []string{alias}
			}
		}
		return n
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
	orders := make([]expr.Ordering, len(s.orders))
	for i, o := range s.orders {
		orders[i] = expr.Ordering{Expr: expr.Rewrite(o.Expr, fn), Desc: o.Desc}
	}
	s.orders = orders
}
