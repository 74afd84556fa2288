package spellbook

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/syssam/grimoire"
	"github.com/syssam/grimoire/expr"
	"github.com/syssam/grimoire/schema"
	"github.com/syssam/grimoire/schema/field"
	"github.com/syssam/grimoire/spell"
)

// compiler renders one query. The placeholder counter is shared with the
// compilers of nested subqueries so that numbered placeholders keep
// increasing across the whole statement.
type compiler struct {
	rules   Rules
	q       *spell.Query
	counter *int
	b       strings.Builder
	values  []any
	joined  bool
	aliases map[string]bool
}

func newCompiler(r Rules, q *spell.Query, counter *int) *compiler {
	c := &compiler{
		rules:   r,
		q:       q,
		counter: counter,
		joined:  len(q.Joins()) > 0,
		aliases: make(map[string]bool),
	}
	for _, col := range q.Columns() {
		if a, ok := col.(*expr.Alias); ok {
			c.aliases[a.Value] = true
		}
	}
	return c
}

func (c *compiler) quote(name string) string { return c.rules.QuoteIdent(name) }

func (c *compiler) placeholder() string {
	*c.counter++
	return c.rules.Placeholder(*c.counter)
}

// expr formats the node and collects its literals. The two passes walk the
// node in the same order, so values line up with placeholders.
func (c *compiler) expr(n expr.Expr) (string, error) {
	s, err := c.format(n)
	if err != nil {
		return "", err
	}
	vals, err := c.collectLiteral(n, nil, nil)
	if err != nil {
		return "", err
	}
	c.values = append(c.values, vals...)
	return s, nil
}

// modelOf returns the model bound to a qualifier, or nil if unknown.
func (c *compiler) modelOf(qualifier string) *schema.Model {
	m := c.q.Model()
	if qualifier == "" || qualifier == m.TableAlias() {
		return m
	}
	for _, j := range c.q.Joins() {
		if j.Qualifier == qualifier {
			return j.Model
		}
	}
	return nil
}

func qualifierOf(id *expr.Identifier) string {
	if len(id.Qualifiers) == 0 {
		return ""
	}
	return id.Qualifiers[len(id.Qualifiers)-1]
}

// attribute returns the attribute an identifier resolves to, if any.
func (c *compiler) attribute(id *expr.Identifier) *field.Descriptor {
	m := c.modelOf(qualifierOf(id))
	if m == nil {
		return nil
	}
	fd, _ := m.Attribute(id.Value)
	return fd
}

func (c *compiler) format(n expr.Expr) (string, error) {
	switch x := n.(type) {
	case *expr.Identifier:
		return c.formatIdentifier(x)
	case *expr.Literal:
		return c.formatLiteral(x.Value), nil
	case *expr.Raw:
		return x.Value, nil
	case *expr.Wildcard:
		if len(x.Qualifiers) == 0 {
			return "*", nil
		}
		return c.qualifiers(x.Qualifiers) + ".*", nil
	case *expr.Alias:
		s, err := c.format(x.Arg)
		if err != nil {
			return "", err
		}
		return s + " AS " + c.quote(x.Value), nil
	case *expr.Mod:
		s, err := c.format(x.Arg)
		if err != nil {
			return "", err
		}
		return strings.ToUpper(x.Name) + " " + s, nil
	case *expr.Func:
		return c.formatFunc(x)
	case *expr.Operator:
		return c.formatOperator(x)
	case *expr.TernaryOperator:
		return c.formatTernary(x)
	case *expr.Subquery:
		st, err := c.subquery(x.Query, c.counter)
		if err != nil {
			return "", err
		}
		return "(" + st.SQL + ")", nil
	}
	return "", grimoire.NewCompileError("unexpected node %T", n)
}

func (c *compiler) qualifiers(qs []string) string {
	parts := make([]string, len(qs))
	for i, q := range qs {
		parts[i] = c.quote(q)
	}
	return strings.Join(parts, ".")
}

// formatIdentifier maps attribute names to columns. Bare identifiers in
// joined queries must name a selected alias, the others were qualified
// when the query was built.
func (c *compiler) formatIdentifier(id *expr.Identifier) (string, error) {
	if len(id.Qualifiers) == 0 {
		if c.joined {
			if c.aliases[id.Value] {
				return c.quote(id.Value), nil
			}
			return "", grimoire.NewCompileError("unqualified column %q in joined query", id.Value)
		}
		return c.quote(c.q.Model().Column(id.Value)), nil
	}
	column := id.Value
	if m := c.modelOf(qualifierOf(id)); m != nil {
		column = m.Column(id.Value)
	}
	return c.qualifiers(id.Qualifiers) + "." + c.quote(column), nil
}

// formatLiteral renders NULL inline and lists as parenthesized placeholder
// groups. An empty list renders (NULL), so IN matches nothing; NOT IN
// against an empty list never gets here.
func (c *compiler) formatLiteral(v any) string {
	if v == nil {
		return "NULL"
	}
	if list, ok := listOf(v); ok {
		if len(list) == 0 {
			return "(NULL)"
		}
		ph := make([]string, len(list))
		for i := range list {
			ph[i] = c.placeholder()
		}
		return "(" + strings.Join(ph, ", ") + ")"
	}
	return c.placeholder()
}

func (c *compiler) formatFunc(fn *expr.Func) (string, error) {
	args := make([]string, len(fn.Args))
	for i, a := range fn.Args {
		s, err := c.format(a)
		if err != nil {
			return "", err
		}
		args[i] = s
	}
	s := strings.ToUpper(fn.Name) + "(" + strings.Join(args, ", ")
	if fn.DataType != "" {
		s += " RETURNING " + fn.DataType
	}
	return s + ")", nil
}

func (c *compiler) formatTernary(op *expr.TernaryOperator) (string, error) {
	var parts [3]string
	for i, a := range op.Args {
		s, err := c.operand(op.Name, a, i > 0)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return parts[0] + " " + strings.ToUpper(op.Name) + " " + parts[1] + " AND " + parts[2], nil
}

func (c *compiler) formatOperator(op *expr.Operator) (string, error) {
	switch len(op.Args) {
	case 1:
		return c.formatUnary(op)
	case 2:
	default:
		return "", grimoire.NewCompileError("operator %q expects 2 arguments, got %d", op.Name, len(op.Args))
	}
	if op.Name == expr.OpAnd || op.Name == expr.OpOr {
		return c.formatLogical(op)
	}
	if excludesNothing(op) {
		return "1 = 1", nil
	}
	lhs, err := c.operand(op.Name, op.Args[0], false)
	if err != nil {
		return "", err
	}
	switch rhs := op.Args[1].(type) {
	case *expr.Literal:
		if rhs.Value == nil {
			switch op.Name {
			case "=":
				return lhs + " IS NULL", nil
			case "!=":
				return lhs + " IS NOT NULL", nil
			}
			return "", grimoire.NewCompileError("invalid operator %q against null", op.Name)
		}
		_, isList := listOf(rhs.Value)
		if isList || op.Name == "in" || op.Name == "not in" {
			in, err := inOperator(op.Name)
			if err != nil {
				return "", err
			}
			s := c.formatLiteral(rhs.Value)
			if !isList {
				s = "(" + s + ")"
			}
			return lhs + " " + in + " " + s, nil
		}
	case *expr.Subquery:
		in, err := inOperator(op.Name)
		if err != nil {
			return "", err
		}
		s, err := c.format(rhs)
		if err != nil {
			return "", err
		}
		return lhs + " " + in + " " + s, nil
	}
	rhs, err := c.operand(op.Name, op.Args[1], true)
	if err != nil {
		return "", err
	}
	return lhs + " " + strings.ToUpper(op.Name) + " " + rhs, nil
}

// inOperator maps the operators allowed against lists and subqueries.
// excludesNothing reports whether op is NOT IN against an empty list,
// which holds for every row.
func excludesNothing(op *expr.Operator) bool {
	if len(op.Args) != 2 || (op.Name != "!=" && op.Name != "not in") {
		return false
	}
	lit, ok := op.Args[1].(*expr.Literal)
	if !ok {
		return false
	}
	list, ok := listOf(lit.Value)
	return ok && len(list) == 0
}

func inOperator(name string) (string, error) {
	switch name {
	case "=", "in":
		return "IN", nil
	case "!=", "not in":
		return "NOT IN", nil
	}
	return "", grimoire.NewCompileError("invalid operator %q against list or subquery", name)
}

func (c *compiler) formatUnary(op *expr.Operator) (string, error) {
	arg := op.Args[0]
	s, err := c.format(arg)
	if err != nil {
		return "", err
	}
	_, nested := arg.(*expr.Operator)
	if _, ternary := arg.(*expr.TernaryOperator); ternary {
		nested = true
	}
	if nested {
		s = "(" + s + ")"
	}
	switch op.Name {
	case expr.OpNot:
		return "NOT " + s, nil
	case "-":
		return "-" + s, nil
	}
	return "", grimoire.NewCompileError("unknown unary operator %q", op.Name)
}

// formatLogical parenthesizes children binding looser than the parent, an
// OR inside an AND.
func (c *compiler) formatLogical(op *expr.Operator) (string, error) {
	parts := make([]string, len(op.Args))
	for i, a := range op.Args {
		s, err := c.operand(op.Name, a, false)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return strings.Join(parts, " "+strings.ToUpper(op.Name)+" "), nil
}

// operand formats a child of the named operator, parenthesized when it
// binds looser than its parent. Operators group from the left, so a right
// child of the same level keeps its parentheses too ("a - (b - c)"), and
// only AND and OR chains drop them.
func (c *compiler) operand(parent string, n expr.Expr, right bool) (string, error) {
	s, err := c.format(n)
	if err != nil {
		return "", err
	}
	var name string
	switch x := n.(type) {
	case *expr.Operator:
		if len(x.Args) == 1 {
			return s, nil
		}
		name = x.Name
	case *expr.TernaryOperator:
		name = x.Name
	default:
		return s, nil
	}
	p, cp := expr.Precedence(parent), expr.Precedence(name)
	if p < 0 {
		return s, nil
	}
	if cp > p || (right && cp == p && parent != expr.OpAnd && parent != expr.OpOr) {
		return "(" + s + ")", nil
	}
	return s, nil
}

// collectLiteral appends the values of the node in the order format emits
// their placeholders. desc is the attribute the literals are compared
// with, used to coerce them.
func (c *compiler) collectLiteral(n expr.Expr, desc *field.Descriptor, out []any) ([]any, error) {
	var err error
	switch x := n.(type) {
	case *expr.Literal:
		if x.Value == nil {
			return out, nil
		}
		if list, ok := listOf(x.Value); ok {
			for _, v := range list {
				cv, err := coerce(desc, v)
				if err != nil {
					return nil, err
				}
				out = append(out, cv)
			}
			return out, nil
		}
		v, err := coerce(desc, x.Value)
		if err != nil {
			return nil, err
		}
		return append(out, v), nil
	case *expr.Operator:
		if excludesNothing(x) {
			return out, nil
		}
		var lhs *field.Descriptor
		if id, ok := x.Args[0].(*expr.Identifier); ok && len(x.Args) == 2 && !expr.IsLogical(x) {
			lhs = c.attribute(id)
		}
		for i, a := range x.Args {
			d := lhs
			if i == 0 {
				d = nil
			}
			if out, err = c.collectLiteral(a, d, out); err != nil {
				return nil, err
			}
		}
	case *expr.TernaryOperator:
		var lhs *field.Descriptor
		if id, ok := x.Args[0].(*expr.Identifier); ok {
			lhs = c.attribute(id)
		}
		for i, a := range x.Args {
			d := lhs
			if i == 0 {
				d = nil
			}
			if out, err = c.collectLiteral(a, d, out); err != nil {
				return nil, err
			}
		}
	case *expr.Func:
		for _, a := range x.Args {
			if out, err = c.collectLiteral(a, nil, out); err != nil {
				return nil, err
			}
		}
	case *expr.Alias:
		return c.collectLiteral(x.Arg, desc, out)
	case *expr.Mod:
		return c.collectLiteral(x.Arg, desc, out)
	case *expr.Subquery:
		st, err := c.subquery(x.Query, new(int))
		if err != nil {
			return nil, err
		}
		return append(out, st.Values...), nil
	}
	return out, nil
}

// subquery compiles a nested query with the given placeholder counter.
func (c *compiler) subquery(v expr.Query, counter *int) (*Statement, error) {
	var q *spell.Query
	switch x := v.(type) {
	case *spell.Query:
		q = x
	case *spell.Spell:
		built, err := x.Build()
		if err != nil {
			return nil, err
		}
		q = built
	default:
		return nil, grimoire.NewCompileError("unsupported subquery %T", v)
	}
	if q.Command() != spell.CommandSelect {
		return nil, grimoire.NewCompileError("subquery must be a select, got %s", q.Command())
	}
	return newCompiler(c.rules, q, counter).compile()
}

// coerce converts a literal into the native representation of the
// attribute it is compared with. Objects are bound as JSON.
func coerce(desc *field.Descriptor, v any) (any, error) {
	if v != nil && reflect.TypeOf(v).Kind() == reflect.Map {
		if desc != nil && desc.Type.IsJSON() {
			return desc.Encode(v)
		}
		buf, err := json.Marshal(v)
		if err != nil {
			return nil, grimoire.NewCompileError("encode object literal: %v", err)
		}
		return string(buf), nil
	}
	return desc.Uncast(v), nil
}

func listOf(v any) ([]any, bool) {
	if !expr.IsList(v) {
		return nil, false
	}
	if l, ok := v.([]any); ok {
		return l, true
	}
	rv := reflect.ValueOf(v)
	l := make([]any, rv.Len())
	for i := range l {
		l[i] = rv.Index(i).Interface()
	}
	return l, true
}
