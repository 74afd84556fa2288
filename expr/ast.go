package expr

import (
	"reflect"
	"strings"
)

// Expr is a node of the expression tree. The set of implementations is
// closed: Identifier, Literal, Func, Operator, TernaryOperator, Alias,
// Wildcard, Mod, Raw and Subquery.
type Expr interface {
	node()
}

// Query is implemented by query builders that can be nested into another
// query, either as the source table or as the right-hand side of IN.
type Query interface {
	QueryCommand() string
}

type (
	// Identifier references a column, optionally qualified by table aliases.
	Identifier struct {
		Value      string
		Qualifiers []string
	}

	// Literal holds a value destined for parameterization: a scalar, a
	// []any list, nil, or a time.
	Literal struct {
		Value any
	}

	// Func is an SQL function call. DataType is only used by JSON_VALUE to
	// render `RETURNING <type>`.
	Func struct {
		Name     string
		Args     []Expr
		DataType string
	}

	// Operator is a unary (not, -) or binary operator.
	Operator struct {
		Name string
		Args []Expr
	}

	// TernaryOperator is `between` or `not between`.
	TernaryOperator struct {
		Name string
		Args [3]Expr
	}

	// Alias renames its argument, `expr AS value`.
	Alias struct {
		Value string
		Arg   Expr
	}

	// Wildcard selects all columns, optionally of one qualifier.
	Wildcard struct {
		Qualifiers []string
	}

	// Mod is a modifier keyword applied to its argument, e.g. DISTINCT.
	Mod struct {
		Name string
		Arg  Expr
	}

	// Raw is passed through to the SQL text as is and is never parameterized.
	Raw struct {
		Value string
	}

	// Subquery embeds another query.
	Subquery struct {
		Query Query
	}
)

func (*Identifier) node()      {}
func (*Literal) node()         {}
func (*Func) node()            {}
func (*Operator) node()        {}
func (*TernaryOperator) node() {}
func (*Alias) node()           {}
func (*Wildcard) node()        {}
func (*Mod) node()             {}
func (*Raw) node()             {}
func (*Subquery) node()        {}

// Logical operator names.
const (
	OpAnd = "and"
	OpOr  = "or"
	OpNot = "not"
)

// precedences lists operators from the tightest binding to the loosest.
var precedences = [][]string{
	{"not", "!"},
	{"*", "/", "%"},
	{"+", "-"},
	{"=", "!=", ">", ">=", "<", "<=", "like", "not like", "in", "not in"},
	{"between", "not between"},
	{"and"},
	{"or"},
}

// Precedence returns the binding level of an operator; lower binds tighter.
// Unknown operators return -1.
func Precedence(op string) int {
	for i, ops := range precedences {
		for _, o := range ops {
			if o == op {
				return i
			}
		}
	}
	return -1
}

// IsLogical reports if the node is an and/or/not operator.
func IsLogical(e Expr) bool {
	op, ok := e.(*Operator)
	if !ok {
		return false
	}
	switch op.Name {
	case OpAnd, OpOr, OpNot:
		return true
	}
	return false
}

var aggregators = map[string]struct{}{
	"count": {},
	"sum":   {},
	"avg":   {},
	"min":   {},
	"max":   {},
}

// IsAggregate reports if the node is an aggregate function call, or an
// alias or modifier of one.
func IsAggregate(e Expr) bool {
	switch x := e.(type) {
	case *Func:
		_, ok := aggregators[strings.ToLower(x.Name)]
		return ok
	case *Alias:
		return IsAggregate(x.Arg)
	case *Mod:
		return IsAggregate(x.Arg)
	}
	return false
}

// Ident returns an identifier; dots separate qualifiers, so "posts.title"
// is the title column qualified by posts.
func Ident(name string) *Identifier {
	parts := strings.Split(name, ".")
	id := &Identifier{Value: parts[len(parts)-1]}
	if len(parts) > 1 {
		id.Qualifiers = parts[:len(parts)-1]
	}
	return id
}

// Lit returns a literal. Slices other than []byte are normalized to []any.
func Lit(v any) *Literal {
	return &Literal{Value: normalize(v)}
}

// RawSQL returns a raw passthrough node.
func RawSQL(s string) *Raw {
	return &Raw{Value: s}
}

// Call returns a function call node.
func Call(name string, args ...Expr) *Func {
	return &Func{Name: name, Args: args}
}

// JSONValue returns a JSON_VALUE(column, path RETURNING dataType) node. The
// path is rendered as a string constant, MySQL rejects bound paths.
func JSONValue(column Expr, path string, dataType string) *Func {
	quoted := "'" + strings.ReplaceAll(strings.ReplaceAll(path, `\`, `\\`), "'", "''") + "'"
	return &Func{Name: "json_value", Args: []Expr{column, RawSQL(quoted)}, DataType: dataType}
}

// As returns an alias node.
func As(e Expr, alias string) *Alias {
	return &Alias{Value: alias, Arg: e}
}

// Op returns an operator node.
func Op(name string, args ...Expr) *Operator {
	return &Operator{Name: name, Args: args}
}

// Eq returns `left = right`.
func Eq(left, right Expr) *Operator {
	return Op("=", left, right)
}

// Not returns the negation of e.
func Not(e Expr) *Operator {
	return Op(OpNot, e)
}

// And folds the nodes into left-nested `and` operators. A single node is
// returned as is, no node yields nil.
func And(nodes ...Expr) Expr {
	return fold(OpAnd, nodes)
}

// Or folds the nodes into left-nested `or` operators.
func Or(nodes ...Expr) Expr {
	return fold(OpOr, nodes)
}

func fold(op string, nodes []Expr) Expr {
	if len(nodes) == 0 {
		return nil
	}
	acc := nodes[0]
	for _, n := range nodes[1:] {
		acc = Op(op, acc, n)
	}
	return acc
}

// IsList reports if v is a list value, i.e. a slice other than []byte.
func IsList(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.([]byte); ok {
		return false
	}
	return reflect.ValueOf(v).Kind() == reflect.Slice
}

func normalize(v any) any {
	if !IsList(v) {
		return v
	}
	if l, ok := v.([]any); ok {
		return l
	}
	rv := reflect.ValueOf(v)
	l := make([]any, rv.Len())
	for i := range l {
		l[i] = rv.Index(i).Interface()
	}
	return l
}
