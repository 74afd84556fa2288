package expr

import (
	"fmt"
	"sort"
	"strings"

	"github.com/syssam/grimoire"
)

// Cond is the object form of a condition. Keys are column names, optionally
// qualified ("comments.content"), or the logical keys $and, $or and $not.
//
//	expr.Cond{"title": "Leah", "id": expr.Cond{"$gt": 1}}
type Cond map[string]any

// Condition is the classified value of one column key of a Cond. It is
// either an Equality or one or more Comparisons, decided once by Classify.
type Condition interface {
	condition()
}

// Equality compares the column with a value: lists imply IN and nil
// implies IS NULL.
type Equality struct {
	Value any
}

// Comparison applies one of the $-operators to the column.
type Comparison struct {
	Op    string
	Value any
}

func (Equality) condition()   {}
func (Comparison) condition() {}

// operators maps the recognized operator keys to SQL operators, in the order
// they are emitted when an object carries several of them.
var operators = []struct{ key, op string }{
	{"$eq", "="},
	{"$ne", "!="},
	{"$gt", ">"},
	{"$gte", ">="},
	{"$lt", "<"},
	{"$lte", "<="},
	{"$in", "in"},
	{"$nin", "not in"},
	{"$notIn", "not in"},
	{"$like", "like"},
	{"$notLike", "not like"},
	{"$between", "between"},
	{"$notBetween", "not between"},
}

func operatorOf(key string) (string, bool) {
	for _, o := range operators {
		if o.key == key {
			return o.op, true
		}
	}
	return "", false
}

// Logical keys of object conditions.
const (
	KeyAnd = "$and"
	KeyOr  = "$or"
	KeyNot = "$not"
)

// ParseConditions turns condition input into a list of nodes to be ANDed
// together. The input is one of:
//
//   - a string, optionally with `?` placeholders bound to values
//   - a Cond or map[string]any object
//   - an Expr, used as is
func ParseConditions(input any, values ...any) ([]Expr, error) {
	switch x := input.(type) {
	case nil:
		return nil, nil
	case string:
		e, err := Parse(x, values...)
		if err != nil {
			return nil, err
		}
		return []Expr{e}, nil
	case Expr:
		if len(values) > 0 {
			return nil, grimoire.NewParseError("", -1, "unexpected values for expression condition")
		}
		return []Expr{x}, nil
	}
	obj, ok := asObject(input)
	if !ok {
		return nil, grimoire.NewParseError(fmt.Sprint(input), -1, "unsupported condition type %T", input)
	}
	if len(values) > 0 {
		return nil, grimoire.NewParseError("", -1, "unexpected values for object condition")
	}
	return parseObject(obj)
}

// Classify decides if the value of a column key is an operator object or
// a plain value. An object qualifies as operators only if every key is a
// recognized operator; objects without $-keys are compared as values, and
// objects mixing both or carrying unknown $-keys are rejected.
func Classify(v any) ([]Condition, error) {
	obj, ok := asObject(v)
	if !ok {
		return []Condition{Equality{Value: v}}, nil
	}
	var ops, plain []string
	for k := range obj {
		if strings.HasPrefix(k, "$") {
			ops = append(ops, k)
		} else {
			plain = append(plain, k)
		}
	}
	switch {
	case len(ops) == 0:
		return []Condition{Equality{Value: v}}, nil
	case len(plain) > 0:
		sort.Strings(plain)
		return nil, grimoire.NewParseError(fmt.Sprint(v), -1, "operator object mixes operators with key %q", plain[0])
	}
	for _, k := range ops {
		if _, ok := operatorOf(k); !ok {
			return nil, grimoire.NewParseError(fmt.Sprint(v), -1, "unknown operator %q", k)
		}
	}
	conds := make([]Condition, 0, len(ops))
	for _, o := range operators {
		if val, ok := obj[o.key]; ok {
			conds = append(conds, Comparison{Op: o.key, Value: val})
		}
	}
	return conds, nil
}

// parseObject emits column keys in lexical order, then logical keys.
func parseObject(obj map[string]any) ([]Expr, error) {
	var columns, logical []string
	for k := range obj {
		switch {
		case k == KeyAnd || k == KeyOr || k == KeyNot:
			logical = append(logical, k)
		case strings.HasPrefix(k, "$"):
			return nil, grimoire.NewParseError(k, -1, "unknown logical operator")
		default:
			columns = append(columns, k)
		}
	}
	sort.Strings(columns)
	sort.Strings(logical)
	var nodes []Expr
	for _, k := range columns {
		id, err := columnKey(k)
		if err != nil {
			return nil, err
		}
		conds, err := Classify(obj[k])
		if err != nil {
			return nil, err
		}
		var parts []Expr
		for _, c := range conds {
			e, err := compare(id, c)
			if err != nil {
				return nil, err
			}
			parts = append(parts, e)
		}
		nodes = append(nodes, And(parts...))
	}
	for _, k := range logical {
		e, err := parseLogicalKey(k, obj[k])
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, e)
	}
	return nodes, nil
}

// parseLogicalKey handles $and, $or and $not. A list value combines its
// objects, each object being the AND of its own keys; an object value
// combines its keys directly.
func parseLogicalKey(key string, v any) (Expr, error) {
	var nodes []Expr
	if list, ok := asObjects(v); ok {
		for _, obj := range list {
			sub, err := parseObject(obj)
			if err != nil {
				return nil, err
			}
			if len(sub) > 0 {
				nodes = append(nodes, And(sub...))
			}
		}
	} else if obj, ok := asObject(v); ok {
		sub, err := parseObject(obj)
		if err != nil {
			return nil, err
		}
		nodes = sub
	} else {
		return nil, grimoire.NewParseError(key, -1, "expected object or list of objects, got %T", v)
	}
	if len(nodes) == 0 {
		return nil, grimoire.NewParseError(key, -1, "empty condition")
	}
	switch key {
	case KeyOr:
		return Or(nodes...), nil
	case KeyNot:
		return Not(And(nodes...)), nil
	}
	return And(nodes...), nil
}

func compare(id *Identifier, c Condition) (Expr, error) {
	switch c := c.(type) {
	case Equality:
		if IsList(c.Value) {
			return Op("in", id, Lit(c.Value)), nil
		}
		return Op("=", id, ValueOf(c.Value)), nil
	case Comparison:
		op, _ := operatorOf(c.Op)
		switch op {
		case "between", "not between":
			bounds, ok := normalize(c.Value).([]any)
			if !ok || len(bounds) != 2 {
				return nil, grimoire.NewParseError(fmt.Sprint(c.Value), -1, "%s expects a list of two values", c.Op)
			}
			return &TernaryOperator{Name: op, Args: [3]Expr{id, ValueOf(bounds[0]), ValueOf(bounds[1])}}, nil
		case "in", "not in":
			switch v := c.Value.(type) {
			case Query:
				return Op(op, id, &Subquery{Query: v}), nil
			case Expr:
				return Op(op, id, v), nil
			}
			if !IsList(c.Value) {
				return Op(op, id, &Literal{Value: []any{c.Value}}), nil
			}
			return Op(op, id, Lit(c.Value)), nil
		}
		return Op(op, id, ValueOf(c.Value)), nil
	}
	return nil, fmt.Errorf("expr: unexpected condition %T", c)
}

// columnKey parses an object key into an identifier. Keys must be plain
// (optionally dotted) names.
func columnKey(k string) (*Identifier, error) {
	parts := strings.Split(k, ".")
	for _, part := range parts {
		if part == "" {
			return nil, grimoire.NewParseError(k, -1, "invalid column name")
		}
		for i, r := range part {
			if !isIdentRune(r) || (i == 0 && r >= '0' && r <= '9') {
				return nil, grimoire.NewParseError(k, -1, "invalid column name")
			}
		}
	}
	return Ident(k), nil
}

func asObject(v any) (map[string]any, bool) {
	switch x := v.(type) {
	case Cond:
		return x, true
	case map[string]any:
		return x, true
	}
	return nil, false
}

func asObjects(v any) ([]map[string]any, bool) {
	switch x := v.(type) {
	case []Cond:
		out := make([]map[string]any, len(x))
		for i := range x {
			out[i] = x[i]
		}
		return out, true
	case []map[string]any:
		return x, true
	case []any:
		out := make([]map[string]any, 0, len(x))
		for _, e := range x {
			obj, ok := asObject(e)
			if !ok {
				return nil, false
			}
			out = append(out, obj)
		}
		return out, true
	}
	return nil, false
}
