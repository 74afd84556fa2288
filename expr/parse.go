package expr

import (
	"strings"

	"github.com/syssam/grimoire"
)

// Ordering is one item of an ORDER BY list.
type Ordering struct {
	Expr Expr
	Desc bool
}

// Parse parses a single expression such as "title = ? and id > 2". Literals
// are restricted to numbers, quoted strings, true, false, null and
// undefined. Each `?` is bound to the next value; the number of values must
// match the number of placeholders.
func Parse(input string, values ...any) (Expr, error) {
	p, err := newParser(input, values)
	if err != nil {
		return nil, err
	}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if err := p.done(); err != nil {
		return nil, err
	}
	return e, nil
}

// ParseList parses a comma separated list of expressions, each optionally
// aliased with AS. It is used for select columns and group lists.
func ParseList(input string, values ...any) ([]Expr, error) {
	p, err := newParser(input, values)
	if err != nil {
		return nil, err
	}
	var list []Expr
	for {
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().is("as") {
			p.next()
			tok := p.next()
			if tok.kind != tokIdent && tok.kind != tokString {
				return nil, p.errorf(tok, "expected alias after AS")
			}
			name := tok.text
			if tok.kind == tokString {
				name = tok.value.(string)
			}
			e = As(e, name)
		}
		list = append(list, e)
		if !p.peek().is(",") {
			break
		}
		p.next()
	}
	if err := p.done(); err != nil {
		return nil, err
	}
	return list, nil
}

// ParseOrders parses an ORDER BY list, e.g. "createdAt desc, id".
func ParseOrders(input string, values ...any) ([]Ordering, error) {
	p, err := newParser(input, values)
	if err != nil {
		return nil, err
	}
	var orders []Ordering
	for {
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		o := Ordering{Expr: e}
		switch t := p.peek(); {
		case t.is("desc"):
			o.Desc = true
			p.next()
		case t.is("asc"):
			p.next()
		}
		orders = append(orders, o)
		if !p.peek().is(",") {
			break
		}
		p.next()
	}
	if err := p.done(); err != nil {
		return nil, err
	}
	return orders, nil
}

type parser struct {
	input  string
	tokens []token
	pos    int
	values []any
	bound  int
}

func newParser(input string, values []any) (*parser, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	if tokens[0].kind == tokEOF {
		return nil, grimoire.NewParseError(input, -1, "empty expression")
	}
	return &parser{input: input, tokens: tokens, values: values}, nil
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return grimoire.NewParseError(p.input, t.pos, format, args...)
}

func (p *parser) expect(s string) error {
	if t := p.next(); !t.is(s) {
		return p.errorf(t, "expected %q, got %s", s, describe(t))
	}
	return nil
}

func (p *parser) done() error {
	if t := p.peek(); t.kind != tokEOF {
		return p.errorf(t, "unexpected %s", describe(t))
	}
	if p.bound != len(p.values) {
		return grimoire.NewParseError(p.input, -1, "%d placeholders but %d values", p.bound, len(p.values))
	}
	return nil
}

func describe(t token) string {
	if t.kind == tokEOF {
		return "end of input"
	}
	return "\"" + t.text + "\""
}

func (p *parser) parseOr() (Expr, error) {
	return p.parseLogical(OpOr, p.parseAnd)
}

func (p *parser) parseAnd() (Expr, error) {
	return p.parseLogical(OpAnd, p.parseNot)
}

func (p *parser) parseLogical(op string, operand func() (Expr, error)) (Expr, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for p.peek().is(op) {
		p.next()
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = Op(op, left, right)
	}
	return left, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.peek().is(OpNot) {
		p.next()
		e, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return Not(e), nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	switch {
	case t.kind == tokOp && isComparison(t.text):
		p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return Op(t.text, left, right), nil
	case t.is("is"):
		p.next()
		op := "="
		if p.peek().is(OpNot) {
			p.next()
			op = "!="
		}
		if n := p.next(); !n.is("null") && !n.is("undefined") {
			return nil, p.errorf(n, "expected NULL after IS")
		}
		return Op(op, left, Lit(nil)), nil
	case t.is(OpNot):
		p.next()
		return p.parsePredicate(left, "not ")
	case t.is("in"), t.is("like"), t.is("between"):
		return p.parsePredicate(left, "")
	}
	return left, nil
}

func isComparison(op string) bool {
	switch op {
	case "=", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

// parsePredicate parses the IN, LIKE and BETWEEN forms, optionally negated.
func (p *parser) parsePredicate(left Expr, not string) (Expr, error) {
	t := p.next()
	switch {
	case t.is("in"):
		right, err := p.parseInList()
		if err != nil {
			return nil, err
		}
		return Op(not+"in", left, right), nil
	case t.is("like"):
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return Op(not+"like", left, right), nil
	case t.is("between"):
		lo, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if err := p.expect(OpAnd); err != nil {
			return nil, err
		}
		hi, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &TernaryOperator{Name: not + "between", Args: [3]Expr{left, lo, hi}}, nil
	}
	return nil, p.errorf(t, "unexpected %s", describe(t))
}

func (p *parser) parseInList() (Expr, error) {
	if !p.peek().is("(") {
		t := p.peek()
		e, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return inValues(p, t, []Expr{e})
	}
	open := p.next()
	var items []Expr
	if !p.peek().is(")") {
		for {
			e, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			items = append(items, e)
			if !p.peek().is(",") {
				break
			}
			p.next()
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return inValues(p, open, items)
}

// inValues folds the items of an IN list into one list literal, or returns
// the bound list or subquery when it is the only item.
func inValues(p *parser, at token, items []Expr) (Expr, error) {
	if len(items) == 1 {
		switch x := items[0].(type) {
		case *Subquery:
			return x, nil
		case *Literal:
			if IsList(x.Value) {
				return x, nil
			}
		}
	}
	list := make([]any, 0, len(items))
	for _, item := range items {
		lit, ok := item.(*Literal)
		if !ok || IsList(lit.Value) {
			return nil, p.errorf(at, "IN list accepts literal values only")
		}
		list = append(list, lit.Value)
	}
	return &Literal{Value: list}, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	return p.parseArith(p.parseMultiplicative, "+", "-")
}

func (p *parser) parseMultiplicative() (Expr, error) {
	return p.parseArith(p.parseUnary, "*", "/", "%")
}

func (p *parser) parseArith(operand func() (Expr, error), ops ...string) (Expr, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for {
		t, matched := p.peek(), false
		for _, op := range ops {
			if t.is(op) {
				matched = true
				break
			}
		}
		if !matched {
			return left, nil
		}
		p.next()
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = Op(t.text, left, right)
	}
}

func (p *parser) parseUnary() (Expr, error) {
	if !p.peek().is("-") {
		return p.parsePrimary()
	}
	p.next()
	if t := p.peek(); t.kind == tokNumber {
		p.next()
		switch v := t.value.(type) {
		case int64:
			return Lit(-v), nil
		case float64:
			return Lit(-v), nil
		}
	}
	e, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return Op("-", e), nil
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber, tokString:
		return Lit(t.value), nil
	case tokPunct:
		switch t.text {
		case "?":
			return p.bind(t)
		case "*":
			return &Wildcard{}, nil
		case "(":
			e, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return e, nil
		}
	case tokIdent:
		switch strings.ToLower(t.text) {
		case "null", "undefined":
			return Lit(nil), nil
		case "true":
			return Lit(true), nil
		case "false":
			return Lit(false), nil
		case "distinct":
			e, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return &Mod{Name: "distinct", Arg: e}, nil
		case "and", "or", "not", "in", "is", "like", "between", "as", "asc", "desc":
			return nil, p.errorf(t, "unexpected keyword %s", describe(t))
		}
		return p.parseIdentifier(t)
	}
	return nil, p.errorf(t, "unexpected %s", describe(t))
}

func (p *parser) parseIdentifier(first token) (Expr, error) {
	if p.peek().is("(") {
		return p.parseCall(first)
	}
	parts := []string{first.text}
	for p.peek().is(".") {
		p.next()
		t := p.next()
		switch {
		case t.is("*"):
			return &Wildcard{Qualifiers: parts}, nil
		case t.kind == tokIdent:
			parts = append(parts, t.text)
		default:
			return nil, p.errorf(t, "expected column name after %q", strings.Join(parts, "."))
		}
	}
	id := &Identifier{Value: parts[len(parts)-1]}
	if len(parts) > 1 {
		id.Qualifiers = parts[:len(parts)-1]
	}
	return id, nil
}

func (p *parser) parseCall(name token) (Expr, error) {
	p.next()
	fn := &Func{Name: strings.ToLower(name.text)}
	if p.peek().is(")") {
		p.next()
		return fn, nil
	}
	for {
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		fn.Args = append(fn.Args, arg)
		if !p.peek().is(",") {
			break
		}
		p.next()
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return fn, nil
}

func (p *parser) bind(t token) (Expr, error) {
	if p.bound >= len(p.values) {
		return nil, p.errorf(t, "missing value for placeholder %d", p.bound+1)
	}
	v := p.values[p.bound]
	p.bound++
	return ValueOf(v), nil
}

// ValueOf wraps a bound value into a node: nodes are used as is, queries
// become subqueries and everything else is a literal.
func ValueOf(v any) Expr {
	switch x := v.(type) {
	case Expr:
		return x
	case Query:
		return &Subquery{Query: x}
	}
	return Lit(v)
}
