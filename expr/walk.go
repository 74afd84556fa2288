package expr

// Walk traverses the tree in depth-first order, parents before children and
// children left to right. The formatter emits placeholders in this same
// order. If fn returns false the children of the node are skipped. Subqueries
// are not entered.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, c := range children(e) {
		Walk(c, fn)
	}
}

func children(e Expr) []Expr {
	switch x := e.(type) {
	case *Func:
		return x.Args
	case *Operator:
		return x.Args
	case *TernaryOperator:
		return x.Args[:]
	case *Alias:
		return []Expr{x.Arg}
	case *Mod:
		return []Expr{x.Arg}
	}
	return nil
}

// Rewrite returns a copy of the tree where every node is replaced by the
// result of fn, applied bottom-up. The input tree is left untouched.
func Rewrite(e Expr, fn func(Expr) Expr) Expr {
	if e == nil {
		return nil
	}
	switch x := e.(type) {
	case *Func:
		c := *x
		c.Args = rewriteAll(x.Args, fn)
		return fn(&c)
	case *Operator:
		c := *x
		c.Args = rewriteAll(x.Args, fn)
		return fn(&c)
	case *TernaryOperator:
		c := *x
		for i, a := range x.Args {
			c.Args[i] = Rewrite(a, fn)
		}
		return fn(&c)
	case *Alias:
		c := *x
		c.Arg = Rewrite(x.Arg, fn)
		return fn(&c)
	case *Mod:
		c := *x
		c.Arg = Rewrite(x.Arg, fn)
		return fn(&c)
	case *Identifier:
		c := *x
		c.Qualifiers = append([]string(nil), x.Qualifiers...)
		return fn(&c)
	case *Wildcard:
		c := *x
		c.Qualifiers = append([]string(nil), x.Qualifiers...)
		return fn(&c)
	case *Literal:
		c := *x
		return fn(&c)
	case *Raw:
		c := *x
		return fn(&c)
	case *Subquery:
		c := *x
		return fn(&c)
	}
	return fn(e)
}

func rewriteAll(nodes []Expr, fn func(Expr) Expr) []Expr {
	if nodes == nil {
		return nil
	}
	out := make([]Expr, len(nodes))
	for i, n := range nodes {
		out[i] = Rewrite(n, fn)
	}
	return out
}

// Identifiers returns the identifiers of the tree in walk order.
func Identifiers(e Expr) []*Identifier {
	var ids []*Identifier
	Walk(e, func(n Expr) bool {
		if id, ok := n.(*Identifier); ok {
			ids = append(ids, id)
		}
		return true
	})
	return ids
}

// References reports if the tree references the named column, either bare or
// qualified by one of the given qualifiers.
func References(e Expr, name string, qualifiers ...string) bool {
	found := false
	Walk(e, func(n Expr) bool {
		id, ok := n.(*Identifier)
		if !ok || found || id.Value != name {
			return !found
		}
		if len(id.Qualifiers) == 0 {
			found = true
			return false
		}
		for _, q := range qualifiers {
			if id.Qualifiers[0] == q {
				found = true
				return false
			}
		}
		return true
	})
	return found
}
