// Package spell provides the query builder. A Spell accumulates the parts
// of one statement through chained calls and Build turns it into an
// immutable Query, ready for a spellbook to compile:
//
//	q, err := spell.Select(Post, spell.WithRegistry(reg)).
//		With("comments").
//		Where(expr.Cond{"title": expr.Cond{"$like": "%Leah%"}}).
//		Order("createdAt desc").
//		Limit(10).
//		Build()
//
// Build applies the scopes (the soft delete filter included), enforces the
// sharding key and qualifies the columns of joined queries.
package spell
