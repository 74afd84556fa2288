package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalk(t *testing.T) {
	e, err := Parse("a = ? and count(b) between 1 and ?", "x", 9)
	require.NoError(t, err)
	var lits []any
	Walk(e, func(n Expr) bool {
		if l, ok := n.(*Literal); ok {
			lits = append(lits, l.Value)
		}
		return true
	})
	assert.Equal(t, []any{"x", int64(1), 9}, lits)

	var visited int
	Walk(e, func(n Expr) bool {
		visited++
		return !IsLogical(n)
	})
	assert.Equal(t, 1, visited, "children of a skipped node are not visited")
}

func TestRewrite(t *testing.T) {
	e, err := Parse("id = 1 and comments.id > 2")
	require.NoError(t, err)
	got := Rewrite(e, func(n Expr) Expr {
		if id, ok := n.(*Identifier); ok && len(id.Qualifiers) == 0 {
			id.Qualifiers = []string{"posts"}
		}
		return n
	})
	assert.Equal(t, And(
		Eq(Ident("posts.id"), Lit(int64(1))),
		Op(">", Ident("comments.id"), Lit(int64(2))),
	), got)
	assert.Equal(t, And(
		Eq(Ident("id"), Lit(int64(1))),
		Op(">", Ident("comments.id"), Lit(int64(2))),
	), e, "input is left untouched")
}

func TestReferences(t *testing.T) {
	e, err := Parse("posts.shard_id = 1 and title = 'a'")
	require.NoError(t, err)
	assert.True(t, References(e, "shard_id", "posts"))
	assert.False(t, References(e, "shard_id", "comments"))
	assert.True(t, References(e, "title"))
	assert.False(t, References(e, "id"))
	assert.Len(t, Identifiers(e), 2)
}

func TestAggregate(t *testing.T) {
	assert.True(t, IsAggregate(Call("COUNT", &Wildcard{})))
	assert.True(t, IsAggregate(As(Call("sum", Ident("price")), "total")))
	assert.True(t, IsAggregate(&Mod{Name: "distinct", Arg: Call("max", Ident("id"))}))
	assert.False(t, IsAggregate(Call("year", Ident("created_at"))))
	assert.False(t, IsAggregate(Ident("count")))
}

func TestPrecedence(t *testing.T) {
	assert.Less(t, Precedence("and"), Precedence("or"))
	assert.Less(t, Precedence("="), Precedence("and"))
	assert.Less(t, Precedence("*"), Precedence("+"))
	assert.Equal(t, -1, Precedence("xor"))
}

func TestFold(t *testing.T) {
	assert.Nil(t, And())
	a, b, c := Ident("a"), Ident("b"), Ident("c")
	assert.Same(t, a, And(a))
	assert.Equal(t, Op(OpOr, Op(OpOr, a, b), c), Or(a, b, c))
}
