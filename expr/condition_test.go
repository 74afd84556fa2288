package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/grimoire"
)

type fakeQuery struct{}

func (fakeQuery) QueryCommand() string { return "select" }

func TestParseConditions(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  []Expr
	}{
		{
			name:  "equality",
			input: Cond{"title": "Leah"},
			want:  []Expr{Eq(Ident("title"), Lit("Leah"))},
		},
		{
			name:  "plain map",
			input: map[string]any{"id": 1},
			want:  []Expr{Eq(Ident("id"), Lit(1))},
		},
		{
			name:  "sorted keys",
			input: Cond{"title": "Leah", "author_id": 2},
			want: []Expr{
				Eq(Ident("author_id"), Lit(2)),
				Eq(Ident("title"), Lit("Leah")),
			},
		},
		{
			name:  "null",
			input: Cond{"deleted_at": nil},
			want:  []Expr{Eq(Ident("deleted_at"), Lit(nil))},
		},
		{
			name:  "ne null",
			input: Cond{"deleted_at": Cond{"$ne": nil}},
			want:  []Expr{Op("!=", Ident("deleted_at"), Lit(nil))},
		},
		{
			name:  "list implies in",
			input: Cond{"id": []int{1, 2}},
			want:  []Expr{Op("in", Ident("id"), Lit([]any{1, 2}))},
		},
		{
			name:  "empty in",
			input: Cond{"id": Cond{"$in": []int{}}},
			want:  []Expr{Op("in", Ident("id"), &Literal{Value: []any{}})},
		},
		{
			name:  "scalar in",
			input: Cond{"id": Cond{"$notIn": 3}},
			want:  []Expr{Op("not in", Ident("id"), Lit([]any{3}))},
		},
		{
			name:  "subquery in",
			input: Cond{"id": Cond{"$nin": fakeQuery{}}},
			want:  []Expr{Op("not in", Ident("id"), &Subquery{Query: fakeQuery{}})},
		},
		{
			name:  "several operators",
			input: Cond{"id": Cond{"$lt": 10, "$gt": 1}},
			want: []Expr{And(
				Op(">", Ident("id"), Lit(1)),
				Op("<", Ident("id"), Lit(10)),
			)},
		},
		{
			name:  "between",
			input: Cond{"id": Cond{"$between": []int{1, 5}}},
			want:  []Expr{&TernaryOperator{Name: "between", Args: [3]Expr{Ident("id"), Lit(1), Lit(5)}}},
		},
		{
			name:  "like",
			input: Cond{"title": Cond{"$notLike": "%a%"}},
			want:  []Expr{Op("not like", Ident("title"), Lit("%a%"))},
		},
		{
			name:  "qualified key",
			input: Cond{"comments.content": "x"},
			want:  []Expr{Eq(Ident("comments.content"), Lit("x"))},
		},
		{
			name:  "object equality",
			input: Cond{"extra": Cond{"a": 1}},
			want:  []Expr{Eq(Ident("extra"), Lit(Cond{"a": 1}))},
		},
		{
			name: "or list",
			input: Cond{"$or": []Cond{
				{"title": "Leah"},
				{"title": "Tyrael", "id": 2},
			}},
			want: []Expr{Or(
				Eq(Ident("title"), Lit("Leah")),
				And(Eq(Ident("id"), Lit(2)), Eq(Ident("title"), Lit("Tyrael"))),
			)},
		},
		{
			name:  "or object",
			input: Cond{"$or": Cond{"title": "Leah", "id": 1}},
			want: []Expr{Or(
				Eq(Ident("id"), Lit(1)),
				Eq(Ident("title"), Lit("Leah")),
			)},
		},
		{
			name:  "columns before logical keys",
			input: Cond{"$not": Cond{"id": 1}, "title": "a"},
			want: []Expr{
				Eq(Ident("title"), Lit("a")),
				Not(Eq(Ident("id"), Lit(1))),
			},
		},
		{
			name:  "and of any list",
			input: Cond{"$and": []any{map[string]any{"a": 1}, Cond{"b": 2}}},
			want:  []Expr{And(Eq(Ident("a"), Lit(1)), Eq(Ident("b"), Lit(2)))},
		},
		{
			name:  "empty object",
			input: Cond{},
		},
		{
			name:  "nil",
			input: nil,
		},
		{
			name:  "expression",
			input: Eq(Ident("id"), Lit(1)),
			want:  []Expr{Eq(Ident("id"), Lit(1))},
		},
		{
			name:  "string",
			input: "id = 1",
			want:  []Expr{Eq(Ident("id"), Lit(int64(1)))},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConditions(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseConditionsErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		values []any
	}{
		{name: "mixed keys", input: Cond{"id": Cond{"$gt": 1, "foo": 2}}},
		{name: "unknown operator", input: Cond{"id": Cond{"$regexp": "a"}}},
		{name: "unknown logical", input: Cond{"$xor": Cond{"a": 1}}},
		{name: "invalid key", input: Cond{"id; --": 1}},
		{name: "empty key part", input: Cond{"posts.": 1}},
		{name: "between arity", input: Cond{"id": Cond{"$between": []int{1}}}},
		{name: "between scalar", input: Cond{"id": Cond{"$notBetween": 1}}},
		{name: "empty or", input: Cond{"$or": []Cond{}}},
		{name: "scalar or", input: Cond{"$or": 1}},
		{name: "unsupported type", input: 42},
		{name: "object with values", input: Cond{"id": 1}, values: []any{1}},
		{name: "expression with values", input: Lit(1), values: []any{1}},
		{name: "string mismatch", input: "id = ? and title = ?", values: []any{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConditions(tt.input, tt.values...)
			require.Error(t, err)
			assert.True(t, grimoire.IsParseError(err), "unexpected error: %v", err)
		})
	}
}

func TestClassify(t *testing.T) {
	conds, err := Classify(1)
	require.NoError(t, err)
	assert.Equal(t, []Condition{Equality{Value: 1}}, conds)

	conds, err = Classify(Cond{"$like": "a%", "$eq": "b"})
	require.NoError(t, err)
	assert.Equal(t, []Condition{
		Comparison{Op: "$eq", Value: "b"},
		Comparison{Op: "$like", Value: "a%"},
	}, conds)

	conds, err = Classify(map[string]any{"nested": true})
	require.NoError(t, err)
	assert.Equal(t, []Condition{Equality{Value: map[string]any{"nested": true}}}, conds)
}
