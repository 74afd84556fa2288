// Package expr provides the expression tree shared by query builders and
// dialect compilers, and the parsers turning user input into it.
//
// Conditions come in three shapes:
//
//	expr.ParseConditions("title = 'Leah' and id > 1")
//	expr.ParseConditions("title = ? and id in ?", "Leah", []int{1, 2})
//	expr.ParseConditions(expr.Cond{"title": "Leah", "id": expr.Cond{"$gt": 1}})
//
// String conditions only accept numbers, quoted strings, true, false, null
// and undefined as literals; comments, statement separators and quoted
// identifiers fail with a parse error.
package expr
