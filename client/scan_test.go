package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/grimoire/schema/schematest"
	"github.com/syssam/grimoire/spell"
	"github.com/syssam/grimoire/spellbook"
)

func TestScannerNested(t *testing.T) {
	m := schematest.New()
	q, err := spell.Select(m.Comment, spell.WithRegistry(m.Registry)).With("post").Columns("content", "post.title").Build()
	require.NoError(t, err)
	sc := newScanner(q, spellbook.SQLiteRules())
	recs, err := sc.records(&rowSet{
		Columns: []string{"comments:content", "post:title"},
		Rows: [][]any{
			{"First", "Hello"},
			{"Orphan", nil},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{"content": "First", "post": Record{"title": "Hello"}},
		{"content": "Orphan", "post": Record(nil)},
	}, recs)
}

func TestScannerPositional(t *testing.T) {
	m := schematest.New()
	q, err := spell.Select(m.User).Join(m.Like, "likes.userId = users.id").Columns("nickname").Build()
	require.NoError(t, err)
	sc := newScanner(q, spellbook.MySQLRules())
	targets, err := sc.layout([]string{"nickname", "id", "user_id", "article_id", "created_at"})
	require.NoError(t, err)
	assert.Equal(t, []string{"", "likes", "likes", "likes", "likes"}, qualifiers(targets))
	assert.Equal(t, "articleId", targets[3].key)

	q, err = spell.Select(m.Post, spell.WithRegistry(m.Registry)).With("comments").Columns("id", "count(comments.id) as count").Group("id").Build()
	require.NoError(t, err)
	sc = newScanner(q, spellbook.PostgresRules())
	recs, err := sc.records(&rowSet{
		Columns: []string{"id", "count"},
		Rows:    [][]any{{int64(1), int64(2)}, {int64(2), int64(0)}},
	})
	require.NoError(t, err)
	assert.Equal(t, []Record{{"id": int64(1), "count": int64(2)}, {"id": int64(2), "count": int64(0)}}, recs)
}

func TestScannerBoundary(t *testing.T) {
	m := schematest.New()
	q, err := spell.Select(m.Post, spell.WithRegistry(m.Registry)).With("author").Build()
	require.NoError(t, err)
	sc := newScanner(q, spellbook.MySQLRules())
	// The users table has no title column: the first author column ends
	// the posts segment even without a repeated name.
	targets, err := sc.layout([]string{"id", "title", "email", "nickname"})
	require.NoError(t, err)
	assert.Equal(t, []string{"", "", "author", "author"}, qualifiers(targets))
}

func qualifiers(targets []target) []string {
	out := make([]string, len(targets))
	for i, t := range targets {
		out[i] = t.qualifier
	}
	return out
}
