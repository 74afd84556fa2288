package load

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/grimoire/schema"
	"github.com/syssam/grimoire/schema/edge"
	"github.com/syssam/grimoire/schema/field"
)

func TestLoad(t *testing.T) {
	reg, err := Load(filepath.Join("testdata", "blog.yaml"))
	require.NoError(t, err)
	require.Len(t, reg.Models(), 4)

	post, err := reg.Lookup("Post")
	require.NoError(t, err)
	assert.Equal(t, "articles", post.Table())
	assert.Equal(t, "posts", post.TableAlias())
	assert.Equal(t, "id", post.PrimaryKey())
	assert.True(t, post.Paranoid())
	assert.Equal(t, "createdAt", post.CreatedAt())
	assert.Equal(t, "updatedAt", post.UpdatedAt())
	fd, ok := post.Attribute("authorId")
	require.True(t, ok)
	assert.Equal(t, field.TypeInt64, fd.Type)
	assert.Equal(t, "author_id", fd.Column)
	fd, ok = post.Attribute("summary")
	require.True(t, ok)
	assert.True(t, fd.Virtual)
	ed, ok := post.Edge("comments")
	require.True(t, ok)
	assert.Equal(t, edge.KindHasMany, ed.Kind)
	assert.Equal(t, "postId", ed.ForeignKey)

	comment, err := reg.Lookup("Comment")
	require.NoError(t, err)
	assert.True(t, comment.Paranoid())
	assert.Empty(t, comment.UpdatedAt())

	user, err := reg.Lookup("User")
	require.NoError(t, err)
	assert.Equal(t, "nick_name", user.Column("nickname"))
	fd, ok = user.Attribute("email")
	require.True(t, ok)
	assert.True(t, fd.Unique)
	fd, ok = user.Attribute("nickname")
	require.True(t, ok)
	assert.Equal(t, "Display name", fd.Comment)

	like, err := reg.Lookup("Like")
	require.NoError(t, err)
	assert.Equal(t, "userId", like.ShardingKey())
	_, ok = like.Attribute("userId")
	assert.True(t, ok)
	assert.False(t, like.Paranoid())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.yaml"))
	require.Error(t, err)

	_, err = Load(filepath.Join("testdata", "invalid_edge.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrModelNotFound)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "empty",
			doc:  "",
			want: "empty document",
		},
		{
			name: "no models",
			doc:  "models: []",
			want: "no models defined",
		},
		{
			name: "unknown key",
			doc:  "models:\n  - name: User\n    colour: red\n",
			want: "colour",
		},
		{
			name: "unknown type",
			doc:  "models:\n  - name: User\n    fields:\n      - {name: id, type: money}\n",
			want: `unknown type "money"`,
		},
		{
			name: "unknown kind",
			doc:  "models:\n  - name: User\n    fields:\n      - {name: id, type: int64}\n    edges:\n      - {name: posts, kind: manyToMany, model: Post}\n",
			want: `unknown kind "manyToMany"`,
		},
		{
			name: "unknown mixin",
			doc:  "models:\n  - name: User\n    mixins: [audit]\n",
			want: `unknown mixin "audit"`,
		},
		{
			name: "field without name",
			doc:  "models:\n  - name: User\n    fields:\n      - {type: int64}\n",
			want: "field without name",
		},
		{
			name: "duplicate attribute",
			doc:  "models:\n  - name: User\n    mixins: [time]\n    fields:\n      - {name: createdAt, type: time}\n",
			want: `duplicate attribute "createdAt"`,
		},
		{
			name: "duplicate model",
			doc:  "models:\n  - name: User\n  - name: User\n",
			want: "User",
		},
		{
			name: "missing sharding key",
			doc:  "models:\n  - name: Like\n    shardingKey: userId\n",
			want: `sharding key "userId"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMarshal(t *testing.T) {
	reg, err := Load(filepath.Join("testdata", "blog.yaml"))
	require.NoError(t, err)
	buf, err := Marshal(reg)
	require.NoError(t, err)
	assert.Contains(t, string(buf), "table: articles")
	assert.Contains(t, string(buf), "kind: belongsTo")

	again, err := Parse(buf)
	require.NoError(t, err)
	for _, m := range reg.Models() {
		got, err := again.Lookup(m.Name())
		require.NoError(t, err)
		assert.Equal(t, m.Table(), got.Table())
		assert.Equal(t, m.Columns(), got.Columns())
		assert.Equal(t, m.ShardingKey(), got.ShardingKey())
		assert.Equal(t, len(m.Edges()), len(got.Edges()))
	}
}
