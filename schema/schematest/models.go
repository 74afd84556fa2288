// Package schematest provides a small blog schema for tests of packages
// built on top of schema.
package schematest

import (
	"github.com/syssam/grimoire/schema"
	"github.com/syssam/grimoire/schema/edge"
	"github.com/syssam/grimoire/schema/field"
)

// Models of the blog schema.
type Models struct {
	Post     *schema.Model // Table "articles", alias "posts", soft deleted.
	Comment  *schema.Model // Soft deleted.
	User     *schema.Model
	Like     *schema.Model // Sharded by userId.
	Registry *schema.Registry
}

// New returns a fresh set of models registered in their own registry.
func New() *Models {
	post := schema.MustModel("Post",
		schema.Table("articles"),
		schema.Fields(
			field.Int64("id"),
			field.String("title"),
			field.Text("content"),
			field.Int64("authorId"),
			field.Int("wordCount"),
			field.JSON("extra"),
			field.Time("createdAt"),
			field.Time("updatedAt"),
			field.Time("deletedAt").Nillable(),
			field.String("summary").Virtual(),
		),
		schema.Edges(
			edge.HasMany("comments", "Comment"),
			edge.HasMany("likes", "Like").ForeignKey("articleId"),
			edge.BelongsTo("author", "User"),
		),
	)
	comment := schema.MustModel("Comment",
		schema.Fields(
			field.Int64("id"),
			field.Int64("postId"),
			field.Text("content"),
			field.Time("createdAt"),
			field.Time("deletedAt").Nillable(),
		),
		schema.Edges(
			edge.BelongsTo("post", "Post"),
		),
	)
	user := schema.MustModel("User",
		schema.Fields(
			field.Int64("id"),
			field.String("email").Unique(),
			field.String("nickname"),
			field.Bool("active"),
			field.Time("createdAt"),
		),
		schema.Edges(
			edge.HasMany("posts", "Post").ForeignKey("authorId"),
		),
	)
	like := schema.MustModel("Like",
		schema.Fields(
			field.Int64("id"),
			field.Int64("userId"),
			field.Int64("articleId"),
			field.Time("createdAt"),
		),
		schema.ShardingKey("userId"),
	)
	reg, err := schema.NewRegistry(post, comment, user, like)
	if err != nil {
		panic(err)
	}
	return &Models{Post: post, Comment: comment, User: user, Like: like, Registry: reg}
}
