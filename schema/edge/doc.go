// Package edge provides fluent builders for declaring associations between
// models.
//
// Associations are keyed by name; the name doubles as the table qualifier
// when the association is joined into a query:
//
//	// Post has many comments, comments.article_id references posts.id
//	edge.HasMany("comments", "Comment").ForeignKey("articleId")
//
//	// Post has one cover image
//	edge.HasOne("cover", "Attachment").ForeignKey("articleId")
//
//	// Post belongs to its author, posts.author_id references users.id
//	edge.BelongsTo("author", "User")
//
// Target models are referenced by name and resolved through an explicit
// schema.Registry when a query includes the association, so declarations may
// reference models that are registered later.
package edge
