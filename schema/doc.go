// Package schema provides model metadata consumed by the query compiler.
//
// A Model binds a logical name to a table, a list of attributes (see
// [field]) and associations (see [edge]). Models are collected in an
// explicit Registry which resolves association targets by name; there is no
// process-wide model registry.
//
// # Quick Start
//
//	post := schema.MustModel("Post",
//	    schema.Table("articles"),
//	    schema.Fields(
//	        field.Int64("id").PrimaryKey(),
//	        field.String("title"),
//	        field.Int64("authorId"),
//	        field.Time("createdAt"),
//	        field.Time("deletedAt").Nillable(),
//	    ),
//	    schema.Edges(
//	        edge.HasMany("comments", "Comment").ForeignKey("articleId"),
//	        edge.BelongsTo("author", "User"),
//	    ),
//	)
//	reg, err := schema.NewRegistry(post, comment, user)
//
// # Conventions
//
//   - The table defaults to the pluralized snake_case model name ("Post" → "posts").
//   - The table alias, used as the base qualifier of joined queries, defaults to
//     the pluralized lower camelCase model name ("Post" → "posts").
//   - A model with a deletedAt attribute is paranoid: queries on it are scoped
//     to rows where deletedAt IS NULL.
//   - A model with a sharding key requires the key on every insert payload and
//     in the conditions of every select, update and delete.
package schema
