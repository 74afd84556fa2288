// Package field provides fluent builders for declaring model attributes.
//
// Attribute names are the logical names used in conditions (camelCase is
// conventional); the column name defaults to the snake_case form:
//
//	field.Int64("id").PrimaryKey()     // attribute: id, column: id
//	field.Time("createdAt")            // attribute: createdAt, column: created_at
//	field.String("title").Column("t")  // attribute: title, column: t
//
// # Field Types
//
//	field.Bool("isPrivate")
//	field.Int("wordCount")
//	field.Int64("authorId")
//	field.Float("score")
//	field.Decimal("price")     // shopspring/decimal
//	field.String("title")
//	field.Text("content")
//	field.Time("deletedAt")
//	field.JSON("extra")
//	field.JSONB("settings")
//	field.UUID("uid")          // google/uuid
//	field.Bytes("thumb")
//
// # Options
//
//	field.String("email").
//	    Unique().     // considered for upsert conflict targets
//	    Nillable().   // NULL allowed
//	    Comment("login email")
//
//	field.String("fullName").Virtual() // no column, never rendered
//
// # Literal Coercion
//
// Descriptor.Uncast coerces condition literals into the attribute's native
// representation (e.g. "42" becomes int64(42) for integer attributes) so the
// parameters bound to a query match the column type. JSON and virtual
// attributes are never coerced. Descriptor.Encode prepares insert and update
// values, marshaling JSON attributes.
package field
