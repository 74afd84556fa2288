// Package mixin provides reusable sets of attributes and associations for
// models.
//
// A mixin is applied with Apply, which returns a schema.Option:
//
//	post := schema.MustModel("Post",
//	    schema.Fields(field.Int64("id"), field.String("title")),
//	    mixin.Apply(mixin.TimeSoftDelete{}),
//	)
//
// The resulting model has createdAt, updatedAt and deletedAt attributes and
// is therefore soft deleted.
package mixin

import (
	"github.com/syssam/grimoire/schema"
	"github.com/syssam/grimoire/schema/edge"
	"github.com/syssam/grimoire/schema/field"
)

// Mixin is a reusable set of attributes and associations.
type Mixin interface {
	Fields() []field.Field
	Edges() []edge.Edge
}

// Sharded is implemented by mixins declaring the sharding key of the model.
type Sharded interface {
	ShardingKey() string
}

// Schema is the default implementation for the Mixin interface.
// It should be embedded in all custom mixin definitions.
//
//	type Audit struct {
//	    mixin.Schema
//	}
//
//	func (Audit) Fields() []field.Field {
//	    return []field.Field{field.String("createdBy")}
//	}
type Schema struct{}

// Fields returns the fields of the mixin.
func (Schema) Fields() []field.Field { return nil }

// Edges returns the edges of the mixin.
func (Schema) Edges() []edge.Edge { return nil }

var _ Mixin = (*Schema)(nil)

// Apply returns the option adding the attributes and associations of the
// mixins to a model, in order.
func Apply(mixins ...Mixin) schema.Option {
	var opts []schema.Option
	for _, m := range mixins {
		opts = append(opts, schema.Fields(m.Fields()...), schema.Edges(m.Edges()...))
		if s, ok := m.(Sharded); ok {
			opts = append(opts, schema.ShardingKey(s.ShardingKey()))
		}
	}
	return func(m *schema.Model) {
		for _, opt := range opts {
			opt(m)
		}
	}
}

// Time adds the createdAt and updatedAt timestamps.
type Time struct {
	Schema
}

// Fields returns the time tracking fields.
func (Time) Fields() []field.Field {
	return []field.Field{
		field.Time("createdAt").Comment("Timestamp when the row was created"),
		field.Time("updatedAt").Comment("Timestamp when the row was last updated"),
	}
}

// CreateTime adds only the createdAt timestamp.
type CreateTime struct {
	Schema
}

// Fields returns the createdAt field.
func (CreateTime) Fields() []field.Field {
	return []field.Field{
		field.Time("createdAt").Comment("Timestamp when the row was created"),
	}
}

// SoftDelete adds the deletedAt timestamp, which makes the model paranoid:
// queries skip rows where it is set.
type SoftDelete struct {
	Schema
}

// Fields returns the soft delete field.
func (SoftDelete) Fields() []field.Field {
	return []field.Field{
		field.Time("deletedAt").
			Nillable().
			Comment("Timestamp when the row was soft deleted (null means not deleted)"),
	}
}

// TimeSoftDelete combines Time and SoftDelete.
type TimeSoftDelete struct {
	Schema
}

// Fields returns all timestamp and soft delete fields.
func (TimeSoftDelete) Fields() []field.Field {
	return append(Time{}.Fields(), SoftDelete{}.Fields()...)
}

// ShardKey adds an int64 attribute and declares it the sharding key. Name
// defaults to "tenantId".
type ShardKey struct {
	Schema
	Name string
}

func (s ShardKey) name() string {
	if s.Name == "" {
		return "tenantId"
	}
	return s.Name
}

// Fields returns the sharding key field.
func (s ShardKey) Fields() []field.Field {
	return []field.Field{field.Int64(s.name()).Comment("Sharding key")}
}

// ShardingKey implements the Sharded interface.
func (s ShardKey) ShardingKey() string { return s.name() }
