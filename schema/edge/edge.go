package edge

import "fmt"

// Kind is the cardinality of an association.
type Kind uint8

// Association kinds.
const (
	KindHasMany Kind = iota + 1
	KindHasOne
	KindBelongsTo
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindHasMany:
		return "hasMany"
	case KindHasOne:
		return "hasOne"
	case KindBelongsTo:
		return "belongsTo"
	default:
		return "invalid"
	}
}

// A Descriptor for association configuration.
type Descriptor struct {
	Name       string // Association name, also the join qualifier.
	Type       string // Target model name, resolved through the registry.
	Kind       Kind
	ForeignKey string // Attribute on the target (has*) or on the owner (belongsTo).
	Comment    string
	Err        error
}

// Edge is the interface implemented by association builders.
type Edge interface {
	Descriptor() *Descriptor
}

// Builder is the fluent builder for association descriptors.
type Builder struct {
	desc *Descriptor
}

func newBuilder(name, typ string, kind Kind) *Builder {
	d := &Descriptor{Name: name, Type: typ, Kind: kind}
	if name == "" || typ == "" {
		d.Err = fmt.Errorf("edge: %s association requires a name and a target model", kind)
	}
	return &Builder{desc: d}
}

// HasMany declares a one-to-many association. The foreign key lives on the
// target model and defaults to "<owner>Id".
func HasMany(name, typ string) *Builder { return newBuilder(name, typ, KindHasMany) }

// HasOne declares a one-to-one association with the foreign key on the
// target model.
func HasOne(name, typ string) *Builder { return newBuilder(name, typ, KindHasOne) }

// BelongsTo declares the inverse side of a has* association. The foreign key
// lives on the owner model and defaults to "<name>Id".
func BelongsTo(name, typ string) *Builder { return newBuilder(name, typ, KindBelongsTo) }

// ForeignKey sets the foreign key attribute name.
func (b *Builder) ForeignKey(name string) *Builder {
	b.desc.ForeignKey = name
	return b
}

// Comment sets the comment of the association.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the Edge interface.
func (b *Builder) Descriptor() *Descriptor {
	return b.desc
}
