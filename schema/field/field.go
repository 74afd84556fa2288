package field

import (
	"fmt"

	"github.com/go-openapi/inflect"
)

// A Type represents a field type.
type Type uint8

// List of field types.
const (
	TypeInvalid Type = iota
	TypeBool
	TypeInt
	TypeInt64
	TypeFloat
	TypeDecimal
	TypeString
	TypeText
	TypeTime
	TypeJSON
	TypeJSONB
	TypeUUID
	TypeBytes
	endTypes
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeBool:    "bool",
	TypeInt:     "int",
	TypeInt64:   "int64",
	TypeFloat:   "float",
	TypeDecimal: "decimal",
	TypeString:  "string",
	TypeText:    "text",
	TypeTime:    "time",
	TypeJSON:    "json",
	TypeJSONB:   "jsonb",
	TypeUUID:    "uuid",
	TypeBytes:   "bytes",
}

// String returns the string representation of a type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// Valid reports if the given type is known.
func (t Type) Valid() bool {
	return t > TypeInvalid && t < endTypes
}

// Numeric reports if the given type is a numeric type.
func (t Type) Numeric() bool {
	return t == TypeInt || t == TypeInt64 || t == TypeFloat || t == TypeDecimal
}

// IsJSON reports if the given type is stored as JSON.
func (t Type) IsJSON() bool {
	return t == TypeJSON || t == TypeJSONB
}

// ParseType returns the Type for its string representation.
func ParseType(s string) (Type, error) {
	for t := TypeBool; t < endTypes; t++ {
		if typeNames[t] == s {
			return t, nil
		}
	}
	switch s {
	case "integer":
		return TypeInt, nil
	case "bigint":
		return TypeInt64, nil
	case "boolean":
		return TypeBool, nil
	case "date", "datetime", "timestamp":
		return TypeTime, nil
	case "blob", "binary":
		return TypeBytes, nil
	}
	return TypeInvalid, fmt.Errorf("field: unknown type %q", s)
}

// A Descriptor for field configuration. Name is the logical attribute name
// used in conditions; Column is the physical column name.
type Descriptor struct {
	Name       string
	Column     string
	Type       Type
	Unique     bool
	PrimaryKey bool
	Nillable   bool
	Virtual    bool // Not backed by a column; never rendered nor coerced.
	Comment    string
	Err        error
}

// Field is the interface implemented by field builders.
type Field interface {
	Descriptor() *Descriptor
}

// Builder is the fluent builder for field descriptors.
type Builder struct {
	desc *Descriptor
}

func newBuilder(name string, t Type) *Builder {
	d := &Descriptor{Name: name, Column: inflect.Underscore(name), Type: t}
	if name == "" {
		d.Err = fmt.Errorf("field: missing name for %s field", t)
	}
	return &Builder{desc: d}
}

// Bool returns a new boolean field.
func Bool(name string) *Builder { return newBuilder(name, TypeBool) }

// Int returns a new integer field.
func Int(name string) *Builder { return newBuilder(name, TypeInt) }

// Int64 returns a new big integer field.
func Int64(name string) *Builder { return newBuilder(name, TypeInt64) }

// Float returns a new floating point field.
func Float(name string) *Builder { return newBuilder(name, TypeFloat) }

// Decimal returns a new fixed precision field backed by decimal.Decimal.
func Decimal(name string) *Builder { return newBuilder(name, TypeDecimal) }

// String returns a new string field.
func String(name string) *Builder { return newBuilder(name, TypeString) }

// Text returns a new text field.
func Text(name string) *Builder { return newBuilder(name, TypeText) }

// Time returns a new time field.
func Time(name string) *Builder { return newBuilder(name, TypeTime) }

// JSON returns a new JSON field.
func JSON(name string) *Builder { return newBuilder(name, TypeJSON) }

// JSONB returns a new binary JSON field (Postgres JSONB).
func JSONB(name string) *Builder { return newBuilder(name, TypeJSONB) }

// UUID returns a new UUID field.
func UUID(name string) *Builder { return newBuilder(name, TypeUUID) }

// Bytes returns a new binary field.
func Bytes(name string) *Builder { return newBuilder(name, TypeBytes) }

// Of returns a new field of the given type.
func Of(name string, t Type) *Builder {
	b := newBuilder(name, t)
	if !t.Valid() && b.desc.Err == nil {
		b.desc.Err = fmt.Errorf("field: invalid type for %q", name)
	}
	return b
}

// Column sets the physical column name of the field.
func (b *Builder) Column(name string) *Builder {
	b.desc.Column = name
	return b
}

// Unique marks the field as unique.
func (b *Builder) Unique() *Builder {
	b.desc.Unique = true
	return b
}

// PrimaryKey marks the field as the primary key. Primary keys are unique.
func (b *Builder) PrimaryKey() *Builder {
	b.desc.PrimaryKey = true
	b.desc.Unique = true
	return b
}

// Nillable marks the column as nullable.
func (b *Builder) Nillable() *Builder {
	b.desc.Nillable = true
	return b
}

// Virtual marks the field as virtual: it exists on records but has no column.
func (b *Builder) Virtual() *Builder {
	b.desc.Virtual = true
	return b
}

// Comment sets the comment of the field.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the Field interface.
func (b *Builder) Descriptor() *Descriptor {
	return b.desc
}
