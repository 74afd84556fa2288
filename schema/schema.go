package schema

import (
	"errors"
	"fmt"

	"github.com/go-openapi/inflect"

	"github.com/syssam/grimoire/schema/edge"
	"github.com/syssam/grimoire/schema/field"
)

// ErrInvalidModel is the sentinel of all model definition errors.
var ErrInvalidModel = errors.New("schema: invalid model")

// Model describes a table-backed model: its attributes and associations.
// A Model is immutable once created and safe for concurrent use.
type Model struct {
	name        string
	table       string
	alias       string
	fields      []*field.Descriptor
	attrs       map[string]*field.Descriptor
	columns     map[string]*field.Descriptor
	edges       []*edge.Descriptor
	primaryKey  string
	shardingKey string
}

// Option configures a Model.
type Option func(*Model)

// Table sets the table name of the model.
func Table(name string) Option {
	return func(m *Model) {
		m.table = name
	}
}

// Alias sets the table alias used to qualify columns in joined queries.
func Alias(name string) Option {
	return func(m *Model) {
		m.alias = name
	}
}

// Fields appends attributes to the model.
func Fields(fields ...field.Field) Option {
	return func(m *Model) {
		for _, f := range fields {
			fd := *f.Descriptor()
			m.fields = append(m.fields, &fd)
		}
	}
}

// Edges appends associations to the model.
func Edges(edges ...edge.Edge) Option {
	return func(m *Model) {
		for _, e := range edges {
			ed := *e.Descriptor()
			m.edges = append(m.edges, &ed)
		}
	}
}

// ShardingKey declares the attribute every query on the model must carry.
func ShardingKey(name string) Option {
	return func(m *Model) {
		m.shardingKey = name
	}
}

// NewModel creates a model from the given options.
func NewModel(name string, opts ...Option) (*Model, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: missing model name", ErrInvalidModel)
	}
	m := &Model{
		name:    name,
		attrs:   make(map[string]*field.Descriptor),
		columns: make(map[string]*field.Descriptor),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.table == "" {
		m.table = inflect.Pluralize(inflect.Underscore(name))
	}
	if m.alias == "" {
		m.alias = inflect.CamelizeDownFirst(inflect.Pluralize(name))
	}
	for _, fd := range m.fields {
		if fd.Err != nil {
			return nil, fmt.Errorf("%w %s: %w", ErrInvalidModel, name, fd.Err)
		}
		if _, ok := m.attrs[fd.Name]; ok {
			return nil, fmt.Errorf("%w %s: duplicate attribute %q", ErrInvalidModel, name, fd.Name)
		}
		m.attrs[fd.Name] = fd
		if !fd.Virtual {
			m.columns[fd.Column] = fd
		}
		if fd.PrimaryKey {
			if m.primaryKey != "" {
				return nil, fmt.Errorf("%w %s: multiple primary keys %q and %q", ErrInvalidModel, name, m.primaryKey, fd.Name)
			}
			m.primaryKey = fd.Name
		}
	}
	if m.primaryKey == "" {
		if fd, ok := m.attrs["id"]; ok {
			fd.PrimaryKey = true
			fd.Unique = true
			m.primaryKey = "id"
		}
	}
	if m.shardingKey != "" {
		if fd, ok := m.attrs[m.shardingKey]; !ok || fd.Virtual {
			return nil, fmt.Errorf("%w %s: sharding key %q is not a column attribute", ErrInvalidModel, name, m.shardingKey)
		}
	}
	seen := make(map[string]struct{}, len(m.edges))
	for _, ed := range m.edges {
		if ed.Err != nil {
			return nil, fmt.Errorf("%w %s: %w", ErrInvalidModel, name, ed.Err)
		}
		if _, ok := seen[ed.Name]; ok {
			return nil, fmt.Errorf("%w %s: duplicate association %q", ErrInvalidModel, name, ed.Name)
		}
		seen[ed.Name] = struct{}{}
		if ed.ForeignKey == "" {
			switch ed.Kind {
			case edge.KindBelongsTo:
				ed.ForeignKey = ed.Name + "Id"
			default:
				ed.ForeignKey = inflect.CamelizeDownFirst(name) + "Id"
			}
		}
		if ed.Kind == edge.KindBelongsTo {
			if _, ok := m.attrs[ed.ForeignKey]; !ok {
				return nil, fmt.Errorf("%w %s: foreign key %q of %q is not an attribute", ErrInvalidModel, name, ed.ForeignKey, ed.Name)
			}
		}
	}
	return m, nil
}

// MustModel is like NewModel but panics on error.
func MustModel(name string, opts ...Option) *Model {
	m, err := NewModel(name, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Name returns the logical model name.
func (m *Model) Name() string { return m.name }

// Table returns the table name.
func (m *Model) Table() string { return m.table }

// TableAlias returns the qualifier of the model in joined queries.
func (m *Model) TableAlias() string { return m.alias }

// Attributes returns the attributes in declaration order.
func (m *Model) Attributes() []*field.Descriptor {
	return append([]*field.Descriptor(nil), m.fields...)
}

// Attribute returns the attribute with the given logical name. Column names
// are accepted too, so "created_at" resolves the createdAt attribute.
func (m *Model) Attribute(name string) (*field.Descriptor, bool) {
	if fd, ok := m.attrs[name]; ok {
		return fd, true
	}
	fd, ok := m.columns[name]
	return fd, ok
}

// Column returns the column name of an attribute. Names that are not
// attributes are returned unchanged.
func (m *Model) Column(name string) string {
	if fd, ok := m.Attribute(name); ok && !fd.Virtual {
		return fd.Column
	}
	return name
}

// Columns returns the column names of all non-virtual attributes.
func (m *Model) Columns() []string {
	cols := make([]string, 0, len(m.fields))
	for _, fd := range m.fields {
		if !fd.Virtual {
			cols = append(cols, fd.Column)
		}
	}
	return cols
}

// PrimaryKey returns the primary key attribute name, or "" if none.
func (m *Model) PrimaryKey() string { return m.primaryKey }

// PrimaryColumn returns the primary key column name, or "" if none.
func (m *Model) PrimaryColumn() string {
	if m.primaryKey == "" {
		return ""
	}
	return m.attrs[m.primaryKey].Column
}

// ShardingKey returns the sharding key attribute name, or "" if the model
// is not sharded.
func (m *Model) ShardingKey() string { return m.shardingKey }

// DeletedAt returns the soft delete attribute name, or "" if the model is
// not paranoid.
func (m *Model) DeletedAt() string { return m.timestamp("deletedAt") }

// CreatedAt returns the creation timestamp attribute name, or "".
func (m *Model) CreatedAt() string { return m.timestamp("createdAt") }

// UpdatedAt returns the update timestamp attribute name, or "".
func (m *Model) UpdatedAt() string { return m.timestamp("updatedAt") }

func (m *Model) timestamp(name string) string {
	if fd, ok := m.Attribute(name); ok && !fd.Virtual {
		return fd.Name
	}
	if fd, ok := m.Attribute(inflect.Underscore(name)); ok && !fd.Virtual {
		return fd.Name
	}
	return ""
}

// Paranoid reports if the model is soft deleted.
func (m *Model) Paranoid() bool { return m.DeletedAt() != "" }

// Edges returns the associations in declaration order.
func (m *Model) Edges() []*edge.Descriptor {
	return append([]*edge.Descriptor(nil), m.edges...)
}

// Edge returns the association with the given name.
func (m *Model) Edge(name string) (*edge.Descriptor, bool) {
	for _, ed := range m.edges {
		if ed.Name == name {
			return ed, true
		}
	}
	return nil, false
}
