// Package load reads model definitions from YAML documents into a
// schema.Registry.
//
//	models:
//	  - name: Post
//	    table: articles
//	    mixins: [time, softDelete]
//	    fields:
//	      - {name: id, type: int64}
//	      - {name: title, type: string}
//	    edges:
//	      - {name: comments, kind: hasMany, model: Comment}
package load

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/syssam/grimoire/schema"
	"github.com/syssam/grimoire/schema/edge"
	"github.com/syssam/grimoire/schema/field"
	"github.com/syssam/grimoire/schema/mixin"
)

// Document is the root of a schema file.
type Document struct {
	Models []*Model `yaml:"models"`
}

// Model represents a schema.Model loaded from a document.
type Model struct {
	Name        string   `yaml:"name"`
	Table       string   `yaml:"table,omitempty"`
	Alias       string   `yaml:"alias,omitempty"`
	ShardingKey string   `yaml:"shardingKey,omitempty"`
	Mixins      []string `yaml:"mixins,omitempty"`
	Fields      []*Field `yaml:"fields,omitempty"`
	Edges       []*Edge  `yaml:"edges,omitempty"`
}

// Field represents a field.Descriptor loaded from a document.
type Field struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Column     string `yaml:"column,omitempty"`
	Unique     bool   `yaml:"unique,omitempty"`
	PrimaryKey bool   `yaml:"primaryKey,omitempty"`
	Nillable   bool   `yaml:"nillable,omitempty"`
	Virtual    bool   `yaml:"virtual,omitempty"`
	Comment    string `yaml:"comment,omitempty"`
}

// Edge represents an edge.Descriptor loaded from a document.
type Edge struct {
	Name       string `yaml:"name"`
	Kind       string `yaml:"kind"`
	Model      string `yaml:"model"`
	ForeignKey string `yaml:"foreignKey,omitempty"`
	Comment    string `yaml:"comment,omitempty"`
}

// Load reads the schema file at path and returns its validated registry.
func Load(path string) (*schema.Registry, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	reg, err := Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Parse decodes a schema document and returns its validated registry.
// Unknown keys are rejected.
func Parse(buf []byte) (*schema.Registry, error) {
	doc, err := UnmarshalDocument(buf)
	if err != nil {
		return nil, err
	}
	return doc.Registry()
}

// UnmarshalDocument decodes the given buffer to a document without building
// its models.
func UnmarshalDocument(buf []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	doc := &Document{}
	if err := dec.Decode(doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("load: empty document")
		}
		return nil, fmt.Errorf("load: %w", err)
	}
	return doc, nil
}

// Registry builds the models of the document and registers them. The
// associations of the registry are validated.
func (d *Document) Registry() (*schema.Registry, error) {
	if len(d.Models) == 0 {
		return nil, errors.New("load: no models defined")
	}
	models := make([]*schema.Model, 0, len(d.Models))
	for _, m := range d.Models {
		sm, err := m.build()
		if err != nil {
			return nil, err
		}
		models = append(models, sm)
	}
	reg, err := schema.NewRegistry(models...)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return reg, nil
}

func (m *Model) build() (*schema.Model, error) {
	var opts []schema.Option
	if m.Table != "" {
		opts = append(opts, schema.Table(m.Table))
	}
	if m.Alias != "" {
		opts = append(opts, schema.Alias(m.Alias))
	}
	fields := make([]field.Field, 0, len(m.Fields))
	for _, f := range m.Fields {
		b, err := f.builder()
		if err != nil {
			return nil, fmt.Errorf("load: model %q: %w", m.Name, err)
		}
		fields = append(fields, b)
	}
	opts = append(opts, schema.Fields(fields...))
	mixins := make([]mixin.Mixin, 0, len(m.Mixins))
	for _, name := range m.Mixins {
		mx, err := m.mixin(name)
		if err != nil {
			return nil, fmt.Errorf("load: model %q: %w", m.Name, err)
		}
		mixins = append(mixins, mx)
	}
	opts = append(opts, mixin.Apply(mixins...))
	edges := make([]edge.Edge, 0, len(m.Edges))
	for _, e := range m.Edges {
		b, err := e.builder()
		if err != nil {
			return nil, fmt.Errorf("load: model %q: %w", m.Name, err)
		}
		edges = append(edges, b)
	}
	opts = append(opts, schema.Edges(edges...))
	if m.ShardingKey != "" {
		opts = append(opts, schema.ShardingKey(m.ShardingKey))
	}
	sm, err := schema.NewModel(m.Name, opts...)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return sm, nil
}

// mixin resolves a mixin by name. The shardKey mixin adds the sharding key
// of the model, "tenantId" when none is set.
func (m *Model) mixin(name string) (mixin.Mixin, error) {
	switch name {
	case "time":
		return mixin.Time{}, nil
	case "createTime":
		return mixin.CreateTime{}, nil
	case "softDelete":
		return mixin.SoftDelete{}, nil
	case "timeSoftDelete":
		return mixin.TimeSoftDelete{}, nil
	case "shardKey":
		return mixin.ShardKey{Name: m.ShardingKey}, nil
	}
	return nil, fmt.Errorf("unknown mixin %q", name)
}

func (f *Field) builder() (*field.Builder, error) {
	if f.Name == "" {
		return nil, errors.New("field without name")
	}
	t, err := field.ParseType(f.Type)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", f.Name, err)
	}
	b := field.Of(f.Name, t)
	if f.Column != "" {
		b.Column(f.Column)
	}
	if f.Unique {
		b.Unique()
	}
	if f.PrimaryKey {
		b.PrimaryKey()
	}
	if f.Nillable {
		b.Nillable()
	}
	if f.Virtual {
		b.Virtual()
	}
	if f.Comment != "" {
		b.Comment(f.Comment)
	}
	return b, nil
}

func (e *Edge) builder() (*edge.Builder, error) {
	if e.Name == "" || e.Model == "" {
		return nil, fmt.Errorf("edge %q: missing name or model", e.Name)
	}
	var b *edge.Builder
	switch e.Kind {
	case "hasMany":
		b = edge.HasMany(e.Name, e.Model)
	case "hasOne":
		b = edge.HasOne(e.Name, e.Model)
	case "belongsTo":
		b = edge.BelongsTo(e.Name, e.Model)
	default:
		return nil, fmt.Errorf("edge %q: unknown kind %q", e.Name, e.Kind)
	}
	if e.ForeignKey != "" {
		b.ForeignKey(e.ForeignKey)
	}
	if e.Comment != "" {
		b.Comment(e.Comment)
	}
	return b, nil
}

// NewField creates a loaded field from a field descriptor.
func NewField(fd *field.Descriptor) *Field {
	return &Field{
		Name:       fd.Name,
		Type:       fd.Type.String(),
		Column:     fd.Column,
		Unique:     fd.Unique,
		PrimaryKey: fd.PrimaryKey,
		Nillable:   fd.Nillable,
		Virtual:    fd.Virtual,
		Comment:    fd.Comment,
	}
}

// NewEdge creates a loaded edge from an edge descriptor.
func NewEdge(ed *edge.Descriptor) *Edge {
	return &Edge{
		Name:       ed.Name,
		Kind:       ed.Kind.String(),
		Model:      ed.Type,
		ForeignKey: ed.ForeignKey,
		Comment:    ed.Comment,
	}
}

// NewModel creates a loaded model from a schema.Model. Mixed-in fields are
// listed as plain fields.
func NewModel(m *schema.Model) *Model {
	lm := &Model{
		Name:        m.Name(),
		Table:       m.Table(),
		Alias:       m.TableAlias(),
		ShardingKey: m.ShardingKey(),
	}
	for _, fd := range m.Attributes() {
		lm.Fields = append(lm.Fields, NewField(fd))
	}
	for _, ed := range m.Edges() {
		lm.Edges = append(lm.Edges, NewEdge(ed))
	}
	return lm
}

// Marshal encodes the models of the registry into a YAML document that
// Parse accepts.
func Marshal(reg *schema.Registry) ([]byte, error) {
	doc := &Document{}
	for _, m := range reg.Models() {
		doc.Models = append(doc.Models, NewModel(m))
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return buf.Bytes(), nil
}
