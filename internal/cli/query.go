package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/syssam/grimoire/schema"
	"github.com/syssam/grimoire/spell"
)

// Query is the YAML description of one spell.
//
//	model: Post
//	command: select
//	columns: [id, title]
//	where: {title: {$like: "%go%"}}
//	with: [comments]
//	order: id desc
//	limit: 10
type Query struct {
	Model             string           `yaml:"model"`
	Command           string           `yaml:"command,omitempty"`
	Columns           []string         `yaml:"columns,omitempty"`
	Where             any              `yaml:"where,omitempty"`
	Values            []any            `yaml:"values,omitempty"`
	Group             []string         `yaml:"group,omitempty"`
	Having            any              `yaml:"having,omitempty"`
	Order             any              `yaml:"order,omitempty"`
	Limit             *int             `yaml:"limit,omitempty"`
	Offset            int              `yaml:"offset,omitempty"`
	With              []string         `yaml:"with,omitempty"`
	Set               map[string]any   `yaml:"set,omitempty"`
	Rows              []map[string]any `yaml:"rows,omitempty"`
	UniqueKeys        []string         `yaml:"uniqueKeys,omitempty"`
	UpdateOnDuplicate []string         `yaml:"updateOnDuplicate,omitempty"`
	Returning         []string         `yaml:"returning,omitempty"`
	Optimizer         string           `yaml:"optimizer,omitempty"`
	UseIndex          []string         `yaml:"useIndex,omitempty"`
	Unparanoid        bool             `yaml:"unparanoid,omitempty"`
	Unscoped          bool             `yaml:"unscoped,omitempty"`
}

// LoadQuery reads a query description file.
func LoadQuery(path string) (*Query, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseQuery(buf)
}

// ParseQuery decodes a query description.
func ParseQuery(buf []byte) (*Query, error) {
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	q := &Query{}
	if err := dec.Decode(q); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty query")
		}
		return nil, err
	}
	if q.Model == "" {
		return nil, errors.New("query without model")
	}
	return q, nil
}

// Spell builds the spell described by the query against the models of reg.
func (q *Query) Spell(reg *schema.Registry) (*spell.Spell, error) {
	m, err := reg.Lookup(q.Model)
	if err != nil {
		return nil, err
	}
	opt := spell.WithRegistry(reg)
	var s *spell.Spell
	switch spell.Command(q.Command) {
	case "", spell.CommandSelect:
		s = spell.Select(m, opt)
	case spell.CommandInsert:
		s = spell.Insert(m, q.Set, opt)
	case spell.CommandBulkInsert:
		s = spell.BulkInsert(m, q.Rows, opt)
	case spell.CommandUpdate:
		s = spell.Update(m, q.Set, opt)
	case spell.CommandDelete:
		s = spell.Delete(m, opt)
	case spell.CommandUpsert:
		s = spell.Upsert(m, q.Set, opt)
	default:
		return nil, fmt.Errorf("unknown command %q", q.Command)
	}
	if q.Unscoped {
		s.Unscoped()
	}
	if q.Unparanoid {
		s.Unparanoid()
	}
	if len(q.With) > 0 {
		s.With(q.With...)
	}
	if len(q.Columns) > 0 {
		s.Columns(strings.Join(q.Columns, ", "))
	}
	if q.Where != nil {
		s.Where(q.Where, q.Values...)
	}
	if len(q.Group) > 0 {
		s.Group(strings.Join(q.Group, ", "))
	}
	if q.Having != nil {
		s.Having(q.Having)
	}
	if q.Order != nil {
		order, err := orderOf(q.Order)
		if err != nil {
			return nil, err
		}
		s.Order(order)
	}
	if q.Limit != nil {
		s.Limit(*q.Limit)
	}
	if q.Offset > 0 {
		s.Offset(q.Offset)
	}
	if len(q.UniqueKeys) > 0 {
		s.UniqueKeys(q.UniqueKeys...)
	}
	if len(q.UpdateOnDuplicate) > 0 {
		s.UpdateOnDuplicate(q.UpdateOnDuplicate...)
	}
	if q.Returning != nil {
		s.Returning(q.Returning...)
	}
	if q.Optimizer != "" {
		s.Optimizer(q.Optimizer)
	}
	if len(q.UseIndex) > 0 {
		s.UseIndex(q.UseIndex...)
	}
	return s, nil
}

// orderOf converts a decoded order into the forms accepted by Spell.Order.
func orderOf(v any) (any, error) {
	switch o := v.(type) {
	case string:
		return o, nil
	case []any:
		parts := make([]string, len(o))
		for i, p := range o {
			s, ok := p.(string)
			if !ok {
				return nil, fmt.Errorf("invalid order %v", p)
			}
			parts[i] = s
		}
		return strings.Join(parts, ", "), nil
	case map[string]any:
		m := make(map[string]string, len(o))
		for k, d := range o {
			s, ok := d.(string)
			if !ok {
				return nil, fmt.Errorf("invalid order direction %v for %q", d, k)
			}
			m[k] = s
		}
		return m, nil
	}
	return nil, fmt.Errorf("invalid order %v", v)
}
