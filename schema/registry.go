package schema

import (
	"errors"
	"fmt"
	"sync"

	"github.com/syssam/grimoire/schema/edge"
)

// ErrModelNotFound is returned when a model name is not registered.
var ErrModelNotFound = errors.New("schema: model not found")

// Registry resolves models by logical name. It is passed explicitly to the
// query builders that need to follow associations.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model
	order  []string
}

// NewRegistry returns a registry holding the given models.
func NewRegistry(models ...*Model) (*Registry, error) {
	r := &Registry{models: make(map[string]*Model, len(models))}
	for _, m := range models {
		if err := r.Register(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a model to the registry.
func (r *Registry) Register(m *Model) error {
	if m == nil {
		return fmt.Errorf("%w: nil model", ErrInvalidModel)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[m.name]; ok {
		return fmt.Errorf("%w: %s registered twice", ErrInvalidModel, m.name)
	}
	r.models[m.name] = m
	r.order = append(r.order, m.name)
	return nil
}

// Lookup returns the model registered under the given name.
func (r *Registry) Lookup(name string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrModelNotFound, name)
	}
	return m, nil
}

// Models returns the registered models in registration order.
func (r *Registry) Models() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	models := make([]*Model, 0, len(r.order))
	for _, name := range r.order {
		models = append(models, r.models[name])
	}
	return models
}

// Validate checks that every association targets a registered model and that
// has* foreign keys exist on their targets.
func (r *Registry) Validate() error {
	var errs []error
	for _, m := range r.Models() {
		for _, ed := range m.edges {
			target, err := r.Lookup(ed.Type)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s.%s: %w", m.name, ed.Name, err))
				continue
			}
			if ed.Kind != edge.KindBelongsTo {
				if _, ok := target.Attribute(ed.ForeignKey); !ok {
					errs = append(errs, fmt.Errorf("%w %s.%s: foreign key %q missing on %s", ErrInvalidModel, m.name, ed.Name, ed.ForeignKey, target.name))
				}
			}
		}
	}
	return errors.Join(errs...)
}
