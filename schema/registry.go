package schema

import (
	"fmt"
	"sync"
)

// Registry manages all resource schemas in the application. Registration
// happens at process start; after that the registry is effectively read-only.
type Registry struct {
	schemas map[string]*Schema
	mu      sync.RWMutex
}

// NewRegistry creates a new schema registry
func NewRegistry() *Registry {
	return &Registry{
		schemas: make(map[string]*Schema),
	}
}

// Register registers a schema. Duplicate names are a configuration error.
func (r *Registry) Register(s *Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[s.Name()]; exists {
		return fmt.Errorf("schema %s is already registered", s.Name())
	}
	r.schemas[s.Name()] = s
	return nil
}

// MustRegister registers a schema and panics on error
func (r *Registry) MustRegister(s *Schema) {
	if err := r.Register(s); err != nil {
		panic(err)
	}
}

// Get retrieves a schema by name
func (r *Registry) Get(name string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schemas[name]
	return s, ok
}

// List returns the names of all registered schemas
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	return names
}

// Count returns the number of registered schemas
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.schemas)
}

// ValidateAll performs cross-schema validation after all schemas are
// registered: every relation target (including polymorphic variants) must
// resolve, and mode-specific requirements that depend on the target schema
// are checked here rather than at request time.
func (r *Registry) ValidateAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, s := range r.schemas {
		for _, f := range s.Fields() {
			if f.Kind != KindRelation {
				continue
			}
			rel := f.Relation

			targets := []string{rel.Target}
			if rel.Polymorphic() {
				targets = targets[:0]
				for _, t := range rel.Variants {
					targets = append(targets, t)
				}
			}

			for _, targetName := range targets {
				target, ok := r.schemas[targetName]
				if !ok {
					return &ConfigError{
						Schema:  name,
						Field:   f.Name,
						Message: fmt.Sprintf("relation targets unregistered schema %q", targetName),
					}
				}
				if rel.Mode == ModeNaturalKey && !target.HasField(rel.NaturalKey) {
					return &ConfigError{
						Schema:  name,
						Field:   f.Name,
						Message: fmt.Sprintf("natural key %q is not a field of %s", rel.NaturalKey, targetName),
					}
				}
				if rel.Mode == ModeEmbedded && rel.ForeignKey != "" && !target.HasField(rel.ForeignKey) {
					return &ConfigError{
						Schema:  name,
						Field:   f.Name,
						Message: fmt.Sprintf("foreign key %q is not a field of %s", rel.ForeignKey, targetName),
					}
				}
			}
		}
	}

	return nil
}
