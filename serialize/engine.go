// Package serialize orchestrates field specifications and the relationship
// resolver into two-way transformation between stored records and their wire
// representation, including nested create and update reconciliation.
package serialize

import (
	"context"
	"fmt"

	"github.com/refractio/refract/relation"
	"github.com/refractio/refract/schema"
	"github.com/refractio/refract/store"
	"github.com/refractio/refract/validation"
)

// HookFunc is an explicit post-write hook invoked by the engine after a
// create or update commits. Hooks are pipeline stages, never ambient event
// subscriptions.
type HookFunc func(ctx context.Context, s *schema.Schema, record store.Record) error

// Hooks configures the engine's explicit hook points
type Hooks struct {
	// PostRepresent post-processes an outbound representation
	PostRepresent func(s *schema.Schema, rep map[string]interface{}) map[string]interface{}

	PostCreate []HookFunc
	PostUpdate []HookFunc
}

// Engine performs schema-driven serialization. It is configuration: built at
// process start and shared read-only across requests.
type Engine struct {
	registry  *schema.Registry
	store     store.Store
	resolver  *relation.Resolver
	validator *validation.Engine
	hooks     Hooks
}

// NewEngine creates a serialization engine over a registry and store
func NewEngine(registry *schema.Registry, st store.Store) *Engine {
	return &Engine{
		registry:  registry,
		store:     st,
		resolver:  relation.NewResolver(registry, st),
		validator: validation.NewEngine(),
	}
}

// WithHooks installs explicit hook points and returns the engine
func (e *Engine) WithHooks(hooks Hooks) *Engine {
	e.hooks = hooks
	return e
}

// Resolver returns the engine's relationship resolver
func (e *Engine) Resolver() *relation.Resolver {
	return e.resolver
}

// Representation converts a stored record to its outbound wire form, visiting
// visible fields in schema order. Write-only fields are omitted. A missing or
// unresolvable related object degrades that field to null instead of failing
// the whole record: broken references are a data-integrity condition, not a
// serialization failure.
func (e *Engine) Representation(ctx context.Context, s *schema.Schema, record store.Record) map[string]interface{} {
	rep := make(map[string]interface{}, len(s.Fields()))

	for _, f := range s.Fields() {
		if f.WriteOnly {
			continue
		}

		if f.Kind != schema.KindRelation {
			value, ok := getPath(record, f.SourcePath())
			if !ok {
				rep[f.Name] = nil
				continue
			}
			rep[f.Name] = value
			continue
		}

		rep[f.Name] = e.representRelation(ctx, s, f, record)
	}

	if e.hooks.PostRepresent != nil {
		rep = e.hooks.PostRepresent(s, rep)
	}
	return rep
}

// RepresentAll converts a sequence of records, preserving order
func (e *Engine) RepresentAll(ctx context.Context, s *schema.Schema, records []store.Record) []map[string]interface{} {
	out := make([]map[string]interface{}, len(records))
	for i, rec := range records {
		out[i] = e.Representation(ctx, s, rec)
	}
	return out
}

func (e *Engine) representRelation(ctx context.Context, s *schema.Schema, f *schema.Field, record store.Record) interface{} {
	rel := f.Relation

	if rel.Mode == schema.ModeEmbedded {
		return e.representEmbedded(ctx, s, f, record)
	}

	if rel.Cardinality == schema.Many {
		raw, ok := getPath(record, f.SourcePath())
		if !ok || raw == nil {
			return []interface{}{}
		}
		ids, ok := raw.([]interface{})
		if !ok {
			return []interface{}{}
		}
		values, err := e.resolver.ResolveMany(ctx, rel, ids)
		if err != nil {
			return nil
		}
		return values
	}

	id, _ := getPath(record, f.SourcePath())
	discriminator := ""
	if rel.Polymorphic() {
		if d, ok := getPath(record, rel.Discriminator); ok {
			discriminator, _ = d.(string)
		}
	}
	value, err := e.resolver.Resolve(ctx, rel, id, discriminator)
	if err != nil {
		// Degraded field: the rest of the record still serializes.
		return nil
	}
	return value
}

func (e *Engine) representEmbedded(ctx context.Context, s *schema.Schema, f *schema.Field, record store.Record) interface{} {
	rel := f.Relation
	target, ok := e.registry.Get(rel.Target)
	if !ok {
		return nil
	}

	if rel.Cardinality == schema.Many {
		parentID, ok := getPath(record, s.Identifier())
		if !ok {
			return []interface{}{}
		}
		children, err := e.store.Collection(rel.Target).Query(ctx, store.Eq(rel.ForeignKey, parentID))
		if err != nil {
			return nil
		}
		out := make([]interface{}, len(children))
		for i, child := range children {
			out[i] = e.Representation(ctx, target, child)
		}
		return out
	}

	id, ok := getPath(record, f.SourcePath())
	if !ok || id == nil {
		return nil
	}
	child, err := e.store.Collection(rel.Target).Get(ctx, id)
	if err != nil {
		return nil
	}
	return e.Representation(ctx, target, child)
}

// AcceptOptions configures inbound acceptance
type AcceptOptions struct {
	// Partial applies partial-update semantics
	Partial bool

	// Updating marks the acceptance as backing an update write. Only then may
	// embedded items reference existing children by identifier; on a create
	// every embedded item is a new child and an identifier is a field error.
	Updating bool

	// Collection backs uniqueness checks for the base record
	Collection store.Collection

	// ExcludeID excludes the record being updated from uniqueness lookups
	ExcludeID interface{}
}

// NestedItem is one accepted element of an embedded relation: its validated
// payload plus, when present, the identifier matching it to an existing child.
type NestedItem struct {
	ID      interface{}
	Payload *validation.Payload
}

// Accept runs the validator pipeline and relationship resolution over a raw
// wire mapping, producing the validated payload consumed by Create or Update.
// Scalar and relational failures aggregate into one error set; nested
// embedded failures surface keyed by field path.
func (e *Engine) Accept(ctx context.Context, s *schema.Schema, raw map[string]interface{}, opts AcceptOptions) (*validation.Payload, *validation.Errors) {
	payload, errs := e.validator.Validate(ctx, s, raw, validation.Options{
		Partial:    opts.Partial,
		Collection: opts.Collection,
		ExcludeID:  opts.ExcludeID,
	})
	if errs == nil {
		errs = validation.NewErrors()
	}

	resolved := make(map[string]interface{})
	for _, f := range s.Fields() {
		if f.Kind != schema.KindRelation || f.ReadOnly {
			continue
		}
		value, present := raw[f.Name]
		if !present {
			continue
		}
		if value == nil {
			// Nullability was already judged by the pipeline.
			continue
		}

		rel := f.Relation
		if rel.Mode == schema.ModeEmbedded {
			items, nested := e.acceptEmbedded(ctx, f, value, opts.Updating)
			if nested != nil {
				errs.Merge(f.Name, nested)
				continue
			}
			resolved[f.Name] = items
			continue
		}

		if rel.Cardinality == schema.Many {
			refs, many := e.resolver.AcceptMany(ctx, rel, value)
			if many != nil {
				for key, messages := range many.Fields {
					for _, msg := range messages {
						if key == relation.NonIndexedKey {
							errs.Add(f.Name, msg)
						} else {
							errs.Add(f.Name+"."+key, msg)
						}
					}
				}
				continue
			}
			resolved[f.Name] = refs
			continue
		}

		ref, err := e.resolver.Accept(ctx, rel, value)
		if err != nil {
			errs.Add(f.Name, err.Error())
			continue
		}
		resolved[f.Name] = ref
	}

	if errs.HasErrors() {
		return nil, errs
	}

	// Fold resolved relation values over the pipeline's raw carry-through.
	fields, err := payload.Consume()
	if err != nil {
		errs.AddObject(err.Error())
		return nil, errs
	}
	for name, value := range resolved {
		fields[name] = value
	}
	return validation.NewPayload(fields, opts.Partial), nil
}

// acceptEmbedded recursively accepts an embedded relation value. On an update,
// items carrying a non-null identifier validate with partial semantics against
// the existing child; items without one (including an explicit null) validate
// as full creates. On a create an identifier is a field error.
func (e *Engine) acceptEmbedded(ctx context.Context, f *schema.Field, value interface{}, updating bool) (interface{}, *validation.Errors) {
	rel := f.Relation
	target, ok := e.registry.Get(rel.Target)
	if !ok {
		errs := validation.NewErrors()
		errs.AddObject(fmt.Sprintf("unregistered target schema %q", rel.Target))
		return nil, errs
	}

	acceptOne := func(raw interface{}) (*NestedItem, *validation.Errors) {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			errs := validation.NewErrors()
			errs.AddObject("must be an object")
			return nil, errs
		}

		id, present := obj[target.Identifier()]
		hasID := present && id != nil
		if hasID && !updating {
			errs := validation.NewErrors()
			errs.Add(target.Identifier(), "cannot reference an existing child on create")
			return nil, errs
		}

		var excludeID interface{}
		if hasID {
			excludeID = id
		}
		payload, errs := e.Accept(ctx, target, obj, AcceptOptions{
			Partial:    hasID,
			Updating:   hasID,
			Collection: e.store.Collection(rel.Target),
			ExcludeID:  excludeID,
		})
		if errs != nil {
			return nil, errs
		}
		item := &NestedItem{Payload: payload}
		if hasID {
			item.ID = id
		}
		return item, nil
	}

	if rel.Cardinality == schema.One {
		item, errs := acceptOne(value)
		if errs != nil {
			return nil, errs
		}
		return item, nil
	}

	items, ok := value.([]interface{})
	if !ok {
		errs := validation.NewErrors()
		errs.AddObject("must be a list")
		return nil, errs
	}

	out := make([]*NestedItem, 0, len(items))
	all := validation.NewErrors()
	for i, raw := range items {
		item, errs := acceptOne(raw)
		if errs != nil {
			all.Merge(fmt.Sprintf("%d", i), errs)
			continue
		}
		out = append(out, item)
	}
	if all.HasErrors() {
		return nil, all
	}
	return out, nil
}
