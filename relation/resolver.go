// Package relation converts between in-memory related-object references and
// their wire encodings: identifier, natural key, link, embedded, and the
// outbound-only textual form. Embedded encoding recurses through the
// serialization engine and is delegated via the Nested seam.
package relation

import (
	"context"
	"errors"
	"fmt"

	"github.com/refractio/refract/schema"
	"github.com/refractio/refract/store"
	"github.com/refractio/refract/validation"
)

// Resolution errors
var (
	// ErrInboundTextual is returned when a textual relation is used inbound
	ErrInboundTextual = errors.New("textual relations are outbound-only")
)

// Ref is the internal reference produced by inbound resolution: the target's
// identifier plus, for polymorphic relations, the discriminator that selected
// the target schema.
type Ref struct {
	ID            interface{}
	Target        string
	Discriminator string
}

// Resolver converts relationship values between wire and internal form. It
// looks up targets through the store and target schemas through the registry.
type Resolver struct {
	registry *schema.Registry
	store    store.Store
}

// NewResolver creates a relationship resolver
func NewResolver(registry *schema.Registry, st store.Store) *Resolver {
	return &Resolver{
		registry: registry,
		store:    st,
	}
}

// Collection returns the backing collection for a target schema
func (r *Resolver) Collection(target string) store.Collection {
	return r.store.Collection(target)
}

// Resolve converts a stored reference (the target's identifier) to its
// outbound wire form for one of the reference modes. ModeEmbedded is the
// serializer's job and must not reach here. discriminator is the stored
// discriminator value for polymorphic relations, otherwise empty.
func (r *Resolver) Resolve(ctx context.Context, rel *schema.Relation, id interface{}, discriminator string) (interface{}, error) {
	if id == nil {
		return nil, nil
	}

	switch rel.Mode {
	case schema.ModeIdentifier:
		if rel.Polymorphic() {
			return map[string]interface{}{
				rel.Discriminator: discriminator,
				"id":              id,
			}, nil
		}
		return id, nil

	case schema.ModeNaturalKey:
		target, err := r.fetch(ctx, rel, id, discriminator)
		if err != nil {
			return nil, err
		}
		return target[rel.NaturalKey], nil

	case schema.ModeLink:
		return BuildLink(rel.Route, func(name string) (interface{}, error) {
			if name == "id" {
				return id, nil
			}
			target, err := r.fetch(ctx, rel, id, discriminator)
			if err != nil {
				return nil, err
			}
			return target[name], nil
		})

	case schema.ModeTextual:
		target, err := r.fetch(ctx, rel, id, discriminator)
		if err != nil {
			return nil, err
		}
		return rel.Render(target), nil

	default:
		return nil, fmt.Errorf("mode %s is not resolved by the reference resolver", rel.Mode)
	}
}

// ResolveMany applies Resolve element-wise, preserving source order
func (r *Resolver) ResolveMany(ctx context.Context, rel *schema.Relation, ids []interface{}) ([]interface{}, error) {
	out := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		value, err := r.Resolve(ctx, rel, id, "")
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, nil
}

// Accept converts an inbound wire value to an internal reference for one of
// the reference modes. A lookup miss is a field error carried in the returned
// error's message.
func (r *Resolver) Accept(ctx context.Context, rel *schema.Relation, raw interface{}) (*Ref, error) {
	switch rel.Mode {
	case schema.ModeIdentifier:
		return r.acceptIdentifier(ctx, rel, raw)

	case schema.ModeNaturalKey:
		return r.acceptNaturalKey(ctx, rel, raw)

	case schema.ModeLink:
		return r.acceptLink(ctx, rel, raw)

	case schema.ModeTextual:
		// Unreachable for well-formed schemas: the builder rejects writable
		// textual relations at registration time.
		return nil, ErrInboundTextual

	default:
		return nil, fmt.Errorf("mode %s is not accepted by the reference resolver", rel.Mode)
	}
}

// AcceptMany applies the single-value rule element-wise. The raw input must
// be a sequence; element failures aggregate keyed by element index so the
// caller sees every invalid entry at once.
func (r *Resolver) AcceptMany(ctx context.Context, rel *schema.Relation, raw interface{}) ([]*Ref, *validation.Errors) {
	items, ok := raw.([]interface{})
	if !ok {
		errs := validation.NewErrors()
		errs.Add(NonIndexedKey, "must be a list")
		return nil, errs
	}

	errs := validation.NewErrors()
	refs := make([]*Ref, 0, len(items))
	for i, item := range items {
		ref, err := r.Accept(ctx, rel, item)
		if err != nil {
			errs.Add(fmt.Sprintf("%d", i), err.Error())
			continue
		}
		refs = append(refs, ref)
	}
	if errs.HasErrors() {
		return nil, errs
	}
	return refs, nil
}

// NonIndexedKey keys a many-relation failure that is not attributable to a
// single element, e.g. the input not being a sequence at all.
const NonIndexedKey = "_"

func (r *Resolver) acceptIdentifier(ctx context.Context, rel *schema.Relation, raw interface{}) (*Ref, error) {
	target := rel.Target
	discriminator := ""
	id := raw

	if rel.Polymorphic() {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("must be an object carrying %q and \"id\"", rel.Discriminator)
		}
		disc, ok := obj[rel.Discriminator].(string)
		if !ok {
			return nil, fmt.Errorf("missing discriminator %q", rel.Discriminator)
		}
		resolved, ok := rel.TargetFor(disc)
		if !ok {
			return nil, fmt.Errorf("unknown %s %q", rel.Discriminator, disc)
		}
		target = resolved
		discriminator = disc
		id, ok = obj["id"]
		if !ok {
			return nil, fmt.Errorf("missing identifier")
		}
	}

	record, err := r.store.Collection(target).Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("object with id=%v does not exist", id)
		}
		return nil, err
	}

	sch, ok := r.registry.Get(target)
	if !ok {
		return nil, fmt.Errorf("unregistered target schema %q", target)
	}
	return &Ref{ID: record[sch.Identifier()], Target: target, Discriminator: discriminator}, nil
}

func (r *Resolver) acceptNaturalKey(ctx context.Context, rel *schema.Relation, raw interface{}) (*Ref, error) {
	matches, err := r.store.Collection(rel.Target).Query(ctx, store.Eq(rel.NaturalKey, raw))
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("object with %s=%v does not exist", rel.NaturalKey, raw)
	case 1:
		sch, ok := r.registry.Get(rel.Target)
		if !ok {
			return nil, fmt.Errorf("unregistered target schema %q", rel.Target)
		}
		return &Ref{ID: matches[0][sch.Identifier()], Target: rel.Target}, nil
	default:
		return nil, fmt.Errorf("%s=%v matches more than one object", rel.NaturalKey, raw)
	}
}

func (r *Resolver) acceptLink(ctx context.Context, rel *schema.Relation, raw interface{}) (*Ref, error) {
	locator, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("must be a locator string")
	}

	params, err := ParseLink(rel.Route, locator)
	if err != nil {
		return nil, err
	}

	if id, ok := params["id"]; ok {
		return r.acceptIdentifier(ctx, rel, id)
	}
	if rel.NaturalKey != "" {
		if value, ok := params[rel.NaturalKey]; ok {
			return r.acceptNaturalKey(ctx, rel, value)
		}
	}
	return nil, fmt.Errorf("locator carries no usable key")
}

func (r *Resolver) fetch(ctx context.Context, rel *schema.Relation, id interface{}, discriminator string) (store.Record, error) {
	target, ok := rel.TargetFor(discriminator)
	if !ok {
		return nil, fmt.Errorf("unknown %s %q", rel.Discriminator, discriminator)
	}
	return r.store.Collection(target).Get(ctx, id)
}
