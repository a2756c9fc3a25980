package serialize

import (
	"context"
	"errors"
	"fmt"

	"github.com/refractio/refract/relation"
	"github.com/refractio/refract/schema"
	"github.com/refractio/refract/store"
	"github.com/refractio/refract/validation"
)

// Create persists a validated payload as a new record. Scalar assignments and
// reference relations write into the base record; embedded children are
// created bound to the new parent. Uniqueness is re-checked inside the scoped
// transaction so the validation-time check cannot race a concurrent writer.
func (e *Engine) Create(ctx context.Context, s *schema.Schema, col store.Collection, payload *validation.Payload) (store.Record, error) {
	fields, err := payload.Consume()
	if err != nil {
		return nil, err
	}

	base, embedded := e.splitWrite(s, fields)

	// Every embedded item on a create is a new child; an identifier means
	// the payload bypassed acceptance.
	for _, group := range embedded {
		items := group.many
		if group.one != nil {
			items = []*NestedItem{group.one}
		}
		for _, item := range items {
			if item.ID != nil {
				errs := validation.NewErrors()
				errs.Add(group.field.Name, fmt.Sprintf("child with id=%v cannot be attached on create", item.ID))
				return nil, errs
			}
		}
	}

	// Embedded one relations are created first so the base record can hold
	// the child reference.
	type createdChild struct {
		col    store.Collection
		record store.Record
	}
	var createdOnes []createdChild
	for _, group := range embedded {
		if group.relation.Cardinality != schema.One {
			continue
		}
		child, err := e.writeNestedOne(ctx, group, group.one)
		if err != nil {
			return nil, err
		}
		if child == nil {
			setPath(base, group.field.SourcePath(), nil)
			continue
		}
		createdOnes = append(createdOnes, createdChild{e.store.Collection(group.relation.Target), child})
		target, _ := e.registry.Get(group.relation.Target)
		setPath(base, group.field.SourcePath(), child[target.Identifier()])
	}

	var created store.Record
	err = col.Atomic(ctx, func(tx store.Collection) error {
		if err := e.recheckUnique(ctx, tx, s, base, nil); err != nil {
			return err
		}
		var err error
		created, err = tx.Create(ctx, base)
		return err
	})
	if err != nil {
		// The base record never existed, so children created ahead of it
		// must not survive.
		for _, child := range createdOnes {
			child.col.Delete(ctx, child.record)
		}
		return nil, err
	}

	parentID := created[s.Identifier()]
	for _, group := range embedded {
		if group.relation.Cardinality != schema.Many {
			continue
		}
		childCol := e.store.Collection(group.relation.Target)
		err := childCol.Atomic(ctx, func(tx store.Collection) error {
			for _, item := range group.many {
				childFields, err := e.nestedFields(group.relation.Target, item)
				if err != nil {
					return err
				}
				setPath(childFields, group.relation.ForeignKey, parentID)
				if _, err := tx.Create(ctx, childFields); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	for _, hook := range e.hooks.PostCreate {
		if err := hook(ctx, s, created); err != nil {
			return nil, err
		}
	}

	return col.Get(ctx, parentID)
}

// Update applies a validated payload to an existing record. Fields present in
// the payload overwrite; fields absent are left untouched. Embedded many
// relations reconcile by identity, one relation at a time in schema order,
// each batch ordered delete, then update, then create inside the child
// collection's scoped transaction.
func (e *Engine) Update(ctx context.Context, s *schema.Schema, col store.Collection, record store.Record, payload *validation.Payload) (store.Record, error) {
	fields, err := payload.Consume()
	if err != nil {
		return nil, err
	}

	base, embedded := e.splitWrite(s, fields)
	recordID := record[s.Identifier()]

	for _, group := range embedded {
		if group.relation.Cardinality != schema.One {
			continue
		}
		if group.explicitNull {
			setPath(base, group.field.SourcePath(), nil)
			continue
		}
		if group.one == nil {
			continue
		}
		child, err := e.writeNestedOne(ctx, group, group.one)
		if err != nil {
			return nil, err
		}
		target, _ := e.registry.Get(group.relation.Target)
		setPath(base, group.field.SourcePath(), child[target.Identifier()])
	}

	err = col.Atomic(ctx, func(tx store.Collection) error {
		if err := e.recheckUnique(ctx, tx, s, base, recordID); err != nil {
			return err
		}
		var err error
		record, err = tx.Update(ctx, record, base)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, group := range embedded {
		if group.relation.Cardinality != schema.Many {
			continue
		}
		if err := e.reconcile(ctx, group, recordID); err != nil {
			return nil, err
		}
	}

	for _, hook := range e.hooks.PostUpdate {
		if err := hook(ctx, s, record); err != nil {
			return nil, err
		}
	}

	return col.Get(ctx, recordID)
}

// reconcile diffs an embedded many collection against its incoming items by
// identity: unmatched existing children are deleted, matched ones updated
// with the fields present in their item, and identifier-less items created.
// The delete, update, create order avoids identifier collisions.
func (e *Engine) reconcile(ctx context.Context, group *writeGroup, parentID interface{}) error {
	rel := group.relation
	childCol := e.store.Collection(rel.Target)
	target, ok := e.registry.Get(rel.Target)
	if !ok {
		return fmt.Errorf("unregistered target schema %q", rel.Target)
	}

	return childCol.Atomic(ctx, func(tx store.Collection) error {
		existing, err := tx.Query(ctx, store.Eq(rel.ForeignKey, parentID))
		if err != nil {
			return err
		}

		byID := make(map[string]store.Record, len(existing))
		for _, child := range existing {
			byID[keyOf(child[target.Identifier()])] = child
		}

		incoming := make(map[string]bool, len(group.many))
		for _, item := range group.many {
			if item.ID != nil {
				incoming[keyOf(item.ID)] = true
			}
		}

		// Delete children absent from the incoming collection.
		for key, child := range byID {
			if !incoming[key] {
				if err := tx.Delete(ctx, child); err != nil {
					return err
				}
			}
		}

		// Update matched children with only the fields present per item.
		for _, item := range group.many {
			if item.ID == nil {
				continue
			}
			child, ok := byID[keyOf(item.ID)]
			if !ok {
				errs := validation.NewErrors()
				errs.Add(group.field.Name, fmt.Sprintf("child with id=%v does not exist", item.ID))
				return errs
			}
			childFields, err := e.nestedFields(rel.Target, item)
			if err != nil {
				return err
			}
			if _, err := tx.Update(ctx, child, childFields); err != nil {
				return err
			}
		}

		// Create identifier-less items as new children.
		for _, item := range group.many {
			if item.ID != nil {
				continue
			}
			childFields, err := e.nestedFields(rel.Target, item)
			if err != nil {
				return err
			}
			setPath(childFields, rel.ForeignKey, parentID)
			if _, err := tx.Create(ctx, childFields); err != nil {
				return err
			}
		}

		return nil
	})
}

// writeGroup is the per-relation working set split out of a consumed payload
type writeGroup struct {
	field        *schema.Field
	relation     *schema.Relation
	one          *NestedItem
	many         []*NestedItem
	explicitNull bool
}

// splitWrite separates a consumed payload into base-record assignments
// (scalars, lists, and resolved references) and embedded relation groups.
func (e *Engine) splitWrite(s *schema.Schema, fields map[string]interface{}) (store.Record, []*writeGroup) {
	base := make(store.Record)
	var embedded []*writeGroup

	for _, f := range s.Fields() {
		value, ok := fields[f.Name]
		if !ok {
			continue
		}

		if f.Kind != schema.KindRelation {
			setPath(base, f.SourcePath(), value)
			continue
		}

		rel := f.Relation
		if rel.Mode == schema.ModeEmbedded {
			group := &writeGroup{field: f, relation: rel}
			switch v := value.(type) {
			case *NestedItem:
				group.one = v
			case []*NestedItem:
				group.many = v
			case nil:
				group.explicitNull = true
			}
			embedded = append(embedded, group)
			continue
		}

		switch v := value.(type) {
		case *relation.Ref:
			setPath(base, f.SourcePath(), v.ID)
			if rel.Polymorphic() {
				setPath(base, rel.Discriminator, v.Discriminator)
			}
		case []*relation.Ref:
			ids := make([]interface{}, len(v))
			for i, ref := range v {
				ids[i] = ref.ID
			}
			setPath(base, f.SourcePath(), ids)
		case nil:
			setPath(base, f.SourcePath(), nil)
		}
	}

	return base, embedded
}

// writeNestedOne creates or updates the single child of an embedded one
// relation and returns the stored child record.
func (e *Engine) writeNestedOne(ctx context.Context, group *writeGroup, item *NestedItem) (store.Record, error) {
	if item == nil {
		return nil, nil
	}
	childCol := e.store.Collection(group.relation.Target)
	childFields, err := e.nestedFields(group.relation.Target, item)
	if err != nil {
		return nil, err
	}

	if item.ID == nil {
		return childCol.Create(ctx, childFields)
	}

	child, err := childCol.Get(ctx, item.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			errs := validation.NewErrors()
			errs.Add(group.field.Name, fmt.Sprintf("child with id=%v does not exist", item.ID))
			return nil, errs
		}
		return nil, err
	}
	return childCol.Update(ctx, child, childFields)
}

// nestedFields materializes a nested item's payload into child record
// assignments keyed by source path. Nested embedded relations recurse through
// splitWrite at their own write time; reference relations resolve here.
func (e *Engine) nestedFields(targetName string, item *NestedItem) (store.Record, error) {
	target, ok := e.registry.Get(targetName)
	if !ok {
		return nil, fmt.Errorf("unregistered target schema %q", targetName)
	}
	fields, err := item.Payload.Consume()
	if err != nil {
		return nil, err
	}
	base, nested := e.splitWrite(target, fields)
	if len(nested) > 0 {
		return nil, fmt.Errorf("schema %s: embedded relations nested below an embedded relation are not supported", targetName)
	}
	return base, nil
}

// recheckUnique re-evaluates unique constraints against the transaction-scoped
// collection immediately before the write, closing the race between the
// validation-time check and the eventual create or update. A lookup failure is
// a store error, not a pass.
func (e *Engine) recheckUnique(ctx context.Context, tx store.Collection, s *schema.Schema, base store.Record, excludeID interface{}) error {
	errs := validation.NewErrors()

	for _, f := range s.Fields() {
		if !fieldUnique(f) {
			continue
		}
		value, ok := getPath(base, f.SourcePath())
		if !ok || value == nil {
			continue
		}
		matches, err := tx.Query(ctx, store.Eq(f.SourcePath(), value))
		if err != nil {
			return err
		}
		for _, match := range matches {
			if excludeID != nil && keyOf(match[s.Identifier()]) == keyOf(excludeID) {
				continue
			}
			errs.Add(f.Name, f.Message("unique", "already exists"))
			break
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func fieldUnique(f *schema.Field) bool {
	for _, c := range f.Constraints {
		if c.Type == schema.ConstraintUnique {
			return true
		}
	}
	return false
}

// keyOf normalizes identifier values for matching across the numeric types
// JSON decoding and store drivers produce.
func keyOf(v interface{}) string {
	switch n := v.(type) {
	case float64:
		if n == float64(int64(n)) {
			return fmt.Sprintf("%d", int64(n))
		}
		return fmt.Sprintf("%v", n)
	case float32:
		return keyOf(float64(n))
	default:
		return fmt.Sprintf("%v", v)
	}
}
