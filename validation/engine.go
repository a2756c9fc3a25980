package validation

import (
	"context"
	"fmt"

	"github.com/refractio/refract/schema"
	"github.com/refractio/refract/store"
)

// Options configures a pipeline run
type Options struct {
	// Partial applies partial-update semantics: absent fields are skipped
	// instead of defaulted or required.
	Partial bool

	// Collection backs the uniqueness stage. Nil skips uniqueness checks.
	Collection store.Collection

	// ExcludeID excludes the record being updated from uniqueness lookups
	ExcludeID interface{}
}

// Engine runs the validator pipeline for a schema. Stages run in order
// (presence, coercion, per-field validators, object-level validation,
// uniqueness) and all stages always run so failures aggregate into a single
// error set. Within one field, a coercion failure aborts that field's
// remaining validators only.
type Engine struct{}

// NewEngine creates a validation engine
func NewEngine() *Engine {
	return &Engine{}
}

// Validate runs the pipeline over a raw wire mapping. Relation field values
// are carried through untyped for the relationship resolver; everything else
// is coerced and validated. On failure the payload is nil and the error set
// contains every recorded failure.
func (e *Engine) Validate(ctx context.Context, s *schema.Schema, raw map[string]interface{}, opts Options) (*Payload, *Errors) {
	errs := NewErrors()
	fields := make(map[string]interface{})

	for _, f := range s.Fields() {
		if f.ReadOnly {
			// Inbound values for read-only fields are ignored, not errors.
			continue
		}

		value, present := raw[f.Name]

		// Stage 1: presence.
		if !present {
			if opts.Partial {
				continue
			}
			if f.HasDefault() {
				fields[f.Name] = f.DefaultValue()
				continue
			}
			if f.Required {
				errs.Add(f.Name, f.Message("required", "is required"))
			}
			continue
		}

		if value == nil {
			if !f.Nullable {
				errs.Add(f.Name, f.Message("null", "may not be null"))
				continue
			}
			fields[f.Name] = nil
			continue
		}

		if f.Kind == schema.KindRelation {
			// Conversion and lookup are the relationship resolver's job.
			fields[f.Name] = value
			continue
		}

		// Stage 2: type coercion. Failure aborts this field's validators.
		typed, ok := e.coerceField(f, value, errs)
		if !ok {
			continue
		}

		// Stage 3: declarative constraints and custom validators.
		for _, c := range f.Constraints {
			if c.Type == schema.ConstraintUnique {
				continue
			}
			if err := checkConstraint(f, c, typed); err != nil {
				errs.Add(f.Name, err.Error())
			}
		}
		for _, validate := range f.Validators {
			if err := validate(typed); err != nil {
				errs.Add(f.Name, err.Error())
			}
		}

		fields[f.Name] = typed
	}

	// Stage 4: cross-field object validation over the candidate record.
	candidate := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		candidate[k] = v
	}
	for _, validate := range s.ObjectValidators() {
		if err := validate(candidate); err != nil {
			var fieldErr *schema.FieldError
			if ok := asFieldError(err, &fieldErr); ok {
				errs.Add(fieldErr.Field, fieldErr.Message)
			} else {
				errs.AddObject(err.Error())
			}
		}
	}

	// Stage 5: uniqueness against the backing collection.
	e.checkUniqueness(ctx, s, fields, opts, errs)

	if errs.HasErrors() {
		return nil, errs
	}
	return NewPayload(fields, opts.Partial), nil
}

func (e *Engine) coerceField(f *schema.Field, value interface{}, errs *Errors) (interface{}, bool) {
	if f.Kind == schema.KindList {
		typed, failures := coerceList(value, f.Elem)
		if failures != nil {
			for _, msg := range failures {
				errs.Add(f.Name, msg)
			}
			return nil, false
		}
		return typed, true
	}

	typed, err := coerce(value, f.Kind)
	if err != nil {
		errs.Add(f.Name, f.Message("invalid", err.Error()))
		return nil, false
	}
	return typed, true
}

// checkUniqueness queries the collection for records carrying the same value
// in a unique-constrained field. The serializer re-runs this check inside the
// write transaction; this pass exists for early, aggregated feedback.
func (e *Engine) checkUniqueness(ctx context.Context, s *schema.Schema, fields map[string]interface{}, opts Options, errs *Errors) {
	if opts.Collection == nil {
		return
	}

	for _, f := range s.Fields() {
		if !hasUnique(f) {
			continue
		}
		value, ok := fields[f.Name]
		if !ok || value == nil {
			continue
		}

		matches, err := opts.Collection.Query(ctx, store.Eq(f.SourcePath(), value))
		if err != nil {
			errs.Add(f.Name, fmt.Sprintf("uniqueness check failed: %v", err))
			continue
		}
		for _, match := range matches {
			if opts.ExcludeID != nil && fmt.Sprintf("%v", match[s.Identifier()]) == fmt.Sprintf("%v", opts.ExcludeID) {
				continue
			}
			errs.Add(f.Name, f.Message("unique", "already exists"))
			break
		}
	}
}

func hasUnique(f *schema.Field) bool {
	for _, c := range f.Constraints {
		if c.Type == schema.ConstraintUnique {
			return true
		}
	}
	return false
}

func asFieldError(err error, target **schema.FieldError) bool {
	fe, ok := err.(*schema.FieldError)
	if ok {
		*target = fe
	}
	return ok
}
