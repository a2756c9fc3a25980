// Package schema provides the declarative field and schema definitions that
// drive Refract's serialization, validation, and relationship resolution.
// A Schema is an ordered mapping of field name to Field, immutable once
// registered; restricted views are derived with Restrict, never by mutation.
package schema

import (
	"fmt"
)

// Kind represents the value kind of a field
type Kind int

const (
	// Scalar kinds
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTime

	// KindList is an ordered sequence of scalar elements
	KindList

	// KindRelation references another registered schema
	KindRelation
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindList:
		return "list"
	case KindRelation:
		return "relation"
	default:
		return "unknown"
	}
}

// ParseKind converts a string to a Kind
func ParseKind(s string) (Kind, error) {
	switch s {
	case "string":
		return KindString, nil
	case "int":
		return KindInt, nil
	case "float":
		return KindFloat, nil
	case "bool":
		return KindBool, nil
	case "time":
		return KindTime, nil
	case "list":
		return KindList, nil
	case "relation":
		return KindRelation, nil
	default:
		return 0, fmt.Errorf("unknown kind: %s", s)
	}
}

// ConstraintType represents the type of field constraint
type ConstraintType int

const (
	ConstraintMin ConstraintType = iota
	ConstraintMax
	ConstraintMinLength
	ConstraintMaxLength
	ConstraintPattern
	ConstraintOneOf
	ConstraintEmail
	ConstraintURL
	ConstraintUnique
)

// String returns the string representation of the constraint type
func (c ConstraintType) String() string {
	switch c {
	case ConstraintMin:
		return "min"
	case ConstraintMax:
		return "max"
	case ConstraintMinLength:
		return "min_length"
	case ConstraintMaxLength:
		return "max_length"
	case ConstraintPattern:
		return "pattern"
	case ConstraintOneOf:
		return "one_of"
	case ConstraintEmail:
		return "email"
	case ConstraintURL:
		return "url"
	case ConstraintUnique:
		return "unique"
	default:
		return "unknown"
	}
}

// Constraint represents a declarative field constraint. Message, when set,
// overrides the built-in failure message.
type Constraint struct {
	Type    ConstraintType
	Value   interface{}
	Message string
}

// ValidatorFunc is a custom per-field validation predicate. A non-nil error
// is reported as a field error using the error's message.
type ValidatorFunc func(value interface{}) error

// ObjectValidatorFunc validates the full candidate record after all field
// validation has run. Errors are reported under the object-level error key
// unless the returned error is a *FieldError.
type ObjectValidatorFunc func(record map[string]interface{}) error

// FieldError attributes an object-level validation failure to a single field.
type FieldError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Field describes one scalar, list, or relational attribute of a schema.
type Field struct {
	Name      string
	Kind      Kind
	Elem      Kind // element kind when Kind == KindList
	Required  bool
	ReadOnly  bool
	WriteOnly bool
	Nullable  bool

	// Default is applied on create when the field is absent from the input.
	// It may be a plain value or a func() interface{} evaluated per request.
	Default interface{}

	// Source is the dotted attribute path on the record this field reads from
	// and writes to. Empty means the field name itself.
	Source string

	Constraints []Constraint
	Validators  []ValidatorFunc

	// Messages overrides error messages by constraint name ("min", "required", ...)
	Messages map[string]string

	// Relation is set when Kind == KindRelation
	Relation *Relation
}

// SourcePath returns the record attribute path for the field
func (f *Field) SourcePath() string {
	if f.Source != "" {
		return f.Source
	}
	return f.Name
}

// Message returns the custom message for a constraint name, or fallback
func (f *Field) Message(name, fallback string) string {
	if f.Messages != nil {
		if m, ok := f.Messages[name]; ok {
			return m
		}
	}
	return fallback
}

// HasDefault reports whether the field declares a default value
func (f *Field) HasDefault() bool {
	return f.Default != nil
}

// DefaultValue resolves the field default, invoking it when callable
func (f *Field) DefaultValue() interface{} {
	if fn, ok := f.Default.(func() interface{}); ok {
		return fn()
	}
	return f.Default
}

// Cardinality represents the arity of a relationship
type Cardinality int

const (
	// One relates the record to a single target
	One Cardinality = iota
	// Many relates the record to an ordered collection of targets
	Many
)

// String returns the string representation of the cardinality
func (c Cardinality) String() string {
	if c == Many {
		return "many"
	}
	return "one"
}

// RelationMode represents the wire encoding of a relationship
type RelationMode int

const (
	// ModeIdentifier encodes the target's primary identifier
	ModeIdentifier RelationMode = iota
	// ModeNaturalKey encodes a designated unique field of the target
	ModeNaturalKey
	// ModeLink encodes a canonical locator string built from a route template
	ModeLink
	// ModeEmbedded encodes the full nested representation of the target
	ModeEmbedded
	// ModeTextual encodes a human-readable string; outbound only
	ModeTextual
)

// String returns the string representation of the relation mode
func (m RelationMode) String() string {
	switch m {
	case ModeIdentifier:
		return "identifier"
	case ModeNaturalKey:
		return "natural_key"
	case ModeLink:
		return "link"
	case ModeEmbedded:
		return "embedded"
	case ModeTextual:
		return "textual"
	default:
		return "unknown"
	}
}

// Relation describes how a relational field targets and encodes another
// registered schema.
type Relation struct {
	Target      string
	Cardinality Cardinality
	Mode        RelationMode

	// NaturalKey is the designated unique target field for ModeNaturalKey
	NaturalKey string

	// Route is the locator template for ModeLink, e.g. "/api/tracks/{id}"
	Route string

	// Render derives the outbound string for ModeTextual
	Render func(record map[string]interface{}) string

	// ForeignKey is the field on the target holding the parent identifier.
	// Required for embedded many relations so children can be queried and
	// reconciled against their parent.
	ForeignKey string

	// Discriminator and Variants describe a polymorphic relation: the wire
	// value carries an explicit discriminator whose value selects the target
	// schema. Target is ignored when Variants is set.
	Discriminator string
	Variants      map[string]string
}

// Polymorphic reports whether the relation resolves its target by discriminator
func (r *Relation) Polymorphic() bool {
	return len(r.Variants) > 0
}

// TargetFor resolves the target schema name for a discriminator value
func (r *Relation) TargetFor(discriminator string) (string, bool) {
	if !r.Polymorphic() {
		return r.Target, true
	}
	target, ok := r.Variants[discriminator]
	return target, ok
}

// ConfigError reports a schema misdeclaration. Configuration errors are fatal
// at startup and never surface at request time.
type ConfigError struct {
	Schema  string
	Field   string
	Message string
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema %s: field %s: %s", e.Schema, e.Field, e.Message)
	}
	return fmt.Sprintf("schema %s: %s", e.Schema, e.Message)
}

// Schema is an ordered mapping of field name to Field describing one record
// type's wire contract. Schemas are immutable after construction.
type Schema struct {
	name       string
	identifier string
	fields     []*Field
	index      map[string]int

	objectValidators []ObjectValidatorFunc
}

// Name returns the schema name
func (s *Schema) Name() string {
	return s.name
}

// Identifier returns the primary identifier field name
func (s *Schema) Identifier() string {
	return s.identifier
}

// Fields returns the fields in declaration order. The returned slice must not
// be modified.
func (s *Schema) Fields() []*Field {
	return s.fields
}

// Field returns the named field
func (s *Schema) Field(name string) (*Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.fields[i], true
}

// HasField reports whether the schema declares the named field
func (s *Schema) HasField(name string) bool {
	_, ok := s.index[name]
	return ok
}

// FieldNames returns the field names in declaration order
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// ObjectValidators returns the cross-field validators
func (s *Schema) ObjectValidators() []ObjectValidatorFunc {
	return s.objectValidators
}

// Restrict derives an immutable view of the schema retaining only the named
// fields, in the parent's declaration order. The retained fields share the
// parent's validators by reference. An unknown name is a configuration error.
func (s *Schema) Restrict(allow ...string) (*Schema, error) {
	allowed := make(map[string]bool, len(allow))
	for _, name := range allow {
		if !s.HasField(name) {
			return nil, &ConfigError{
				Schema:  s.name,
				Field:   name,
				Message: "unknown field in restriction allow-list",
			}
		}
		allowed[name] = true
	}

	view := &Schema{
		name:             s.name,
		identifier:       s.identifier,
		index:            make(map[string]int, len(allow)),
		objectValidators: s.objectValidators,
	}
	for _, f := range s.fields {
		if allowed[f.Name] {
			view.index[f.Name] = len(view.fields)
			view.fields = append(view.fields, f)
		}
	}
	return view, nil
}
