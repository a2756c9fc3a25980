package schema

// Builder assembles an immutable Schema. All structural misdeclarations are
// reported from Build, before the schema can ever serve a request.
type Builder struct {
	name       string
	identifier string
	fields     []*Field
	objectV    []ObjectValidatorFunc
}

// NewBuilder creates a schema builder. The identifier field defaults to "id".
func NewBuilder(name string) *Builder {
	return &Builder{
		name:       name,
		identifier: "id",
	}
}

// Identifier sets the primary identifier field name
func (b *Builder) Identifier(name string) *Builder {
	b.identifier = name
	return b
}

// Field appends a field declaration
func (b *Builder) Field(f *Field) *Builder {
	b.fields = append(b.fields, f)
	return b
}

// Scalar appends a scalar field with the given kind
func (b *Builder) Scalar(name string, kind Kind, opts ...FieldOption) *Builder {
	f := &Field{Name: name, Kind: kind}
	for _, opt := range opts {
		opt(f)
	}
	return b.Field(f)
}

// List appends a list field with the given element kind
func (b *Builder) List(name string, elem Kind, opts ...FieldOption) *Builder {
	f := &Field{Name: name, Kind: KindList, Elem: elem}
	for _, opt := range opts {
		opt(f)
	}
	return b.Field(f)
}

// Relation appends a relational field
func (b *Builder) Relation(name string, rel *Relation, opts ...FieldOption) *Builder {
	f := &Field{Name: name, Kind: KindRelation, Relation: rel}
	for _, opt := range opts {
		opt(f)
	}
	return b.Field(f)
}

// Validate appends a cross-field object validator
func (b *Builder) Validate(fn ObjectValidatorFunc) *Builder {
	b.objectV = append(b.objectV, fn)
	return b
}

// Build validates the declarations and returns the immutable schema
func (b *Builder) Build() (*Schema, error) {
	s := &Schema{
		name:             b.name,
		identifier:       b.identifier,
		index:            make(map[string]int, len(b.fields)),
		objectValidators: b.objectV,
	}

	for _, f := range b.fields {
		if err := b.checkField(f); err != nil {
			return nil, err
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, &ConfigError{Schema: b.name, Field: f.Name, Message: "duplicate field"}
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}

	return s, nil
}

// MustBuild builds the schema and panics on a configuration error. Schemas
// are constructed at process start, so a misdeclaration should be fatal.
func (b *Builder) MustBuild() *Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

func (b *Builder) checkField(f *Field) error {
	fail := func(msg string) error {
		return &ConfigError{Schema: b.name, Field: f.Name, Message: msg}
	}

	if f.Name == "" {
		return fail("field name must not be empty")
	}
	if f.ReadOnly && f.Required {
		return fail("field cannot be both read-only and required")
	}
	if f.ReadOnly && f.WriteOnly {
		return fail("field cannot be both read-only and write-only")
	}

	if f.Kind == KindRelation {
		rel := f.Relation
		if rel == nil {
			return fail("relational field is missing its relation descriptor")
		}
		if rel.Target == "" && !rel.Polymorphic() {
			return fail("relation must declare a target schema")
		}
		switch rel.Mode {
		case ModeNaturalKey:
			if rel.NaturalKey == "" {
				return fail("natural_key relation must designate a key field")
			}
		case ModeLink:
			if rel.Route == "" {
				return fail("link relation must declare a route template")
			}
		case ModeTextual:
			// Textual is outbound only: accepting it inbound is a misdeclaration.
			if !f.ReadOnly {
				return fail("textual relation must be read-only")
			}
			if rel.Render == nil {
				return fail("textual relation must declare a rendering rule")
			}
		case ModeEmbedded:
			if rel.Cardinality == Many && rel.ForeignKey == "" && !f.ReadOnly {
				return fail("writable embedded many relation must declare a foreign key")
			}
		}
		if rel.Polymorphic() {
			if rel.Discriminator == "" {
				return fail("polymorphic relation must declare a discriminator field")
			}
			if rel.Mode != ModeIdentifier {
				return fail("polymorphic relation requires identifier mode")
			}
		}
	} else if f.Relation != nil {
		return fail("non-relational field carries a relation descriptor")
	}

	return nil
}

// FieldOption configures a field declaration
type FieldOption func(*Field)

// Required marks the field as required on input
func Required() FieldOption {
	return func(f *Field) { f.Required = true }
}

// ReadOnly marks the field as outbound-only
func ReadOnly() FieldOption {
	return func(f *Field) { f.ReadOnly = true }
}

// WriteOnly marks the field as inbound-only; it never appears in representations
func WriteOnly() FieldOption {
	return func(f *Field) { f.WriteOnly = true }
}

// Nullable permits explicit null values
func Nullable() FieldOption {
	return func(f *Field) { f.Nullable = true }
}

// Default sets the create-time default value or callable
func Default(v interface{}) FieldOption {
	return func(f *Field) { f.Default = v }
}

// Source sets the dotted record attribute path
func Source(path string) FieldOption {
	return func(f *Field) { f.Source = path }
}

// Constrain appends a declarative constraint
func Constrain(c Constraint) FieldOption {
	return func(f *Field) { f.Constraints = append(f.Constraints, c) }
}

// Min constrains the minimum numeric value
func Min(v interface{}) FieldOption {
	return Constrain(Constraint{Type: ConstraintMin, Value: v})
}

// Max constrains the maximum numeric value
func Max(v interface{}) FieldOption {
	return Constrain(Constraint{Type: ConstraintMax, Value: v})
}

// MinLength constrains the minimum string length
func MinLength(n int) FieldOption {
	return Constrain(Constraint{Type: ConstraintMinLength, Value: n})
}

// MaxLength constrains the maximum string length
func MaxLength(n int) FieldOption {
	return Constrain(Constraint{Type: ConstraintMaxLength, Value: n})
}

// Pattern constrains string values to a regular expression
func Pattern(expr string) FieldOption {
	return Constrain(Constraint{Type: ConstraintPattern, Value: expr})
}

// OneOf constrains values to an enumerated set
func OneOf(values ...interface{}) FieldOption {
	return Constrain(Constraint{Type: ConstraintOneOf, Value: values})
}

// Email constrains string values to the mailbox address form
func Email() FieldOption {
	return Constrain(Constraint{Type: ConstraintEmail})
}

// URL constrains string values to absolute URLs
func URL() FieldOption {
	return Constrain(Constraint{Type: ConstraintURL})
}

// Unique requires the value to be unique within the backing collection
func Unique() FieldOption {
	return Constrain(Constraint{Type: ConstraintUnique})
}

// WithValidator appends a custom validation predicate
func WithValidator(fn ValidatorFunc) FieldOption {
	return func(f *Field) { f.Validators = append(f.Validators, fn) }
}

// WithMessages overrides error messages by constraint name
func WithMessages(messages map[string]string) FieldOption {
	return func(f *Field) { f.Messages = messages }
}
