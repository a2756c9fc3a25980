package validation

import "errors"

// ErrPayloadConsumed is returned when a payload is consumed more than once
var ErrPayloadConsumed = errors.New("validated payload already consumed")

// Payload is the schema-conformant intermediate mapping produced by the
// pipeline. It is immutable to callers once produced and consumed exactly
// once by a create or update path.
type Payload struct {
	fields   map[string]interface{}
	partial  bool
	consumed bool
}

// NewPayload wraps validated field values. partial marks partial-update
// semantics: absent fields were never validated and must be left untouched.
func NewPayload(fields map[string]interface{}, partial bool) *Payload {
	return &Payload{fields: fields, partial: partial}
}

// Partial reports whether the payload carries partial-update semantics
func (p *Payload) Partial() bool {
	return p.partial
}

// Has reports whether the payload carries a value for the field
func (p *Payload) Has(name string) bool {
	_, ok := p.fields[name]
	return ok
}

// Get returns the validated value for a field
func (p *Payload) Get(name string) (interface{}, bool) {
	v, ok := p.fields[name]
	return v, ok
}

// Len returns the number of validated fields
func (p *Payload) Len() int {
	return len(p.fields)
}

// Consume hands the validated fields to a write path. A second call is a
// programming error and fails rather than silently re-applying the payload.
func (p *Payload) Consume() (map[string]interface{}, error) {
	if p.consumed {
		return nil, ErrPayloadConsumed
	}
	p.consumed = true
	return p.fields, nil
}
