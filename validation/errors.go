// Package validation implements Refract's multi-stage validator pipeline:
// presence, type coercion, per-field validators, cross-field object
// validation, and collection-backed uniqueness checks. All stages run so the
// caller sees the full failure set in one response.
package validation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// NonFieldKey is the reserved key for object-level errors
const NonFieldKey = "non_field_errors"

// Errors accumulates validation failures keyed by field name (or NonFieldKey
// for object-level failures). Messages keep insertion order per field.
type Errors struct {
	Fields map[string][]string `json:"fields"`
}

// NewErrors creates an empty Errors instance
func NewErrors() *Errors {
	return &Errors{
		Fields: make(map[string][]string),
	}
}

// Add adds a validation error for a specific field
func (e *Errors) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// AddObject adds an object-level validation error
func (e *Errors) AddObject(message string) {
	e.Add(NonFieldKey, message)
}

// AddNested adds an error under a dotted field path, e.g. "tracks.1.title"
func (e *Errors) AddNested(path []string, message string) {
	e.Add(strings.Join(path, "."), message)
}

// Merge folds another error set into this one, prefixing keys when prefix is
// non-empty. Used to surface nested relation errors keyed by field path.
func (e *Errors) Merge(prefix string, other *Errors) {
	if other == nil {
		return
	}
	for field, messages := range other.Fields {
		key := field
		if prefix != "" {
			key = prefix + "." + field
		}
		for _, msg := range messages {
			e.Add(key, msg)
		}
	}
}

// HasErrors returns true if any validation errors were recorded
func (e *Errors) HasErrors() bool {
	return len(e.Fields) > 0
}

// Count returns the total number of messages across all fields
func (e *Errors) Count() int {
	n := 0
	for _, messages := range e.Fields {
		n += len(messages)
	}
	return n
}

// OrNil returns the receiver when it holds errors, nil otherwise. It lets the
// pipeline build up an error set unconditionally and only surface it when
// something actually failed.
func (e *Errors) OrNil() *Errors {
	if e.HasErrors() {
		return e
	}
	return nil
}

// Error implements the error interface
func (e *Errors) Error() string {
	if !e.HasErrors() {
		return "validation failed"
	}

	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var messages []string
	for _, field := range fields {
		for _, msg := range e.Fields[field] {
			messages = append(messages, fmt.Sprintf("%s: %s", field, msg))
		}
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// MarshalJSON implements json.Marshaler
func (e *Errors) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Error  string              `json:"error"`
		Fields map[string][]string `json:"fields"`
	}{
		Error:  "validation_failed",
		Fields: e.Fields,
	})
}
