// Package store defines the collection contract Refract's serialization and
// dispatch layers depend on, together with an in-memory implementation and a
// database/sql implementation. The core never touches a database directly;
// every suspension point is delegated to a Collection.
package store

import (
	"context"
	"errors"
)

// Common store errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrUniqueViolation is returned when a unique constraint is violated
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")
)

// Record is a single stored record keyed by attribute name
type Record = map[string]interface{}

// Filter is an equality predicate applied by Query
type Filter struct {
	Field string
	Value interface{}
}

// Eq builds an equality filter
func Eq(field string, value interface{}) Filter {
	return Filter{Field: field, Value: value}
}

// Collection is the external persistence collaborator contract. Query returns
// records in a stable collection-defined order. Atomic acquires the store's
// scoped transaction primitive: fn runs against a transaction-scoped view of
// the collection, committed when fn returns nil and rolled back otherwise.
// Implementations must release the transaction on all exit paths, including
// panics.
type Collection interface {
	Query(ctx context.Context, filters ...Filter) ([]Record, error)
	Get(ctx context.Context, id interface{}) (Record, error)
	Create(ctx context.Context, fields Record) (Record, error)
	Update(ctx context.Context, record Record, fields Record) (Record, error)
	Delete(ctx context.Context, record Record) error

	Atomic(ctx context.Context, fn func(tx Collection) error) error
}

// Store resolves collections by resource name, so relation targets can reach
// their own backing collections.
type Store interface {
	Collection(name string) Collection
}
