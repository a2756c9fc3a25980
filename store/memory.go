package store

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-memory Collection. Records keep insertion order and receive
// auto-incrementing int64 identifiers. It is safe for concurrent use; Atomic
// serializes writers and rolls back via snapshot on failure.
type Memory struct {
	idField string
	nextID  int64
	records []Record

	unique []string // fields enforced unique on create/update

	mu sync.RWMutex
	tx sync.Mutex
}

// NewMemory creates an in-memory collection using the given identifier field
func NewMemory(idField string) *Memory {
	return &Memory{
		idField: idField,
		nextID:  1,
	}
}

// EnforceUnique declares fields whose values must be unique across the
// collection, mirroring a database-level unique constraint.
func (m *Memory) EnforceUnique(fields ...string) *Memory {
	m.unique = append(m.unique, fields...)
	return m
}

// Query returns records matching all filters, in insertion order
func (m *Memory) Query(ctx context.Context, filters ...Filter) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, rec := range m.records {
		if matches(rec, filters) {
			out = append(out, cloneRecord(rec))
		}
	}
	return out, nil
}

// Get returns the record with the given identifier
func (m *Memory) Get(ctx context.Context, id interface{}) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rec := range m.records {
		if equalValue(rec[m.idField], id) {
			return cloneRecord(rec), nil
		}
	}
	return nil, ErrNotFound
}

// Create inserts a new record and assigns its identifier
func (m *Memory) Create(ctx context.Context, fields Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := cloneRecord(fields)
	if err := m.checkUnique(rec, nil); err != nil {
		return nil, err
	}
	rec[m.idField] = m.nextID
	m.nextID++
	m.records = append(m.records, rec)
	return cloneRecord(rec), nil
}

// Update overwrites the given fields on an existing record
func (m *Memory) Update(ctx context.Context, record Record, fields Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := record[m.idField]
	for _, rec := range m.records {
		if equalValue(rec[m.idField], id) {
			candidate := cloneRecord(rec)
			for k, v := range fields {
				if k == m.idField {
					continue
				}
				candidate[k] = v
			}
			if err := m.checkUnique(candidate, id); err != nil {
				return nil, err
			}
			for k, v := range candidate {
				rec[k] = v
			}
			return cloneRecord(rec), nil
		}
	}
	return nil, ErrNotFound
}

// Delete removes an existing record
func (m *Memory) Delete(ctx context.Context, record Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := record[m.idField]
	for i, rec := range m.records {
		if equalValue(rec[m.idField], id) {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Atomic runs fn against the collection, restoring the pre-transaction state
// when fn returns an error or panics. Writers are serialized for the duration.
func (m *Memory) Atomic(ctx context.Context, fn func(tx Collection) error) (err error) {
	m.tx.Lock()
	defer m.tx.Unlock()

	m.mu.RLock()
	snapshot := make([]Record, len(m.records))
	for i, rec := range m.records {
		snapshot[i] = cloneRecord(rec)
	}
	snapshotID := m.nextID
	m.mu.RUnlock()

	restore := func() {
		m.mu.Lock()
		m.records = snapshot
		m.nextID = snapshotID
		m.mu.Unlock()
	}

	defer func() {
		if p := recover(); p != nil {
			restore()
			panic(p)
		}
		if err != nil {
			restore()
		}
	}()

	err = fn(m)
	return err
}

func (m *Memory) checkUnique(candidate Record, excludeID interface{}) error {
	for _, field := range m.unique {
		value, ok := candidate[field]
		if !ok || value == nil {
			continue
		}
		for _, rec := range m.records {
			if excludeID != nil && equalValue(rec[m.idField], excludeID) {
				continue
			}
			if equalValue(rec[field], value) {
				return fmt.Errorf("%w: %s", ErrUniqueViolation, field)
			}
		}
	}
	return nil
}

func matches(rec Record, filters []Filter) bool {
	for _, f := range filters {
		if !equalValue(rec[f.Field], f.Value) {
			return false
		}
	}
	return true
}

func cloneRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

// equalValue compares stored and looked-up values, bridging the numeric types
// JSON decoding and identifier generation produce (int64 vs float64 vs int).
func equalValue(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == b
	}
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// MemoryStore groups named in-memory collections
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]*Memory
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*Memory)}
}

// Collection returns the named collection, creating it on first use with an
// "id" identifier field.
func (s *MemoryStore) Collection(name string) Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[name]
	if !ok {
		col = NewMemory("id")
		s.collections[name] = col
	}
	return col
}

// Register installs a preconfigured collection under a name
func (s *MemoryStore) Register(name string, col *Memory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[name] = col
}
