package store

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryCRUD(t *testing.T) {
	ctx := context.Background()
	col := NewMemory("id")

	created, err := col.Create(ctx, Record{"name": "Nina", "genre": "soul"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created["id"] != int64(1) {
		t.Errorf("id = %v, want 1", created["id"])
	}

	got, err := col.Get(ctx, int64(1))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got["name"] != "Nina" {
		t.Errorf("name = %v", got["name"])
	}

	// JSON-decoded identifiers arrive as float64.
	if _, err := col.Get(ctx, float64(1)); err != nil {
		t.Errorf("Get with float64 id failed: %v", err)
	}

	updated, err := col.Update(ctx, got, Record{"genre": "jazz"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated["genre"] != "jazz" || updated["name"] != "Nina" {
		t.Errorf("updated = %v", updated)
	}

	if err := col.Delete(ctx, updated); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := col.Get(ctx, int64(1)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	if err := col.Delete(ctx, updated); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestMemoryQueryFilters(t *testing.T) {
	ctx := context.Background()
	col := NewMemory("id")

	for _, rec := range []Record{
		{"name": "a", "genre": "jazz"},
		{"name": "b", "genre": "soul"},
		{"name": "c", "genre": "jazz"},
	} {
		if _, err := col.Create(ctx, rec); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	all, err := col.Query(ctx)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	// Insertion order is the collection order.
	if all[0]["name"] != "a" || all[2]["name"] != "c" {
		t.Errorf("order = %v, %v", all[0]["name"], all[2]["name"])
	}

	jazz, err := col.Query(ctx, Eq("genre", "jazz"))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(jazz) != 2 {
		t.Errorf("filtered len = %d, want 2", len(jazz))
	}

	both, err := col.Query(ctx, Eq("genre", "jazz"), Eq("name", "c"))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(both) != 1 || both[0]["name"] != "c" {
		t.Errorf("conjunction = %v", both)
	}
}

func TestMemoryQueryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	col := NewMemory("id")
	if _, err := col.Create(ctx, Record{"name": "a"}); err != nil {
		t.Fatal(err)
	}

	out, _ := col.Query(ctx)
	out[0]["name"] = "tampered"

	fresh, _ := col.Get(ctx, int64(1))
	if fresh["name"] != "a" {
		t.Error("mutating a query result must not leak into the collection")
	}
}

func TestMemoryEnforceUnique(t *testing.T) {
	ctx := context.Background()
	col := NewMemory("id").EnforceUnique("name")

	first, err := col.Create(ctx, Record{"name": "Nina"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := col.Create(ctx, Record{"name": "Nina"}); !errors.Is(err, ErrUniqueViolation) {
		t.Errorf("duplicate Create = %v, want ErrUniqueViolation", err)
	}

	second, err := col.Create(ctx, Record{"name": "Miles"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := col.Update(ctx, second, Record{"name": "Nina"}); !errors.Is(err, ErrUniqueViolation) {
		t.Errorf("conflicting Update = %v, want ErrUniqueViolation", err)
	}

	// Updating a record to its own current value is not a conflict.
	if _, err := col.Update(ctx, first, Record{"name": "Nina"}); err != nil {
		t.Errorf("self Update = %v", err)
	}
}

func TestMemoryAtomic(t *testing.T) {
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		col := NewMemory("id")
		err := col.Atomic(ctx, func(tx Collection) error {
			_, err := tx.Create(ctx, Record{"name": "a"})
			return err
		})
		if err != nil {
			t.Fatalf("Atomic failed: %v", err)
		}
		if records, _ := col.Query(ctx); len(records) != 1 {
			t.Errorf("records = %v", records)
		}
	})

	t.Run("rollback on error", func(t *testing.T) {
		col := NewMemory("id")
		if _, err := col.Create(ctx, Record{"name": "keep"}); err != nil {
			t.Fatal(err)
		}

		boom := errors.New("boom")
		err := col.Atomic(ctx, func(tx Collection) error {
			if _, err := tx.Create(ctx, Record{"name": "discard"}); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Atomic = %v, want boom", err)
		}

		records, _ := col.Query(ctx)
		if len(records) != 1 || records[0]["name"] != "keep" {
			t.Errorf("records after rollback = %v", records)
		}

		// Identifier sequence rolls back with the data.
		next, err := col.Create(ctx, Record{"name": "after"})
		if err != nil {
			t.Fatal(err)
		}
		if next["id"] != int64(2) {
			t.Errorf("next id = %v, want 2", next["id"])
		}
	})

	t.Run("rollback on panic", func(t *testing.T) {
		col := NewMemory("id")

		func() {
			defer func() { recover() }()
			col.Atomic(ctx, func(tx Collection) error {
				tx.Create(ctx, Record{"name": "discard"})
				panic("boom")
			})
		}()

		if records, _ := col.Query(ctx); len(records) != 0 {
			t.Errorf("records after panic = %v", records)
		}
	})
}

func TestMemoryStoreCollections(t *testing.T) {
	st := NewMemoryStore()

	a := st.Collection("albums")
	if a == nil {
		t.Fatal("Collection returned nil")
	}
	if st.Collection("albums") != a {
		t.Error("Collection should return the same instance per name")
	}

	custom := NewMemory("id").EnforceUnique("name")
	st.Register("artists", custom)
	if st.Collection("artists") != custom {
		t.Error("Register should install the given collection")
	}
}
