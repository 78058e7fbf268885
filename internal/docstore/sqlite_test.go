// ABOUTME: Tests for the SQLite document store.
// ABOUTME: Uses a real in-memory database, no mocks.

package docstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

var testSchema = Schema{
	{
		Name: "items",
		Indexes: []Index{
			{Name: "by_owner", Fields: []string{"ownerId"}},
			{Name: "by_owner_created", Fields: []string{"ownerId", CreatedAtField}},
		},
	},
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:", testSchema)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func insertItem(t *testing.T, s *SQLiteStore, owner, name string, createdAt time.Time) string {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"ownerId": owner, "name": name})
	id, err := s.Insert(context.Background(), "items", &Document{
		CreatedAt: createdAt,
		Body:      body,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return id
}

func TestInsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := insertItem(t, s, "user-1", "first", time.Time{})
	if id == "" {
		t.Fatal("expected generated id")
	}

	doc, err := s.Get(ctx, "items", id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(doc.Body, &got); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if got["name"] != "first" {
		t.Errorf("unexpected name: %v", got["name"])
	}
	if doc.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be stamped")
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "items", "missing")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertUnknownCollection(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Insert(context.Background(), "nope", &Document{Body: json.RawMessage(`{}`)})
	if err == nil {
		t.Fatal("expected error for unknown collection")
	}
}

func TestPatchMergesFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := insertItem(t, s, "user-1", "before", time.Time{})

	if err := s.Patch(ctx, "items", id, map[string]any{"name": "after", "extra": 7}); err != nil {
		t.Fatalf("Patch: %v", err)
	}

	doc, err := s.Get(ctx, "items", id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var got map[string]any
	_ = json.Unmarshal(doc.Body, &got)
	if got["name"] != "after" {
		t.Errorf("patched field not updated: %v", got["name"])
	}
	if got["ownerId"] != "user-1" {
		t.Errorf("untouched field lost: %v", got["ownerId"])
	}
	if got["extra"] != float64(7) {
		t.Errorf("new field not merged: %v", got["extra"])
	}
}

func TestPatchNotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.Patch(context.Background(), "items", "missing", map[string]any{"name": "x"})
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := insertItem(t, s, "user-1", "doomed", time.Time{})

	if err := s.Delete(ctx, "items", id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "items", id); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, "items", id); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestQueryByIndexOrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		insertItem(t, s, "user-1", "item", base.Add(time.Duration(i)*time.Minute))
	}
	insertItem(t, s, "user-2", "other", base)

	docs, err := s.QueryByIndex(ctx, Query{
		Collection: "items",
		Index:      "by_owner_created",
		Equals:     map[string]any{"ownerId": "user-1"},
		Descending: true,
		Limit:      3,
	})
	if err != nil {
		t.Fatalf("QueryByIndex: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 docs, got %d", len(docs))
	}
	for i := 1; i < len(docs); i++ {
		if docs[i].CreatedAt.After(docs[i-1].CreatedAt) {
			t.Error("expected newest-first ordering")
		}
	}
}

func TestQueryCreatedBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	insertItem(t, s, "user-1", "old", now.Add(-10*24*time.Hour))
	insertItem(t, s, "user-1", "new", now)

	docs, err := s.QueryByIndex(ctx, Query{
		Collection:    "items",
		Index:         "by_owner",
		Equals:        map[string]any{"ownerId": "user-1"},
		CreatedBefore: now.Add(-7 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("QueryByIndex: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc before cutoff, got %d", len(docs))
	}
}

func TestQueryFilterScan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertItem(t, s, "user-1", "wanted", time.Time{})
	insertItem(t, s, "user-1", "unwanted", time.Time{})

	docs, err := s.QueryByIndex(ctx, Query{
		Collection: "items",
		Filter:     map[string]any{"name": "wanted"},
	})
	if err != nil {
		t.Fatalf("QueryByIndex: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc, got %d", len(docs))
	}
}

func TestQueryPredicateValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Unknown index
	if _, err := s.QueryByIndex(ctx, Query{Collection: "items", Index: "nope"}); err == nil {
		t.Error("expected error for unknown index")
	}

	// Equality on a field the index does not cover
	_, err := s.QueryByIndex(ctx, Query{
		Collection: "items",
		Index:      "by_owner",
		Equals:     map[string]any{"name": "x"},
	})
	if err == nil {
		t.Error("expected error for uncovered predicate field")
	}

	// Equality without an index
	_, err = s.QueryByIndex(ctx, Query{
		Collection: "items",
		Equals:     map[string]any{"ownerId": "user-1"},
	})
	if err == nil {
		t.Error("expected error for index-less equality predicate")
	}
}

func TestCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertItem(t, s, "user-1", "a", time.Time{})
	insertItem(t, s, "user-2", "b", time.Time{})

	n, err := s.Count(ctx, "items")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 documents, got %d", n)
	}
}
