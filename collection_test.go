package quoll

import (
	"context"
	"errors"
	"testing"
)

func openTestCollection(t *testing.T) (*DB, *Collection) {
	t.Helper()
	db := openTestDB(t)
	coll, err := db.GetCollection(context.Background(), "items")
	if err != nil {
		t.Fatalf("open collection: %v", err)
	}
	return db, coll
}

func TestCollectionInsertAndGet(t *testing.T) {
	ctx := context.Background()
	db, coll := openTestCollection(t)
	defer db.Close(ctx)

	id, err := coll.Insert(ctx, Document{"name": "ada", "admin": true})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id == "" {
		t.Fatalf("insert returned an empty identifier")
	}

	doc, err := coll.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc == nil {
		t.Fatalf("inserted document not found")
	}
	if doc["name"] != "ada" {
		t.Fatalf("name = %v, want ada", doc["name"])
	}
	if doc.ID() != id {
		t.Fatalf("stored document carries id %q, want %q", doc.ID(), id)
	}
}

func TestCollectionInsertKeepsExistingID(t *testing.T) {
	ctx := context.Background()
	db, coll := openTestCollection(t)
	defer db.Close(ctx)

	id, err := coll.Insert(ctx, Document{DocumentIDField: "fixed", "name": "ada"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id != "fixed" {
		t.Fatalf("insert replaced the supplied id with %q", id)
	}
}

func TestCollectionGetMissing(t *testing.T) {
	ctx := context.Background()
	db, coll := openTestCollection(t)
	defer db.Close(ctx)

	doc, err := coll.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc != nil {
		t.Fatalf("expected nil document for a missing id, got %v", doc)
	}
}

func TestCollectionUpdate(t *testing.T) {
	ctx := context.Background()
	db, coll := openTestCollection(t)
	defer db.Close(ctx)

	id, err := coll.Insert(ctx, Document{"count": 1})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := coll.Update(ctx, Document{DocumentIDField: id, "count": 2}); err != nil {
		t.Fatalf("update: %v", err)
	}
	doc, err := coll.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc["count"] != float64(2) {
		t.Fatalf("count = %v, want 2", doc["count"])
	}

	if err := coll.Update(ctx, Document{"count": 3}); !errors.Is(err, ErrMissingDocumentID) {
		t.Fatalf("update without id: expected ErrMissingDocumentID, got %v", err)
	}
}

func TestCollectionRemove(t *testing.T) {
	ctx := context.Background()
	db, coll := openTestCollection(t)
	defer db.Close(ctx)

	id, err := coll.Insert(ctx, Document{"name": "ada"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := coll.Remove(ctx, id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	doc, err := coll.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc != nil {
		t.Fatalf("removed document still readable")
	}

	// Removing an absent id is not an error.
	if err := coll.Remove(ctx, "missing"); err != nil {
		t.Fatalf("remove missing: %v", err)
	}
}

func TestCollectionSizeAndFindAll(t *testing.T) {
	ctx := context.Background()
	db, coll := openTestCollection(t)
	defer db.Close(ctx)

	for i := 0; i < 5; i++ {
		if _, err := coll.Insert(ctx, Document{"seq": i}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	n, err := coll.Size(ctx)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if n != 5 {
		t.Fatalf("size = %d, want 5", n)
	}

	docs, err := coll.FindAll(ctx)
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(docs) != 5 {
		t.Fatalf("find all returned %d documents, want 5", len(docs))
	}
	for _, doc := range docs {
		if doc.ID() == "" {
			t.Fatalf("document without id in find all: %v", doc)
		}
	}
}

func TestClosedCollectionOperations(t *testing.T) {
	ctx := context.Background()
	db, coll := openTestCollection(t)
	defer db.Close(ctx)

	if err := coll.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := coll.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !coll.IsClosed() {
		t.Fatalf("IsClosed = false after close")
	}

	if _, err := coll.Insert(ctx, Document{"name": "ada"}); !errors.Is(err, ErrCollectionClosed) {
		t.Fatalf("insert: expected ErrCollectionClosed, got %v", err)
	}
	if _, err := coll.Get(ctx, "x"); !errors.Is(err, ErrCollectionClosed) {
		t.Fatalf("get: expected ErrCollectionClosed, got %v", err)
	}
	if err := coll.Update(ctx, Document{DocumentIDField: "x"}); !errors.Is(err, ErrCollectionClosed) {
		t.Fatalf("update: expected ErrCollectionClosed, got %v", err)
	}
	if err := coll.Remove(ctx, "x"); !errors.Is(err, ErrCollectionClosed) {
		t.Fatalf("remove: expected ErrCollectionClosed, got %v", err)
	}
	if _, err := coll.Size(ctx); !errors.Is(err, ErrCollectionClosed) {
		t.Fatalf("size: expected ErrCollectionClosed, got %v", err)
	}
	if _, err := coll.FindAll(ctx); !errors.Is(err, ErrCollectionClosed) {
		t.Fatalf("find all: expected ErrCollectionClosed, got %v", err)
	}
}
