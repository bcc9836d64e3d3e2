package quoll

import (
	"context"
	"errors"
	"testing"
)

type player struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type match struct {
	Home string `json:"home"`
	Away string `json:"away"`
}

func TestRepositoryInsertGet(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	defer db.Close(ctx)

	repo, err := GetRepository[player](ctx, db)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}

	id, err := repo.Insert(ctx, player{Name: "grace", Score: 42})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id == "" {
		t.Fatalf("insert returned an empty identifier")
	}

	got, ok, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatalf("inserted value not found")
	}
	if got.Name != "grace" || got.Score != 42 {
		t.Fatalf("got %+v, want grace/42", got)
	}

	if _, ok, err := repo.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing id: ok=%v err=%v", ok, err)
	}
}

func TestRepositoryUpdateRemove(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	defer db.Close(ctx)

	repo, err := GetRepository[player](ctx, db)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}

	id, err := repo.Insert(ctx, player{Name: "grace", Score: 1})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Update(ctx, id, player{Name: "grace", Score: 2}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, ok, err := repo.Get(ctx, id)
	if err != nil || !ok {
		t.Fatalf("get after update: ok=%v err=%v", ok, err)
	}
	if got.Score != 2 {
		t.Fatalf("score = %d, want 2", got.Score)
	}

	if err := repo.Update(ctx, "", player{}); !errors.Is(err, ErrMissingDocumentID) {
		t.Fatalf("update without id: expected ErrMissingDocumentID, got %v", err)
	}

	if err := repo.Remove(ctx, id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := repo.Get(ctx, id); ok {
		t.Fatalf("removed value still readable")
	}
}

func TestRepositoryFindAll(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	defer db.Close(ctx)

	repo, err := GetRepository[player](ctx, db)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := repo.Insert(ctx, player{Name: "p", Score: i}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	n, err := repo.Size(ctx)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if n != 3 {
		t.Fatalf("size = %d, want 3", n)
	}

	all, err := repo.FindAll(ctx)
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("find all returned %d values, want 3", len(all))
	}
}

func TestRepositoriesAreDisjoint(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	defer db.Close(ctx)

	players, err := GetRepository[player](ctx, db)
	if err != nil {
		t.Fatalf("open player repository: %v", err)
	}
	matches, err := GetRepository[match](ctx, db)
	if err != nil {
		t.Fatalf("open match repository: %v", err)
	}

	if players.Collection().Name() == matches.Collection().Name() {
		t.Fatalf("distinct types share the backing map %q", players.Collection().Name())
	}

	if _, err := players.Insert(ctx, player{Name: "grace"}); err != nil {
		t.Fatalf("insert player: %v", err)
	}
	n, err := matches.Size(ctx)
	if err != nil {
		t.Fatalf("match size: %v", err)
	}
	if n != 0 {
		t.Fatalf("player insert leaked into match repository")
	}

	repos := db.ListRepositories(ctx)
	if len(repos) != 2 {
		t.Fatalf("expected 2 repositories, got %v", repos)
	}
}

func TestGetRepositoryIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	defer db.Close(ctx)

	first, err := GetRepository[player](ctx, db)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	second, err := GetRepository[player](ctx, db)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	if first.Collection() != second.Collection() {
		t.Fatalf("re-opening the same repository returned a different collection")
	}
}

func TestGetRepositoryRejectsInvalidTypes(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	defer db.Close(ctx)

	if _, err := GetRepository[int](ctx, db); !errors.Is(err, ErrInvalidRepositoryType) {
		t.Fatalf("built-in type: expected ErrInvalidRepositoryType, got %v", err)
	}
	if _, err := GetRepository[map[string]string](ctx, db); !errors.Is(err, ErrInvalidRepositoryType) {
		t.Fatalf("unnamed type: expected ErrInvalidRepositoryType, got %v", err)
	}
}

func TestRepositoryNamesExcludedFromCollections(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	defer db.Close(ctx)

	if _, err := GetRepository[player](ctx, db); err != nil {
		t.Fatalf("open repository: %v", err)
	}
	if _, err := db.GetCollection(ctx, "users"); err != nil {
		t.Fatalf("open collection: %v", err)
	}

	names := db.ListCollectionNames(ctx)
	if len(names) != 1 || names[0] != "users" {
		t.Fatalf("repository store leaked into collection names: %v", names)
	}
}
