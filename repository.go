package quoll

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

// Repository is a typed view over a collection whose backing map name is
// derived from T's fully-qualified type name. Values are JSON-encoded.
type Repository[T any] struct {
	typeName string
	coll     *Collection
}

// GetRepository opens the repository for T, creating its backing map on
// first use. Repeated calls return views over the same underlying
// collection. Go methods cannot be generic, so this is the package-level
// counterpart of DB.GetCollection.
func GetRepository[T any](ctx context.Context, db *DB) (*Repository[T], error) {
	t := reflect.TypeOf((*T)(nil)).Elem()

	typeName, err := repositoryTypeNameOf(t)
	if err != nil {
		return nil, err
	}
	storeName, err := repositoryStoreName(t)
	if err != nil {
		return nil, err
	}

	coll, err := db.openRepositoryCollection(ctx, typeName, storeName)
	if err != nil {
		return nil, err
	}

	return &Repository[T]{typeName: typeName, coll: coll}, nil
}

// HasRepository reports whether a repository for T exists in the store,
// whether or not it was opened by this session. On a closed database it
// reports false.
func HasRepository[T any](ctx context.Context, db *DB) bool {
	t := reflect.TypeOf((*T)(nil)).Elem()

	typeName, err := repositoryTypeNameOf(t)
	if err != nil {
		return false
	}

	for _, name := range db.ListRepositories(ctx) {
		if name == typeName {
			return true
		}
	}
	return false
}

// TypeName returns the fully-qualified name of T.
func (r *Repository[T]) TypeName() string { return r.typeName }

// Collection exposes the backing collection. Its name is the derived store
// name, not a plain collection name.
func (r *Repository[T]) Collection() *Collection { return r.coll }

// Insert stores value under a fresh identifier and returns it.
func (r *Repository[T]) Insert(ctx context.Context, value T) (string, error) {
	if r.coll.IsClosed() {
		return "", ErrCollectionClosed
	}

	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", r.typeName, err)
	}

	id := uuid.NewString()
	if err := r.coll.m.Put(ctx, id, data); err != nil {
		return "", err
	}

	r.coll.metrics.Inc(MetricDocumentInserted)
	return id, nil
}

// Update replaces the value stored under id, creating it when absent.
func (r *Repository[T]) Update(ctx context.Context, id string, value T) error {
	if r.coll.IsClosed() {
		return ErrCollectionClosed
	}
	if id == "" {
		return ErrMissingDocumentID
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.typeName, err)
	}
	return r.coll.m.Put(ctx, id, data)
}

// Get returns the value stored under id. The boolean is false when absent.
func (r *Repository[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T

	if r.coll.IsClosed() {
		return zero, false, ErrCollectionClosed
	}

	data, ok, err := r.coll.m.Get(ctx, id)
	if err != nil || !ok {
		return zero, false, err
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return zero, false, fmt.Errorf("decode %s %s: %w", r.typeName, id, err)
	}
	return value, true, nil
}

// Remove deletes the value stored under id.
func (r *Repository[T]) Remove(ctx context.Context, id string) error {
	return r.coll.Remove(ctx, id)
}

// Size returns the number of values in the repository.
func (r *Repository[T]) Size(ctx context.Context) (int64, error) {
	return r.coll.Size(ctx)
}

// FindAll returns every value in the repository.
func (r *Repository[T]) FindAll(ctx context.Context) ([]T, error) {
	if r.coll.IsClosed() {
		return nil, ErrCollectionClosed
	}

	keys, err := r.coll.m.Keys(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(keys))
	for _, key := range keys {
		data, ok, err := r.coll.m.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var value T
		if err := json.Unmarshal(data, &value); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", r.typeName, key, err)
		}
		out = append(out, value)
	}
	return out, nil
}

// IsClosed reports whether the backing collection has been closed.
func (r *Repository[T]) IsClosed() bool { return r.coll.IsClosed() }
