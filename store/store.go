// Package store defines the contract between the quoll session layer and
// its backing key-value engine. A Store multiplexes one physical resource
// (a file, a process heap, a Redis database) into named maps; the session
// layer never touches bytes-on-disk concerns beyond this interface.
//
// Implementations must be safe for concurrent use. Commit, CompactMoveChunks,
// Close and CloseImmediately are NOT safe to run concurrently with in-flight
// writes against the same store; callers serialize those externally.
package store

import (
	"context"
	"errors"
)

var (
	// ErrClosed is returned by any operation against a store that has
	// already been closed.
	ErrClosed = errors.New("store closed")

	// ErrReadOnly is returned when a write, compaction, or flushing close
	// is attempted against a store opened read-only.
	ErrReadOnly = errors.New("store opened read-only")
)

// Store is an opaque persistent key-value engine exposing named maps.
type Store interface {
	// OpenMap opens the named map, creating it if absent. The returned Map
	// stays valid until the store is closed; maps are not individually
	// closeable. Opening the same name twice yields views over the same
	// underlying namespace.
	OpenMap(ctx context.Context, name string) (Map, error)

	// MapNames reports every map name known to the store, unique, in
	// order of discovery where the backend supports it.
	MapNames(ctx context.Context) ([]string, error)

	// HasUnsavedChanges reports whether any mutation has not yet reached
	// the store's durable representation. Always false for backends that
	// persist writes immediately.
	HasUnsavedChanges() bool

	// Commit flushes all pending mutations to the durable representation.
	// It does not close anything.
	Commit(ctx context.Context) error

	// CompactMoveChunks physically reorganizes allocated regions
	// contiguously. A no-op for backends without fragmentation.
	CompactMoveChunks(ctx context.Context) error

	// Close flushes pending mutations and releases the store. Returns
	// ErrReadOnly when the final flush is impossible on a read-only store.
	Close(ctx context.Context) error

	// CloseImmediately releases the store without flushing unsaved
	// changes. Used on abort paths.
	CloseImmediately(ctx context.Context) error

	// IsClosed reports whether the store has been closed.
	IsClosed() bool
}

// Map is one logical, independently addressable namespace within a Store,
// keyed by document identifier, valued by an encoded document.
type Map interface {
	// Name returns the map's name within the store.
	Name() string

	// Get returns the value for key. The boolean is false when the key is
	// absent; the error reports only backend failures.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Size returns the number of entries in the map.
	Size(ctx context.Context) (int64, error)

	// Keys returns every key currently present in the map.
	Keys(ctx context.Context) ([]string, error)

	// Clear removes every entry from the map.
	Clear(ctx context.Context) error
}
