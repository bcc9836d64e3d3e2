// Package redis implements store.Store over a Redis server. Each named map
// is one hash at <prefix>:map:<name>, and the set of known map names lives
// at <prefix>:maps. Writes reach Redis immediately, so the store never has
// unsaved changes and Commit and CompactMoveChunks are no-ops.
package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/quolldb/quoll/store"
)

const defaultKeyPrefix = "quoll"

// Config contains configuration options for the Redis store.
type Config struct {
	// Client is the Redis client instance. Required.
	Client redis.UniversalClient

	// KeyPrefix namespaces every key this store touches. Default "quoll".
	KeyPrefix string

	// ReadOnly rejects every mutation with store.ErrReadOnly.
	ReadOnly bool

	// OwnsClient makes Close and CloseImmediately close the client too.
	// Leave false when the client is shared with other subsystems.
	OwnsClient bool
}

// Store implements store.Store using Redis.
type Store struct {
	client     redis.UniversalClient
	prefix     string
	readOnly   bool
	ownsClient bool

	mu     sync.RWMutex
	closed bool
}

// New creates a Redis-backed store from cfg.
func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("redis store: client required")
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	return &Store{
		client:     cfg.Client,
		prefix:     prefix,
		readOnly:   cfg.ReadOnly,
		ownsClient: cfg.OwnsClient,
	}, nil
}

func (s *Store) namesKey() string { return s.prefix + ":maps" }

func (s *Store) mapKey(name string) string { return s.prefix + ":map:" + name }

// OpenMap returns the named map. On a writable store the name is
// registered in the name set so it shows up in MapNames even before the
// first entry is written.
func (s *Store) OpenMap(ctx context.Context, name string) (store.Map, error) {
	if s.IsClosed() {
		return nil, store.ErrClosed
	}

	if !s.readOnly {
		if err := s.client.SAdd(ctx, s.namesKey(), name).Err(); err != nil {
			return nil, fmt.Errorf("register map name: %w", err)
		}
	}

	return &redisMap{st: s, name: name}, nil
}

// MapNames reports every registered map name. Redis sets are unordered;
// callers may rely on uniqueness only.
func (s *Store) MapNames(ctx context.Context) ([]string, error) {
	if s.IsClosed() {
		return nil, store.ErrClosed
	}

	names, err := s.client.SMembers(ctx, s.namesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list map names: %w", err)
	}
	return names, nil
}

// HasUnsavedChanges is always false: writes are durable as they happen.
func (s *Store) HasUnsavedChanges() bool { return false }

// Commit is a no-op for Redis-backed stores.
func (s *Store) Commit(_ context.Context) error {
	if s.IsClosed() {
		return store.ErrClosed
	}
	return nil
}

// CompactMoveChunks is a no-op for Redis-backed stores.
func (s *Store) CompactMoveChunks(_ context.Context) error {
	if s.IsClosed() {
		return store.ErrClosed
	}
	return nil
}

// Close releases the store and, when it owns the client, the client.
func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.ownsClient {
		return s.client.Close()
	}
	return nil
}

// CloseImmediately is identical to Close: there is nothing to flush.
func (s *Store) CloseImmediately(ctx context.Context) error {
	return s.Close(ctx)
}

// IsClosed reports whether the store has been closed.
func (s *Store) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

type redisMap struct {
	st   *Store
	name string
}

func (m *redisMap) key() string { return m.st.mapKey(m.name) }

func (m *redisMap) Name() string { return m.name }

func (m *redisMap) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if m.st.IsClosed() {
		return nil, false, store.ErrClosed
	}

	data, err := m.st.client.HGet(ctx, m.key(), key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("hget %s: %w", m.name, err)
	}
	return data, true, nil
}

func (m *redisMap) Put(ctx context.Context, key string, value []byte) error {
	if m.st.IsClosed() {
		return store.ErrClosed
	}
	if m.st.readOnly {
		return store.ErrReadOnly
	}

	if err := m.st.client.HSet(ctx, m.key(), key, value).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", m.name, err)
	}
	return nil
}

func (m *redisMap) Delete(ctx context.Context, key string) error {
	if m.st.IsClosed() {
		return store.ErrClosed
	}
	if m.st.readOnly {
		return store.ErrReadOnly
	}

	if err := m.st.client.HDel(ctx, m.key(), key).Err(); err != nil {
		return fmt.Errorf("hdel %s: %w", m.name, err)
	}
	return nil
}

func (m *redisMap) Size(ctx context.Context) (int64, error) {
	if m.st.IsClosed() {
		return 0, store.ErrClosed
	}

	n, err := m.st.client.HLen(ctx, m.key()).Result()
	if err != nil {
		return 0, fmt.Errorf("hlen %s: %w", m.name, err)
	}
	return n, nil
}

func (m *redisMap) Keys(ctx context.Context) ([]string, error) {
	if m.st.IsClosed() {
		return nil, store.ErrClosed
	}

	keys, err := m.st.client.HKeys(ctx, m.key()).Result()
	if err != nil {
		return nil, fmt.Errorf("hkeys %s: %w", m.name, err)
	}
	return keys, nil
}

func (m *redisMap) Clear(ctx context.Context) error {
	if m.st.IsClosed() {
		return store.ErrClosed
	}
	if m.st.readOnly {
		return store.ErrReadOnly
	}

	if err := m.st.client.Del(ctx, m.key()).Err(); err != nil {
		return fmt.Errorf("del %s: %w", m.name, err)
	}
	return nil
}
