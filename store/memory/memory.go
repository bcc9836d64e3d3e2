// Package memory implements store.Store in process memory, with optional
// single-file persistence. When a path is configured, Commit writes the
// whole store image atomically and Open reloads it, which is what makes a
// quoll database survive process restarts over one backing file.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/quolldb/quoll/store"
)

// Config controls how the store is opened.
type Config struct {
	// Path is the backing file. Empty means pure in-memory: Commit only
	// clears the dirty flag and nothing survives Close.
	Path string

	// ReadOnly rejects every mutation with store.ErrReadOnly. The backing
	// file, if any, is never written.
	ReadOnly bool
}

// Store is an in-memory store.Store with optional file persistence.
type Store struct {
	cfg Config

	mu     sync.RWMutex
	maps   map[string]*memMap
	names  []string
	dirty  bool
	closed bool
}

// fileImage is the on-disk shape of a persisted store. Map values are
// base64-coded by encoding/json.
type fileImage struct {
	Names []string                     `json:"names"`
	Maps  map[string]map[string][]byte `json:"maps"`
}

// Open creates a store, loading the backing file when cfg.Path names an
// existing one. A missing file is not an error unless the store is
// read-only, in which case there is nothing to read.
func Open(cfg Config) (*Store, error) {
	s := &Store{
		cfg:  cfg,
		maps: make(map[string]*memMap),
	}

	if cfg.Path == "" {
		return s, nil
	}

	data, err := os.ReadFile(cfg.Path)
	if err != nil {
		if os.IsNotExist(err) {
			if cfg.ReadOnly {
				return nil, fmt.Errorf("open read-only store: %w", err)
			}
			return s, nil
		}
		return nil, fmt.Errorf("read store file: %w", err)
	}

	var image fileImage
	if err := json.Unmarshal(data, &image); err != nil {
		return nil, fmt.Errorf("decode store file %s: %w", cfg.Path, err)
	}

	for _, name := range image.Names {
		entries := image.Maps[name]
		if entries == nil {
			entries = make(map[string][]byte)
		}
		s.maps[name] = &memMap{st: s, name: name, data: entries}
		s.names = append(s.names, name)
	}

	return s, nil
}

// OpenMap returns the named map, creating it if absent. Creation on a
// writable store marks the store dirty; on a read-only store the new map
// is a transient empty view and is never persisted.
func (s *Store) OpenMap(_ context.Context, name string) (store.Map, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, store.ErrClosed
	}

	if m, ok := s.maps[name]; ok {
		return m, nil
	}

	m := &memMap{st: s, name: name, data: make(map[string][]byte)}
	s.maps[name] = m
	s.names = append(s.names, name)
	if !s.cfg.ReadOnly {
		s.dirty = true
	}

	return m, nil
}

// MapNames reports every map name in order of first open.
func (s *Store) MapNames(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}

	out := make([]string, len(s.names))
	copy(out, s.names)
	return out, nil
}

// HasUnsavedChanges reports whether any mutation is not yet flushed.
func (s *Store) HasUnsavedChanges() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty && !s.closed
}

// Commit flushes the store image to the backing file.
func (s *Store) Commit(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	if s.cfg.ReadOnly {
		return store.ErrReadOnly
	}
	if !s.dirty {
		return nil
	}

	if err := s.writeFileLocked(); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// CompactMoveChunks rewrites the backing file contiguously. The in-memory
// representation has no fragmentation, so this is a full rewrite of the
// current image.
func (s *Store) CompactMoveChunks(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	if s.cfg.ReadOnly {
		return store.ErrReadOnly
	}

	if err := s.writeFileLocked(); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// Close flushes unsaved changes and releases the store. Closing twice is
// a no-op.
func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	var err error
	if s.dirty && !s.cfg.ReadOnly {
		err = s.writeFileLocked()
	}
	s.closed = true
	return err
}

// CloseImmediately releases the store without flushing. Unsaved changes
// are discarded.
func (s *Store) CloseImmediately(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// IsClosed reports whether Close or CloseImmediately has run.
func (s *Store) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// writeFileLocked writes the current image atomically (temp file + rename).
// Callers hold s.mu. No-op without a configured path.
func (s *Store) writeFileLocked() error {
	if s.cfg.Path == "" {
		return nil
	}

	image := fileImage{
		Names: s.names,
		Maps:  make(map[string]map[string][]byte, len(s.maps)),
	}
	for name, m := range s.maps {
		image.Maps[name] = m.data
	}

	data, err := json.Marshal(image)
	if err != nil {
		return fmt.Errorf("encode store image: %w", err)
	}

	dir := filepath.Dir(s.cfg.Path)
	tmp, err := os.CreateTemp(dir, ".quoll-store-*")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp store file: %w", err)
	}
	if err := os.Rename(tmpName, s.cfg.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace store file: %w", err)
	}

	return nil
}

type memMap struct {
	st   *Store
	name string
	data map[string][]byte
}

func (m *memMap) Name() string { return m.name }

func (m *memMap) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.st.mu.RLock()
	defer m.st.mu.RUnlock()

	if m.st.closed {
		return nil, false, store.ErrClosed
	}

	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *memMap) Put(_ context.Context, key string, value []byte) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()

	if m.st.closed {
		return store.ErrClosed
	}
	if m.st.cfg.ReadOnly {
		return store.ErrReadOnly
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored
	m.st.dirty = true
	return nil
}

func (m *memMap) Delete(_ context.Context, key string) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()

	if m.st.closed {
		return store.ErrClosed
	}
	if m.st.cfg.ReadOnly {
		return store.ErrReadOnly
	}

	if _, ok := m.data[key]; ok {
		delete(m.data, key)
		m.st.dirty = true
	}
	return nil
}

func (m *memMap) Size(_ context.Context) (int64, error) {
	m.st.mu.RLock()
	defer m.st.mu.RUnlock()

	if m.st.closed {
		return 0, store.ErrClosed
	}
	return int64(len(m.data)), nil
}

func (m *memMap) Keys(_ context.Context) ([]string, error) {
	m.st.mu.RLock()
	defer m.st.mu.RUnlock()

	if m.st.closed {
		return nil, store.ErrClosed
	}

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *memMap) Clear(_ context.Context) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()

	if m.st.closed {
		return store.ErrClosed
	}
	if m.st.cfg.ReadOnly {
		return store.ErrReadOnly
	}

	if len(m.data) > 0 {
		m.data = make(map[string][]byte)
		m.st.dirty = true
	}
	return nil
}
