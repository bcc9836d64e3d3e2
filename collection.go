package quoll

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/quolldb/quoll/store"
)

// Collection is a document-oriented view over one named map of the backing
// store. Instances are created by the facade, cached per name, and safe
// for concurrent use; thread-safety of reads and writes is delegated to
// the backing store.
type Collection struct {
	name    string
	m       store.Map
	logger  *slog.Logger
	metrics *Metrics
	closed  atomic.Bool
}

func newCollection(name string, m store.Map, logger *slog.Logger, metrics *Metrics) *Collection {
	return &Collection{
		name:    name,
		m:       m,
		logger:  logger,
		metrics: metrics,
	}
}

// Name returns the collection's name. For repository-backed collections
// this is the derived store name, not the plain collection name.
func (c *Collection) Name() string { return c.name }

// Insert stores doc and returns its identifier, assigning a fresh one when
// the document has none.
func (c *Collection) Insert(ctx context.Context, doc Document) (string, error) {
	if c.closed.Load() {
		return "", ErrCollectionClosed
	}
	if doc == nil {
		return "", fmt.Errorf("nil document")
	}

	id := doc.ensureID()
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	if err := c.m.Put(ctx, id, data); err != nil {
		return "", err
	}

	c.metrics.Inc(MetricDocumentInserted)
	return id, nil
}

// Get returns the document stored under id, or nil when absent.
func (c *Collection) Get(ctx context.Context, id string) (Document, error) {
	if c.closed.Load() {
		return nil, ErrCollectionClosed
	}

	data, ok, err := c.m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	return doc, nil
}

// Update replaces the document stored under doc's identifier, creating it
// when absent. The document must carry an identifier.
func (c *Collection) Update(ctx context.Context, doc Document) error {
	if c.closed.Load() {
		return ErrCollectionClosed
	}

	id := doc.ID()
	if id == "" {
		return ErrMissingDocumentID
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return c.m.Put(ctx, id, data)
}

// Remove deletes the document stored under id. Removing an absent id is
// not an error.
func (c *Collection) Remove(ctx context.Context, id string) error {
	if c.closed.Load() {
		return ErrCollectionClosed
	}

	if err := c.m.Delete(ctx, id); err != nil {
		return err
	}
	c.metrics.Inc(MetricDocumentRemoved)
	return nil
}

// Size returns the number of documents in the collection.
func (c *Collection) Size(ctx context.Context) (int64, error) {
	if c.closed.Load() {
		return 0, ErrCollectionClosed
	}
	return c.m.Size(ctx)
}

// FindAll returns every document in the collection. Entries removed
// between key enumeration and read are skipped.
func (c *Collection) FindAll(ctx context.Context) ([]Document, error) {
	if c.closed.Load() {
		return nil, ErrCollectionClosed
	}

	keys, err := c.m.Keys(ctx)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(keys))
	for _, key := range keys {
		data, ok, err := c.m.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", key, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// IsClosed reports whether the collection has been closed.
func (c *Collection) IsClosed() bool { return c.closed.Load() }

// Close detaches the collection from the session. Subsequent operations
// return ErrCollectionClosed. Closing twice is a no-op; the underlying map
// stays owned by the backing store.
func (c *Collection) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.logger.Debug("collection closed", "collection", c.name)
	return nil
}
