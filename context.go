package quoll

import "sync"

// dbContext is the per-session state shared by the facade and its
// factories: the configuration flags fixed at construction and the
// registry of every collection and repository opened during the session's
// lifetime. The registry doubles as the instance cache that guarantees
// at-most-one live Collection per map name per session.
type dbContext struct {
	readOnly    bool
	autoCompact bool

	mu          sync.Mutex
	collections map[string]*Collection // map name -> live instance
	order       []string               // discovery order, for the close walk
	repoTypes   map[string]string      // repository type name -> map name
	shutdown    bool
}

func newDBContext(readOnly, autoCompact bool) *dbContext {
	return &dbContext{
		readOnly:    readOnly,
		autoCompact: autoCompact,
		collections: make(map[string]*Collection),
		repoTypes:   make(map[string]string),
	}
}

// lookup returns the live collection registered under name. Closed
// instances are not returned; the caller reopens and re-registers.
func (c *dbContext) lookup(name string) (*Collection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	coll, ok := c.collections[name]
	if !ok || coll.IsClosed() {
		return nil, false
	}
	return coll, true
}

// register records a collection under its map name. Idempotent: an
// existing live instance wins and is returned, so concurrent opens of the
// same name converge on one instance. A closed instance is replaced.
func (c *dbContext) register(name string, coll *Collection) *Collection {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.collections[name]; ok {
		if !existing.IsClosed() {
			return existing
		}
		c.collections[name] = coll
		return coll
	}
	c.collections[name] = coll
	c.order = append(c.order, name)
	return coll
}

// registerRepository records that typeName's repository is backed by the
// map under storeName.
func (c *dbContext) registerRepository(typeName, storeName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repoTypes[typeName] = storeName
}

// drain returns every registered collection in discovery order and clears
// both registries. Called exactly once, from the close walk.
func (c *dbContext) drain() []*Collection {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Collection, 0, len(c.order))
	for _, name := range c.order {
		if coll, ok := c.collections[name]; ok {
			out = append(out, coll)
		}
	}
	c.collections = make(map[string]*Collection)
	c.order = nil
	c.repoTypes = make(map[string]string)
	return out
}

// close marks the context shut down. It must not be reused afterwards.
func (c *dbContext) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdown = true
}
