package quoll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/quolldb/quoll/credential"
	"github.com/quolldb/quoll/store"
)

// DB is one open session over a backing store. It multiplexes the store
// into named collections and typed repositories, tracks everything opened
// during its lifetime, and coordinates commit, compaction, and shutdown
// across all of them.
//
// A DB is safe for concurrent use: collection and repository opens, reads,
// and writes may run from multiple goroutines without external locking.
// Compact and Close are the exception: they must not run concurrently
// with in-flight writes against the same store; callers quiesce writers
// first.
type DB struct {
	mu sync.Mutex
	st store.Store // nil once closed; the permanent closed marker

	context *dbContext
	config  Config
	logger  *slog.Logger
	metrics *Metrics
	events  *eventDispatcher
	hasher  *credential.Hasher
}

// store returns the backing store, or nil when the session is closed.
func (db *DB) store() store.Store {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.st
}

func (db *DB) closedOp(op string) {
	db.logger.Error("operation on closed database", "op", op)
	db.metrics.Inc(MetricClosedDatabaseOp)
}

func (db *DB) emit(ctx context.Context, kind, name string, err error) {
	if db.events == nil {
		return
	}
	event := Event{
		Timestamp: time.Now(),
		Kind:      kind,
		Name:      name,
		Success:   err == nil,
	}
	if err != nil {
		event.Error = err.Error()
	}
	db.events.Emit(ctx, event)
}

// GetCollection opens the named collection, creating it in the store when
// absent. Opening an already-open name returns the same instance. Names
// carrying reserved tokens are rejected with ErrInvalidName before the
// store is touched; a closed session yields ErrDatabaseClosed.
func (db *DB) GetCollection(ctx context.Context, name string) (*Collection, error) {
	if err := validateCollectionName(name); err != nil {
		db.metrics.Inc(MetricNameRejected)
		return nil, err
	}

	st := db.store()
	if st == nil {
		db.closedOp("get collection")
		return nil, ErrDatabaseClosed
	}

	coll, err := db.openCollection(ctx, st, name)
	if err != nil {
		return nil, err
	}

	db.metrics.Inc(MetricCollectionOpened)
	db.emit(ctx, EventCollectionOpened, name, nil)
	return coll, nil
}

// openCollection is the shared open path for plain collections and
// repository stores. The registry acts as the instance cache: at most one
// live Collection exists per map name per session.
func (db *DB) openCollection(ctx context.Context, st store.Store, name string) (*Collection, error) {
	if coll, ok := db.context.lookup(name); ok {
		return coll, nil
	}

	m, err := st.OpenMap(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open map %q: %w", name, err)
	}

	coll := newCollection(name, m, db.logger, db.metrics)
	return db.context.register(name, coll), nil
}

// openRepositoryCollection backs GetRepository: same open path as
// GetCollection, keyed by the derived store name, plus repository registry
// bookkeeping.
func (db *DB) openRepositoryCollection(ctx context.Context, typeName, storeName string) (*Collection, error) {
	st := db.store()
	if st == nil {
		db.closedOp("get repository")
		return nil, ErrDatabaseClosed
	}

	coll, err := db.openCollection(ctx, st, storeName)
	if err != nil {
		return nil, err
	}

	db.context.registerRepository(typeName, storeName)
	db.metrics.Inc(MetricRepositoryOpened)
	db.emit(ctx, EventRepositoryOpened, typeName, nil)
	return coll, nil
}

// ListCollectionNames returns the name of every plain collection in the
// store, opened by this session or not. Repository stores, index maps, and
// the user map are excluded. On a closed session it logs and returns an
// empty slice.
func (db *DB) ListCollectionNames(ctx context.Context) []string {
	st := db.store()
	if st == nil {
		db.closedOp("list collection names")
		return []string{}
	}

	names, err := st.MapNames(ctx)
	if err != nil {
		db.logger.Error("listing map names failed", "error", err)
		return []string{}
	}

	out := make([]string, 0, len(names))
	for _, name := range names {
		if isValidCollectionName(name) && !isRepositoryStore(name) {
			out = append(out, name)
		}
	}
	return out
}

// ListRepositories returns the fully-qualified type name of every
// repository in the store. Non-repository names are skipped silently. On a
// closed session it logs and returns an empty slice.
func (db *DB) ListRepositories(ctx context.Context) []string {
	st := db.store()
	if st == nil {
		db.closedOp("list repositories")
		return []string{}
	}

	names, err := st.MapNames(ctx)
	if err != nil {
		db.logger.Error("listing map names failed", "error", err)
		return []string{}
	}

	out := make([]string, 0, len(names))
	for _, name := range names {
		if strings.Contains(name, internalNameSeparator) || strings.Contains(name, userMapName) {
			continue
		}
		if typeName := repositoryTypeFromStoreName(name); typeName != "" {
			out = append(out, typeName)
		}
	}
	return out
}

// HasCollection reports whether a plain collection with the given name
// exists in the store.
func (db *DB) HasCollection(ctx context.Context, name string) bool {
	for _, n := range db.ListCollectionNames(ctx) {
		if n == name {
			return true
		}
	}
	return false
}

// HasUnsavedChanges reports whether the backing store holds mutations not
// yet flushed to its durable representation. False on a closed session.
func (db *DB) HasUnsavedChanges() bool {
	st := db.store()
	return st != nil && st.HasUnsavedChanges()
}

// Commit flushes all pending mutations of every named map to the backing
// store's durable representation. It does not close anything. Read-only
// sessions skip with a logged debug line; closed sessions return
// ErrDatabaseClosed.
func (db *DB) Commit(ctx context.Context) error {
	st := db.store()
	if st == nil {
		db.closedOp("commit")
		db.metrics.Inc(MetricCommitSkipped)
		return ErrDatabaseClosed
	}
	if db.context.readOnly {
		db.logger.Debug("commit skipped: database is read-only")
		db.metrics.Inc(MetricCommitSkipped)
		return nil
	}

	start := time.Now()
	if err := st.Commit(ctx); err != nil {
		db.emit(ctx, EventCommit, "", err)
		return fmt.Errorf("commit: %w", err)
	}

	db.metrics.Inc(MetricCommit)
	db.metrics.Observe(MetricCommitLatency, time.Since(start))
	db.emit(ctx, EventCommit, "", nil)
	db.logger.Debug("unsaved changes committed")
	return nil
}

// Compact instructs the backing store to reorganize its allocated regions
// contiguously. Skipped with a logged debug line when the session is
// read-only or the store already reports closed; a closed session returns
// ErrDatabaseClosed. Must not run concurrently with writes.
func (db *DB) Compact(ctx context.Context) error {
	st := db.store()
	if st == nil {
		db.closedOp("compact")
		db.metrics.Inc(MetricCompactSkipped)
		return ErrDatabaseClosed
	}
	if st.IsClosed() || db.context.readOnly {
		db.logger.Debug("compaction skipped",
			"read_only", db.context.readOnly,
			"store_closed", st.IsClosed())
		db.metrics.Inc(MetricCompactSkipped)
		return nil
	}

	if err := st.CompactMoveChunks(ctx); err != nil {
		db.emit(ctx, EventCompact, "", err)
		return fmt.Errorf("compact: %w", err)
	}

	db.metrics.Inc(MetricCompact)
	db.emit(ctx, EventCompact, "", nil)
	db.logger.Debug("store compaction successful")
	return nil
}

// Close shuts the session down: commit if there are unsaved changes,
// compact when auto-compact is configured, close every registered
// collection and repository, then close the backing store. Each step is
// best-effort and ordered; a failing step is logged and never prevents the
// later ones. The store reference is cleared first, so Close is idempotent
// and re-entrant calls during shutdown are no-ops.
//
// A write-capability failure from the store's own close is swallowed when
// the session is read-only (expected on read-only media) and returned
// otherwise.
func (db *DB) Close(ctx context.Context) error {
	db.mu.Lock()
	st := db.st
	if st == nil {
		db.mu.Unlock()
		db.logger.Debug("close skipped: database already closed")
		return nil
	}
	db.st = nil
	db.mu.Unlock()

	if st.HasUnsavedChanges() && !db.context.readOnly {
		db.logger.Debug("unsaved changes detected, committing before close")
		if err := st.Commit(ctx); err != nil {
			db.logger.Error("commit during close failed", "error", err)
		}
	}

	if db.context.autoCompact && !db.context.readOnly && !st.IsClosed() {
		if err := st.CompactMoveChunks(ctx); err != nil {
			db.logger.Error("compaction during close failed", "error", err)
		}
	}

	db.closeCollections()
	db.context.close()

	err := st.Close(ctx)
	if err != nil && errors.Is(err, store.ErrReadOnly) && db.context.readOnly {
		err = nil
	}

	db.emit(ctx, EventDatabaseClosed, "", err)
	db.events.Close()

	if err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	db.logger.Info("database closed")
	return nil
}

// closeCollections walks the registry in discovery order. Individual close
// failures are logged and never abort the remaining walk: one misbehaving
// collection cannot keep the others, or the store, from closing.
func (db *DB) closeCollections() {
	for _, coll := range db.context.drain() {
		if coll.IsClosed() {
			continue
		}
		if err := coll.Close(); err != nil {
			db.logger.Error("closing collection failed",
				"collection", coll.Name(), "error", err)
		}
	}
}

// CloseImmediately is the abort path: it closes the backing store without
// flushing unsaved changes and skips commit, compaction, and the registry
// walk. Failures are logged and swallowed, except a write-capability
// failure, which is returned when the session is not read-only. On a
// read-only session that failure is the expected outcome of a forced
// shutdown.
func (db *DB) CloseImmediately(ctx context.Context) error {
	db.mu.Lock()
	st := db.st
	if st == nil {
		db.mu.Unlock()
		db.logger.Debug("immediate close skipped: database already closed")
		return nil
	}
	db.st = nil
	db.mu.Unlock()

	err := st.CloseImmediately(ctx)

	db.context.close()
	db.emit(ctx, EventDatabaseAborted, "", err)
	db.events.Close()

	if err != nil {
		if errors.Is(err, store.ErrReadOnly) {
			if !db.context.readOnly {
				db.logger.Error("closing store failed", "error", err)
				return fmt.Errorf("close store: %w", err)
			}
			return nil
		}
		db.logger.Error("closing store failed", "error", err)
		return nil
	}

	db.logger.Info("database closed without saving unsaved changes")
	return nil
}

// IsClosed reports whether the session is closed, either through this
// facade or because the backing store itself reports closed.
func (db *DB) IsClosed() bool {
	st := db.store()
	return st == nil || st.IsClosed()
}

// ValidateUser checks a username/password pair against the internal
// credential map. It is a pure query: no session state changes. On an
// unsecured database only the empty pair validates.
func (db *DB) ValidateUser(ctx context.Context, username, password string) (bool, error) {
	st := db.store()
	if st == nil {
		db.closedOp("validate user")
		return false, ErrDatabaseClosed
	}

	ok, err := validateUserCredential(ctx, st, db.hasher, username, password)
	if err != nil {
		return false, err
	}

	if ok {
		db.metrics.Inc(MetricUserValidationSuccess)
	} else {
		db.metrics.Inc(MetricUserValidationFailure)
	}
	db.emit(ctx, EventUserValidated, username, nil)
	return ok, nil
}

// MetricsSnapshot exposes the session's metrics to exporters. Disabled
// metrics yield empty maps.
func (db *DB) MetricsSnapshot() MetricsSnapshot {
	if db == nil || db.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return db.metrics.Snapshot()
}

// EventsDropped reports lifecycle events discarded under dispatcher
// backpressure.
func (db *DB) EventsDropped() uint64 {
	if db == nil || db.events == nil {
		return 0
	}
	return db.events.Dropped()
}
