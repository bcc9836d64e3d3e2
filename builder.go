package quoll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quolldb/quoll/credential"
	"github.com/quolldb/quoll/store"
	"github.com/quolldb/quoll/store/memory"
)

// Builder assembles a database session. Configure it during
// initialization, call Build once, and discard it: a Builder cannot be
// reused.
type Builder struct {
	config Config

	st       store.Store
	filePath string
	inMemory bool

	readOnly    bool
	autoCompact bool

	username string
	password string

	logger *slog.Logger
	sink   EventSink

	built bool
}

// New returns a Builder carrying the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStore supplies a caller-owned backing store. Takes precedence over
// WithFile and InMemory.
func (b *Builder) WithStore(st store.Store) *Builder {
	b.st = st
	return b
}

// WithFile backs the session with a single-file memory store at path. The
// file is created on first commit when absent.
func (b *Builder) WithFile(path string) *Builder {
	b.filePath = path
	return b
}

// InMemory backs the session with a pure in-memory store. Nothing survives
// Close.
func (b *Builder) InMemory() *Builder {
	b.inMemory = true
	return b
}

// ReadOnly fixes the session's read-only flag. Commit and Compact become
// logged no-ops, and write-capability failures during Close are treated as
// expected.
func (b *Builder) ReadOnly(enabled bool) *Builder {
	b.readOnly = enabled
	return b
}

// WithAutoCompact makes Close compact the store before closing it.
func (b *Builder) WithAutoCompact(enabled bool) *Builder {
	b.autoCompact = enabled
	return b
}

// WithCredentials secures the database. On the first open the pair becomes
// the stored credential record; on later opens it must match.
func (b *Builder) WithCredentials(username, password string) *Builder {
	b.username = username
	b.password = password
	return b
}

// WithLogger sets the session logger. Defaults to slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithEventSink receives lifecycle events when event dispatch is enabled.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.sink = sink
	return b
}

// WithEventsEnabled toggles the lifecycle event dispatcher.
func (b *Builder) WithEventsEnabled(enabled bool) *Builder {
	b.config.Events.Enabled = enabled
	return b
}

// WithMetricsEnabled toggles the metrics collector.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms additionally records commit latency.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build opens the session: resolves the backing store, reconciles
// credentials with the store's user map, and wires context, metrics, and
// event dispatch. On credential failure the store is closed before
// returning.
func (b *Builder) Build(ctx context.Context) (*DB, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st := b.st
	if st == nil {
		switch {
		case b.filePath != "":
			opened, err := memory.Open(memory.Config{Path: b.filePath, ReadOnly: b.readOnly})
			if err != nil {
				return nil, fmt.Errorf("open file store: %w", err)
			}
			st = opened
		case b.inMemory:
			opened, err := memory.Open(memory.Config{ReadOnly: b.readOnly})
			if err != nil {
				return nil, fmt.Errorf("open memory store: %w", err)
			}
			st = opened
		default:
			return nil, errors.New("backing store required: use WithStore, WithFile, or InMemory")
		}
	}

	hasher, err := credential.NewHasher(credential.Config{
		Memory:      cfg.Credential.Memory,
		Time:        cfg.Credential.Time,
		Parallelism: cfg.Credential.Parallelism,
		SaltLength:  cfg.Credential.SaltLength,
		KeyLength:   cfg.Credential.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	created, err := bootstrapCredentials(ctx, st, hasher, b.username, b.password, b.readOnly)
	if err != nil {
		_ = st.CloseImmediately(ctx)
		return nil, err
	}
	if created {
		if err := st.Commit(ctx); err != nil {
			_ = st.CloseImmediately(ctx)
			return nil, fmt.Errorf("persist credential record: %w", err)
		}
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	db := &DB{
		st:      st,
		context: newDBContext(b.readOnly, b.autoCompact),
		config:  cfg,
		logger:  logger,
		metrics: NewMetrics(cfg.Metrics),
		events:  newEventDispatcher(cfg.Events, b.sink),
		hasher:  hasher,
	}

	db.emit(ctx, EventDatabaseOpened, "", nil)
	b.built = true

	return db, nil
}
