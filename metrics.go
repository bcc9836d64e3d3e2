package quoll

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter or histogram tracked by Metrics.
type MetricID uint16

const (
	// MetricCollectionOpened counts successful collection opens, including
	// idempotent re-opens of an already-open name.
	MetricCollectionOpened MetricID = iota
	// MetricRepositoryOpened counts successful repository opens.
	MetricRepositoryOpened
	// MetricNameRejected counts collection names rejected by namespace
	// validation.
	MetricNameRejected
	// MetricClosedDatabaseOp counts operations attempted after close.
	MetricClosedDatabaseOp
	// MetricCommit counts commits that reached the backing store.
	MetricCommit
	// MetricCommitSkipped counts commits skipped because the session is
	// closed or read-only.
	MetricCommitSkipped
	// MetricCompact counts compactions that reached the backing store.
	MetricCompact
	// MetricCompactSkipped counts compactions skipped because the session
	// is closed or read-only.
	MetricCompactSkipped
	// MetricDocumentInserted counts document inserts across collections.
	MetricDocumentInserted
	// MetricDocumentRemoved counts document removals across collections.
	MetricDocumentRemoved
	// MetricUserValidationSuccess counts successful credential checks.
	MetricUserValidationSuccess
	// MetricUserValidationFailure counts failed credential checks.
	MetricUserValidationFailure
	// MetricCommitLatency is the commit latency histogram.
	MetricCommitLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a lock-free collector of session counters and one commit
// latency histogram. A nil or disabled Metrics accepts every call and
// records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram,
// safe to hand to exporters.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a collector from cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether the collector records anything.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc increments the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a latency sample. Only MetricCommitLatency is tracked.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricCommitLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

// Value returns the current counter value for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and histogram. A disabled collector
// returns empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricCommitLatency].buckets[i])
		}
		s.Histograms[MetricCommitLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
