// Package internaldefs holds the exporter-facing names and help strings
// for every quoll metric. Both exporters consume it so the two surfaces
// never drift apart.
package internaldefs

import (
	quoll "github.com/quolldb/quoll"
)

// CounterDef binds a metric ID to its exported name and help text.
type CounterDef struct {
	ID   quoll.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram metric ID to its exported name and help
// text.
type HistogramDef struct {
	ID   quoll.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: quoll.MetricCollectionOpened, Name: "quoll_collection_opened_total", Help: "Successful collection opens, including idempotent re-opens."},
	{ID: quoll.MetricRepositoryOpened, Name: "quoll_repository_opened_total", Help: "Successful repository opens."},
	{ID: quoll.MetricNameRejected, Name: "quoll_name_rejected_total", Help: "Collection names rejected by namespace validation."},
	{ID: quoll.MetricClosedDatabaseOp, Name: "quoll_closed_database_op_total", Help: "Operations attempted after the database was closed."},
	{ID: quoll.MetricCommit, Name: "quoll_commit_total", Help: "Commits that reached the backing store."},
	{ID: quoll.MetricCommitSkipped, Name: "quoll_commit_skipped_total", Help: "Commits skipped on closed or read-only sessions."},
	{ID: quoll.MetricCompact, Name: "quoll_compact_total", Help: "Compactions that reached the backing store."},
	{ID: quoll.MetricCompactSkipped, Name: "quoll_compact_skipped_total", Help: "Compactions skipped on closed or read-only sessions."},
	{ID: quoll.MetricDocumentInserted, Name: "quoll_document_inserted_total", Help: "Documents inserted across all collections."},
	{ID: quoll.MetricDocumentRemoved, Name: "quoll_document_removed_total", Help: "Documents removed across all collections."},
	{ID: quoll.MetricUserValidationSuccess, Name: "quoll_user_validation_success_total", Help: "Successful credential checks."},
	{ID: quoll.MetricUserValidationFailure, Name: "quoll_user_validation_failure_total", Help: "Failed credential checks."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: quoll.MetricCommitLatency, Name: "quoll_commit_latency_seconds", Help: "Commit latency histogram."},
}

// HistogramBounds are the upper bounds of the fixed latency buckets, in
// seconds, Prometheus label format.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds with identifier-safe names
// for backends that cannot carry labels.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form both
// exporters emit.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
