package otel

import (
	"context"
	"sync"
	"testing"

	quoll "github.com/quolldb/quoll"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot quoll.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() quoll.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := quoll.MetricsSnapshot{
		Counters:   make(map[quoll.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[quoll.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) EventsDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newTestMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return reader, provider
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newTestMeter(t)
	meter := provider.Meter("quoll-test")

	src := &fakeSource{
		snapshot: quoll.MetricsSnapshot{
			Counters: map[quoll.MetricID]uint64{
				quoll.MetricCommit: 3,
			},
			Histograms: map[quoll.MetricID][]uint64{
				quoll.MetricCommitLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected collected metrics, got none")
	}

	if got := counterValue(t, rm, "quoll_commit_total"); got != 3 {
		t.Fatalf("quoll_commit_total = %d, want 3", got)
	}
	if got := counterValue(t, rm, "quoll_events_dropped_total"); got != 1 {
		t.Fatalf("quoll_events_dropped_total = %d, want 1", got)
	}
	// Buckets are cumulative; the count gauge carries the total.
	if got := gaugeValue(t, rm, "quoll_commit_latency_seconds_count"); got != 8 {
		t.Fatalf("quoll_commit_latency_seconds_count = %d, want 8", got)
	}
	if got := gaugeValue(t, rm, "quoll_commit_latency_seconds_bucket_le_0_01"); got != 2 {
		t.Fatalf("second cumulative bucket = %d, want 2", got)
	}
}

func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) == 0 {
				t.Fatalf("metric %s has unexpected data %T", name, m.Data)
			}
			return sum.DataPoints[0].Value
		}
	}
	t.Fatalf("metric %s not collected", name)
	return 0
}

func gaugeValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			gauge, ok := m.Data.(metricdata.Gauge[int64])
			if !ok || len(gauge.DataPoints) == 0 {
				t.Fatalf("metric %s has unexpected data %T", name, m.Data)
			}
			return gauge.DataPoints[0].Value
		}
	}
	t.Fatalf("metric %s not collected", name)
	return 0
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newTestMeter(t)
	meter := provider.Meter("quoll-test")

	if _, err := NewExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("nil source: expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("nil meter: expected ErrNilMeter, got %v", err)
	}
}

func TestExporterCloseIsIdempotent(t *testing.T) {
	_, provider := newTestMeter(t)
	meter := provider.Meter("quoll-test")

	exp, err := NewExporterFromSource(meter, &fakeSource{})
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	if err := exp.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := exp.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	var nilExporter *Exporter
	if err := nilExporter.Close(); err != nil {
		t.Fatalf("nil Close failed: %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newTestMeter(t)
	meter := provider.Meter("quoll-test")

	src := &fakeSource{
		snapshot: quoll.MetricsSnapshot{
			Counters: map[quoll.MetricID]uint64{
				quoll.MetricCommit: 1,
			},
			Histograms: map[quoll.MetricID][]uint64{
				quoll.MetricCommitLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[quoll.MetricCommit] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
