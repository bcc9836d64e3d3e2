package internaldefs

import "testing"

func TestNormalizeBuckets(t *testing.T) {
	tests := []struct {
		name string
		raw  []uint64
		want [8]uint64
	}{
		{name: "nil", raw: nil, want: [8]uint64{}},
		{name: "short", raw: []uint64{1, 2}, want: [8]uint64{1, 2}},
		{name: "exact", raw: []uint64{1, 2, 3, 4, 5, 6, 7, 8}, want: [8]uint64{1, 2, 3, 4, 5, 6, 7, 8}},
		{name: "long", raw: []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9}, want: [8]uint64{1, 2, 3, 4, 5, 6, 7, 8}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeBuckets(tc.raw); got != tc.want {
				t.Fatalf("NormalizeBuckets(%v) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets([8]uint64{1, 1, 0, 2, 0, 0, 0, 1})
	want := [8]uint64{1, 2, 2, 4, 4, 4, 4, 5}
	if got != want {
		t.Fatalf("CumulativeBuckets = %v, want %v", got, want)
	}
}

func TestDefinitionsAlign(t *testing.T) {
	if len(HistogramBounds) != len(HistogramBoundSuffix) {
		t.Fatalf("bounds and suffixes diverged: %d vs %d", len(HistogramBounds), len(HistogramBoundSuffix))
	}

	seen := make(map[string]bool, len(CounterDefs))
	for _, def := range CounterDefs {
		if def.Name == "" || def.Help == "" {
			t.Fatalf("counter %d missing name or help", def.ID)
		}
		if seen[def.Name] {
			t.Fatalf("duplicate counter name %q", def.Name)
		}
		seen[def.Name] = true
	}
}
