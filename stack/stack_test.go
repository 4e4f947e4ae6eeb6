package stack

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sixy6e/go-gf/store"
)

// indexHeader reproduces the on-disk index header bytes the store package
// writes: an 8-byte magic, a uint32 version, and a uint32 record size.
// Kept local to this test file since store's header layout is internal.
func indexHeader() []byte {
	buf := make([]byte, 16)
	copy(buf, []byte("GFIDX01\n"))
	binary.LittleEndian.PutUint32(buf[8:12], 1)
	binary.LittleEndian.PutUint32(buf[12:16], store.IndexRecordSize)
	return buf
}

func float32Bytes(vals ...float32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
	return buf
}

// writeTestStore materializes a minimal valid store directory on disk and
// opens it, returning the opened Store and its Axes for index math.
func writeTestStore(t *testing.T, axes []store.Axis, records []store.IndexRecord, traces []byte) *store.Store {
	t.Helper()
	dir := t.TempDir()

	cfg := store.Config{
		ID:              "stack_test_store",
		ComponentScheme: store.SchemeExplosion,
		DeltaT:          0.5,
		Axes:            axes,
		Reduction:       store.ReductionDepthDistance,
		ReferenceTime:   store.ReferencePerRecord,
	}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config"), cfgJSON, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	idx := indexHeader()
	for _, r := range records {
		idx = append(idx, store.EncodeIndexRecord(r)...)
	}
	if err := os.WriteFile(filepath.Join(dir, "index"), idx, 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "traces"), traces, 0o644); err != nil {
		t.Fatalf("write traces: %v", err)
	}

	s, err := store.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func oneAxisConfig(n int) []store.Axis {
	return []store.Axis{{Name: "distance", Min: 0, Delta: 1000, Count: n}}
}

// A single record stacked with weight 1 and zero time offset reproduces
// the stored trace exactly (spec.md §8 invariant 1/2, scenario S1).
func TestStackSingleRecordNoShift(t *testing.T) {
	records := make([]store.IndexRecord, 4)
	records[0] = store.IndexRecord{ITMin: 0, NSamples: 3, ByteOffset: 0, BeginValue: 0, EndValue: 0}
	traces := float32Bytes(1, 2, 3)

	st := writeTestStore(t, oneAxisConfig(4), records, traces)

	result, err := Stack(st, []Record{
		{GridIndex: 0, TimeOffset: 0, Weights: []float64{1}},
	}, 0, 3, Options{NumComponents: 1})
	if err != nil {
		t.Fatalf("Stack: %v", err)
	}

	want := []float64{1, 2, 3}
	for i, w := range want {
		if result.Buffers[0][i] != w {
			t.Errorf("buf[%d] = %v, want %v", i, result.Buffers[0][i], w)
		}
	}
	if result.Stats.NStacked != 1 {
		t.Errorf("NStacked = %d, want 1", result.Stats.NStacked)
	}
}

// Scenario S2: two bracketing records at weight 0.5 each sum to the
// average of their traces, with n_stacked == 2.
func TestStackTwoBracketingRecords(t *testing.T) {
	records := make([]store.IndexRecord, 4)
	records[1] = store.IndexRecord{ITMin: 0, NSamples: 2, ByteOffset: 0, BeginValue: 0, EndValue: 0}
	records[2] = store.IndexRecord{ITMin: 0, NSamples: 2, ByteOffset: 8, BeginValue: 0, EndValue: 0}
	traces := append(float32Bytes(2, 4), float32Bytes(6, 8)...)

	st := writeTestStore(t, oneAxisConfig(4), records, traces)

	result, err := Stack(st, []Record{
		{GridIndex: 1, TimeOffset: 0, Weights: []float64{0.5}},
		{GridIndex: 2, TimeOffset: 0, Weights: []float64{0.5}},
	}, 0, 2, Options{NumComponents: 1})
	if err != nil {
		t.Fatalf("Stack: %v", err)
	}

	want := []float64{4, 6}
	for i, w := range want {
		if result.Buffers[0][i] != w {
			t.Errorf("buf[%d] = %v, want %v", i, result.Buffers[0][i], w)
		}
	}
	if result.Stats.NStacked != 2 {
		t.Errorf("NStacked = %d, want 2", result.Stats.NStacked)
	}
}

// A record whose stored window (itmin 100) lies fully outside the output
// window contributes only its constant extension value.
func TestStackRecordOutsideWindowUsesConstantExtension(t *testing.T) {
	records := make([]store.IndexRecord, 2)
	records[0] = store.IndexRecord{ITMin: 100, NSamples: 2, ByteOffset: 0, BeginValue: -5, EndValue: 9}
	traces := float32Bytes(1, 2)

	st := writeTestStore(t, oneAxisConfig(2), records, traces)

	result, err := Stack(st, []Record{
		{GridIndex: 0, TimeOffset: 0, Weights: []float64{1}},
	}, 0, 4, Options{NumComponents: 1})
	if err != nil {
		t.Fatalf("Stack: %v", err)
	}
	for i := 0; i < 4; i++ {
		if result.Buffers[0][i] != -5 {
			t.Errorf("buf[%d] = %v, want -5 (begin_value extension)", i, result.Buffers[0][i])
		}
	}
}

// Empty and short-circuit-zero records are tallied, not stacked into the
// buffer as anything but zero.
func TestStackEmptyAndShortCircuitRecordsAreTallied(t *testing.T) {
	records := make([]store.IndexRecord, 2)
	records[0] = store.IndexRecord{NSamples: 0}  // empty sentinel
	records[1] = store.IndexRecord{NSamples: -1} // short-circuit zero

	st := writeTestStore(t, oneAxisConfig(2), records, nil)

	result, err := Stack(st, []Record{
		{GridIndex: 0, TimeOffset: 0, Weights: []float64{1}},
		{GridIndex: 1, TimeOffset: 0, Weights: []float64{1}},
	}, 0, 3, Options{NumComponents: 1})
	if err != nil {
		t.Fatalf("Stack: %v", err)
	}
	if result.Stats.NEmpty != 1 {
		t.Errorf("NEmpty = %d, want 1", result.Stats.NEmpty)
	}
	if result.Stats.NZero != 1 {
		t.Errorf("NZero = %d, want 1", result.Stats.NZero)
	}
	for i, v := range result.Buffers[0] {
		if v != 0 {
			t.Errorf("buf[%d] = %v, want 0", i, v)
		}
	}
}

// An out-of-range grid index is tallied as out-of-bounds rather than
// aborting the whole stack (spec.md §7).
func TestStackOutOfBoundsGridIndexIsTallied(t *testing.T) {
	records := make([]store.IndexRecord, 2)
	st := writeTestStore(t, oneAxisConfig(2), records, nil)

	result, err := Stack(st, []Record{
		{GridIndex: 5, TimeOffset: 0, Weights: []float64{1}},
	}, 0, 2, Options{NumComponents: 1})
	if err != nil {
		t.Fatalf("Stack: %v", err)
	}
	if result.Stats.NOutOfBounds != 1 {
		t.Errorf("NOutOfBounds = %d, want 1", result.Stats.NOutOfBounds)
	}
}

// Optimization pre-combines records sharing the same (itshift, grid_index)
// by summing their weights before the inner loop runs.
func TestStackOptimizePreCombinesSharedRecords(t *testing.T) {
	records := make([]store.IndexRecord, 1)
	records[0] = store.IndexRecord{ITMin: 0, NSamples: 2, ByteOffset: 0}
	traces := float32Bytes(10, 20)

	st := writeTestStore(t, oneAxisConfig(1), records, traces)

	result, err := Stack(st, []Record{
		{GridIndex: 0, TimeOffset: 0, Weights: []float64{0.25}},
		{GridIndex: 0, TimeOffset: 0, Weights: []float64{0.25}},
	}, 0, 2, Options{NumComponents: 1, Optimize: true})
	if err != nil {
		t.Fatalf("Stack: %v", err)
	}
	want := []float64{5, 10}
	for i, w := range want {
		if result.Buffers[0][i] != w {
			t.Errorf("buf[%d] = %v, want %v", i, result.Buffers[0][i], w)
		}
	}
	if result.Stats.NStacked != 1 {
		t.Errorf("NStacked = %d, want 1 after pre-combine", result.Stats.NStacked)
	}
}

// NaN samples are skipped and counted as out-of-bounds, not propagated
// into the accumulator (DESIGN.md open-question decision).
func TestStackNaNSampleIsSkippedAndCounted(t *testing.T) {
	records := make([]store.IndexRecord, 1)
	records[0] = store.IndexRecord{ITMin: 0, NSamples: 2, ByteOffset: 0}
	traces := float32Bytes(float32(math.NaN()), 3)

	st := writeTestStore(t, oneAxisConfig(1), records, traces)

	result, err := Stack(st, []Record{
		{GridIndex: 0, TimeOffset: 0, Weights: []float64{1}},
	}, 0, 2, Options{NumComponents: 1})
	if err != nil {
		t.Fatalf("Stack: %v", err)
	}
	if result.Buffers[0][0] != 0 {
		t.Errorf("buf[0] = %v, want 0 (NaN skipped)", result.Buffers[0][0])
	}
	if result.Buffers[0][1] != 3 {
		t.Errorf("buf[1] = %v, want 3", result.Buffers[0][1])
	}
	if result.Stats.NOutOfBounds != 1 {
		t.Errorf("NOutOfBounds = %d, want 1", result.Stats.NOutOfBounds)
	}
}
