package store

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func buildIndexBytes(records []IndexRecord) []byte {
	buf := make([]byte, indexHeaderSize)
	copy(buf, indexMagic[:])
	binary.LittleEndian.PutUint32(buf[8:12], currentIndexVersion)
	binary.LittleEndian.PutUint32(buf[12:16], IndexRecordSize)
	for _, r := range records {
		buf = append(buf, EncodeIndexRecord(r)...)
	}
	return buf
}

func float32bytes(vals ...float32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
	return buf
}

func testConfig() *Config {
	return &Config{
		ID:              "test_store",
		ComponentScheme: SchemeExplosion,
		DeltaT:          0.1,
		Axes: []Axis{
			{Name: "depth", Min: 0, Delta: 1000, Count: 3},
			{Name: "distance", Min: 0, Delta: 1000, Count: 4},
		},
		Reduction:     ReductionDepthDistance,
		ReferenceTime: ReferencePerRecord,
	}
}

// Invariant: a valid, populated grid index returns a TraceView whose
// samples exactly match the stored float32 data (spec.md §8 invariant 2).
func TestStoreGetPopulatedRecord(t *testing.T) {
	cfg := testConfig()
	traces := float32bytes(1, 2, 3, 4)

	records := make([]IndexRecord, cfg.N())
	records[5] = IndexRecord{
		TFirst: 1.5, ITMin: 15, NSamples: 4, ByteOffset: 0,
		BeginValue: -1, EndValue: 9,
	}

	s := newStoreFromSources("mem", cfg, newMemSource(buildIndexBytes(records)), newMemSource(traces))

	tv, err := s.Get(5, 10, 14)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := []float32{-1, -1, -1, -1, -1, 1, 2, 3, 4, 9, 9, 9, 9, 9}
	for i, w := range want {
		if got := tv.At(int64(i)); got != w {
			t.Errorf("At(%d) = %v, want %v", i, got, w)
		}
	}
}

// Invariant: an empty-sentinel record reports Empty and extends as a
// constant (spec.md §3 "never filled").
func TestStoreGetEmptyRecord(t *testing.T) {
	cfg := testConfig()
	records := make([]IndexRecord, cfg.N())
	records[0] = IndexRecord{NSamples: nsamplesEmpty, BeginValue: 0, EndValue: 0}

	s := newStoreFromSources("mem", cfg, newMemSource(buildIndexBytes(records)), newMemSource(nil))

	tv, err := s.Get(0, 0, 5)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !tv.Empty {
		t.Fatalf("expected Empty record")
	}
	for i := int64(0); i < 5; i++ {
		if got := tv.At(i); got != 0 {
			t.Errorf("At(%d) = %v, want 0", i, got)
		}
	}
}

// Invariant: a short-circuit-zero record reads as all zero without
// touching the traces source.
func TestStoreGetShortCircuitZero(t *testing.T) {
	cfg := testConfig()
	records := make([]IndexRecord, cfg.N())
	records[1] = IndexRecord{NSamples: nsamplesShortCircuit}

	s := newStoreFromSources("mem", cfg, newMemSource(buildIndexBytes(records)), newMemSource(nil))

	tv, err := s.Get(1, -3, 6)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !tv.ShortCircuitZero {
		t.Fatalf("expected ShortCircuitZero record")
	}
	for i := int64(0); i < 6; i++ {
		if got := tv.At(i); got != 0 {
			t.Errorf("At(%d) = %v, want 0", i, got)
		}
	}
}

// Invariant: an out-of-range grid index fails OutOfBoundsIndexError
// rather than reading garbage (spec.md §7).
func TestStoreGetOutOfBoundsIndex(t *testing.T) {
	cfg := testConfig()
	records := make([]IndexRecord, cfg.N())
	s := newStoreFromSources("mem", cfg, newMemSource(buildIndexBytes(records)), newMemSource(nil))

	_, err := s.Get(cfg.N(), 0, 1)
	if err == nil {
		t.Fatalf("expected an error for out-of-range grid index")
	}
	if _, ok := err.(*outOfBoundsIndexError); !ok {
		t.Fatalf("got %T, want *outOfBoundsIndexError", err)
	}
}

// A corrupt index header (bad magic) fails at Open time, not lazily on
// first Get.
func TestStoreOpenRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config"), cfgJSON, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	bad := buildIndexBytes(make([]IndexRecord, cfg.N()))
	bad[0] = 'X'
	if err := os.WriteFile(filepath.Join(dir, "index"), bad, 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "traces"), nil, 0o644); err != nil {
		t.Fatalf("write traces: %v", err)
	}

	if _, err := Open(dir); err == nil {
		t.Fatalf("expected Open to reject a corrupt index magic")
	}
}

// A well-formed store directory opens successfully and its config round
// trips.
func TestStoreOpenValid(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config"), cfgJSON, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "index"), buildIndexBytes(make([]IndexRecord, cfg.N())), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "traces"), nil, 0o644); err != nil {
		t.Fatalf("write traces: %v", err)
	}

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if s.Config().ID != cfg.ID {
		t.Errorf("Config().ID = %q, want %q", s.Config().ID, cfg.ID)
	}
	if s.Deltat() != cfg.DeltaT {
		t.Errorf("Deltat() = %v, want %v", s.Deltat(), cfg.DeltaT)
	}
	if s.N() != cfg.N() {
		t.Errorf("N() = %d, want %d", s.N(), cfg.N())
	}
}

func TestStoreShearModuli(t *testing.T) {
	cfg := testConfig()
	cfg.ShearModulusGrid = make([]float64, cfg.N())
	cfg.ShearModulusGrid[3] = 3.3e10

	s := newStoreFromSources("mem", cfg, newMemSource(buildIndexBytes(make([]IndexRecord, cfg.N()))), newMemSource(nil))

	got, err := s.ShearModuli([]int64{3})
	if err != nil {
		t.Fatalf("ShearModuli: %v", err)
	}
	if got[0] != 3.3e10 {
		t.Errorf("ShearModuli[0] = %v, want 3.3e10", got[0])
	}

	if _, err := s.ShearModuli([]int64{cfg.N()}); err == nil {
		t.Fatalf("expected out-of-bounds error")
	}
}
