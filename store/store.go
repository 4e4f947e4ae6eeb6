package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"path/filepath"

	"golang.org/x/exp/mmap"
)

// magic identifies a valid index file; version is bumped on any
// incompatible layout change.
var indexMagic = [8]byte{'G', 'F', 'I', 'D', 'X', '0', '1', '\n'}

const indexHeaderSize = 16 // 8 byte magic + uint32 version + uint32 record size
const currentIndexVersion uint32 = 1

// Store owns one on-disk GF dataset: a read-only, mmap-backed index and
// traces file pair plus the config document that describes their
// geometry. Readers never take a lock; once Open returns, a *Store is
// safe for concurrent use by any number of goroutines (spec.md §5).
type Store struct {
	dir    string
	cfg    *Config
	index  ByteSource
	traces ByteSource
	n      int64
}

// Open maps a store directory's index and traces files read-only and
// validates the index header. The returned Store must be closed with
// Close once no longer needed; closing drops the mmap regions.
func Open(dir string) (*Store, error) {
	cfg, err := LoadConfig(dir)
	if err != nil {
		return nil, err
	}

	indexPath := filepath.Join(dir, "index")
	idx, err := mmap.Open(indexPath)
	if err != nil {
		return nil, fmt.Errorf("gf/store: opening index: %w", err)
	}

	header := make([]byte, indexHeaderSize)
	if _, err := idx.ReadAt(header, 0); err != nil {
		idx.Close()
		return nil, StoreCorruptf(dir, "index header unreadable: %v", err)
	}
	for i := range indexMagic {
		if header[i] != indexMagic[i] {
			idx.Close()
			return nil, StoreCorruptf(dir, "index magic mismatch")
		}
	}
	version := binary.LittleEndian.Uint32(header[8:12])
	if version != currentIndexVersion {
		idx.Close()
		return nil, StoreCorruptf(dir, "unsupported index version %d", version)
	}
	recSize := binary.LittleEndian.Uint32(header[12:16])
	if recSize != IndexRecordSize {
		idx.Close()
		return nil, StoreCorruptf(dir, "unexpected index record size %d", recSize)
	}

	n := cfg.N()
	nComp := cfg.ComponentScheme.NumComponents()
	if nComp < 1 {
		nComp = 1
	}
	wantLen := indexHeaderSize + int(n)*nComp*IndexRecordSize
	if idx.Len() < wantLen {
		idx.Close()
		return nil, StoreCorruptf(dir, "index file truncated: have %d bytes, want %d", idx.Len(), wantLen)
	}

	tracesPath := filepath.Join(dir, "traces")
	traces, err := mmap.Open(tracesPath)
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("gf/store: opening traces: %w", err)
	}

	return &Store{dir: dir, cfg: cfg, index: idx, traces: traces, n: n}, nil
}

// newStoreFromSources builds a Store directly from already-validated
// ByteSources, bypassing Open's file I/O. Used by tests to exercise Get's
// decoding and bounds logic against in-memory fixtures (store_test.go),
// the same way the teacher's tests substitute an in-memory Stream for a
// real tiledb VFS handle.
func newStoreFromSources(dir string, cfg *Config, index, traces ByteSource) *Store {
	return &Store{dir: dir, cfg: cfg, index: index, traces: traces, n: cfg.N()}
}

// StoreCorruptf constructs a formatted StoreCorruptError; kept alongside
// Store.Open because only this package knows the index/traces layout
// details worth reporting.
func StoreCorruptf(path, format string, args ...any) error {
	return storeCorrupt(path, fmt.Sprintf(format, args...))
}

// Close releases the mmap regions. A closed Store must not be used again.
func (s *Store) Close() error {
	err1 := s.index.Close()
	err2 := s.traces.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Dir returns the store's directory path.
func (s *Store) Dir() string { return s.dir }

// Config returns the store's geometry/semantics document.
func (s *Store) Config() *Config { return s.cfg }

// Deltat returns the sampling interval, in seconds, of every stored trace.
func (s *Store) Deltat() float64 { return s.cfg.DeltaT }

// N returns the total grid size.
func (s *Store) N() int64 { return s.n }

// GetComponent is Get for a store whose traces file interleaves several
// raw components per grid point, component-major: row componentIndex*N+
// gridIndex. Component-scheme stores with more than one raw component
// (elastic-10, single-force, ...) use this instead of Get.
func (s *Store) GetComponent(componentIndex int, gridIndex, itminReq, nsamplesReq int64) (TraceView, error) {
	nComp := int64(s.cfg.ComponentScheme.NumComponents())
	if nComp < 1 {
		nComp = 1
	}
	if gridIndex < 0 || gridIndex >= s.n {
		return TraceView{}, OutOfBoundsIndexErr(gridIndex, s.n)
	}
	row := int64(componentIndex)*s.n + gridIndex
	return s.getRow(row, nComp*s.n, itminReq, nsamplesReq)
}

// RecordLength returns the stored sample count at gridIndex in a
// single-component store, without reading the trace data itself. Used by
// auto-windowing to widen an output span by the longest contributing
// record (spec.md §4.4 step 1).
func (s *Store) RecordLength(gridIndex int64) (int64, error) {
	rec, err := s.readIndexRecord(gridIndex)
	if err != nil {
		return 0, err
	}
	if rec.IsEmpty() || rec.IsShortCircuitZero() {
		return 0, nil
	}
	return int64(rec.NSamples), nil
}

// ComponentRecordLength is RecordLength for a component-major store,
// reading the index record at componentIndex's interleaved row.
func (s *Store) ComponentRecordLength(componentIndex int, gridIndex int64) (int64, error) {
	if gridIndex < 0 || gridIndex >= s.n {
		return 0, OutOfBoundsIndexErr(gridIndex, s.n)
	}
	row := int64(componentIndex)*s.n + gridIndex
	rec, err := s.readIndexRecordRow(row)
	if err != nil {
		return 0, err
	}
	if rec.IsEmpty() || rec.IsShortCircuitZero() {
		return 0, nil
	}
	return int64(rec.NSamples), nil
}

func (s *Store) readIndexRecord(gridIndex int64) (IndexRecord, error) {
	if gridIndex < 0 || gridIndex >= s.n {
		return IndexRecord{}, OutOfBoundsIndexErr(gridIndex, s.n)
	}
	return s.readIndexRecordRow(gridIndex)
}

func (s *Store) readIndexRecordRow(row int64) (IndexRecord, error) {
	buf := make([]byte, IndexRecordSize)
	off := int64(indexHeaderSize) + row*IndexRecordSize
	if _, err := s.index.ReadAt(buf, off); err != nil {
		return IndexRecord{}, StoreCorruptf(s.dir, "reading index record %d: %v", row, err)
	}
	return decodeIndexRecord(buf), nil
}

// TraceView is a logical view over one stored impulse response, spanning
// exactly [ITMin, ITMin+NSamples). Samples inside the underlying stored
// window come from a copy of the store's trace bytes made by Get; samples
// outside read
// as the constant BeginValue/EndValue (spec.md §4.1 "constant extension,
// not zero padding").
//
// At() does one bounds check plus, for in-window samples, one slice
// index: golang.org/x/exp/mmap.ReaderAt copies mapped pages into a
// caller-owned []float32 once per Get call (its ReadAt cannot expose the
// raw mapped bytes without an unsafe cast), so "zero-copy" here means
// "no read() syscall, no double buffering through an intermediate file
// read", not "no memcpy at all".
type TraceView struct {
	ITMin            int64
	NSamples         int64
	Empty            bool
	ShortCircuitZero bool
	BeginValue       float32
	EndValue         float32

	data       []float32
	dataOffset int64
}

// At returns the sample at logical offset i (0 <= i < NSamples).
func (tv *TraceView) At(i int64) float32 {
	if tv.Empty {
		return tv.BeginValue
	}
	if tv.ShortCircuitZero {
		return 0
	}
	logical := tv.ITMin + i
	if logical < tv.dataOffset {
		return tv.BeginValue
	}
	j := logical - tv.dataOffset
	if j >= int64(len(tv.data)) {
		return tv.EndValue
	}
	return tv.data[j]
}

// Get returns a TraceView whose logical span is
// [itminReq, itminReq+nsamplesReq). It fails OutOfBoundsIndexError if
// gridIndex is outside [0, N), and StoreCorruptError if the index or trace
// bytes cannot be read; otherwise it does not fail — empty and
// short-circuit-zero records are reported via the view's flags, not as
// errors, so that callers (the stacker) can count them instead of
// aborting (spec.md §4.1, §7).
func (s *Store) Get(gridIndex, itminReq, nsamplesReq int64) (TraceView, error) {
	return s.getRow(gridIndex, s.n, itminReq, nsamplesReq)
}

// getRow is Get generalized over an arbitrary row/bound pair, letting
// GetComponent reuse the same decode-and-view logic against a
// component-major row index.
func (s *Store) getRow(row, bound, itminReq, nsamplesReq int64) (TraceView, error) {
	if row < 0 || row >= bound {
		return TraceView{}, OutOfBoundsIndexErr(row, bound)
	}
	rec, err := s.readIndexRecordRow(row)
	if err != nil {
		return TraceView{}, err
	}

	view := TraceView{
		ITMin:      itminReq,
		NSamples:   nsamplesReq,
		BeginValue: rec.BeginValue,
		EndValue:   rec.EndValue,
	}

	if rec.IsEmpty() {
		view.Empty = true
		return view, nil
	}
	if rec.IsShortCircuitZero() {
		view.ShortCircuitZero = true
		return view, nil
	}

	buf := make([]byte, int64(rec.NSamples)*4)
	if _, err := s.traces.ReadAt(buf, int64(rec.ByteOffset)); err != nil {
		return TraceView{}, StoreCorruptf(s.dir, "reading trace at offset %d: %v", rec.ByteOffset, err)
	}

	samples := make([]float32, rec.NSamples)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
		samples[i] = math.Float32frombits(bits)
	}

	view.data = samples
	view.dataOffset = int64(rec.ITMin)
	return view, nil
}

// ShearModuli returns the shear modulus at each of the given grid
// indices, used for slip->moment conversion by rectangular-fault sources.
// Interpolation (if requested) is left to the caller: callers pass
// already-resolved grid indices (e.g. the Interpolator's nearest or
// multilinear results) and weights, and combine the returned moduli
// themselves, which keeps this coupled to the same interpolation choice
// as the requesting target (spec.md §9).
func (s *Store) ShearModuli(gridIndices []int64) ([]float64, error) {
	out := make([]float64, len(gridIndices))
	if s.cfg.ShearModulusGrid == nil {
		return out, fmt.Errorf("gf/store: store %q has no shear modulus grid", s.cfg.ID)
	}
	for i, gi := range gridIndices {
		if gi < 0 || gi >= s.n {
			return nil, OutOfBoundsIndexErr(gi, s.n)
		}
		out[i] = s.cfg.ShearModulusGrid[gi]
	}
	return out, nil
}
