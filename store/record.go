package store

import (
	"encoding/binary"
	"math"
)

// IndexRecordSize is the on-disk, little-endian, fixed size of one
// IndexRecord: float64 + int32 + int32 + uint64 + float32 + float32.
const IndexRecordSize = 8 + 4 + 4 + 8 + 4 + 4

// sentinel TFirst value meaning "this grid point was never filled".
const tFirstEmptySentinel = math.MaxFloat64

// NSamples sentinel values, per spec.md §3.
const (
	nsamplesEmpty        int32 = 0
	nsamplesShortCircuit int32 = -1
)

// IndexRecord is one fixed-size record of a store's index file, one per
// grid point (spec.md §3).
type IndexRecord struct {
	TFirst     float64
	ITMin      int32
	NSamples   int32
	ByteOffset uint64
	BeginValue float32
	EndValue   float32
}

// IsEmpty reports a sentinel-empty record: never filled by the modeller.
func (r *IndexRecord) IsEmpty() bool {
	return r.NSamples == nsamplesEmpty
}

// IsShortCircuitZero reports a record known to be all-zero without
// backing trace data.
func (r *IndexRecord) IsShortCircuitZero() bool {
	return r.NSamples == nsamplesShortCircuit
}

// decodeIndexRecord decodes one fixed-size little-endian record from buf,
// which must be at least IndexRecordSize bytes.
func decodeIndexRecord(buf []byte) IndexRecord {
	var r IndexRecord
	r.TFirst = math.Float64frombits(binary.LittleEndian.Uint64(buf[0:8]))
	r.ITMin = int32(binary.LittleEndian.Uint32(buf[8:12]))
	r.NSamples = int32(binary.LittleEndian.Uint32(buf[12:16]))
	r.ByteOffset = binary.LittleEndian.Uint64(buf[16:24])
	r.BeginValue = math.Float32frombits(binary.LittleEndian.Uint32(buf[24:28]))
	r.EndValue = math.Float32frombits(binary.LittleEndian.Uint32(buf[28:32]))
	return r
}

// EncodeIndexRecord encodes r into a freshly allocated IndexRecordSize
// buffer. Exposed so that offline store-building tooling (outside this
// module's scope) can construct valid index files.
func EncodeIndexRecord(r IndexRecord) []byte {
	buf := make([]byte, IndexRecordSize)
	binary.LittleEndian.PutUint64(buf[0:8], math.Float64bits(r.TFirst))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(r.ITMin))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(r.NSamples))
	binary.LittleEndian.PutUint64(buf[16:24], r.ByteOffset)
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(r.BeginValue))
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(r.EndValue))
	return buf
}
