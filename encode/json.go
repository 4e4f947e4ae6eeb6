// Package encode implements the wire encoding for RPC bridging a
// gf.Request/gf.Response: JSON and YAML documents with trace sample
// buffers embedded as base64 little-endian float32 payloads, so that a
// caller outside this module's process (an HTTP handler, a CLI client)
// can exchange requests and results without importing package gf's Go
// types directly.
package encode

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Trace is the wire shape of one gf.SeismogramTrace: sample data is
// little-endian float32, base64-encoded, matching spec.md §6's "trace
// serialization" requirement and the teacher's base64-friendly JSON
// helper style.
type Trace struct {
	Network  string  `json:"network" yaml:"network"`
	Station  string  `json:"station" yaml:"station"`
	Location string  `json:"location" yaml:"location"`
	Channel  string  `json:"channel" yaml:"channel"`
	Tmin     float64 `json:"tmin" yaml:"tmin"`
	Deltat   float64 `json:"deltat" yaml:"deltat"`
	Data     string  `json:"data_b64" yaml:"data_b64"`
}

// Result is the wire shape of one gf.Result: either a Trace or an error
// message, never both.
type Result struct {
	Trace           *Trace `json:"trace,omitempty" yaml:"trace,omitempty"`
	Error           string `json:"error,omitempty" yaml:"error,omitempty"`
	NRecordsStacked int    `json:"n_records_stacked" yaml:"n_records_stacked"`
}

// Response is the wire shape of one gf.Response: one Result per
// (source, target) pair, addressed results[i][j] the same way the
// in-process gf.Response is.
type Response struct {
	Results [][]Result `json:"results" yaml:"results"`
}

// EncodeTraceData base64-encodes a []float64 seismogram buffer as
// little-endian float32 samples, downcasting to match the store's
// on-disk sample width (spec.md §3).
func EncodeTraceData(data []float64) string {
	buf := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(float32(v)))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// DecodeTraceData is EncodeTraceData's inverse.
func DecodeTraceData(encoded string) ([]float64, error) {
	buf, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("gf/encode: decoding trace data: %w", err)
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("gf/encode: trace data length %d is not a multiple of 4", len(buf))
	}
	out := make([]float64, len(buf)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
		out[i] = float64(math.Float32frombits(bits))
	}
	return out, nil
}

// MarshalJSON renders a Response as indented JSON, matching the
// teacher's json.go "MarshalIndent + write" idiom.
func MarshalJSON(r *Response) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// UnmarshalJSON parses a Response from JSON.
func UnmarshalJSON(data []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("gf/encode: decoding response JSON: %w", err)
	}
	return &r, nil
}
