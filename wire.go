package gf

import "github.com/sixy6e/go-gf/encode"

// ToWire converts a Response into its RPC wire shape (package encode):
// every trace's sample buffer becomes a base64 little-endian float32
// payload, and a per-result error becomes its message string, so that a
// caller outside this module can marshal the result as JSON or YAML
// (spec.md §6).
func (r *Response) ToWire() *encode.Response {
	out := &encode.Response{Results: make([][]encode.Result, len(r.Results))}
	for i, row := range r.Results {
		wireRow := make([]encode.Result, len(row))
		for j, res := range row {
			wr := encode.Result{NRecordsStacked: res.NRecordsStacked}
			if res.Err != nil {
				wr.Error = res.Err.Error()
			}
			if res.Trace != nil {
				wr.Trace = &encode.Trace{
					Network: res.Trace.Network, Station: res.Trace.Station,
					Location: res.Trace.Location, Channel: res.Trace.Channel,
					Tmin: res.Trace.Tmin, Deltat: res.Trace.Deltat,
					Data: encode.EncodeTraceData(res.Trace.Data),
				}
			}
			wireRow[j] = wr
		}
		out.Results[i] = wireRow
	}
	return out
}
