package gf

// SeismogramTrace is one output trace: explicit start time, sample
// interval and samples, matching the Stacker's output window, or that
// window extended and shifted by post-stack STF convolution
// (spec.md §3 "Response").
type SeismogramTrace struct {
	Network, Station, Location, Channel string
	Tmin   float64
	Deltat float64
	Data   []float64
}

// Result is the per-(source,target) outcome of processing a Request:
// either a trace, or an error recorded instead of aborting the whole
// Response.
type Result struct {
	Trace            *SeismogramTrace
	Err              error
	NRecordsStacked  int
	NSharedStacking  int
}

// ProcessingStats summarizes one Process call across every subrequest it
// ran, letting a caller judge how much sharing the request factoring
// achieved (spec.md §4.5).
type ProcessingStats struct {
	NSubrequests    int
	NStores         int
	NRecordsStacked int
	NResults        int
}

// Request is a batch of sources and targets to process together; sources
// and targets sharing a base key are factored into one subrequest
// (spec.md §3, §4.5).
type Request struct {
	Sources []Source
	Targets []*Target
}

// Response is the result of processing a Request: one Result per
// (source, target) pair, addressed results[i][j] the same way
// Request.Sources[i] and Request.Targets[j] are, plus aggregate stats.
type Response struct {
	Request *Request
	Results [][]Result
	Stats   ProcessingStats
}

// subsourcesMap groups Sources by BaseKey, preserving each source's
// original index in Request.Sources.
func (r *Request) subsourcesMap() map[string][]int {
	m := make(map[string][]int)
	for i, s := range r.Sources {
		k := s.BaseKey()
		m[k] = append(m[k], i)
	}
	return m
}

// subtargetsMap groups Targets by BaseKey, preserving each target's
// original index in Request.Targets.
func (r *Request) subtargetsMap() map[string][]int {
	m := make(map[string][]int)
	for i, t := range r.Targets {
		k := t.BaseKey()
		m[k] = append(m[k], i)
	}
	return m
}

// subrequest is one (shared source discretization) x (shared target base
// seismogram) unit of work: every (isource, itarget) pair in it can reuse
// one discretization and one stacked base seismogram (spec.md §4.5).
type subrequest struct {
	isources []int
	itargets []int
}

// subrequestMap factors a Request into subrequests by crossing its
// source and target base-key groupings.
func (r *Request) subrequestMap() []subrequest {
	sm := r.subsourcesMap()
	tm := r.subtargetsMap()

	out := make([]subrequest, 0, len(sm)*len(tm))
	for _, isources := range sm {
		for _, itargets := range tm {
			out = append(out, subrequest{isources: isources, itargets: itargets})
		}
	}
	return out
}
