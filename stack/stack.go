// Package stack implements the delay-and-sum hot path: fusing many
// weighted, time-shifted stored traces into one or more output component
// buffers over a requested time window.
package stack

import (
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"

	"github.com/sixy6e/go-gf/store"
)

// combineEpsilon is the minimum absolute combined weight kept after
// optimization pre-combining; entries below this are numerical noise and
// are dropped rather than stacked (spec.md §4.4 step 4, DESIGN.md open
// question: epsilon = 1e-15).
const combineEpsilon = 1e-15

// Record is one weighted, time-shifted contribution to the stack: pull
// grid_index from the Store, shift it by time_offset, and add weight*sample
// into every output component buffer named by Weights.
type Record struct {
	GridIndex  int64
	TimeOffset float64
	// Weights holds one weight per output component; a component absent
	// from this record contributes nothing (equivalent to weight 0).
	Weights []float64
}

// Stats tallies per-record outcomes across a Stack call, returned
// alongside the accumulated buffers so an engine-level policy can decide
// whether a request failed outright (spec.md §4.4, §7).
type Stats struct {
	NStacked      int
	NEmpty        int
	NZero         int
	NOutOfBounds  int
}

// Result is the outcome of one Stack call: one float64 buffer per output
// component, spanning exactly [ItminOut, ItminOut+len(Buffers[i])).
type Result struct {
	ItminOut int64
	NOut     int64
	Buffers  [][]float64
	Stats    Stats
}

// Options controls stacking behaviour.
type Options struct {
	// Optimize enables the pre-combine-by-(itshift,grid_index) pass
	// described in spec.md §4.4 step 4.
	Optimize bool
	// NumComponents is the number of output component buffers to
	// allocate; every Record.Weights must have at most this many entries.
	NumComponents int
}

type combineKey struct {
	itshift   int64
	gridIndex int64
}

// Stack computes out[c][i] = sum_k weights_k[c] * trace_k[i - itshift_k]
// for each output component c over the window [itminOut, itminOut+nOut),
// reading trace_k from st via the Store's Get (spec.md §4.4). The sample
// shift is itshift_k = math.RoundToEven(TimeOffset_k / deltat), so
// half-sample offsets round to the even neighbour (banker's rounding).
//
// Stack never aborts on a bad record: per-record failures are tallied in
// the returned Stats, not propagated as an error. It returns a non-nil
// error only for a programming-level misuse (e.g. a Weights slice longer
// than opts.NumComponents).
func Stack(st *store.Store, records []Record, itminOut, nOut int64, opts Options) (Result, error) {
	deltaT := st.Deltat()

	buffers := make([][]float64, opts.NumComponents)
	for c := range buffers {
		buffers[c] = make([]float64, nOut)
	}

	work := records
	if opts.Optimize {
		combined, err := PreCombine(records, deltaT, opts.NumComponents)
		if err != nil {
			return Result{}, err
		}
		work = combined
	}

	var stats Stats
	for _, rec := range work {
		if len(rec.Weights) > opts.NumComponents {
			return Result{}, errTooManyWeights(len(rec.Weights), opts.NumComponents)
		}

		itshift := int64(math.RoundToEven(rec.TimeOffset / deltaT))

		tv, err := st.Get(rec.GridIndex, itminOut-itshift, nOut)
		if err != nil {
			stats.NOutOfBounds++
			continue
		}

		if tv.Empty {
			stats.NEmpty++
			continue
		}
		if tv.ShortCircuitZero {
			stats.NZero++
			continue
		}

		for i := int64(0); i < nOut; i++ {
			sample := tv.At(i)
			if math.IsNaN(float64(sample)) {
				stats.NOutOfBounds++
				continue
			}
			for c, w := range rec.Weights {
				if w == 0 {
					continue
				}
				buffers[c][i] += w * float64(sample)
			}
		}
		stats.NStacked++
	}

	return Result{ItminOut: itminOut, NOut: nOut, Buffers: buffers, Stats: stats}, nil
}

// PreCombine groups records sharing the same (itshift, grid_index) pair,
// summing their per-component weights, and drops combined entries whose
// every component weight falls below combineEpsilon (spec.md §4.4 step 4).
// Grouping uses samber/lo.GroupBy, the same "bucket then reduce" idiom the
// wider example pack uses for collapsing redundant records before the
// expensive part of a pipeline. Exported so callers that stack against a
// multi-component store directly (bypassing Stack's single-component
// Store.Get assumption) can still apply the same pre-combine pass.
func PreCombine(records []Record, deltaT float64, numComponents int) ([]Record, error) {
	type keyed struct {
		key combineKey
		rec Record
	}

	withKeys := make([]keyed, 0, len(records))
	for _, r := range records {
		itshift := int64(math.RoundToEven(r.TimeOffset / deltaT))
		withKeys = append(withKeys, keyed{key: combineKey{itshift: itshift, gridIndex: r.GridIndex}, rec: r})
	}

	groups := lo.GroupBy(withKeys, func(k keyed) combineKey { return k.key })

	out := make([]Record, 0, len(groups))
	for key, group := range groups {
		weights := make([]float64, numComponents)
		for _, k := range group {
			if len(k.rec.Weights) > numComponents {
				return nil, errTooManyWeights(len(k.rec.Weights), numComponents)
			}
			for c, w := range k.rec.Weights {
				weights[c] += w
			}
		}

		keep := false
		for _, w := range weights {
			if math.Abs(w) >= combineEpsilon {
				keep = true
				break
			}
		}
		if !keep {
			continue
		}

		out = append(out, Record{
			GridIndex:  key.gridIndex,
			TimeOffset: float64(key.itshift) * deltaT,
			Weights:    weights,
		})
	}

	// map iteration order is random; sort so the inner loop's summation
	// order is reproducible for a given input regardless of Go's map
	// iteration.
	sort.Slice(out, func(i, j int) bool {
		ki := int64(math.RoundToEven(out[i].TimeOffset / deltaT))
		kj := int64(math.RoundToEven(out[j].TimeOffset / deltaT))
		if ki != kj {
			return ki < kj
		}
		return out[i].GridIndex < out[j].GridIndex
	})

	return out, nil
}

func errTooManyWeights(got, want int) error {
	return fmt.Errorf("gf/stack: record has %d component weights, want at most %d", got, want)
}
