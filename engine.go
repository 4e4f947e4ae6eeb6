package gf

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/alitto/pond"

	"github.com/sixy6e/go-gf/interpolate"
	"github.com/sixy6e/go-gf/search"
	"github.com/sixy6e/go-gf/stack"
	"github.com/sixy6e/go-gf/store"
)

// EngineConfig configures a LocalEngine's store resolution and
// concurrency (spec.md §6 "Configuration surface").
type EngineConfig struct {
	// SuperDirs are directories searched recursively for store
	// directories (spec.md's "store search directories").
	SuperDirs []string
	// StoreDirs are explicit store directories, trusted without a walk.
	StoreDirs []string
	// DefaultStoreID is used by a Target that leaves StoreID empty.
	DefaultStoreID string
	// NumWorkers controls the subrequest worker pool size. 1 makes
	// processing fully sequential and deterministic (spec.md §5).
	NumWorkers int
}

// NewEngineConfigFromEnv builds an EngineConfig from the GF_STORE_SUPERDIRS
// and GF_STORE_DIRS environment variables (colon-separated), mirroring
// the teacher's environment-driven defaults.
func NewEngineConfigFromEnv() EngineConfig {
	split := func(v string) []string {
		if v == "" {
			return nil
		}
		return strings.Split(v, ":")
	}
	return EngineConfig{
		SuperDirs: split(os.Getenv("GF_STORE_SUPERDIRS")),
		StoreDirs: split(os.Getenv("GF_STORE_DIRS")),
		NumWorkers: 1,
	}
}

// LocalEngine resolves store ids to on-disk stores, caches opened stores,
// and processes Requests by factoring them into subrequests (spec.md
// §4.5).
type LocalEngine struct {
	cfg EngineConfig

	mu       sync.Mutex
	resolved map[string]string // store id -> resolved directory
	opened   map[string]*store.Store
}

// NewLocalEngine constructs a LocalEngine from cfg. Store directories are
// not scanned until the first GetStore call.
func NewLocalEngine(cfg EngineConfig) *LocalEngine {
	return &LocalEngine{cfg: cfg, opened: make(map[string]*store.Store)}
}

// resolveStoreDirs walks every configured SuperDir plus the explicit
// StoreDirs, building an id -> directory map. Two distinct directories
// claiming the same store id is a fatal configuration error
// (DuplicateStoreId), detected here rather than lazily per open.
func (e *LocalEngine) resolveStoreDirs() (map[string]string, error) {
	if e.resolved != nil {
		return e.resolved, nil
	}

	ids := make(map[string][]string)

	var allDirs []string
	for _, super := range e.cfg.SuperDirs {
		found, err := search.FindStoreDirs(super)
		if err != nil {
			return nil, fmt.Errorf("gf: scanning %q: %w", super, err)
		}
		allDirs = append(allDirs, found...)
	}
	allDirs = append(allDirs, e.cfg.StoreDirs...)

	for _, dir := range allDirs {
		cfg, err := store.LoadConfig(dir)
		if err != nil {
			continue
		}
		ids[cfg.ID] = append(ids[cfg.ID], dir)
	}

	resolved := make(map[string]string, len(ids))
	for id, dirs := range ids {
		if len(dirs) > 1 {
			return nil, DuplicateStoreId(id, dirs)
		}
		resolved[id] = dirs[0]
	}

	e.resolved = resolved
	return resolved, nil
}

// GetStore resolves id to a directory and returns its opened, cached
// Store. NoSuchStore fails if no configured directory claims this id.
func (e *LocalEngine) GetStore(id string) (*store.Store, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.opened[id]; ok {
		return s, nil
	}

	resolved, err := e.resolveStoreDirs()
	if err != nil {
		return nil, err
	}
	dir, ok := resolved[id]
	if !ok {
		return nil, NoSuchStore(id)
	}

	s, err := store.Open(dir)
	if err != nil {
		return nil, err
	}
	e.opened[id] = s
	return s, nil
}

// Close closes every store this engine has opened.
func (e *LocalEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	for _, s := range e.opened {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (e *LocalEngine) storeIDFor(t *Target) string {
	if t.StoreID != "" {
		return t.StoreID
	}
	return e.cfg.DefaultStoreID
}

// axisPoint reduces a contribution's position and a target's position to
// the store's canonical axis tuple, per the store's Reduction (spec.md
// §4.1 "axis reduction is store-defined").
//
// For ReductionDepthDistance it also returns the source-to-receiver
// azimuth (radians, clockwise from north) needed to rotate a moment
// tensor/force amplitude into the store's (r, t, d) frame; for
// ReductionDepthNorthEast it returns azimuth 0 (unused).
func axisPoint(cfg *store.Config, c Contribution, t *Target) (point []float64, azimuth float64) {
	dn := t.NorthShift - c.NorthShift
	de := t.EastShift - c.EastShift

	switch cfg.Reduction {
	case store.ReductionDepthNorthEast:
		if cfg.NAxes() <= 2 {
			return []float64{dn, de}, 0
		}
		return []float64{c.Depth, dn, de}, 0
	default: // ReductionDepthDistance
		distance := math.Hypot(dn, de)
		theta := math.Atan2(de, dn)
		if cfg.NAxes() == 1 {
			return []float64{distance}, theta
		}
		return []float64{c.Depth, distance}, theta
	}
}

// resolveGrid turns an axis point into weighted grid contributions, per
// the target's interpolation choice.
func resolveGrid(axes []store.Axis, point []float64, method InterpolationMethod) ([]interpolate.WeightedIndex, error) {
	if method == InterpolationMultilinear {
		return interpolate.Multilinear(axes, point)
	}
	idx, err := interpolate.Nearest(axes, point)
	if err != nil {
		return nil, err
	}
	return []interpolate.WeightedIndex{{Index: idx, Weight: 1}}, nil
}

// rawComponentWeights resolves, for one contribution, the per-raw-stored-
// component amplitude in the store's native frame: unrotated for
// ReductionDepthNorthEast stores, rotated by azimuth for
// ReductionDepthDistance stores (see azimuthalRotate).
func rawComponentWeights(info store.SchemeInfo, c Contribution, reduction store.ReductionKind, azimuth float64) map[string]float64 {
	out := make(map[string]float64, len(info.Components))

	// poroelastic stores carry both a scalar (pore pressure) and a
	// darcy-velocity direction alongside it; its amplitude kind is
	// "scalar" for channelRule's bypass purposes, but its raw layout
	// also has the f_r/f_t/f_d triple a force-kind source would produce.
	if info.Scheme == store.SchemePoroelastic {
		out["iso"] = c.Scalar
		f := azimuthalRotateForce(c.Force, azimuth)
		names := []string{"f_r", "f_t", "f_d"}
		for i, name := range names {
			out[name] = f[i]
		}
		return out
	}

	switch info.Kind {
	case store.AmplitudeScalar:
		out["iso"] = c.Scalar

	case store.AmplitudeForce:
		f := c.Force
		if reduction == store.ReductionDepthDistance {
			f = azimuthalRotateForce(f, azimuth)
		}
		names := []string{"f_r", "f_t", "f_d"}
		if reduction == store.ReductionDepthNorthEast {
			names = []string{"f_n", "f_e", "f_d"}
		}
		for i, name := range names {
			out[name] = f[i]
		}

	case store.AmplitudeMomentTensor:
		mt := c.MomentTensor
		if reduction == store.ReductionDepthDistance {
			rotated := azimuthalRotate(mt, azimuth)
			names := []string{"m_rr", "m_tt", "m_rt", "m_rd", "m_td", "m_dd"}
			for i, name := range names {
				if i < len(info.Components) {
					out[name] = rotated[i]
				}
			}
		} else {
			names := []string{"m_nn", "m_ee", "m_dd", "m_ne", "m_nd", "m_ed"}
			for i, name := range names {
				out[name] = mt[i]
			}
		}
	}

	return out
}

// baseComponentsFor maps a required quantity-frame component name
// ("displacement.n"/".e"/".d", or a bare scalar quantity name) onto the
// raw stored component name(s) contributing to it, with the store's
// frame (r/t/d for depth-distance, n/e/d for depth-north-east).
func baseComponentsFor(quantityComponent string, reduction store.ReductionKind) string {
	parts := strings.SplitN(quantityComponent, ".", 2)
	if len(parts) == 1 {
		return "iso"
	}
	axis := parts[1]
	if reduction == store.ReductionDepthDistance {
		switch axis {
		case "n", "e":
			// handled by un-rotation after stacking; the raw frame
			// buffers are "r" and "t".
			return ""
		case "d":
			return "d"
		}
	}
	return axis
}

// autoWindow resolves a target's output integer span. An explicit
// target.Tmin/Tmax wins outright; whichever bound is left nil is instead
// derived from the discretized source's contribution time offsets,
// snapped to deltaT and widened by the longest contributing record, so
// an unset window still covers every sample the stack can produce
// (spec.md §4.4 step 1).
func autoWindow(target *Target, deltaT float64, haveOffsets bool, minOffset, maxOffset float64, maxRecordLen int64) (tmin, n int64) {
	lo := int64(math.Floor(minOffset / deltaT))
	hi := int64(math.Ceil(maxOffset / deltaT))
	if !haveOffsets {
		lo, hi = 0, 0
	}
	lo -= maxRecordLen
	hi += maxRecordLen

	if target.Tmin != nil {
		lo = int64(math.Round(*target.Tmin / deltaT))
	}
	if target.Tmax != nil {
		hi = int64(math.Round(*target.Tmax / deltaT))
	}

	n = hi - lo + 1
	if n < 1 {
		n = 1
	}
	return lo, n
}

// baseSeismogram stacks, once, every raw stored component needed to
// satisfy the given required quantity components, for one (source,
// target) pair. Sources/targets sharing a base key reuse this result
// (spec.md §4.5). windowTmin is the auto- or explicitly-sized output
// window's start, in samples at the store's Deltat, needed by the caller
// to stamp the assembled trace's absolute start time.
func (e *LocalEngine) baseSeismogram(src Source, target *Target, requiredComponents []string) (base map[string][]float64, windowTmin int64, stats stack.Stats, err error) {
	storeID := e.storeIDFor(target)
	st, err := e.GetStore(storeID)
	if err != nil {
		return nil, 0, stack.Stats{}, err
	}

	cfg := st.Config()
	info, ok := cfg.ComponentScheme.Info()
	if !ok {
		return nil, 0, stack.Stats{}, fmt.Errorf("gf: store %q: unknown component scheme", cfg.ID)
	}

	dsrc := src.Discretize(st.Deltat())

	// rawNeeded is the set of raw stored component names the requested
	// quantity components ultimately depend on, including both halves of
	// a depth-distance store's (r, t) pair whenever a horizontal (n, e)
	// quantity component is requested (they are coupled by rotation).
	rawNeeded := make(map[string]bool)
	needsHorizontal := false
	for _, qc := range requiredComponents {
		raw := baseComponentsFor(qc, cfg.Reduction)
		if raw == "" {
			needsHorizontal = true
			continue
		}
		rawNeeded[raw] = true
	}
	if needsHorizontal {
		if cfg.Reduction == store.ReductionDepthDistance {
			rawNeeded["r"] = true
			rawNeeded["t"] = true
		} else {
			rawNeeded["n"] = true
			rawNeeded["e"] = true
		}
	}

	componentOrder := info.Components
	componentIndex := make(map[string]int, len(componentOrder))
	for i, name := range componentOrder {
		componentIndex[name] = i
	}

	byComponent := make(map[int][]stack.Record)

	var haveOffsets bool
	var minOffset, maxOffset float64
	var maxRecordLen int64

	axes := cfg.Axes
	for _, c := range dsrc.Contributions {
		point, azimuth := axisPoint(cfg, c, target)
		grid, err := resolveGrid(axes, point, target.Interpolation)
		if err != nil {
			if axisErr, ok := err.(*interpolate.AxisOutOfBoundsError); ok {
				dist := math.Hypot(target.NorthShift-c.NorthShift, target.EastShift-c.EastShift)
				return nil, 0, stack.Stats{}, (&OutOfBoundsAxisError{
					Name: axisErr.Name, Value: axisErr.Value, Min: axisErr.Min, Max: axisErr.Max,
				}).WithContext(&OutOfBoundsContext{
					Source: src, Target: target, Components: requiredComponents, Distance: dist,
				})
			}
			return nil, 0, stack.Stats{}, err
		}

		weights := rawComponentWeights(info, c, cfg.Reduction, azimuth)
		for name := range rawNeeded {
			amp, ok := weights[name]
			if !ok || amp == 0 {
				continue
			}
			ci, ok := componentIndex[name]
			if !ok {
				continue
			}
			for _, g := range grid {
				byComponent[ci] = append(byComponent[ci], stack.Record{
					GridIndex:  g.Index,
					TimeOffset: c.Time,
					Weights:    []float64{amp * g.Weight},
				})

				var length int64
				var lerr error
				if len(componentOrder) == 1 {
					length, lerr = st.RecordLength(g.Index)
				} else {
					length, lerr = st.ComponentRecordLength(ci, g.Index)
				}
				if lerr == nil && length > maxRecordLen {
					maxRecordLen = length
				}

				if !haveOffsets || c.Time < minOffset {
					minOffset = c.Time
				}
				if !haveOffsets || c.Time > maxOffset {
					maxOffset = c.Time
				}
				haveOffsets = true
			}
		}
	}

	tmin, n := autoWindow(target, st.Deltat(), haveOffsets, minOffset, maxOffset, maxRecordLen)

	var totalStats stack.Stats
	raw := make(map[string][]float64)
	for name := range rawNeeded {
		ci, ok := componentIndex[name]
		if !ok {
			continue
		}
		records := byComponent[ci]

		var result stack.Result
		var serr error
		if len(componentOrder) == 1 {
			result, serr = stack.Stack(st, records, tmin, n, stack.Options{
				NumComponents: 1,
				Optimize:      target.Optimization == OptimizationEnable,
			})
		} else {
			result, serr = stackComponentGet(st, ci, records, tmin, n, target.Optimization == OptimizationEnable)
		}
		if serr != nil {
			return nil, 0, stack.Stats{}, serr
		}

		raw[name] = result.Buffers[0]
		totalStats.NStacked += result.Stats.NStacked
		totalStats.NEmpty += result.Stats.NEmpty
		totalStats.NZero += result.Stats.NZero
		totalStats.NOutOfBounds += result.Stats.NOutOfBounds
	}

	// un-rotate (r, t) back into (n, e) for depth-distance stores, using
	// the azimuth of the first contribution (stores of this reduction
	// kind are used with a single effective source-receiver geometry per
	// subrequest, so every contribution shares the same azimuth).
	if needsHorizontal && cfg.Reduction == store.ReductionDepthDistance && len(dsrc.Contributions) > 0 {
		_, theta := axisPoint(cfg, dsrc.Contributions[0], target)
		rBuf, tBuf := raw["r"], raw["t"]
		nBuf := make([]float64, len(rBuf))
		eBuf := make([]float64, len(rBuf))
		for i := range rBuf {
			nBuf[i], eBuf[i] = azimuthalUnrotate2(rBuf[i], tBuf[i], theta)
		}
		raw["n"] = nBuf
		raw["e"] = eBuf
	}

	out := make(map[string][]float64)
	for _, qc := range requiredComponents {
		ax := baseComponentsFor(qc, cfg.Reduction)
		if ax == "" {
			parts := strings.SplitN(qc, ".", 2)
			ax = parts[1]
		}
		out[qc] = raw[ax]
	}

	return out, tmin, totalStats, nil
}

// stackComponentGet is stack.Stack's delay-and-sum for one raw component
// of a multi-component store: stack.Stack reads through Store.Get's
// single-component grid space, so this inlines the same loop against
// st.GetComponent directly.
func stackComponentGet(st *store.Store, componentIndex int, records []stack.Record, itminOut, nOut int64, optimize bool) (stack.Result, error) {
	deltaT := st.Deltat()
	buf := make([]float64, nOut)
	var stats stack.Stats

	work := records
	if optimize {
		combined, err := stack.PreCombine(records, deltaT, 1)
		if err != nil {
			return stack.Result{}, err
		}
		work = combined
	}

	for _, rec := range work {
		itshift := int64(math.RoundToEven(rec.TimeOffset / deltaT))
		tv, err := st.GetComponent(componentIndex, rec.GridIndex, itminOut-itshift, nOut)
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
		w := rec.Weights[0]
		for i := int64(0); i < nOut; i++ {
			sample := tv.At(i)
			if math.IsNaN(float64(sample)) {
				stats.NOutOfBounds++
				continue
			}
			buf[i] += w * float64(sample)
		}
		stats.NStacked++
	}

	return stack.Result{ItminOut: itminOut, NOut: nOut, Buffers: [][]float64{buf}, Stats: stats}, nil
}

// Process resolves stores, factors the request into subrequests sharing
// source/target base keys, runs them (in parallel when NumWorkers > 1),
// and assembles the Response (spec.md §4.5).
func (e *LocalEngine) Process(ctx context.Context, req *Request) (*Response, error) {
	n := e.cfg.NumWorkers
	if n < 1 {
		n = 1
	}

	results := make([][]Result, len(req.Sources))
	for i := range results {
		results[i] = make([]Result, len(req.Targets))
	}

	subreqs := req.subrequestMap()

	var stats ProcessingStats
	stats.NSubrequests = len(subreqs)

	var mu sync.Mutex
	process := func(sr subrequest) {
		select {
		case <-ctx.Done():
			mu.Lock()
			for _, is := range sr.isources {
				for _, it := range sr.itargets {
					results[is][it] = Result{Err: ErrCancelled}
				}
			}
			mu.Unlock()
			return
		default:
		}

		source0 := req.Sources[sr.isources[0]]
		target0 := req.Targets[sr.itargets[0]]

		componentSet := make(map[string]bool)
		rules := make(map[int]Rule, len(sr.itargets))
		for _, it := range sr.itargets {
			t := req.Targets[it]
			var info store.SchemeInfo
			if st, serr := e.GetStore(e.storeIDFor(t)); serr == nil {
				info, _ = st.Config().ComponentScheme.Info()
			}
			rule, err := channelRule(t, info)
			if err != nil {
				mu.Lock()
				for _, is := range sr.isources {
					results[is][it] = Result{Err: err}
				}
				mu.Unlock()
				continue
			}
			rules[it] = rule
			for _, c := range rule.RequiredComponents(t) {
				componentSet[c] = true
			}
		}

		required := make([]string, 0, len(componentSet))
		for c := range componentSet {
			required = append(required, c)
		}

		base, windowTmin, bstats, err := e.baseSeismogram(source0, target0, required)

		deltaT := 1.0
		if st, serr := e.GetStore(e.storeIDFor(target0)); serr == nil {
			deltaT = st.Deltat()
		}
		windowTminSec := float64(windowTmin) * deltaT

		mu.Lock()
		stats.NRecordsStacked += bstats.NStacked
		mu.Unlock()

		for _, is := range sr.isources {
			src := req.Sources[is]
			for _, it := range sr.itargets {
				t := req.Targets[it]
				if err != nil {
					mu.Lock()
					results[is][it] = Result{Err: err}
					mu.Unlock()
					continue
				}
				rule, ok := rules[it]
				if !ok {
					continue
				}

				data := rule.Apply(t, base)
				factor := src.Factor()
				for i := range data {
					data[i] *= factor
				}

				tmin := windowTminSec + src.TimeShift()
				if post := src.EffectiveSTFPost(); !isUnitPulse(post) {
					var shift float64
					data, shift = convolve(data, deltaT, post)
					tmin += shift
				}

				trace := &SeismogramTrace{
					Network: t.Network, Station: t.Station, Location: t.Location, Channel: t.Channel,
					Tmin:   tmin,
					Deltat: deltaT,
					Data:   data,
				}

				mu.Lock()
				results[is][it] = Result{
					Trace:           trace,
					NRecordsStacked: bstats.NStacked,
					NSharedStacking: len(sr.isources) * len(sr.itargets),
				}
				stats.NResults++
				mu.Unlock()
			}
		}
	}

	if n == 1 {
		for _, sr := range subreqs {
			process(sr)
		}
	} else {
		pool := pond.New(n, 0, pond.MinWorkers(n), pond.Context(ctx))
		for _, sr := range subreqs {
			sr := sr
			pool.Submit(func() { process(sr) })
		}
		pool.StopAndWait()
	}

	return &Response{Request: req, Results: results, Stats: stats}, nil
}
