package gf

import "math"

// STF is a source-time function: a short discrete amplitude sequence,
// aligned to multiples of a sampling interval, that pre- or post-stack
// convolution applies to an elementary point contribution.
type STF interface {
	// DiscretizeT returns the sample times and amplitudes approximating
	// this STF at sampling interval deltat, anchored so that the
	// amplitude-weighted mean time approximates CentroidTime(tref)
	// (BoxcarStf applies a fractional-sample shift that makes it exact).
	DiscretizeT(deltat, tref float64) (times, amplitudes []float64)
	CentroidTime(tref float64) float64
	EffectiveDuration() float64
	BaseKey() string
}

// UnitPulseStf is the impulse: an infinitesimally short, single-sample
// discretization. It is what a source's EffectiveSTFPre/EffectiveSTFPost
// return when the source carries no explicit source-time function.
type UnitPulseStf struct{}

func (UnitPulseStf) DiscretizeT(deltat, tref float64) ([]float64, []float64) {
	tl := math.Floor(tref/deltat) * deltat
	th := math.Ceil(tref/deltat) * deltat
	if tl == th {
		return []float64{tl}, []float64{1}
	}
	return []float64{tl, th}, []float64{(th - tref) / deltat, (tref - tl) / deltat}
}

func (UnitPulseStf) CentroidTime(tref float64) float64 { return tref }
func (UnitPulseStf) EffectiveDuration() float64        { return 0 }
func (UnitPulseStf) BaseKey() string                   { return "unitpulse" }

// sshift re-anchors a (times, amplitudes) discretization by a fractional
// sample shift tshift, splitting mass between adjacent samples the same
// way DiscretizeT does, so a centroid correction never needs resampling
// onto a finer grid.
func sshift(times, amplitudes []float64, tshift, deltat float64) ([]float64, []float64) {
	t0 := math.Floor(tshift/deltat) * deltat
	t1 := math.Ceil(tshift/deltat) * deltat
	if t0 == t1 {
		return times, amplitudes
	}

	out := make([]float64, len(amplitudes)+1)
	for i, a := range amplitudes {
		out[i] += (t1 - tshift) / deltat * a
		out[i+1] += (tshift - t0) / deltat * a
	}

	times2 := make([]float64, len(times)+1)
	for i := range times2 {
		times2[i] = float64(i)*deltat + times[0] + t0
	}

	return times2, out
}

// plfIntegratePiecewise integrates the piecewise-linear function defined
// by control points (t, f) (sorted, f == 0 implicitly outside [t[0],
// t[len(t)-1])) over each consecutive pair of edges in tEdges, returning
// one definite integral per edge interval.
func plfIntegratePiecewise(tEdges, t, f []float64) []float64 {
	antideriv := func(x float64) float64 {
		if x <= t[0] {
			return 0
		}
		total := 0.0
		for i := 0; i < len(t)-1; i++ {
			a, b := t[i], t[i+1]
			fa, fb := f[i], f[i+1]
			if x <= a {
				break
			}
			xb := math.Min(b, x)
			if xb <= a {
				continue
			}
			slope := (fb - fa) / (b - a)
			total += fa*(xb-a) + slope*0.5*(xb-a)*(xb-a)
		}
		return total
	}

	out := make([]float64, len(tEdges)-1)
	prev := antideriv(tEdges[0])
	for i := 0; i < len(out); i++ {
		next := antideriv(tEdges[i+1])
		out[i] = next - prev
		prev = next
	}
	return out
}

func linspace(a, b float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = a
		return out
	}
	step := (b - a) / float64(n-1)
	for i := range out {
		out[i] = a + float64(i)*step
	}
	return out
}

func sumFloat64(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s
}

// isUnitPulse reports whether stf is the impulse, the common case that
// needs no convolution.
func isUnitPulse(stf STF) bool {
	_, ok := stf.(UnitPulseStf)
	return ok
}

// convolve applies a post-stack source-time function to an already-stacked
// trace: stf is discretized at deltat anchored to tref 0, and every output
// sample is the weighted sum of the kernel against data (spec.md §4.5,
// stf_mode == "post"). The returned tminShift is the kernel's first sample
// time, the amount the caller must add to the trace's tmin; the returned
// trace has len(data)+len(kernel)-1 samples.
func convolve(data []float64, deltat float64, stf STF) (out []float64, tminShift float64) {
	times, amplitudes := stf.DiscretizeT(deltat, 0)
	if len(amplitudes) <= 1 {
		return data, 0
	}

	out = make([]float64, len(data)+len(amplitudes)-1)
	for i, d := range data {
		if d == 0 {
			continue
		}
		for k, a := range amplitudes {
			out[i+k] += d * a
		}
	}
	if len(times) > 0 {
		tminShift = times[0]
	}
	return out, tminShift
}

// BoxcarStf is a flat-topped source-time function of fixed duration.
type BoxcarStf struct {
	Duration float64
	// Anchor positions the reference time within the boxcar:
	// -1 = left edge, 0 = centered, +1 = right edge.
	Anchor float64
}

func (s BoxcarStf) CentroidTime(tref float64) float64 {
	return tref - 0.5*s.Duration*s.Anchor
}

func (s BoxcarStf) EffectiveDuration() float64 { return s.Duration }

func (s BoxcarStf) DiscretizeT(deltat, tref float64) ([]float64, []float64) {
	tminStf := tref - s.Duration*(s.Anchor+1)*0.5
	tmaxStf := tref + s.Duration*(1-s.Anchor)*0.5
	tmin := math.Round(tminStf/deltat) * deltat
	tmax := math.Round(tmaxStf/deltat) * deltat
	nt := int(math.Round((tmax-tmin)/deltat)) + 1

	times := linspace(tmin, tmax, nt)
	amplitudes := make([]float64, nt)
	for i := range amplitudes {
		amplitudes[i] = 1
	}

	if nt > 1 {
		tEdges := linspace(tmin-0.5*deltat, tmax+0.5*deltat, nt+1)
		t := []float64{tminStf, tminStf, tminStf + s.Duration, tminStf + s.Duration}
		f := []float64{0, 1, 1, 0}
		amplitudes = plfIntegratePiecewise(tEdges, t, f)
		total := sumFloat64(amplitudes)
		if total != 0 {
			for i := range amplitudes {
				amplitudes[i] /= total
			}
		}
	}

	var weightedMean float64
	for i := range times {
		weightedMean += amplitudes[i] * times[i]
	}
	tshift := weightedMean - s.CentroidTime(tref)

	return sshift(times, amplitudes, -tshift, deltat)
}

func (s BoxcarStf) BaseKey() string {
	return keyf("boxcar", s.Duration, s.Anchor)
}

// TriangularStf is a triangular source-time function whose peak may sit
// anywhere between 0 and 1 times its baseline duration.
type TriangularStf struct {
	Duration  float64
	PeakRatio float64 // fraction of Duration where amplitude peaks; 0.5 = symmetric
	Anchor    float64
}

func (s TriangularStf) factorDurationToEffective() float64 {
	r := s.PeakRatio
	return math.Sqrt((r*r - r + 1.0) * 2.0 / 3.0)
}

func (s TriangularStf) centroidRatio() float64 {
	ra := s.PeakRatio
	rb := 1.0 - ra
	return ra + (rb*rb/3.0-ra*ra/3.0)/(ra+rb)
}

func (s TriangularStf) CentroidTime(tref float64) float64 {
	ca := s.centroidRatio()
	cb := 1.0 - ca
	if s.Anchor <= 0 {
		return tref - ca*s.Duration*s.Anchor
	}
	return tref - cb*s.Duration*s.Anchor
}

func (s TriangularStf) EffectiveDuration() float64 {
	return s.Duration * s.factorDurationToEffective()
}

func (s TriangularStf) tMinMaxStf(tref float64) (float64, float64) {
	ca := s.centroidRatio()
	cb := 1.0 - ca
	if s.Anchor <= 0 {
		tminStf := tref - ca*s.Duration*(s.Anchor+1)
		return tminStf, tminStf + s.Duration
	}
	tmaxStf := tref + cb*s.Duration*(1-s.Anchor)
	return tmaxStf - s.Duration, tmaxStf
}

func (s TriangularStf) DiscretizeT(deltat, tref float64) ([]float64, []float64) {
	tminStf, tmaxStf := s.tMinMaxStf(tref)
	tmin := math.Round(tminStf/deltat) * deltat
	tmax := math.Round(tmaxStf/deltat) * deltat
	nt := int(math.Round((tmax-tmin)/deltat)) + 1

	var amplitudes []float64
	if nt > 1 {
		tEdges := linspace(tmin-0.5*deltat, tmax+0.5*deltat, nt+1)
		t := []float64{tminStf, tminStf + s.Duration*s.PeakRatio, tminStf + s.Duration}
		f := []float64{0, 1, 0}
		amplitudes = plfIntegratePiecewise(tEdges, t, f)
		total := sumFloat64(amplitudes)
		if total != 0 {
			for i := range amplitudes {
				amplitudes[i] /= total
			}
		}
	} else {
		amplitudes = []float64{1}
	}

	times := linspace(tmin, tmax, nt)
	return times, amplitudes
}

func (s TriangularStf) BaseKey() string {
	return keyf("triangular", s.Duration, s.PeakRatio, s.Anchor)
}

// HalfSinusoidStf is a half-period sine-shaped source-time function.
type HalfSinusoidStf struct {
	Duration float64
	Anchor   float64
}

func (s HalfSinusoidStf) factorDurationToEffective() float64 {
	return math.Sqrt((3.0*math.Pi*math.Pi - 24.0) / (math.Pi * math.Pi))
}

func (s HalfSinusoidStf) CentroidTime(tref float64) float64 {
	return tref - 0.5*s.Duration*s.Anchor
}

func (s HalfSinusoidStf) EffectiveDuration() float64 {
	return s.Duration * s.factorDurationToEffective()
}

func (s HalfSinusoidStf) DiscretizeT(deltat, tref float64) ([]float64, []float64) {
	tminStf := tref - s.Duration*(s.Anchor+1)*0.5
	tmaxStf := tref + s.Duration*(1-s.Anchor)*0.5
	tmin := math.Round(tminStf/deltat) * deltat
	tmax := math.Round(tmaxStf/deltat) * deltat
	nt := int(math.Round((tmax-tmin)/deltat)) + 1

	var amplitudes []float64
	if nt > 1 {
		rawEdges := linspace(tmin-0.5*deltat, tmax+0.5*deltat, nt+1)
		fint := make([]float64, nt+1)
		for i, e := range rawEdges {
			clamped := math.Max(tminStf, math.Min(tmaxStf, e))
			fint[i] = -math.Cos((clamped - tminStf) * (math.Pi / s.Duration))
		}
		amplitudes = make([]float64, nt)
		var total float64
		for i := range amplitudes {
			amplitudes[i] = fint[i+1] - fint[i]
			total += amplitudes[i]
		}
		if total != 0 {
			for i := range amplitudes {
				amplitudes[i] /= total
			}
		}
	} else {
		amplitudes = []float64{1}
	}

	times := linspace(tmin, tmax, nt)
	return times, amplitudes
}

func (s HalfSinusoidStf) BaseKey() string {
	return keyf("halfsinusoid", s.Duration, s.Anchor)
}
