package gf

import (
	"math"

	"github.com/sixy6e/go-gf/store"
)

// Contribution is one elementary point contribution of a discretized
// source: a position relative to the source's (lat, lon) anchor, a time
// offset from the source's reference time, and a component-scheme
// specific amplitude descriptor (spec.md §3, §4.3).
type Contribution struct {
	NorthShift float64
	EastShift  float64
	Depth      float64
	Time       float64

	// Exactly one of the following is populated, selected by the
	// producing Source's AmplitudeKind.
	Scalar       float64
	Force        [3]float64  // (north, east, down)
	MomentTensor [6]float64 // (mnn, mee, mdd, mne, mnd, med), NED frame
}

// DiscretizedSource is the flat cloud of elementary contributions a
// Source reduces to, plus the AmplitudeKind every contribution carries
// (spec.md §4.3).
type DiscretizedSource struct {
	Kind          store.AmplitudeKind
	Contributions []Contribution
}

// Source is the common contract of all parameterized source models.
type Source interface {
	// Discretize converts the source into elementary point contributions
	// aligned to deltat, the store's sampling interval.
	Discretize(deltat float64) DiscretizedSource

	// BaseKey captures every field that affects discretization; sources
	// sharing a base key share one DiscretizedSource (spec.md §4.5).
	BaseKey() string

	// Factor is the post-stack scalar multiplier (e.g. scalar seismic
	// moment) applied after discretization was done at unit amplitude.
	Factor() float64

	// TimeShift is the post-stack time shift applied in place of
	// discretizing at the source's true origin time.
	TimeShift() float64

	// Position returns the source's reference location.
	Position() (lat, lon, northShift, eastShift, depth float64)

	// EffectiveSTFPre returns the STF to apply during discretization
	// (stf_mode == "pre"), or UnitPulseStf{} if none applies there.
	EffectiveSTFPre() STF

	// EffectiveSTFPost returns the STF to convolve after stacking
	// (stf_mode == "post"), or UnitPulseStf{} if none applies there.
	EffectiveSTFPost() STF
}

// sourceBase factors the fields and STF-mode bookkeeping common to every
// concrete source, mirroring the Source base class's defaults.
type sourceBase struct {
	Lat, Lon               float64
	NorthShift, EastShift  float64
	Depth                  float64
	Time                   float64
	Stf                    STF
	StfModePre             bool
}

func (b sourceBase) Position() (lat, lon, northShift, eastShift, depth float64) {
	return b.Lat, b.Lon, b.NorthShift, b.EastShift, b.Depth
}

func (b sourceBase) TimeShift() float64 { return b.Time }

func (b sourceBase) EffectiveSTFPre() STF {
	if b.Stf != nil && b.StfModePre {
		return b.Stf
	}
	return UnitPulseStf{}
}

func (b sourceBase) EffectiveSTFPost() STF {
	if b.Stf != nil && !b.StfModePre {
		return b.Stf
	}
	return UnitPulseStf{}
}

func (b sourceBase) baseKeyFields() []any {
	return []any{b.Depth, b.Lat, b.NorthShift, b.Lon, b.EastShift}
}

// ExplosionSource is an isotropic point explosion, parameterized by a
// scalar seismic moment.
type ExplosionSource struct {
	sourceBase
	Moment float64
}

func (s ExplosionSource) Discretize(deltat float64) DiscretizedSource {
	times, amplitudes := s.EffectiveSTFPre().DiscretizeT(deltat, 0.0)
	contribs := make([]Contribution, len(times))
	for i := range times {
		contribs[i] = Contribution{
			NorthShift: s.NorthShift, EastShift: s.EastShift, Depth: s.Depth,
			Time: times[i], Scalar: amplitudes[i],
		}
	}
	return DiscretizedSource{Kind: store.AmplitudeScalar, Contributions: contribs}
}

func (s ExplosionSource) BaseKey() string {
	fields := append([]any{"explosion"}, s.baseKeyFields()...)
	fields = append(fields, s.EffectiveSTFPre().BaseKey())
	return keyf("explosion", fields...)
}

func (s ExplosionSource) Factor() float64 { return s.Moment }

// dcToMT6 converts a double-couple (strike, dip, rake) in degrees to a
// unit-moment NED-frame moment tensor via the standard Aki & Richards
// formulation.
func dcToMT6(strikeDeg, dipDeg, rakeDeg float64) [6]float64 {
	d2r := math.Pi / 180.0
	phi := strikeDeg * d2r
	delta := dipDeg * d2r
	lambda := rakeDeg * d2r

	sinDelta, cosDelta := math.Sin(delta), math.Cos(delta)
	sin2Delta, cos2Delta := math.Sin(2*delta), math.Cos(2*delta)
	sinLambda, cosLambda := math.Sin(lambda), math.Cos(lambda)
	sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)
	sin2Phi, cos2Phi := math.Sin(2*phi), math.Cos(2*phi)

	mnn := -(sinDelta*cosLambda*sin2Phi + sin2Delta*sinLambda*sinPhi*sinPhi)
	mee := sinDelta*cosLambda*sin2Phi - sin2Delta*sinLambda*cosPhi*cosPhi
	mdd := sin2Delta * sinLambda
	mne := sinDelta*cosLambda*cos2Phi + 0.5*sin2Delta*sinLambda*sin2Phi
	mnd := -(cosDelta*cosLambda*cosPhi + cos2Delta*sinLambda*sinPhi)
	med := -(cosDelta*cosLambda*sinPhi - cos2Delta*sinLambda*cosPhi)

	return [6]float64{mnn, mee, mdd, mne, mnd, med}
}

// DCSource is a double-couple point source parameterized by strike, dip
// and rake (degrees), scaled by a scalar seismic moment.
type DCSource struct {
	sourceBase
	Strike, Dip, Rake float64
	Moment            float64
}

func (s DCSource) Discretize(deltat float64) DiscretizedSource {
	m6 := dcToMT6(s.Strike, s.Dip, s.Rake)
	times, amplitudes := s.EffectiveSTFPre().DiscretizeT(deltat, 0.0)
	contribs := make([]Contribution, len(times))
	for i := range times {
		var mt [6]float64
		for c := range mt {
			mt[c] = m6[c] * amplitudes[i]
		}
		contribs[i] = Contribution{
			NorthShift: s.NorthShift, EastShift: s.EastShift, Depth: s.Depth,
			Time: times[i], MomentTensor: mt,
		}
	}
	return DiscretizedSource{Kind: store.AmplitudeMomentTensor, Contributions: contribs}
}

func (s DCSource) BaseKey() string {
	fields := append(s.baseKeyFields(), s.Strike, s.Dip, s.Rake, s.EffectiveSTFPre().BaseKey())
	return keyf("dc", fields...)
}

func (s DCSource) Factor() float64 { return s.Moment }

// MTSource is a general moment-tensor point source, given directly in
// NED-frame components (N·m).
type MTSource struct {
	sourceBase
	Mnn, Mee, Mdd, Mne, Mnd, Med float64
}

func (s MTSource) Discretize(deltat float64) DiscretizedSource {
	m6 := [6]float64{s.Mnn, s.Mee, s.Mdd, s.Mne, s.Mnd, s.Med}
	times, amplitudes := s.EffectiveSTFPre().DiscretizeT(deltat, 0.0)
	contribs := make([]Contribution, len(times))
	for i := range times {
		var mt [6]float64
		for c := range mt {
			mt[c] = m6[c] * amplitudes[i]
		}
		contribs[i] = Contribution{
			NorthShift: s.NorthShift, EastShift: s.EastShift, Depth: s.Depth,
			Time: times[i], MomentTensor: mt,
		}
	}
	return DiscretizedSource{Kind: store.AmplitudeMomentTensor, Contributions: contribs}
}

func (s MTSource) BaseKey() string {
	fields := append(s.baseKeyFields(), s.Mnn, s.Mee, s.Mdd, s.Mne, s.Mnd, s.Med, s.EffectiveSTFPre().BaseKey())
	return keyf("mt", fields...)
}

func (s MTSource) Factor() float64 { return 1.0 }

// SingleForceSource is a point force source, given directly in
// (north, east, down) components (N).
type SingleForceSource struct {
	sourceBase
	North, East, Down float64
}

func (s SingleForceSource) Discretize(deltat float64) DiscretizedSource {
	times, amplitudes := s.EffectiveSTFPre().DiscretizeT(deltat, 0.0)
	contribs := make([]Contribution, len(times))
	for i := range times {
		contribs[i] = Contribution{
			NorthShift: s.NorthShift, EastShift: s.EastShift, Depth: s.Depth,
			Time:  times[i],
			Force: [3]float64{s.North * amplitudes[i], s.East * amplitudes[i], s.Down * amplitudes[i]},
		}
	}
	return DiscretizedSource{Kind: store.AmplitudeForce, Contributions: contribs}
}

func (s SingleForceSource) BaseKey() string {
	fields := append(s.baseKeyFields(), s.North, s.East, s.Down, s.EffectiveSTFPre().BaseKey())
	return keyf("force", fields...)
}

func (s SingleForceSource) Factor() float64 { return 1.0 }

// azimuthalRotate projects a NED-frame moment tensor's horizontal
// components into the radial/transverse frame of a cylindrically
// symmetric store, rotating by the source-to-receiver azimuth theta
// (radians, clockwise from north). This is required whenever a store's
// Reduction is ReductionDepthDistance: such a store's raw components are
// recorded in the (r, t, d) frame of the line connecting source and
// receiver, not in the source's fixed (n, e, d) frame, so the source
// mechanism's horizontal components must be re-expressed in that frame
// before they can serve as stacking weights. ReductionDepthNorthEast
// stores need no such rotation (their axes already span (n, e)).
//
// Returned order matches the "m_rr, m_tt, m_rt, m_rd, m_td, m_dd" raw
// component names of the momenttensor component schemes.
func azimuthalRotate(mt [6]float64, theta float64) [6]float64 {
	mnn, mee, mdd, mne, mnd, med := mt[0], mt[1], mt[2], mt[3], mt[4], mt[5]

	sinT, cosT := math.Sin(theta), math.Cos(theta)
	sin2T, cos2T := math.Sin(2*theta), math.Cos(2*theta)

	mrr := cosT*cosT*mnn + 2*sinT*cosT*mne + sinT*sinT*mee
	mtt := sinT*sinT*mnn - 2*sinT*cosT*mne + cosT*cosT*mee
	mrt := sinT*cosT*(mee-mnn) + cos2T*mne
	mrd := cosT*mnd + sinT*med
	mtd := -sinT*mnd + cosT*med
	_ = sin2T

	return [6]float64{mrr, mtt, mrt, mrd, mtd, mdd}
}

// azimuthalRotateForce projects a NED-frame force vector into the
// radial/transverse/down frame, the same way azimuthalRotate does for
// moment tensors.
func azimuthalRotateForce(f [3]float64, theta float64) [3]float64 {
	n, e, d := f[0], f[1], f[2]
	sinT, cosT := math.Sin(theta), math.Cos(theta)
	return [3]float64{cosT*n + sinT*e, -sinT*n + cosT*e, d}
}

// azimuthalUnrotate2 inverts azimuthalRotateForce's horizontal rotation,
// used to bring a stacked (r, t) pair back into the (n, e) frame before a
// Target's channel rule projects it onto sensor orientation.
func azimuthalUnrotate2(r, t float64, theta float64) (n, e float64) {
	sinT, cosT := math.Sin(theta), math.Cos(theta)
	n = cosT*r - sinT*t
	e = sinT*r + cosT*t
	return n, e
}
