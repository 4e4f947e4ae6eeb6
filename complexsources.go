package gf

import (
	"math"

	"github.com/sixy6e/go-gf/store"
)

// directionVector returns the NED-frame unit vector pointed at azimuth
// (degrees, clockwise from north) and dip (degrees, downward from
// horizontal), the convention CLVDSource and the pore-pressure sources
// use to orient themselves.
func directionVector(azimuthDeg, dipDeg float64) (n, e, d float64) {
	d2r := math.Pi / 180.0
	sa, ca := math.Sin(azimuthDeg*d2r), math.Cos(azimuthDeg*d2r)
	sd, cd := math.Sin(dipDeg*d2r), math.Cos(dipDeg*d2r)
	return ca * cd, sa * cd, sd
}

// CLVDSource is a pure compensated-linear-vector-dipole point source: a
// moment tensor with eigenvalues (-0.5, -0.5, 1) times amplitude, the
// largest eigenvalue's axis pointed at (azimuth, dip).
type CLVDSource struct {
	sourceBase
	Amplitude      float64
	Azimuth, Dip   float64
}

// clvdMT6 builds the NED moment tensor of a unit-amplitude CLVD whose
// largest-eigenvalue axis is the unit vector u: M = 1.5*(u⊗u) - 0.5*I,
// the coordinate-free form of diag(-0.5, -0.5, 1) in u's own frame.
func clvdMT6(amplitude float64, un, ue, ud float64) [6]float64 {
	return [6]float64{
		amplitude * (1.5*un*un - 0.5),
		amplitude * (1.5*ue*ue - 0.5),
		amplitude * (1.5*ud*ud - 0.5),
		amplitude * 1.5 * un * ue,
		amplitude * 1.5 * un * ud,
		amplitude * 1.5 * ue * ud,
	}
}

func (s CLVDSource) Discretize(deltat float64) DiscretizedSource {
	un, ue, ud := directionVector(s.Azimuth, s.Dip)
	m6 := clvdMT6(1.0, un, ue, ud)
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

func (s CLVDSource) BaseKey() string {
	fields := append(s.baseKeyFields(), s.Azimuth, s.Dip, s.EffectiveSTFPre().BaseKey())
	return keyf("clvd", fields...)
}

func (s CLVDSource) Factor() float64 { return s.Amplitude }

// DoubleDCSource is two double-couple point sources separated in space
// and time, their moments distributed by Mix (0 => all on #1, 1 => all
// on #2).
type DoubleDCSource struct {
	sourceBase
	Strike1, Dip1, Rake1 float64
	Strike2, Dip2, Rake2 float64
	DeltaTime            float64 // t2 - t1
	DeltaDepth           float64 // z2 - z1
	Azimuth              float64 // to subsource 2, measured at subsource 1
	Distance             float64
	Mix                  float64 // 0 => m1=1,m2=0; 1 => m1=0,m2=1
	Moment               float64
}

func (s DoubleDCSource) Discretize(deltat float64) DiscretizedSource {
	a1 := 1.0 - s.Mix
	a2 := s.Mix

	m1 := dcToMT6(s.Strike1, s.Dip1, s.Rake1)
	m2 := dcToMT6(s.Strike2, s.Dip2, s.Rake2)

	d2r := math.Pi / 180.0
	deltaNorth := math.Cos(s.Azimuth * d2r)
	deltaEast := math.Sin(s.Azimuth * d2r)

	times1, amplitudes1 := s.EffectiveSTFPre().DiscretizeT(deltat, -s.DeltaTime*a1)
	times2, amplitudes2 := s.EffectiveSTFPre().DiscretizeT(deltat, s.DeltaTime*a2)

	contribs := make([]Contribution, 0, len(times1)+len(times2))
	for i := range times1 {
		var mt [6]float64
		for c := range mt {
			mt[c] = m1[c] * a1 * amplitudes1[i]
		}
		contribs = append(contribs, Contribution{
			NorthShift: s.NorthShift - deltaNorth*a1,
			EastShift:  s.EastShift - deltaEast*a1,
			Depth:      s.Depth - s.DeltaDepth*a1,
			Time:       times1[i], MomentTensor: mt,
		})
	}
	for i := range times2 {
		var mt [6]float64
		for c := range mt {
			mt[c] = m2[c] * a2 * amplitudes2[i]
		}
		contribs = append(contribs, Contribution{
			NorthShift: s.NorthShift + deltaNorth*a2,
			EastShift:  s.EastShift + deltaEast*a2,
			Depth:      s.Depth + s.DeltaDepth*a2,
			Time:       times2[i], MomentTensor: mt,
		})
	}
	return DiscretizedSource{Kind: store.AmplitudeMomentTensor, Contributions: contribs}
}

func (s DoubleDCSource) BaseKey() string {
	fields := append(s.baseKeyFields(),
		s.Strike1, s.Dip1, s.Rake1, s.Strike2, s.Dip2, s.Rake2,
		s.DeltaTime, s.DeltaDepth, s.Azimuth, s.Distance, s.Mix,
		s.EffectiveSTFPre().BaseKey())
	return keyf("doubledc", fields...)
}

func (s DoubleDCSource) Factor() float64 { return s.Moment }

// RingfaultSource is a ring fault of vertical doublecouples distributed
// around a circle of the given diameter, the plane of the ring oriented
// by strike/dip like a fault plane (dip measured from horizontal, pole
// pointing straight down at dip 0).
type RingfaultSource struct {
	sourceBase
	Diameter       float64
	Sign           float64 // inside moves up (+1) or down (-1)
	Strike, Dip    float64
	NPointSources  int // 0 => 360
	Moment         float64
}

// ringPlaneBasis returns the ring plane's pole (normal) and two
// orthonormal in-plane basis vectors, all in the NED frame.
func ringPlaneBasis(strikeDeg, dipDeg float64) (pole, e1, e2 [3]float64) {
	d2r := math.Pi / 180.0
	ss, cs := math.Sin(strikeDeg*d2r), math.Cos(strikeDeg*d2r)
	sd, cd := math.Sin(dipDeg*d2r), math.Cos(dipDeg*d2r)

	pole = [3]float64{sd * cs, sd * ss, cd}
	e1 = [3]float64{-ss, cs, 0}
	e2 = [3]float64{
		-pole[2] * e1[1],
		pole[2] * e1[0],
		pole[0]*e1[1] - pole[1]*e1[0],
	}
	return pole, e1, e2
}

func (s RingfaultSource) Discretize(deltat float64) DiscretizedSource {
	n := s.NPointSources
	if n <= 0 {
		n = 360
	}
	pole, e1, e2 := ringPlaneBasis(s.Strike, s.Dip)

	times, amplitudes := s.EffectiveSTFPre().DiscretizeT(deltat, 0.0)
	contribs := make([]Contribution, 0, n*len(times))

	m0 := 1.0 / float64(n)
	for i := 0; i < n; i++ {
		phi := 2.0 * math.Pi * float64(i) / float64(n)
		sp, cp := math.Sin(phi), math.Cos(phi)

		radial := [3]float64{
			cp*e1[0] + sp*e2[0],
			cp*e1[1] + sp*e2[1],
			cp*e1[2] + sp*e2[2],
		}

		north := s.NorthShift + 0.5*s.Diameter*radial[0]
		east := s.EastShift + 0.5*s.Diameter*radial[1]
		depth := s.Depth + 0.5*s.Diameter*radial[2]

		m := m0
		mt := [6]float64{
			2 * m * pole[0] * radial[0],
			2 * m * pole[1] * radial[1],
			2 * m * pole[2] * radial[2],
			m * (pole[0]*radial[1] + pole[1]*radial[0]),
			m * (pole[0]*radial[2] + pole[2]*radial[0]),
			m * (pole[1]*radial[2] + pole[2]*radial[1]),
		}

		for j, t := range times {
			var scaled [6]float64
			for c := range scaled {
				scaled[c] = mt[c] * amplitudes[j]
			}
			contribs = append(contribs, Contribution{
				NorthShift: north, EastShift: east, Depth: depth,
				Time: t, MomentTensor: scaled,
			})
		}
	}
	return DiscretizedSource{Kind: store.AmplitudeMomentTensor, Contributions: contribs}
}

func (s RingfaultSource) BaseKey() string {
	fields := append(s.baseKeyFields(), s.Strike, s.Dip, s.Diameter, s.NPointSources, s.EffectiveSTFPre().BaseKey())
	return keyf("ringfault", fields...)
}

func (s RingfaultSource) Factor() float64 { return s.Sign * s.Moment }

// PorePressurePointSource is an excess pore pressure brought into a
// small source volume instantaneously: a poro-elastic initial-value
// problem, not a time-domain moment release, so it carries no STF.
type PorePressurePointSource struct {
	sourceBase
	Pp float64 // initial excess pore pressure, Pa
}

func (s PorePressurePointSource) Discretize(float64) DiscretizedSource {
	return DiscretizedSource{
		Kind: store.AmplitudeScalar,
		Contributions: []Contribution{{
			NorthShift: s.NorthShift, EastShift: s.EastShift, Depth: s.Depth,
			Time: 0, Scalar: 1.0,
		}},
	}
}

func (s PorePressurePointSource) BaseKey() string {
	return keyf("porepressurepoint", s.baseKeyFields()...)
}

func (s PorePressurePointSource) Factor() float64 { return s.Pp }

// PorePressureLineSource is an excess pore pressure distributed evenly
// along a line segment centered on (north_shift, east_shift, depth).
type PorePressureLineSource struct {
	sourceBase
	Pp             float64
	Length         float64
	Azimuth, Dip   float64
}

func (s PorePressureLineSource) Discretize(deltat float64) DiscretizedSource {
	n := 2*int(math.Ceil(s.Length/deltat)) + 1
	if n < 1 {
		n = 1
	}

	un, ue, ud := directionVector(s.Azimuth, s.Dip)

	contribs := make([]Contribution, n)
	offsets := linspace(-0.5*s.Length, 0.5*s.Length, n)
	for i, a := range offsets {
		contribs[i] = Contribution{
			NorthShift: s.NorthShift + a*un,
			EastShift:  s.EastShift + a*ue,
			Depth:      s.Depth + a*ud,
			Time:       0,
			Scalar:     1.0 / float64(n),
		}
	}
	return DiscretizedSource{Kind: store.AmplitudeScalar, Contributions: contribs}
}

func (s PorePressureLineSource) BaseKey() string {
	fields := append(s.baseKeyFields(), s.Azimuth, s.Dip, s.Length)
	return keyf("porepressureline", fields...)
}

func (s PorePressureLineSource) Factor() float64 { return s.Pp }
