package gf

import (
	"math"

	"github.com/sixy6e/go-gf/store"
)

// defaultShearModulus is used to scale a RectangularSource's slip into
// moment when the source does not carry its own estimate. It is a
// representative crustal rigidity (Pa); callers modelling a specific
// earth structure should set ShearModulus explicitly.
const defaultShearModulus = 3.2e10

// RectangularSource is a finite rectangular fault plane, ruptured
// unilaterally or bilaterally from a nucleation point at a fixed rupture
// velocity, discretized into a grid of point double-couple
// sub-contributions (spec.md §4.3 "finite source" extension).
type RectangularSource struct {
	sourceBase
	Strike, Dip, Rake float64
	Length, Width     float64 // m

	// NucleationX/Y are normalized fault-plane coordinates in [-1, 1]:
	// X runs along strike (-1 = left edge, +1 = right edge), Y runs
	// down-dip (-1 = upper edge, +1 = lower edge). Nil nucleates the
	// rupture simultaneously everywhere (zero rupture time spread).
	NucleationX, NucleationY *float64
	Velocity                 float64 // rupture front speed, m/s

	// Slip, if set, scales each sub-fault's moment by its area and a
	// shear modulus instead of splitting a fixed total moment evenly.
	Slip         *float64 // m
	ShearModulus float64  // Pa; 0 => defaultShearModulus

	Moment float64 // total scalar moment; only used when Slip is nil
}

// rectGrid lays out a rectangular fault plane's sub-fault centers on a
// regular (nl, nw) grid spanning (-Length/2, Length/2) x (-Width/2,
// Width/2), returning their along-strike/down-dip coordinates plus the
// per-subfault cell dimensions.
func rectGrid(length, width, cellSize float64) (xl, xw []float64, dl, dw float64) {
	nl := 2*int(math.Ceil(length/cellSize)) + 1
	nw := 2*int(math.Ceil(width/cellSize)) + 1
	dl = length / float64(nl)
	dw = width / float64(nw)
	xl = linspace(-0.5*(length-dl), 0.5*(length-dl), nl)
	xw = linspace(-0.5*(width-dw), 0.5*(width-dw), nw)
	return xl, xw, dl, dw
}

// rotateFaultPlane projects a fault-local (along-strike, down-dip, 0)
// offset into NED coordinates, given strike and dip in degrees. Derived
// from the standard strike/dip convention (Aki & Richards): the strike
// direction is (cos phi, sin phi, 0) and the down-dip direction is
// (-cos delta sin phi, cos delta cos phi, sin delta).
func rotateFaultPlane(l, w, strikeDeg, dipDeg float64) (n, e, d float64) {
	d2r := math.Pi / 180.0
	phi, delta := strikeDeg*d2r, dipDeg*d2r
	sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)
	sinDelta, cosDelta := math.Sin(delta), math.Cos(delta)

	n = l*cosPhi - w*cosDelta*sinPhi
	e = l*sinPhi + w*cosDelta*cosPhi
	d = w * sinDelta
	return n, e, d
}

func (s RectangularSource) nucleationOffsets() (nucx, nucy *float64) {
	if s.NucleationX != nil {
		v := *s.NucleationX * 0.5 * s.Length
		nucx = &v
	}
	if s.NucleationY != nil {
		v := *s.NucleationY * 0.5 * s.Width
		nucy = &v
	}
	return nucx, nucy
}

// Discretize lays the fault plane onto a grid of sub-fault point sources,
// each carrying a rupture-delay time offset and a double-couple moment
// tensor scaled either by an even split of the total scalar moment (Slip
// nil) or by its cell area, shear modulus and slip (Slip set).
//
// The sub-fault grid spacing is chosen from deltat*Velocity alone: unlike
// the original modeller, a Source here never sees the store it will be
// stacked against (spec.md's Source/Store separation), so it cannot also
// bound the grid by the store's own axis spacing.
func (s RectangularSource) Discretize(deltat float64) DiscretizedSource {
	velocity := s.Velocity
	if velocity <= 0 {
		velocity = 3500
	}
	cellSize := deltat * velocity
	if cellSize <= 0 {
		cellSize = math.Max(s.Length, s.Width)
		if cellSize == 0 {
			cellSize = 1
		}
	}

	xl, xw, dl, dw := rectGrid(s.Length, s.Width, cellSize)
	nucx, nucy := s.nucleationOffsets()

	type point struct {
		l, w, time float64
	}
	points := make([]point, 0, len(xl)*len(xw))
	for _, w := range xw {
		for _, l := range xl {
			var distX, distY float64
			if nucx != nil {
				distX = math.Abs(*nucx - l)
			}
			if nucy != nil {
				distY = math.Abs(*nucy - w)
			}
			dist := math.Hypot(distX, distY)
			points = append(points, point{l: l, w: w, time: dist / velocity})
		}
	}
	n := len(points)
	if n == 0 {
		return DiscretizedSource{Kind: store.AmplitudeMomentTensor}
	}

	m6Unit := dcToMT6(s.Strike, s.Dip, s.Rake)

	var totalMomentPerSubfault float64
	if s.Slip == nil {
		moment := s.Moment
		totalMomentPerSubfault = moment / float64(n)
	}

	modulus := s.ShearModulus
	if modulus <= 0 {
		modulus = defaultShearModulus
	}

	xtau, stfAmps := s.EffectiveSTFPre().DiscretizeT(deltat, 0.0)
	nt := len(xtau)

	contribs := make([]Contribution, 0, n*nt)
	for _, p := range points {
		ln, le, ld := rotateFaultPlane(p.l, p.w, s.Strike, s.Dip)

		var subMoment float64
		if s.Slip != nil {
			subMoment = dl * dw * modulus * (*s.Slip)
		} else {
			subMoment = totalMomentPerSubfault
		}

		for j := 0; j < nt; j++ {
			var mt [6]float64
			amp := subMoment * stfAmps[j]
			for c := range mt {
				mt[c] = m6Unit[c] * amp
			}
			contribs = append(contribs, Contribution{
				NorthShift:   s.NorthShift + ln,
				EastShift:    s.EastShift + le,
				Depth:        s.Depth + ld,
				Time:         p.time + xtau[j],
				MomentTensor: mt,
			})
		}
	}

	return DiscretizedSource{Kind: store.AmplitudeMomentTensor, Contributions: contribs}
}

func (s RectangularSource) BaseKey() string {
	var slip float64
	if s.Slip != nil {
		slip = *s.Slip
	}
	fields := append(s.baseKeyFields(), s.Strike, s.Dip, s.Rake,
		s.Length, s.Width, ptrOrNaN(s.NucleationX), ptrOrNaN(s.NucleationY),
		s.Velocity, slip, s.Moment, s.ShearModulus, s.EffectiveSTFPre().BaseKey())
	return keyf("rect", fields...)
}

// Factor is 1: a RectangularSource's moment is already baked into each
// sub-contribution by Discretize, unlike the point sources whose unit
// discretization is scaled post-stack.
func (s RectangularSource) Factor() float64 { return 1.0 }

// Outline returns the fault plane's rectangular footprint corners in NED
// offsets from the source's reference position, closing back on the
// first corner.
func (s RectangularSource) Outline() [][3]float64 {
	l, w := 0.5*s.Length, 0.5*s.Width
	corners := [][2]float64{{-l, -w}, {l, -w}, {l, w}, {-l, w}, {-l, -w}}
	out := make([][3]float64, len(corners))
	for i, c := range corners {
		n, e, d := rotateFaultPlane(c[0], c[1], s.Strike, s.Dip)
		out[i] = [3]float64{s.NorthShift + n, s.EastShift + e, s.Depth + d}
	}
	return out
}
