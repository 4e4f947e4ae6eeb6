package gf

import (
	"math"
	"testing"

	"github.com/sixy6e/go-gf/store"
)

func TestCLVDSourceIsTraceless(t *testing.T) {
	s := CLVDSource{Amplitude: 1e16, Azimuth: 30, Dip: 45}
	ds := s.Discretize(1.0)
	if ds.Kind != store.AmplitudeMomentTensor {
		t.Fatalf("Kind = %v, want AmplitudeMomentTensor", ds.Kind)
	}
	mt := ds.Contributions[0].MomentTensor
	trace := mt[0] + mt[1] + mt[2]
	if math.Abs(trace) > 1e-6 {
		t.Errorf("CLVD moment tensor trace = %v, want 0", trace)
	}
	if s.Factor() != 1e16 {
		t.Errorf("Factor() = %v, want 1e16", s.Factor())
	}
}

func TestCLVDSourceVerticalAxisIsPureDipole(t *testing.T) {
	// azimuth/dip irrelevant to a vertical (dip=90) axis: u = (0,0,1),
	// so the unit-amplitude tensor reduces to diag(-0.5,-0.5,1) with no
	// off-diagonal terms; Amplitude is applied post-stack via Factor().
	s := CLVDSource{Amplitude: 2.0, Azimuth: 123, Dip: 90}
	mt := s.Discretize(1.0).Contributions[0].MomentTensor
	want := [6]float64{-0.5, -0.5, 1, 0, 0, 0}
	for i := range mt {
		if math.Abs(mt[i]-want[i]) > 1e-9 {
			t.Errorf("mt[%d] = %v, want %v", i, mt[i], want[i])
		}
	}
}

func TestCLVDSourceBaseKeyDistinguishesOrientation(t *testing.T) {
	a := CLVDSource{Amplitude: 1, Azimuth: 0, Dip: 0}.BaseKey()
	b := CLVDSource{Amplitude: 1, Azimuth: 10, Dip: 0}.BaseKey()
	if a == b {
		t.Errorf("BaseKey() should differ for different azimuths, both = %q", a)
	}
	c := CLVDSource{Amplitude: 9, Azimuth: 0, Dip: 0}.BaseKey()
	if a != c {
		t.Errorf("BaseKey() should be independent of Amplitude: %q != %q", a, c)
	}
}

func TestDoubleDCSourceMixZeroIsSubsourceOne(t *testing.T) {
	s := DoubleDCSource{
		Strike1: 10, Dip1: 80, Rake1: 5,
		Strike2: 100, Dip2: 40, Rake2: -60,
		Mix: 0, Moment: 1e18,
	}
	ds := s.Discretize(1.0)
	if ds.Kind != store.AmplitudeMomentTensor {
		t.Fatalf("Kind = %v, want AmplitudeMomentTensor", ds.Kind)
	}
	want := dcToMT6(10, 80, 5)
	got := ds.Contributions[0].MomentTensor
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("mt[%d] = %v, want %v (subsource 1 only)", i, got[i], want[i])
		}
	}
}

func TestDoubleDCSourceMixOneIsSubsourceTwo(t *testing.T) {
	s := DoubleDCSource{
		Strike1: 10, Dip1: 80, Rake1: 5,
		Strike2: 100, Dip2: 40, Rake2: -60,
		Mix: 1, Moment: 1e18,
	}
	ds := s.Discretize(1.0)
	want := dcToMT6(100, 40, -60)
	// subsource 1's (zero-weighted) contributions come first; the last
	// entry is subsource 2's.
	got := ds.Contributions[len(ds.Contributions)-1].MomentTensor
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("mt[%d] = %v, want %v (subsource 2 only)", i, got[i], want[i])
		}
	}
}

func TestDoubleDCSourceOffsetsIgnoreDistance(t *testing.T) {
	// original_source/src/gf/seismosizer.py's DoubleDCSource declares a
	// distance field but never multiplies the azimuth-derived unit offset
	// by it; this is a faithfully-ported quirk, not a bug in this port.
	near := DoubleDCSource{Mix: 0.5, Azimuth: 45, Distance: 10, Moment: 1}
	far := DoubleDCSource{Mix: 0.5, Azimuth: 45, Distance: 10000, Moment: 1}

	dsNear := near.Discretize(1.0)
	dsFar := far.Discretize(1.0)

	for i := range dsNear.Contributions {
		if dsNear.Contributions[i].NorthShift != dsFar.Contributions[i].NorthShift ||
			dsNear.Contributions[i].EastShift != dsFar.Contributions[i].EastShift {
			t.Errorf("contribution %d offsets differ with Distance, want them independent of it", i)
		}
	}
}

func TestDoubleDCSourceTwoSubsourcesAtMixHalf(t *testing.T) {
	s := DoubleDCSource{Strike1: 0, Dip1: 90, Rake1: 0, Strike2: 90, Dip2: 90, Rake2: 0, Mix: 0.5, Moment: 1}
	ds := s.Discretize(1.0)
	if len(ds.Contributions) != 2 {
		t.Fatalf("expected 2 contributions (one per subsource), got %d", len(ds.Contributions))
	}
}

func TestRingfaultSourceDefaultPointCount(t *testing.T) {
	s := RingfaultSource{Diameter: 1000, Sign: 1, Strike: 0, Dip: 0, Moment: 1e18}
	ds := s.Discretize(1.0)
	if len(ds.Contributions) != 360 {
		t.Errorf("len(Contributions) = %d, want 360 (default NPointSources)", len(ds.Contributions))
	}
	if ds.Kind != store.AmplitudeMomentTensor {
		t.Fatalf("Kind = %v, want AmplitudeMomentTensor", ds.Kind)
	}
}

func TestRingfaultSourceExplicitPointCount(t *testing.T) {
	s := RingfaultSource{Diameter: 1000, Sign: 1, Strike: 0, Dip: 0, NPointSources: 8, Moment: 1e18}
	ds := s.Discretize(1.0)
	if len(ds.Contributions) != 8 {
		t.Errorf("len(Contributions) = %d, want 8", len(ds.Contributions))
	}
}

func TestRingfaultSourcePointsLieOnCircle(t *testing.T) {
	s := RingfaultSource{Diameter: 2000, Sign: 1, Strike: 30, Dip: 10, NPointSources: 16, Moment: 1}
	ds := s.Discretize(1.0)
	radius := 1000.0
	for i, c := range ds.Contributions {
		dn := c.NorthShift - s.NorthShift
		de := c.EastShift - s.EastShift
		dd := c.Depth - s.Depth
		dist := math.Sqrt(dn*dn + de*de + dd*dd)
		if math.Abs(dist-radius) > 1e-6 {
			t.Errorf("point %d distance from center = %v, want %v", i, dist, radius)
		}
	}
}

func TestRingfaultSourceSignFlipsFactor(t *testing.T) {
	pos := RingfaultSource{Sign: 1, Moment: 5}
	neg := RingfaultSource{Sign: -1, Moment: 5}
	if pos.Factor() != 5 || neg.Factor() != -5 {
		t.Errorf("Factor() = (%v, %v), want (5, -5)", pos.Factor(), neg.Factor())
	}
}

func TestPorePressurePointSourceDiscretize(t *testing.T) {
	s := PorePressurePointSource{Pp: 1e5}
	ds := s.Discretize(1.0)
	if ds.Kind != store.AmplitudeScalar {
		t.Fatalf("Kind = %v, want AmplitudeScalar", ds.Kind)
	}
	if len(ds.Contributions) != 1 || ds.Contributions[0].Scalar != 1 {
		t.Fatalf("unexpected contributions: %+v", ds.Contributions)
	}
	if ds.Contributions[0].Time != 0 {
		t.Errorf("Time = %v, want 0 (no STF discretization)", ds.Contributions[0].Time)
	}
	if s.Factor() != 1e5 {
		t.Errorf("Factor() = %v, want 1e5", s.Factor())
	}
}

func TestPorePressureLineSourceDistributesAlongAzimuthDip(t *testing.T) {
	s := PorePressureLineSource{Pp: 1, Length: 100, Azimuth: 90, Dip: 0}
	ds := s.Discretize(10.0)
	if ds.Kind != store.AmplitudeScalar {
		t.Fatalf("Kind = %v, want AmplitudeScalar", ds.Kind)
	}
	if len(ds.Contributions) < 3 {
		t.Fatalf("expected multiple points along the line, got %d", len(ds.Contributions))
	}

	var totalWeight float64
	for _, c := range ds.Contributions {
		totalWeight += c.Scalar
		// azimuth=90, dip=0 points east; north/depth should stay fixed.
		if math.Abs(c.NorthShift-s.NorthShift) > 1e-9 {
			t.Errorf("NorthShift = %v, want %v (east-pointing line)", c.NorthShift, s.NorthShift)
		}
		if math.Abs(c.Depth-s.Depth) > 1e-9 {
			t.Errorf("Depth = %v, want %v (horizontal line)", c.Depth, s.Depth)
		}
	}
	if math.Abs(totalWeight-1) > 1e-9 {
		t.Errorf("sum of point weights = %v, want 1", totalWeight)
	}
}

func TestPorePressureLineSourceSingularForShortLength(t *testing.T) {
	s := PorePressureLineSource{Pp: 1, Length: 0, Azimuth: 0, Dip: 0}
	ds := s.Discretize(10.0)
	if len(ds.Contributions) != 1 {
		t.Errorf("len(Contributions) = %d, want 1 for a zero-length line", len(ds.Contributions))
	}
}
