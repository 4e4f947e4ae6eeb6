package gf

import (
	"math"
	"testing"

	"github.com/sixy6e/go-gf/store"
)

func TestRectangularSourceDiscretizeUnitMoment(t *testing.T) {
	s := RectangularSource{
		sourceBase: sourceBase{NorthShift: 0, EastShift: 0, Depth: 5000},
		Strike:     0, Dip: 90, Rake: 0,
		Length: 4000, Width: 2000,
		Velocity: 3000,
		Moment:   1.0,
	}

	ds := s.Discretize(0.5)
	if ds.Kind != store.AmplitudeMomentTensor {
		t.Fatalf("Kind = %v, want AmplitudeMomentTensor", ds.Kind)
	}
	if len(ds.Contributions) == 0 {
		t.Fatalf("expected at least one contribution")
	}

	var totalScalar float64
	for _, c := range ds.Contributions {
		for _, m := range c.MomentTensor {
			totalScalar += math.Abs(m)
		}
	}
	if totalScalar <= 0 {
		t.Errorf("expected nonzero aggregate moment, got %v", totalScalar)
	}
}

func TestRectangularSourceNucleationProducesRuptureDelay(t *testing.T) {
	nucx := -1.0
	s := RectangularSource{
		sourceBase:  sourceBase{Depth: 5000},
		Strike:      0, Dip: 90, Rake: 0,
		Length:      4000, Width: 1,
		NucleationX: &nucx,
		Velocity:    2000,
		Moment:      1.0,
	}

	ds := s.Discretize(0.5)

	var minTime, maxTime float64
	minTime = math.Inf(1)
	for _, c := range ds.Contributions {
		if c.Time < minTime {
			minTime = c.Time
		}
		if c.Time > maxTime {
			maxTime = c.Time
		}
	}
	if maxTime <= minTime {
		t.Errorf("expected rupture delay to vary across the fault, min=%v max=%v", minTime, maxTime)
	}
	if minTime > 0.2*maxTime {
		t.Errorf("sub-fault nearest the nucleation point should rupture much earlier than the far edge: min=%v max=%v", minTime, maxTime)
	}
}

func TestRectangularSourceSlipScalesWithShearModulus(t *testing.T) {
	slip := 1.0
	base := RectangularSource{
		sourceBase: sourceBase{Depth: 5000},
		Strike:     0, Dip: 90, Rake: 0,
		Length: 2000, Width: 2000,
		Velocity: 3000,
		Slip:     &slip,
	}
	double := base
	double.ShearModulus = 2 * defaultShearModulus

	dsBase := base.Discretize(0.5)
	dsDouble := double.Discretize(0.5)
	if len(dsBase.Contributions) != len(dsDouble.Contributions) {
		t.Fatalf("grid size should not depend on shear modulus")
	}

	sumAbs := func(ds DiscretizedSource) float64 {
		var s float64
		for _, c := range ds.Contributions {
			s += math.Abs(c.MomentTensor[3])
		}
		return s
	}
	a, b := sumAbs(dsBase), sumAbs(dsDouble)
	if a <= 0 || math.Abs(b-2*a) > 1e-6*b {
		t.Errorf("doubling shear modulus should double total moment: got %v and %v", a, b)
	}
}

func TestRectangularSourceBaseKeyDistinguishesSlip(t *testing.T) {
	s1 := RectangularSource{Strike: 10, Dip: 80, Rake: 5, Length: 1000, Width: 500, Velocity: 3000, Moment: 1}
	slip := 0.5
	s2 := s1
	s2.Slip = &slip

	if s1.BaseKey() == s2.BaseKey() {
		t.Errorf("expected distinct base keys when slip differs")
	}
}

func TestRectangularSourceOutlineIsClosed(t *testing.T) {
	s := RectangularSource{Strike: 30, Dip: 60, Length: 1000, Width: 500}
	outline := s.Outline()
	if len(outline) != 5 {
		t.Fatalf("expected 5 points (closed rectangle), got %d", len(outline))
	}
	first, last := outline[0], outline[len(outline)-1]
	if first != last {
		t.Errorf("outline should close back on its first corner: %v != %v", first, last)
	}
}
