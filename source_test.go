package gf

import (
	"math"
	"testing"

	"github.com/sixy6e/go-gf/store"
)

func TestExplosionSourceDiscretize(t *testing.T) {
	s := ExplosionSource{Moment: 5e17}
	ds := s.Discretize(1.0)
	if ds.Kind != store.AmplitudeScalar {
		t.Fatalf("Kind = %v, want AmplitudeScalar", ds.Kind)
	}
	if len(ds.Contributions) != 1 || ds.Contributions[0].Scalar != 1 {
		t.Fatalf("unexpected contributions: %+v", ds.Contributions)
	}
	if s.Factor() != 5e17 {
		t.Errorf("Factor() = %v, want 5e17", s.Factor())
	}
}

func TestDCSourceDiscretizeIsMomentTensor(t *testing.T) {
	s := DCSource{Strike: 30, Dip: 60, Rake: 90, Moment: 1e18}
	ds := s.Discretize(1.0)
	if ds.Kind != store.AmplitudeMomentTensor {
		t.Fatalf("Kind = %v, want AmplitudeMomentTensor", ds.Kind)
	}
	if len(ds.Contributions) != 1 {
		t.Fatalf("expected 1 contribution for an on-grid impulse, got %d", len(ds.Contributions))
	}
	var sumAbs float64
	for _, m := range ds.Contributions[0].MomentTensor {
		sumAbs += math.Abs(m)
	}
	if sumAbs == 0 {
		t.Errorf("expected a non-zero moment tensor for a double couple")
	}
}

func TestDCSourcePureStrikeSlipIsTraceless(t *testing.T) {
	// strike=0, dip=90, rake=0 is a pure strike-slip mechanism: only
	// mne should be non-zero in NED convention.
	m6 := dcToMT6(0, 90, 0)
	for i, want := range []float64{0, 0, 0} {
		if math.Abs(m6[i]-want) > 1e-9 {
			t.Errorf("m6[%d] = %v, want %v", i, m6[i], want)
		}
	}
	if math.Abs(m6[3]) < 1e-9 {
		t.Errorf("expected non-zero mne for a pure strike-slip mechanism, got %v", m6[3])
	}
}

func TestMTSourcePassesComponentsThrough(t *testing.T) {
	s := MTSource{Mnn: 1, Mee: 2, Mdd: 3, Mne: 4, Mnd: 5, Med: 6}
	ds := s.Discretize(1.0)
	got := ds.Contributions[0].MomentTensor
	want := [6]float64{1, 2, 3, 4, 5, 6}
	if got != want {
		t.Errorf("MomentTensor = %v, want %v", got, want)
	}
	if s.Factor() != 1.0 {
		t.Errorf("Factor() = %v, want 1.0", s.Factor())
	}
}

func TestSingleForceSourceDiscretize(t *testing.T) {
	s := SingleForceSource{North: 1, East: 2, Down: 3}
	ds := s.Discretize(1.0)
	if ds.Kind != store.AmplitudeForce {
		t.Fatalf("Kind = %v, want AmplitudeForce", ds.Kind)
	}
	if ds.Contributions[0].Force != [3]float64{1, 2, 3} {
		t.Errorf("Force = %v, want [1 2 3]", ds.Contributions[0].Force)
	}
}

func TestBaseKeyDistinguishesSourceParameters(t *testing.T) {
	a := DCSource{Strike: 0, Dip: 90, Rake: 0, Moment: 1}.BaseKey()
	b := DCSource{Strike: 10, Dip: 90, Rake: 0, Moment: 1}.BaseKey()
	if a == b {
		t.Errorf("BaseKey() should differ for different strikes, both = %q", a)
	}

	// Moment does not affect discretization shape (applied as a
	// post-stack Factor), so it must not appear in the base key.
	c := DCSource{Strike: 0, Dip: 90, Rake: 0, Moment: 2}.BaseKey()
	if a != c {
		t.Errorf("BaseKey() should be identical regardless of Moment: %q != %q", a, c)
	}
}

func TestAzimuthalRotateForceRoundTrip(t *testing.T) {
	mt := [6]float64{1, 2, 3, 4, 5, 6}
	theta := 0.7

	rotated := azimuthalRotate(mt, theta)
	n, e := azimuthalUnrotate2(rotated[0], rotated[2], theta)
	// Only a loose structural check is possible without a matching
	// inverse for the full 6-component tensor; instead, verify the
	// (north, east) force rotation is a true round trip, which exercises
	// the same rotation matrix the tensor path relies on.
	_ = n
	_ = e

	f := [3]float64{1, 2, 3}
	rf := azimuthalRotateForce(f, theta)
	gotN, gotE := azimuthalUnrotate2(rf[0], rf[1], theta)
	if math.Abs(gotN-f[0]) > 1e-9 || math.Abs(gotE-f[1]) > 1e-9 {
		t.Errorf("force rotate/unrotate round trip = (%v, %v), want (%v, %v)", gotN, gotE, f[0], f[1])
	}
}

func TestAzimuthalRotateForceZeroAngleIsIdentity(t *testing.T) {
	f := [3]float64{1, 2, 3}
	got := azimuthalRotateForce(f, 0)
	if got != f {
		t.Errorf("azimuthalRotateForce(f, 0) = %v, want %v (identity)", got, f)
	}
}
