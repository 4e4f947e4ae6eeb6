package gf

import "math"

// InterpolationMethod selects how a continuous geometry point is resolved
// to grid contributions.
type InterpolationMethod string

const (
	InterpolationNearest     InterpolationMethod = "nearest_neighbor"
	InterpolationMultilinear InterpolationMethod = "multilinear"
)

// OptimizationMethod toggles the stacker's pre-combine pass.
type OptimizationMethod string

const (
	OptimizationEnable  OptimizationMethod = "enable"
	OptimizationDisable OptimizationMethod = "disable"
)

// Target is a single output channel of a processing request: a receiver
// position, channel identification, and the stacking/interpolation knobs
// that control how its base seismogram is produced (spec.md §3).
type Target struct {
	Lat, Lon              float64
	NorthShift, EastShift float64
	Elevation             float64
	Depth                 float64

	Network, Station, Location, Channel string

	Quantity string // empty => guessed from Channel

	StoreID     string
	SampleRate  float64 // 0 => store's native rate
	Interpolation InterpolationMethod
	Optimization  OptimizationMethod

	Tmin, Tmax *float64

	// Azimuth/Dip in degrees; nil => guessed from Channel.
	Azimuth, Dip *float64
}

// BaseKey captures every field that affects which grid records are
// pulled and how; targets sharing a base key share one stacked base
// seismogram (spec.md §4.5).
func (t *Target) BaseKey() string {
	return keyf("target",
		t.StoreID, t.SampleRate, t.Interpolation, t.Optimization,
		ptrOrNaN(t.Tmin), ptrOrNaN(t.Tmax),
		t.Elevation, t.Depth, t.NorthShift, t.EastShift, t.Lat, t.Lon)
}

func ptrOrNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// EffectiveQuantity returns t.Quantity if set, else guesses a measurement
// quantity from the SEED-style channel code's middle character, following
// the conventions codified in spec.md §9 / the common SEED band/instrument
// code table.
func (t *Target) EffectiveQuantity() (string, error) {
	if t.Quantity != "" {
		return t.Quantity, nil
	}

	cha := t.Channel
	switch len(cha) {
	case 3:
		switch cha[1] {
		case 'H', 'L':
			return "velocity", nil
		case 'N':
			return "acceleration", nil
		case 'D':
			return "pressure", nil
		case 'A':
			return "tilt", nil
		}
	case 2:
		switch cha[0] {
		case 'U':
			return "displacement", nil
		case 'V':
			return "velocity", nil
		}
	case 1:
		switch cha[0] {
		case 'N', 'E', 'Z':
			return "displacement", nil
		case 'P':
			return "pressure", nil
		}
	}
	return "", BadRequest("cannot guess measurement quantity type from channel code " + cha)
}

// ComponentCode returns the final character of the channel code, the
// conventional component letter (Z, N, E, R, T, ...).
func (t *Target) ComponentCode() byte {
	if t.Channel == "" {
		return ' '
	}
	return t.Channel[len(t.Channel)-1]
}

var neZAzimuth = map[byte]float64{'N': 0, 'E': 90, 'Z': 0}
var neZDip = map[byte]float64{'N': 0, 'E': 0, 'Z': -90}

// EffectiveAzimuth returns t.Azimuth if set, else guesses it from a
// standard N/E/Z component code.
func (t *Target) EffectiveAzimuth() (float64, error) {
	if t.Azimuth != nil {
		return *t.Azimuth, nil
	}
	if a, ok := neZAzimuth[t.ComponentCode()]; ok {
		return a, nil
	}
	return 0, BadRequest("cannot determine sensor component azimuth for " + t.Channel)
}

// EffectiveDip returns t.Dip if set, else guesses it from a standard
// N/E/Z component code.
func (t *Target) EffectiveDip() (float64, error) {
	if t.Dip != nil {
		return *t.Dip, nil
	}
	if d, ok := neZDip[t.ComponentCode()]; ok {
		return d, nil
	}
	return 0, BadRequest("cannot determine sensor component dip for " + t.Channel)
}

// GetSinCosFactors resolves the target's effective azimuth and dip and
// returns their sines and cosines, the form every channel Rule consumes
// to project a receiver-frame vector onto this sensor's orientation.
func (t *Target) GetSinCosFactors() (sinAzi, cosAzi, sinDip, cosDip float64, err error) {
	azi, err := t.EffectiveAzimuth()
	if err != nil {
		return 0, 0, 0, 0, err
	}
	dip, err := t.EffectiveDip()
	if err != nil {
		return 0, 0, 0, 0, err
	}
	d2r := math.Pi / 180.0
	return math.Sin(azi * d2r), math.Cos(azi * d2r), math.Sin(dip * d2r), math.Cos(dip * d2r), nil
}
