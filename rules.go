package gf

import (
	"math"

	"github.com/sixy6e/go-gf/store"
)

// nonzero mirrors the teacher's sentinel-aware "is this worth computing"
// idiom: near-zero projection factors skip a whole buffer lookup rather
// than multiplying by an effectively-zero weight.
func nonzero(x float64) bool {
	return math.Abs(x) > 1e-12
}

// Rule projects a receiver-frame base seismogram (a map of raw quantity
// component name -> buffer) onto one target's sensor orientation.
type Rule interface {
	RequiredComponents(t *Target) []string
	Apply(t *Target, base map[string][]float64) []float64
}

// VectorRule projects a full 3-component (north, east, down) buffer set
// onto an arbitrarily oriented sensor via its azimuth/dip sin/cos
// factors.
type VectorRule struct {
	Quantity string
}

func (r VectorRule) names() (n, e, d string) {
	return r.Quantity + ".n", r.Quantity + ".e", r.Quantity + ".d"
}

func (r VectorRule) RequiredComponents(t *Target) []string {
	n, e, d := r.names()
	sa, ca, sd, cd, err := t.GetSinCosFactors()
	if err != nil {
		return nil
	}
	var comps []string
	if nonzero(ca * cd) {
		comps = append(comps, n)
	}
	if nonzero(sa * cd) {
		comps = append(comps, e)
	}
	if nonzero(sd) {
		comps = append(comps, d)
	}
	return comps
}

func (r VectorRule) Apply(t *Target, base map[string][]float64) []float64 {
	n, e, d := r.names()
	sa, ca, sd, cd, err := t.GetSinCosFactors()
	if err != nil {
		return nil
	}

	var out []float64
	if nonzero(ca * cd) {
		out = scale(base[n], ca*cd)
	}
	if nonzero(sa * cd) {
		out = addScaled(out, base[e], sa*cd)
	}
	if nonzero(sd) {
		out = addScaled(out, base[d], sd)
	}
	return out
}

// HorizontalVectorRule is VectorRule restricted to the horizontal plane,
// used for quantities that have no vertical component (e.g. tilt).
type HorizontalVectorRule struct {
	Quantity string
}

func (r HorizontalVectorRule) names() (n, e string) {
	return r.Quantity + ".n", r.Quantity + ".e"
}

func (r HorizontalVectorRule) RequiredComponents(t *Target) []string {
	n, e := r.names()
	sa, ca, _, _, err := t.GetSinCosFactors()
	if err != nil {
		return nil
	}
	var comps []string
	if nonzero(ca) {
		comps = append(comps, n)
	}
	if nonzero(sa) {
		comps = append(comps, e)
	}
	return comps
}

func (r HorizontalVectorRule) Apply(t *Target, base map[string][]float64) []float64 {
	n, e := r.names()
	sa, ca, _, _, err := t.GetSinCosFactors()
	if err != nil {
		return nil
	}
	var out []float64
	if nonzero(ca) {
		out = scale(base[n], ca)
	}
	if nonzero(sa) {
		out = addScaled(out, base[e], sa)
	}
	return out
}

// ScalarRule passes a single scalar-quantity buffer through unchanged.
type ScalarRule struct {
	Quantity string
}

func (r ScalarRule) RequiredComponents(t *Target) []string { return []string{r.Quantity} }

func (r ScalarRule) Apply(t *Target, base map[string][]float64) []float64 {
	src := base[r.Quantity]
	out := make([]float64, len(src))
	copy(out, src)
	return out
}

func scale(src []float64, factor float64) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = v * factor
	}
	return out
}

func addScaled(dst, src []float64, factor float64) []float64 {
	if dst == nil {
		return scale(src, factor)
	}
	for i, v := range src {
		dst[i] += v * factor
	}
	return dst
}

// channelRules maps a measurement quantity to the Rule(s) that produce
// it from raw base-seismogram components (spec.md §4.5, §9).
var channelRules = map[string]Rule{
	"displacement":   VectorRule{Quantity: "displacement"},
	"pressure":       ScalarRule{Quantity: "pressure"},
	"vertical_tilt":  HorizontalVectorRule{Quantity: "vertical_tilt"},
	"darcy_velocity": VectorRule{Quantity: "darcy_velocity"},
}

// channelRule resolves the Rule for a target's effective quantity,
// failing NoRule if no rule is registered for it. Scalar-kind schemes
// (explosion, pressure-only stores) always produce their single raw
// component directly; they have no n/e/d sensor orientation to project
// onto, so they bypass the vector rules entirely — unless the target
// explicitly asks for a quantity the scheme separately exposes as raw
// vector components (poroelastic's darcy_velocity alongside its scalar
// pore pressure), in which case the requested quantity wins.
func channelRule(t *Target, info store.SchemeInfo) (Rule, error) {
	if info.Kind == store.AmplitudeScalar && len(info.Components) > 0 {
		if t.Quantity != "" {
			if rule, ok := channelRules[t.Quantity]; ok && schemeProvides(info, t.Quantity) {
				return rule, nil
			}
		}
		return ScalarRule{Quantity: info.Components[0]}, nil
	}

	quantity, err := t.EffectiveQuantity()
	if err != nil {
		return nil, err
	}
	// "velocity" reuses the displacement rule; its time-derivative is
	// applied as post-processing by the caller, not by the Rule itself.
	// "tilt" is the channel-guessed name for the horizontal-only
	// vertical_tilt rule.
	switch quantity {
	case "velocity":
		quantity = "displacement"
	case "tilt":
		quantity = "vertical_tilt"
	}
	rule, ok := channelRules[quantity]
	if !ok {
		return nil, NoRule(quantity, string(info.Scheme))
	}
	return rule, nil
}

// schemeProvides reports whether a scalar-kind scheme's raw stored
// components include what a non-scalar quantity rule needs, e.g.
// poroelastic's f_r/f_t/f_d darcy-velocity components alongside its iso
// pore-pressure scalar.
func schemeProvides(info store.SchemeInfo, quantity string) bool {
	switch quantity {
	case "darcy_velocity":
		for _, c := range info.Components {
			if c == "f_r" || c == "f_t" || c == "f_d" {
				return true
			}
		}
	}
	return false
}
