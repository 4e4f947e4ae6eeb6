package store

import (
	"reflect"
	"sort"

	stgpsr "github.com/yuin/stagparser"
)

// ComponentScheme names the fixed enumeration of stored-component layouts
// a Green's function store can hold, per spec.md §3.
type ComponentScheme string

const (
	SchemeElasticTen   ComponentScheme = "elastic-10"
	SchemeElasticEight ComponentScheme = "elastic-8"
	SchemeElasticFive  ComponentScheme = "elastic-5"
	SchemeExplosion    ComponentScheme = "explosion"
	SchemeSingleForce  ComponentScheme = "single-force"
	SchemePoroelastic  ComponentScheme = "poroelastic"
)

// schemeComponents declares, per scheme, the ordered list of raw component
// names physically interleaved in the store's traces, and the amplitude
// kind (moment tensor / force / scalar) the scheme accepts from a
// discretized source. The `gfcomp` struct tag is parsed once at init time
// with stagparser the same way the teacher's schema.go parses `tiledb`
// struct tags into per-field attribute definitions; here the "struct" is
// a documentation fixture, not a live value, so the parse result is
// converted into the package-level componentSchemes table below.
type schemeDescriptor struct {
	ElasticTen   string `gfcomp:"scheme=elastic-10,kind=momenttensor,n=10"`
	ElasticEight string `gfcomp:"scheme=elastic-8,kind=momenttensor,n=8"`
	ElasticFive  string `gfcomp:"scheme=elastic-5,kind=momenttensor,n=5"`
	Explosion    string `gfcomp:"scheme=explosion,kind=scalar,n=1"`
	SingleForce  string `gfcomp:"scheme=single-force,kind=force,n=3"`
	Poroelastic  string `gfcomp:"scheme=poroelastic,kind=scalar,n=4"`
}

// AmplitudeKind describes the shape of amplitude descriptor a component
// scheme requires from a discretized source's elementary contributions.
type AmplitudeKind string

const (
	AmplitudeMomentTensor AmplitudeKind = "momenttensor"
	AmplitudeForce        AmplitudeKind = "force"
	AmplitudeScalar       AmplitudeKind = "scalar"
)

// SchemeInfo is the resolved, queryable description of one component
// scheme: its raw stored-component names (in on-disk interleave order)
// and the amplitude kind it accepts.
type SchemeInfo struct {
	Scheme     ComponentScheme
	Kind       AmplitudeKind
	Components []string
}

var componentSchemes map[ComponentScheme]SchemeInfo

func init() {
	componentSchemes = make(map[ComponentScheme]SchemeInfo)

	defs, err := stgpsr.ParseStruct(&schemeDescriptor{}, "gfcomp")
	if err != nil {
		panic(err)
	}

	// raw rotated-frame component names per amplitude kind, in fixed
	// on-disk order; see gf.azimuthalRotate for how a source mechanism's
	// amplitude descriptor is projected onto these before stacking.
	namesByKind := map[AmplitudeKind][]string{
		AmplitudeMomentTensor: {"m_rr", "m_tt", "m_rt", "m_rd", "m_td", "m_dd", "f_r", "f_t", "f_d", "iso"},
		AmplitudeForce:        {"f_r", "f_t", "f_d"},
		AmplitudeScalar:       {"iso"},
	}

	// field order from the struct is not guaranteed meaningful, so sort
	// by declared scheme name for deterministic registration.
	fieldNames := make([]string, 0, len(defs))
	for name := range defs {
		fieldNames = append(fieldNames, name)
	}
	sort.Strings(fieldNames)

	t := reflect.TypeOf(schemeDescriptor{})
	for i := 0; i < t.NumField(); i++ {
		fname := t.Field(i).Name
		fdefs, ok := defs[fname]
		if !ok || len(fdefs) == 0 {
			continue
		}

		var scheme, kindStr, nStr string
		for _, d := range fdefs {
			if v, ok := d.Attribute("scheme"); ok {
				scheme = v
			}
			if v, ok := d.Attribute("kind"); ok {
				kindStr = v
			}
			if v, ok := d.Attribute("n"); ok {
				nStr = v
			}
		}
		_ = nStr

		kind := AmplitudeKind(kindStr)
		names := namesByKind[kind]

		// explosion and poroelastic both carry scalar amplitude but
		// differ in how many raw components they expose; poroelastic
		// additionally exposes the darcy-velocity direction components.
		switch ComponentScheme(scheme) {
		case SchemeElasticEight:
			names = names[:8]
		case SchemeElasticFive:
			names = names[:5]
		case SchemePoroelastic:
			names = []string{"iso", "f_r", "f_t", "f_d"}
		}

		componentSchemes[ComponentScheme(scheme)] = SchemeInfo{
			Scheme:     ComponentScheme(scheme),
			Kind:       kind,
			Components: names,
		}
	}
}

// Info returns the resolved SchemeInfo for a component scheme, and false
// if the scheme is not one of the fixed enumerated set.
func (s ComponentScheme) Info() (SchemeInfo, bool) {
	info, ok := componentSchemes[s]
	return info, ok
}

// NumComponents returns how many raw components this scheme stores.
func (s ComponentScheme) NumComponents() int {
	info, ok := componentSchemes[s]
	if !ok {
		return 0
	}
	return len(info.Components)
}

// ComponentIndex returns the position of a named raw component within
// this scheme's stored layout, or -1 if the scheme does not provide it.
func (s ComponentScheme) ComponentIndex(name string) int {
	info, ok := componentSchemes[s]
	if !ok {
		return -1
	}
	for i, c := range info.Components {
		if c == name {
			return i
		}
	}
	return -1
}
