// Package interpolate turns a continuous axis-tuple geometry point into
// one or more grid contributions against a store's regular axis geometry.
package interpolate

import (
	"fmt"
	"math"

	"github.com/sixy6e/go-gf/store"
)

// WeightedIndex is one grid contribution: a flat grid index paired with
// its interpolation weight.
type WeightedIndex struct {
	Index  int64
	Weight float64
}

// AxisOutOfBoundsError mirrors gf.OutOfBoundsAxisError's fields so callers
// in the root package can wrap/convert it without this package importing
// gf (gf imports interpolate, not the reverse).
type AxisOutOfBoundsError struct {
	Name     string
	Value    float64
	Min, Max float64
}

func (e *AxisOutOfBoundsError) Error() string {
	return fmt.Sprintf("interpolate: axis %q value %v outside [%v, %v]", e.Name, e.Value, e.Min, e.Max)
}

// flatIndex converts per-axis integer coordinates into a flat grid index,
// using the store's axis-major, row-major layout: the last axis varies
// fastest.
func flatIndex(axes []store.Axis, coords []int) int64 {
	var idx int64
	for a := range axes {
		idx = idx*int64(axes[a].Count) + int64(coords[a])
	}
	return idx
}

// Nearest rounds each axis coordinate of x to its closest grid point and
// returns the corresponding flat index with weight 1. Fails
// AxisOutOfBoundsError if any x[i] lies outside its axis's covered range
// (spec.md §4.2: "out-of-range axes fail", never silently clamped).
func Nearest(axes []store.Axis, x []float64) (int64, error) {
	if len(x) != len(axes) {
		return 0, fmt.Errorf("interpolate: x has %d components, want %d", len(x), len(axes))
	}

	coords := make([]int, len(axes))
	for i, a := range axes {
		if !a.InBounds(x[i]) {
			return 0, &AxisOutOfBoundsError{Name: a.Name, Value: x[i], Min: a.Min, Max: a.Max()}
		}
		pos := (x[i] - a.Min) / a.Delta
		c := int(math.Round(pos))
		if c < 0 {
			c = 0
		}
		if c > a.Count-1 {
			c = a.Count - 1
		}
		coords[i] = c
	}
	return flatIndex(axes, coords), nil
}

// Multilinear computes the up-to-2^k bracketing grid contributions of x,
// one per corner of the enclosing hypercube, with weights that are the
// product of each axis's linear interpolation fraction. Weights sum to
// 1.0 within numerical precision; entries are emitted in a fixed
// axis-major, lower-before-upper order so that summation order (and
// therefore rounding) is reproducible bit-for-bit for a given x
// (spec.md §4.2 determinism requirement).
//
// Fails AxisOutOfBoundsError if any x[i] lies outside its axis's covered
// range; clamping is never applied silently.
func Multilinear(axes []store.Axis, x []float64) ([]WeightedIndex, error) {
	if len(x) != len(axes) {
		return nil, fmt.Errorf("interpolate: x has %d components, want %d", len(x), len(axes))
	}

	type bracket struct {
		lower, upper int
		wLower, wUpper float64
	}

	brackets := make([]bracket, len(axes))
	for i, a := range axes {
		if !a.InBounds(x[i]) {
			return nil, &AxisOutOfBoundsError{Name: a.Name, Value: x[i], Min: a.Min, Max: a.Max()}
		}

		pos := (x[i] - a.Min) / a.Delta
		lower := int(math.Floor(pos))
		if lower > a.Count-1 {
			lower = a.Count - 1
		}
		upper := lower + 1
		if upper > a.Count-1 {
			upper = a.Count - 1
		}

		frac := pos - float64(lower)
		if lower == upper {
			frac = 0
		}
		brackets[i] = bracket{lower: lower, upper: upper, wLower: 1 - frac, wUpper: frac}
	}

	nCorners := 1 << uint(len(axes))
	out := make([]WeightedIndex, 0, nCorners)

	coords := make([]int, len(axes))
	for corner := 0; corner < nCorners; corner++ {
		weight := 1.0
		for a := len(axes) - 1; a >= 0; a-- {
			// axis-major, lower-before-upper: bit a of corner selects
			// upper (1) or lower (0) for axes[a], with axis 0 as the
			// most significant bit so entries enumerate axis 0 slowest.
			bit := (corner >> uint(len(axes)-1-a)) & 1
			if bit == 0 {
				coords[a] = brackets[a].lower
				weight *= brackets[a].wLower
			} else {
				coords[a] = brackets[a].upper
				weight *= brackets[a].wUpper
			}
		}
		if weight == 0 {
			continue
		}
		out = append(out, WeightedIndex{Index: flatIndex(axes, coords), Weight: weight})
	}

	return out, nil
}
